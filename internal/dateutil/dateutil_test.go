package dateutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeToWeekStart(t *testing.T) {
	cases := map[string]string{
		"2024-06-01": "2024-06-01", // 星期六
		"2024-06-02": "2024-06-01", // 星期日
		"2024-06-07": "2024-06-01", // 星期五
		"2024-06-08": "2024-06-08",
		"2024-01-03": "2023-12-30", // 跨年
	}
	for in, want := range cases {
		got, err := NormalizeToWeekStart(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeToWeekStart("2024-13-01")
	assert.Error(t, err)
}

func TestWeekStartIgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC-10", -10*3600)
	late := time.Date(2024, 3, 9, 23, 59, 0, 0, loc)
	early := time.Date(2024, 3, 9, 0, 1, 0, 0, loc)

	assert.Equal(t, "2024-03-09", ISODate(WeekStart(late)))
	assert.Equal(t, "2024-03-09", ISODate(WeekStart(early)))
	assert.Equal(t, time.Saturday, WeekStart(late).Weekday())
}

func TestAddDaysAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("没有时区数据")
	}
	start := time.Date(2024, 3, 9, 0, 0, 0, 0, ny)
	assert.Equal(t, "2024-03-10", ISODate(AddDays(start, 1)))
	assert.Equal(t, "2024-03-11", ISODate(AddDays(start, 2)))

	s, err := AddDaysISO("2024-02-28", 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", s)
}

func TestIsSameDate(t *testing.T) {
	a := time.Date(2024, 5, 1, 0, 0, 1, 0, time.UTC)
	b := time.Date(2024, 5, 1, 23, 59, 59, 0, time.UTC)
	c := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, IsSameDate(a, b))
	assert.False(t, IsSameDate(b, c))
}

func TestDateOnly(t *testing.T) {
	for _, in := range []string{"2023-03-15", "2023-03-15T08:30:00Z", "2023-03-15T08:30:00", "2023-03-15 08:30:00"} {
		got, err := DateOnly(in)
		require.NoError(t, err, in)
		assert.Equal(t, "2023-03-15", got)
	}

	_, err := DateOnly("15/03/2023")
	assert.Error(t, err)
}

func TestMonthNavigation(t *testing.T) {
	prev, err := PrevMonth("2024-01")
	require.NoError(t, err)
	assert.Equal(t, "2023-12", prev)

	next, err := NextMonth("2023-12")
	require.NoError(t, err)
	assert.Equal(t, "2024-01", next)

	next, err = NextMonth("2024-05")
	require.NoError(t, err)
	assert.Equal(t, "2024-06", next)

	_, err = PrevMonth("2024/01")
	assert.Error(t, err)
}
