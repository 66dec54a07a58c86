// Package dateutil 提供班表使用的日历日期换算。
//
// 所有函数在截断或加减天数之前都会把时间固定到当天中午，
// 这样夏令时切换或时区换算造成的前后几个小时偏移不会让日期跨到前一天或后一天。
package dateutil

import (
	"fmt"
	"time"
)

const (
	ISOLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

// Noon 返回 t 所在日历日的中午 12 点（保持 t 的时区）
func Noon(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, t.Location())
}

// ParseISO 解析 YYYY-MM-DD，返回 UTC 中午的时间
func ParseISO(s string) (time.Time, error) {
	t, err := time.ParseInLocation(ISOLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的日期 %q: %w", s, err)
	}
	return Noon(t), nil
}

func ISODate(t time.Time) string {
	return Noon(t).Format(ISOLayout)
}

// DateOnly 把带或不带时间部分的日期字符串规范化为 YYYY-MM-DD
func DateOnly(s string) (string, error) {
	layouts := []string{ISOLayout, time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(ISOLayout), nil
		}
	}
	return "", fmt.Errorf("无效的日期 %q", s)
}

func AddDays(t time.Time, n int) time.Time {
	return Noon(t).AddDate(0, 0, n)
}

func AddDaysISO(s string, n int) (string, error) {
	t, err := ParseISO(s)
	if err != nil {
		return "", err
	}
	return ISODate(AddDays(t, n)), nil
}

// IsSameDate 只比较日历日，忽略时间部分
func IsSameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// WeekStart 返回 t 当天或之前最近的星期六
func WeekStart(t time.Time) time.Time {
	t = Noon(t)
	back := (int(t.Weekday()) + 1) % 7
	return t.AddDate(0, 0, -back)
}

func NormalizeToWeekStart(s string) (string, error) {
	t, err := ParseISO(s)
	if err != nil {
		return "", err
	}
	return ISODate(WeekStart(t)), nil
}

// ParseMonth 解析 YYYY-MM，返回该月 1 日中午（UTC）
func ParseMonth(s string) (time.Time, error) {
	t, err := time.ParseInLocation(MonthLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效的月份 %q: %w", s, err)
	}
	return Noon(t), nil
}

func MonthOf(t time.Time) string {
	return Noon(t).Format(MonthLayout)
}

func PrevMonth(s string) (string, error) {
	t, err := ParseMonth(s)
	if err != nil {
		return "", err
	}
	return MonthOf(t.AddDate(0, -1, 0)), nil
}

func NextMonth(s string) (string, error) {
	t, err := ParseMonth(s)
	if err != nil {
		return "", err
	}
	return MonthOf(t.AddDate(0, 1, 0)), nil
}

// Today 返回本地时区下今天的 YYYY-MM-DD
func Today() string {
	return ISODate(time.Now())
}
