package views

import (
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/dateutil"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

type Query struct {
	Person string
	Filter string
	Week   string // 周内任意一天，YYYY-MM-DD
	Month  string // YYYY-MM
	Today  string // YYYY-MM-DD，用于标记今天
}

type Views struct {
	People            []string                          `json:"people"`
	TestTypes         []string                          `json:"testTypes"`
	Person            string                            `json:"person"`
	Filter            string                            `json:"filter"`
	WeekStart         string                            `json:"weekStart"`
	WeekDates         []string                          `json:"weekDates"`
	PrevWeek          string                            `json:"prevWeek"`
	NextWeek          string                            `json:"nextWeek"`
	TeamWeek          []DayGroup                        `json:"teamWeek"`
	PersonWeek        []DayGroup                        `json:"personWeek"`
	Month             string                            `json:"month"`
	PrevMonth         string                            `json:"prevMonth"`
	NextMonth         string                            `json:"nextMonth"`
	MonthGrid         []MonthCell                       `json:"monthGrid"`
	PersonTasksByDate map[string][]domain.ScheduleEntry `json:"personTasksByDate"`
	PersonList        []domain.ScheduleEntry            `json:"personList"`
}

// Build 计算所有视图，Week、Month、Today 为空时以今天为准
func Build(entries []domain.ScheduleEntry, q Query) (*Views, error) {
	if q.Today == "" {
		q.Today = dateutil.Today()
	}
	if q.Week == "" {
		q.Week = q.Today
	}
	if q.Month == "" {
		today, err := dateutil.ParseISO(q.Today)
		if err != nil {
			return nil, err
		}
		q.Month = dateutil.MonthOf(today)
	}
	if q.Filter == "" {
		q.Filter = domain.FilterAll
	}

	weekDates, err := WeekDates(q.Week)
	if err != nil {
		return nil, err
	}
	prevWeek, _ := dateutil.AddDaysISO(weekDates[0], -daysPerWeek)
	nextWeek, _ := dateutil.AddDaysISO(weekDates[0], daysPerWeek)

	grid, err := MonthGrid(q.Month, q.Today)
	if err != nil {
		return nil, err
	}
	prevMonth, _ := dateutil.PrevMonth(q.Month)
	nextMonth, _ := dateutil.NextMonth(q.Month)

	filtered := Filter(entries, q.Filter)

	return &Views{
		People:            People(entries),
		TestTypes:         TestTypes(entries),
		Person:            q.Person,
		Filter:            q.Filter,
		WeekStart:         weekDates[0],
		WeekDates:         weekDates,
		PrevWeek:          prevWeek,
		NextWeek:          nextWeek,
		TeamWeek:          TeamWeek(filtered, weekDates),
		PersonWeek:        PersonWeek(filtered, q.Person, weekDates),
		Month:             q.Month,
		PrevMonth:         prevMonth,
		NextMonth:         nextMonth,
		MonthGrid:         grid,
		PersonTasksByDate: PersonTasksByDate(filtered, q.Person),
		PersonList:        PersonList(filtered, q.Person),
	}, nil
}
