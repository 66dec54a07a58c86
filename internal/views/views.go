// Package views 根据完整的班表条目计算各个视图。
// 所有函数都是纯函数，不修改传入的切片。
package views

import (
	"cmp"
	"slices"

	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/dateutil"
	"github.com/sysu-ecnc-dev/test-schedule/backend/internal/domain"
)

const (
	daysPerWeek    = 7
	monthGridCells = 42 // 6 周
)

type DayGroup struct {
	Date    string                 `json:"date"`
	Entries []domain.ScheduleEntry `json:"entries"`
}

type MonthCell struct {
	Date           string `json:"date"`
	Day            int    `json:"day"`
	IsCurrentMonth bool   `json:"isCurrentMonth"`
	IsToday        bool   `json:"isToday"`
}

func distinct(entries []domain.ScheduleEntry, key func(domain.ScheduleEntry) string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, e := range entries {
		k := key(e)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		values = append(values, k)
	}
	slices.Sort(values)
	return values
}

func People(entries []domain.ScheduleEntry) []string {
	return distinct(entries, func(e domain.ScheduleEntry) string { return e.Person })
}

func TestTypes(entries []domain.ScheduleEntry) []string {
	return distinct(entries, func(e domain.ScheduleEntry) string { return e.Test })
}

// Filter 按测试类型过滤，"all" 或空字符串时原样返回
func Filter(entries []domain.ScheduleEntry, filter string) []domain.ScheduleEntry {
	if filter == "" || filter == domain.FilterAll {
		return entries
	}

	filtered := make([]domain.ScheduleEntry, 0)
	for _, e := range entries {
		if e.Test == filter {
			filtered = append(filtered, e)
		}
	}
	return filtered
}

// WeekDates 返回从 anchor 所在周的星期六开始的连续 7 天
func WeekDates(anchor string) ([]string, error) {
	start, err := dateutil.NormalizeToWeekStart(anchor)
	if err != nil {
		return nil, err
	}

	t, _ := dateutil.ParseISO(start)
	dates := make([]string, daysPerWeek)
	for i := range dates {
		dates[i] = dateutil.ISODate(dateutil.AddDays(t, i))
	}
	return dates, nil
}

// entryDate 返回条目的日期部分，无法解析时返回原值
func entryDate(e domain.ScheduleEntry) string {
	d, err := dateutil.DateOnly(e.Date)
	if err != nil {
		return e.Date
	}
	return d
}

func groupByWeekDate(entries []domain.ScheduleEntry, weekDates []string, keep func(domain.ScheduleEntry) bool, less func(a, b domain.ScheduleEntry) int) []DayGroup {
	groups := make([]DayGroup, len(weekDates))
	index := make(map[string]int, len(weekDates))
	for i, d := range weekDates {
		groups[i] = DayGroup{Date: d, Entries: make([]domain.ScheduleEntry, 0)}
		index[d] = i
	}

	for _, e := range entries {
		if !keep(e) {
			continue
		}
		if i, ok := index[entryDate(e)]; ok {
			groups[i].Entries = append(groups[i].Entries, e)
		}
	}

	for i := range groups {
		slices.SortStableFunc(groups[i].Entries, less)
	}
	return groups
}

// TeamWeek 返回一周中每天的条目，按 (person, test) 升序排列
func TeamWeek(filtered []domain.ScheduleEntry, weekDates []string) []DayGroup {
	return groupByWeekDate(filtered, weekDates,
		func(domain.ScheduleEntry) bool { return true },
		func(a, b domain.ScheduleEntry) int {
			return cmp.Or(cmp.Compare(a.Person, b.Person), cmp.Compare(a.Test, b.Test))
		},
	)
}

// PersonWeek 返回某人一周中每天的条目，按 test 升序排列
func PersonWeek(filtered []domain.ScheduleEntry, person string, weekDates []string) []DayGroup {
	return groupByWeekDate(filtered, weekDates,
		func(e domain.ScheduleEntry) bool { return e.Person == person },
		func(a, b domain.ScheduleEntry) int { return cmp.Compare(a.Test, b.Test) },
	)
}

// MonthGrid 返回覆盖 month（YYYY-MM）的 42 个日历格，从 1 日当天或之前的星期六开始
func MonthGrid(month string, today string) ([]MonthCell, error) {
	first, err := dateutil.ParseMonth(month)
	if err != nil {
		return nil, err
	}

	start := dateutil.WeekStart(first)
	cells := make([]MonthCell, monthGridCells)
	for i := range cells {
		d := dateutil.AddDays(start, i)
		date := dateutil.ISODate(d)
		cells[i] = MonthCell{
			Date:           date,
			Day:            d.Day(),
			IsCurrentMonth: d.Month() == first.Month() && d.Year() == first.Year(),
			IsToday:        date == today,
		}
	}
	return cells, nil
}

// PersonTasksByDate 按日期分组某人的条目，组内保持原有顺序；没有选中的人时为空
func PersonTasksByDate(filtered []domain.ScheduleEntry, person string) map[string][]domain.ScheduleEntry {
	tasks := make(map[string][]domain.ScheduleEntry)
	if person == "" {
		return tasks
	}

	for _, e := range filtered {
		if e.Person != person {
			continue
		}
		d := entryDate(e)
		tasks[d] = append(tasks[d], e)
	}
	return tasks
}

// PersonList 返回某人（没有选中时为所有人）的条目，按日期升序排列
func PersonList(filtered []domain.ScheduleEntry, person string) []domain.ScheduleEntry {
	list := make([]domain.ScheduleEntry, 0)
	for _, e := range filtered {
		if person == "" || e.Person == person {
			list = append(list, e)
		}
	}

	slices.SortStableFunc(list, func(a, b domain.ScheduleEntry) int {
		return cmp.Compare(entryDate(a), entryDate(b))
	})
	return list
}
