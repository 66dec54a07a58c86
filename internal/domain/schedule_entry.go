package domain

import "time"

// ScheduleEntry 表示班表中的一条测试任务
type ScheduleEntry struct {
	ID       string  `json:"id"`
	Person   string  `json:"person" validate:"required"`
	Test     string  `json:"test" validate:"required"`
	Date     string  `json:"date" validate:"required,datetime=2006-01-02"`
	Time     *string `json:"time"` // 可选字段为 nil 时表示没有值，不会是空字符串
	Location *string `json:"location"`
	ZipCode  *string `json:"zipCode"`
	TestID   *string `json:"testId"`
	MEP      *string `json:"mep"`
}

type ScheduleMeta struct {
	BatchID   string    `json:"batchID"`
	UpdatedAt time.Time `json:"updatedAt"`
	Count     int       `json:"count"`
}
