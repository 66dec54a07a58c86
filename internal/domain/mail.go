package domain

import "time"

const (
	MailTypeScheduleUpdated = "schedule_updated"
	MailTypeScheduleCleared = "schedule_cleared"
)

type MailMessage struct {
	Type string `json:"type"`
	To   string `json:"to"`
	Data any    `json:"data"`
}

type ScheduleUpdatedMailData struct {
	Count     int       `json:"count"`
	People    []string  `json:"people"`
	Warnings  int       `json:"warnings"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type ScheduleClearedMailData struct {
	ClearedAt time.Time `json:"clearedAt"`
}
