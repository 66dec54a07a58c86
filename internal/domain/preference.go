package domain

type ViewMode string

const (
	ViewMySchedule ViewMode = "mySchedule"
	ViewTeamWeekly ViewMode = "teamWeekly"
	ViewMonthly    ViewMode = "monthly"
	ViewList       ViewMode = "list"
)

// FilterAll 表示不按测试类型过滤
const FilterAll = "all"

const (
	PrefCurrentUser = "currentUser"
	PrefViewMode    = "viewMode"
	PrefTestFilter  = "testFilter"
)

type Preferences struct {
	CurrentUser string   `json:"currentUser"`
	ViewMode    ViewMode `json:"viewMode"`
	TestFilter  string   `json:"testFilter"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		CurrentUser: "",
		ViewMode:    ViewMySchedule,
		TestFilter:  FilterAll,
	}
}

func (m ViewMode) Valid() bool {
	switch m {
	case ViewMySchedule, ViewTeamWeekly, ViewMonthly, ViewList:
		return true
	}
	return false
}
