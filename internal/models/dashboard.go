package models

type DashboardStats struct {
	TotalResidents  int         `json:"totalResidents"`
	ActiveResidents int         `json:"activeResidents"`
	TodayEntries    int         `json:"todayEntries"`
	TodayExits      int         `json:"todayExits"`
	RecentActivity  []AccessLog `json:"recentActivity"`
}
