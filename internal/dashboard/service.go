// Package dashboard aggregates resident and access log counts for the
// overview screen.
package dashboard

import (
	"context"
	"sort"
	"time"

	"residence-backend/internal/models"
	"residence-backend/internal/store"
)

const (
	recentActivityLimit = 10
	maxActivityDays     = 90
)

// ActivityPoint is one day of gate traffic.
type ActivityPoint struct {
	Label   string `json:"label"` // YYYY-MM-DD
	Entries int    `json:"entries"`
	Exits   int    `json:"exits"`
	Total   int    `json:"total"`
}

type ActivityResponse struct {
	From   string          `json:"from"`
	To     string          `json:"to"`
	Points []ActivityPoint `json:"points"`
}

type Service struct {
	store *store.Store
	loc   *time.Location
	now   func() time.Time
}

func NewService(s *store.Store, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: s, loc: loc, now: time.Now}
}

func (s *Service) midnight(t time.Time) time.Time {
	t = t.In(s.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.loc)
}

// Stats counts residents and today's entries and exits. A log counts as
// today when its timestamp truncated to midnight equals today's midnight.
func (s *Service) Stats(ctx context.Context) (*models.DashboardStats, error) {
	residents, err := store.Load[models.Resident](ctx, s.store, store.KeyResidents)
	if err != nil {
		return nil, err
	}
	logs, err := store.Load[models.AccessLog](ctx, s.store, store.KeyAccessLogs)
	if err != nil {
		return nil, err
	}

	stats := &models.DashboardStats{
		TotalResidents: len(residents),
		RecentActivity: []models.AccessLog{},
	}
	for _, r := range residents {
		if r.IsActive {
			stats.ActiveResidents++
		}
	}

	today := s.midnight(s.now())
	for _, l := range logs {
		if !s.midnight(l.Timestamp).Equal(today) {
			continue
		}
		switch l.AccessType {
		case models.AccessEntry:
			stats.TodayEntries++
		case models.AccessExit:
			stats.TodayExits++
		}
	}

	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].Timestamp.After(logs[j].Timestamp)
	})
	if len(logs) > recentActivityLimit {
		logs = logs[:recentActivityLimit]
	}
	stats.RecentActivity = append(stats.RecentActivity, logs...)
	return stats, nil
}

// Activity returns per-day entry/exit counts for the last days days,
// oldest first, ending today.
func (s *Service) Activity(ctx context.Context, days int) (*ActivityResponse, error) {
	if days <= 0 {
		days = 7
	}
	if days > maxActivityDays {
		days = maxActivityDays
	}

	logs, err := store.Load[models.AccessLog](ctx, s.store, store.KeyAccessLogs)
	if err != nil {
		return nil, err
	}

	today := s.midnight(s.now())
	start := today.AddDate(0, 0, -(days - 1))

	points := make([]ActivityPoint, days)
	index := make(map[string]int, days)
	for i := 0; i < days; i++ {
		label := start.AddDate(0, 0, i).Format("2006-01-02")
		points[i].Label = label
		index[label] = i
	}

	for _, l := range logs {
		i, ok := index[s.midnight(l.Timestamp).Format("2006-01-02")]
		if !ok {
			continue
		}
		switch l.AccessType {
		case models.AccessEntry:
			points[i].Entries++
		case models.AccessExit:
			points[i].Exits++
		}
		points[i].Total = points[i].Entries + points[i].Exits
	}

	return &ActivityResponse{
		From:   points[0].Label,
		To:     points[len(points)-1].Label,
		Points: points,
	}, nil
}
