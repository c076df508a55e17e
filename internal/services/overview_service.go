package services

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/sentinel/internal/models"
)

const (
	defaultActivityDays = 7
	maxActivityDays     = 90
	activityLabelLayout = "Jan 2"
)

// OverviewService computes the operator dashboard figures
type OverviewService struct {
	accounts IdentityStore
	requests AccessRequestStore
	events   AuditEventStore
	clock    Clock
	location *time.Location
}

// NewOverviewService creates a new OverviewService. Days are bucketed in loc.
func NewOverviewService(accounts IdentityStore, requests AccessRequestStore, events AuditEventStore, clock Clock, loc *time.Location) *OverviewService {
	if loc == nil {
		loc = time.Local
	}
	return &OverviewService{
		accounts: accounts,
		requests: requests,
		events:   events,
		clock:    clock,
		location: loc,
	}
}

// Dashboard returns the account total, pending requests and audit events of the last 24 hours
func (s *OverviewService) Dashboard(ctx context.Context) (*models.DashboardCounts, error) {
	accounts, err := s.accounts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count accounts: %w", err)
	}

	pending, err := s.requests.CountByStatus(ctx, models.RequestPending)
	if err != nil {
		return nil, fmt.Errorf("failed to count pending requests: %w", err)
	}

	recent, err := s.events.CountSince(ctx, s.clock.Now().Add(-24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to count recent activity: %w", err)
	}

	return &models.DashboardCounts{
		Accounts:         accounts,
		PendingRequests:  pending,
		RecentActivities: recent,
	}, nil
}

// DailyActivityCounts returns one bucket per local calendar day, oldest first,
// ending today. days outside 1..90 is clamped; zero or less means a week.
func (s *OverviewService) DailyActivityCounts(ctx context.Context, days int) ([]models.DailyActivityCount, error) {
	if days <= 0 {
		days = defaultActivityDays
	}
	days = min(days, maxActivityDays)

	now := s.clock.Now().In(s.location)
	y, m, d := now.Date()
	start := time.Date(y, m, d-(days-1), 0, 0, 0, 0, s.location)

	buckets := make([]models.DailyActivityCount, days)
	index := make(map[string]int, days)
	for i := range buckets {
		day := time.Date(y, m, d-(days-1)+i, 0, 0, 0, 0, s.location)
		key := day.Format(models.DateLayout)
		buckets[i] = models.DailyActivityCount{Date: key, Label: day.Format(activityLabelLayout)}
		index[key] = i
	}

	timestamps, err := s.events.TimestampsSince(ctx, start)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity: %w", err)
	}

	for _, ts := range timestamps {
		if i, ok := index[ts.In(s.location).Format(models.DateLayout)]; ok {
			buckets[i].Count++
		}
	}
	return buckets, nil
}
