package services

import (
	"context"

	"nexus_go/models"

	"github.com/shopspring/decimal"
)

// DashboardStats is the administrative summary.
type DashboardStats struct {
	TotalMembers        int64           `json:"total_members"`
	ActiveMembers       int64           `json:"active_members"`
	TotalRequirements   int             `json:"total_requirements"`
	OverdueRequirements int             `json:"overdue_requirements"`
	TotalCollected      decimal.Decimal `json:"total_collected"`
	PaymentCompliance   float64         `json:"payment_compliance"`
	Payments            PaymentStats    `json:"payments"`
	Events              EventStats      `json:"events"`
	OpenTickets         int             `json:"open_tickets"`
}

// MemberDashboard is what a member sees on login.
type MemberDashboard struct {
	TotalPaid          decimal.Decimal `json:"total_paid"`
	TotalBalance       decimal.Decimal `json:"total_balance"`
	PaidRequirements   int             `json:"paid_requirements"`
	UnpaidRequirements int             `json:"unpaid_requirements"`
	OverdueCount       int             `json:"overdue_count"`
	UpcomingEvents     []EventSummary  `json:"upcoming_events"`
	OpenTickets        int             `json:"open_tickets"`
}

type DashboardService struct {
	store    Store
	clock    Clock
	events   *EventService
	profiles *ProfileAggregator
}

func NewDashboardService(store Store, clock Clock, events *EventService, profiles *ProfileAggregator) *DashboardService {
	return &DashboardService{store: store, clock: clock, events: events, profiles: profiles}
}

// Admin computes the management overview. Compliance is the share of expected
// payers who have paid, across all requirements, in percent.
func (s *DashboardService) Admin(ctx context.Context) (*DashboardStats, error) {
	members, err := s.store.CountUsers(ctx, UserFilter{Role: models.RoleMember})
	if err != nil {
		return nil, err
	}
	active, err := s.store.CountUsers(ctx, UserFilter{Role: models.RoleMember, Status: models.UserStatusActive})
	if err != nil {
		return nil, err
	}
	reqs, err := s.store.ListRequirements(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.store.PaymentStats(ctx)
	if err != nil {
		return nil, err
	}
	events, err := s.events.Stats(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := s.store.ListTickets(ctx, TicketFilter{Status: models.TicketOpen})
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalMembers:      members,
		ActiveMembers:     active,
		TotalRequirements: len(reqs),
		TotalCollected:    payments.PaidAmount,
		Payments:          payments,
		Events:            events,
		OpenTickets:       len(tickets),
	}
	now := s.clock.Now()
	expected, paid := 0, 0
	for _, r := range reqs {
		expected += r.TotalUsers
		paid += r.Paid
		if r.StatusAt(now) == models.RequirementOverdue {
			stats.OverdueRequirements++
		}
	}
	if expected > 0 {
		stats.PaymentCompliance = float64(int(float64(paid)/float64(expected)*10000+0.5)) / 100
	}
	return stats, nil
}

// Member summarises one member's balance, events and tickets.
func (s *DashboardService) Member(ctx context.Context, userID uint) (*MemberDashboard, error) {
	profile, err := s.profiles.BuildUserProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListVisible(ctx, "")
	if err != nil {
		return nil, err
	}
	if len(events) > 5 {
		events = events[:5]
	}
	tickets, err := s.store.ListTickets(ctx, TicketFilter{UserID: &userID})
	if err != nil {
		return nil, err
	}

	d := &MemberDashboard{
		TotalPaid:          profile.TotalPaid,
		TotalBalance:       profile.TotalBalance,
		PaidRequirements:   profile.PaidRequirementsCount,
		UnpaidRequirements: profile.UnpaidRequirementsCount,
		UpcomingEvents:     events,
	}
	for _, r := range profile.UnpaidRequirements {
		if r.IsOverdue {
			d.OverdueCount++
		}
	}
	for _, t := range tickets {
		if t.Status == models.TicketOpen || t.Status == models.TicketInProgress {
			d.OpenTickets++
		}
	}
	return d, nil
}
