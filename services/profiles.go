package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"nexus_go/models"

	"github.com/shopspring/decimal"
)

// Profile kinds and key prefixes.
const (
	ProfileUser   = "user"
	ProfileManual = "manual"

	manualKeyPrefix  = "manual_"
	paymentKeyPrefix = "payment_"
)

// ProfileFilter narrows ListProfiles. Program "" or "All" means any program.
type ProfileFilter struct {
	Search  string
	Program string
}

type PaidRequirement struct {
	ID            uint            `json:"id"`
	Title         string          `json:"title"`
	Amount        decimal.Decimal `json:"amount"`
	AmountPaid    decimal.Decimal `json:"amount_paid"`
	PaidAt        *time.Time      `json:"paid_at"`
	PaymentMethod string          `json:"payment_method"`
}

type UnpaidRequirement struct {
	ID        uint            `json:"id"`
	Title     string          `json:"title"`
	Amount    decimal.Decimal `json:"amount"`
	Deadline  time.Time       `json:"deadline"`
	IsOverdue bool            `json:"is_overdue"`
}

type PaymentHistoryEntry struct {
	ID               uint            `json:"id"`
	RequirementID    uint            `json:"requirement_id"`
	RequirementTitle string          `json:"requirement_title"`
	AmountPaid       decimal.Decimal `json:"amount_paid"`
	Status           string          `json:"status"`
	PaidAt           *time.Time      `json:"paid_at"`
	PaymentMethod    string          `json:"payment_method"`
	Notes            string          `json:"notes"`
	Source           string          `json:"source"`
	CreatedAt        time.Time       `json:"created_at"`
}

// Profile is one person's payment standing across linked and manual rows.
type Profile struct {
	Key        string `json:"id"`
	Type       string `json:"type"`
	UserID     *uint  `json:"user_id"`
	FirstName  string `json:"first_name"`
	MiddleName string `json:"middle_name"`
	LastName   string `json:"last_name"`
	FullName   string `json:"full_name"`
	StudentID  string `json:"student_id"`
	Email      string `json:"email"`
	Program    string `json:"program"`
	Year       string `json:"year"`

	TotalPaid    decimal.Decimal `json:"total_paid"`
	TotalUnpaid  decimal.Decimal `json:"total_unpaid"`
	TotalBalance decimal.Decimal `json:"total_balance"`

	PaidRequirements        []PaidRequirement     `json:"paid_requirements"`
	UnpaidRequirements      []UnpaidRequirement   `json:"unpaid_requirements"`
	PaymentHistory          []PaymentHistoryEntry `json:"payment_history"`
	PaidRequirementsCount   int                   `json:"paid_requirements_count"`
	UnpaidRequirementsCount int                   `json:"unpaid_requirements_count"`
}

// ProfileAggregator builds profiles. It only reads.
type ProfileAggregator struct {
	store Store
	clock Clock
}

func NewProfileAggregator(store Store, clock Clock) *ProfileAggregator {
	return &ProfileAggregator{store: store, clock: clock}
}

// profileGroup is the set of payments that belong to one person.
type profileGroup struct {
	key      string
	user     *models.User
	payments []models.Payment
}

// ListProfiles returns one profile per person who has at least one payment.
// Members come first by id, then manual groups in order of their first payment.
func (a *ProfileAggregator) ListProfiles(ctx context.Context, filter ProfileFilter) ([]Profile, error) {
	reqs, err := a.store.ListRequirements(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := a.store.ListPayments(ctx, PaymentFilter{})
	if err != nil {
		return nil, err
	}
	sortByCreation(payments)

	var userIDs []uint
	var studentIDs []string
	for _, p := range payments {
		if p.IsLinked() {
			userIDs = append(userIDs, *p.UserID)
		} else if sid := p.ManualStudentID(); sid != "" {
			studentIDs = append(studentIDs, sid)
		}
	}
	users, err := a.loadUsers(ctx, uniqueIDs(userIDs), studentIDs)
	if err != nil {
		return nil, err
	}

	groups := groupPayments(payments, users)
	profiles := make([]Profile, 0, len(groups))
	for _, g := range groups {
		p := a.build(*g, reqs)
		if matchesProfile(p, filter) {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

// BuildProfile resolves a profile key: a numeric user id, manual_<student id>
// or payment_<payment id>. Keys that resolve to a member yield the member's
// merged profile.
func (a *ProfileAggregator) BuildProfile(ctx context.Context, key string) (*Profile, error) {
	key = strings.TrimSpace(key)
	switch {
	case strings.HasPrefix(key, manualKeyPrefix):
		return a.buildManual(ctx, strings.TrimPrefix(key, manualKeyPrefix))

	case strings.HasPrefix(key, paymentKeyPrefix):
		id, err := strconv.ParseUint(strings.TrimPrefix(key, paymentKeyPrefix), 10, 64)
		if err != nil {
			return nil, ErrNotFound
		}
		payment, err := a.store.FindPayment(ctx, uint(id))
		if err != nil {
			return nil, err
		}
		if payment.IsLinked() {
			// a deleted member's payments are listed under payment_<id>
			profile, err := a.BuildUserProfile(ctx, *payment.UserID)
			if !errors.Is(err, ErrNotFound) {
				return profile, err
			}
		} else if sid := payment.ManualStudentID(); sid != "" {
			return a.buildManual(ctx, sid)
		}
		reqs, err := a.store.ListRequirements(ctx)
		if err != nil {
			return nil, err
		}
		p := a.build(profileGroup{key: key, payments: []models.Payment{*payment}}, reqs)
		return &p, nil

	default:
		id, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			return nil, ErrNotFound
		}
		return a.BuildUserProfile(ctx, uint(id))
	}
}

// BuildUserProfile merges a member's linked payments with manual rows carrying
// the member's student id.
func (a *ProfileAggregator) BuildUserProfile(ctx context.Context, userID uint) (*Profile, error) {
	user, err := a.store.FindUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return a.buildForUser(ctx, user)
}

func (a *ProfileAggregator) buildForUser(ctx context.Context, user *models.User) (*Profile, error) {
	reqs, err := a.store.ListRequirements(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := a.store.ListPersonPayments(ctx, user.ID, user.StudentNumber())
	if err != nil {
		return nil, err
	}
	sortByCreation(payments)
	p := a.build(profileGroup{key: userKey(user.ID), user: user, payments: payments}, reqs)
	return &p, nil
}

func (a *ProfileAggregator) buildManual(ctx context.Context, studentID string) (*Profile, error) {
	studentID = strings.TrimSpace(studentID)
	if studentID == "" {
		return nil, ErrNotFound
	}
	user, err := a.store.FindUserByStudentID(ctx, studentID)
	if err == nil {
		return a.buildForUser(ctx, user)
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	payments, err := a.store.ListPayments(ctx, PaymentFilter{ManualStudentID: studentID})
	if err != nil {
		return nil, err
	}
	if len(payments) == 0 {
		return nil, ErrNotFound
	}
	sortByCreation(payments)
	reqs, err := a.store.ListRequirements(ctx)
	if err != nil {
		return nil, err
	}
	p := a.build(profileGroup{key: manualKeyPrefix + studentID, payments: payments}, reqs)
	return &p, nil
}

func (a *ProfileAggregator) loadUsers(ctx context.Context, ids []uint, studentIDs []string) ([]models.User, error) {
	var users []models.User
	if len(ids) > 0 {
		byID, err := a.store.FindUsers(ctx, ids)
		if err != nil {
			return nil, err
		}
		users = append(users, byID...)
	}
	if len(studentIDs) > 0 {
		bySID, err := a.store.FindUsersByStudentIDs(ctx, studentIDs)
		if err != nil {
			return nil, err
		}
		users = append(users, bySID...)
	}

	seen := make(map[uint]struct{}, len(users))
	out := users[:0]
	for _, u := range users {
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// groupPayments assigns every payment to exactly one person. payments must be
// in creation order.
func groupPayments(payments []models.Payment, users []models.User) []*profileGroup {
	byUser := make(map[uint]*profileGroup, len(users))
	byStudent := make(map[string]*profileGroup, len(users))
	var members []*profileGroup
	for i := range users {
		g := &profileGroup{key: userKey(users[i].ID), user: &users[i]}
		byUser[users[i].ID] = g
		if sid := users[i].StudentNumber(); sid != "" {
			byStudent[sid] = g
		}
		members = append(members, g)
	}

	manual := make(map[string]*profileGroup)
	var others []*profileGroup
	for _, p := range payments {
		var g *profileGroup
		switch {
		case p.IsLinked():
			g = byUser[*p.UserID]
			if g == nil {
				g = &profileGroup{key: fmt.Sprintf("%s%d", paymentKeyPrefix, p.ID)}
				others = append(others, g)
			}
		case p.ManualStudentID() != "":
			sid := p.ManualStudentID()
			if g = byStudent[sid]; g == nil {
				if g = manual[sid]; g == nil {
					g = &profileGroup{key: manualKeyPrefix + sid}
					manual[sid] = g
					others = append(others, g)
				}
			}
		default:
			g = &profileGroup{key: fmt.Sprintf("%s%d", paymentKeyPrefix, p.ID)}
			others = append(others, g)
		}
		g.payments = append(g.payments, p)
	}

	out := make([]*profileGroup, 0, len(members)+len(others))
	for _, g := range members {
		if len(g.payments) > 0 {
			out = append(out, g)
		}
	}
	return append(out, others...)
}

func (a *ProfileAggregator) build(g profileGroup, reqs []models.Requirement) Profile {
	now := a.clock.Now()
	titles := make(map[uint]string, len(reqs))
	for _, r := range reqs {
		titles[r.ID] = r.Title
	}

	p := Profile{
		Key:                g.key,
		TotalPaid:          decimal.Zero,
		TotalUnpaid:        decimal.Zero,
		PaidRequirements:   []PaidRequirement{},
		UnpaidRequirements: []UnpaidRequirement{},
		PaymentHistory:     make([]PaymentHistoryEntry, 0, len(g.payments)),
	}
	if g.user != nil {
		uid := g.user.ID
		p.Type = ProfileUser
		p.UserID = &uid
		p.FirstName, p.MiddleName, p.LastName = g.user.FirstName, g.user.MiddleName, g.user.LastName
		p.FullName = g.user.FullName()
		p.StudentID = g.user.StudentNumber()
		p.Email = g.user.Email
		p.Program, p.Year = g.user.Program, g.user.Year
	} else {
		p.Type = ProfileManual
		if len(g.payments) > 0 {
			first := g.payments[0]
			if first.IsLinked() && first.User != nil {
				p.FullName = first.User.FullName()
			} else {
				m, _ := first.Identity().(models.ManualPayer)
				p.FirstName, p.MiddleName, p.LastName = m.FirstName, m.MiddleName, m.LastName
				p.StudentID = m.StudentID
				p.FullName = first.DisplayName()
			}
		}
		p.Program, p.Year = "Manual Entry", "N/A"
	}

	paid := make(map[uint]bool)
	for _, pay := range g.payments {
		source := ProfileManual
		if pay.IsLinked() {
			source = ProfileUser
		}
		p.PaymentHistory = append(p.PaymentHistory, PaymentHistoryEntry{
			ID:               pay.ID,
			RequirementID:    pay.RequirementID,
			RequirementTitle: titles[pay.RequirementID],
			AmountPaid:       pay.AmountPaid,
			Status:           pay.Status,
			PaidAt:           pay.PaidAt,
			PaymentMethod:    pay.PaymentMethod,
			Notes:            pay.Notes,
			Source:           source,
			CreatedAt:        pay.CreatedAt,
		})

		switch pay.Status {
		case models.PaymentPaid:
			p.TotalPaid = p.TotalPaid.Add(pay.AmountPaid)
			paid[pay.RequirementID] = true
		case models.PaymentUnpaid, models.PaymentPending:
			p.TotalUnpaid = p.TotalUnpaid.Add(pay.AmountPaid)
		}
	}

	seen := make(map[uint]struct{})
	for _, pay := range g.payments {
		if pay.Status != models.PaymentPaid {
			continue
		}
		if _, dup := seen[pay.RequirementID]; dup {
			continue
		}
		seen[pay.RequirementID] = struct{}{}
		entry := PaidRequirement{
			ID:            pay.RequirementID,
			Title:         titles[pay.RequirementID],
			AmountPaid:    pay.AmountPaid,
			PaidAt:        pay.PaidAt,
			PaymentMethod: pay.PaymentMethod,
		}
		for _, r := range reqs {
			if r.ID == pay.RequirementID {
				entry.Amount = r.Amount
				break
			}
		}
		p.PaidRequirements = append(p.PaidRequirements, entry)
	}

	for _, r := range reqs {
		if paid[r.ID] {
			continue
		}
		p.UnpaidRequirements = append(p.UnpaidRequirements, UnpaidRequirement{
			ID:        r.ID,
			Title:     r.Title,
			Amount:    r.Amount,
			Deadline:  r.Deadline,
			IsOverdue: r.IsOverdueAt(now),
		})
	}

	p.TotalBalance = p.TotalUnpaid
	p.PaidRequirementsCount = len(p.PaidRequirements)
	p.UnpaidRequirementsCount = len(p.UnpaidRequirements)
	return p
}

func matchesProfile(p Profile, f ProfileFilter) bool {
	if prog := strings.TrimSpace(f.Program); prog != "" && !strings.EqualFold(prog, "All") {
		if !strings.EqualFold(p.Program, prog) {
			return false
		}
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	for _, field := range []string{p.FullName, p.FirstName, p.MiddleName, p.LastName, p.StudentID, p.Email, p.Program} {
		if strings.Contains(strings.ToLower(field), term) {
			return true
		}
	}
	return false
}

func sortByCreation(payments []models.Payment) {
	sort.SliceStable(payments, func(i, j int) bool {
		if payments[i].CreatedAt.Equal(payments[j].CreatedAt) {
			return payments[i].ID < payments[j].ID
		}
		return payments[i].CreatedAt.Before(payments[j].CreatedAt)
	})
}

func userKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
