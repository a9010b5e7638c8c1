package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"nexus_go/models"

	"github.com/shopspring/decimal"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func newClock() *fixedClock {
	return &fixedClock{now: time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)}
}

type memState struct {
	requirements map[uint]models.Requirement
	payments     map[uint]models.Payment
	users        map[uint]models.User
	events       map[uint]models.Event
	attendees    map[uint]models.Attendee
	tickets      map[uint]models.SupportTicket
	nextID       uint
}

func (s memState) clone() memState {
	c := memState{
		requirements: make(map[uint]models.Requirement, len(s.requirements)),
		payments:     make(map[uint]models.Payment, len(s.payments)),
		users:        make(map[uint]models.User, len(s.users)),
		events:       make(map[uint]models.Event, len(s.events)),
		attendees:    make(map[uint]models.Attendee, len(s.attendees)),
		tickets:      make(map[uint]models.SupportTicket, len(s.tickets)),
		nextID:       s.nextID,
	}
	for k, v := range s.requirements {
		c.requirements[k] = v
	}
	for k, v := range s.payments {
		c.payments[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.events {
		c.events[k] = v
	}
	for k, v := range s.attendees {
		c.attendees[k] = v
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	return c
}

// memStore is an in-memory Store. Transactions snapshot the state and roll
// back on error.
type memStore struct {
	st    memState
	clock *fixedClock

	failCounts   bool
	countUpdates map[uint]int
}

func newMemStore(clock *fixedClock) *memStore {
	return &memStore{
		st: memState{
			requirements: map[uint]models.Requirement{},
			payments:     map[uint]models.Payment{},
			users:        map[uint]models.User{},
			events:       map[uint]models.Event{},
			attendees:    map[uint]models.Attendee{},
			tickets:      map[uint]models.SupportTicket{},
		},
		clock:        clock,
		countUpdates: map[uint]int{},
	}
}

func (m *memStore) id() uint {
	m.st.nextID++
	return m.st.nextID
}

func (m *memStore) stamp(b *models.BaseModel) {
	now := m.clock.now.Add(time.Duration(m.st.nextID) * time.Millisecond)
	if b.ID == 0 {
		b.ID = m.id()
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

func (m *memStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	snapshot := m.st.clone()
	if err := fn(m); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

// seeding helpers

func (m *memStore) addUser(first, last, studentID string) models.User {
	u := models.User{FirstName: first, LastName: last, Email: strings.ToLower(first) + "@example.com",
		Role: models.RoleMember, Status: models.UserStatusActive}
	u.Name = u.FullName()
	if studentID != "" {
		u.StudentID = &studentID
	}
	m.stamp(&u.BaseModel)
	m.st.users[u.ID] = u
	return u
}

func (m *memStore) addRequirement(title string, total int, amount string) models.Requirement {
	r := models.Requirement{Title: title, TotalUsers: total, Unpaid: total,
		Amount: decimal.RequireFromString(amount), Deadline: m.clock.now.AddDate(0, 1, 0)}
	m.stamp(&r.BaseModel)
	m.st.requirements[r.ID] = r
	return r
}

func (m *memStore) addEvent(title string, capacity int) models.Event {
	e := models.Event{Title: title, Capacity: capacity, Status: models.EventUpcoming,
		Date: m.clock.now.AddDate(0, 0, 7), Time: "09:00"}
	m.stamp(&e.BaseModel)
	m.st.events[e.ID] = e
	return e
}

func (m *memStore) requirement(id uint) models.Requirement { return m.st.requirements[id] }

func (m *memStore) activeAttendees(eventID uint) int {
	n := 0
	for _, a := range m.st.attendees {
		if a.EventID == eventID && a.IsActive() {
			n++
		}
	}
	return n
}

// RequirementRepository

func (m *memStore) FindRequirement(ctx context.Context, id uint) (*models.Requirement, error) {
	r, ok := m.st.requirements[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *memStore) ListRequirements(ctx context.Context) ([]models.Requirement, error) {
	out := make([]models.Requirement, 0, len(m.st.requirements))
	for _, r := range m.st.requirements {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateRequirement(ctx context.Context, r *models.Requirement) error {
	m.stamp(&r.BaseModel)
	m.st.requirements[r.ID] = *r
	return nil
}

func (m *memStore) SaveRequirement(ctx context.Context, r *models.Requirement) error {
	m.stamp(&r.BaseModel)
	m.st.requirements[r.ID] = *r
	return nil
}

func (m *memStore) DeleteRequirement(ctx context.Context, id uint) error {
	delete(m.st.requirements, id)
	for pid, p := range m.st.payments {
		if p.RequirementID == id {
			delete(m.st.payments, pid)
		}
	}
	return nil
}

func (m *memStore) UpdateRequirementCounts(ctx context.Context, id uint, paid, unpaid int) error {
	if m.failCounts {
		return errors.New("count update failed")
	}
	r, ok := m.st.requirements[id]
	if !ok {
		return nil
	}
	r.Paid, r.Unpaid = paid, unpaid
	m.st.requirements[id] = r
	m.countUpdates[id]++
	return nil
}

// PaymentRepository

func (m *memStore) withRelations(p models.Payment) models.Payment {
	if r, ok := m.st.requirements[p.RequirementID]; ok {
		p.Requirement = &r
	}
	if p.IsLinked() {
		if u, ok := m.st.users[*p.UserID]; ok {
			p.User = &u
		}
	}
	return p
}

func (m *memStore) sortedPayments(keep func(models.Payment) bool) []models.Payment {
	out := []models.Payment{}
	for _, p := range m.st.payments {
		if keep(p) {
			out = append(out, m.withRelations(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (m *memStore) FindPayment(ctx context.Context, id uint) (*models.Payment, error) {
	p, ok := m.st.payments[id]
	if !ok {
		return nil, ErrNotFound
	}
	p = m.withRelations(p)
	return &p, nil
}

func (m *memStore) FindPayments(ctx context.Context, ids []uint) ([]models.Payment, error) {
	want := map[uint]bool{}
	for _, id := range ids {
		want[id] = true
	}
	return m.sortedPayments(func(p models.Payment) bool { return want[p.ID] }), nil
}

func (m *memStore) ListPayments(ctx context.Context, f PaymentFilter) ([]models.Payment, error) {
	return m.sortedPayments(func(p models.Payment) bool {
		if f.RequirementID != 0 && p.RequirementID != f.RequirementID {
			return false
		}
		if f.Status != "" && p.Status != f.Status {
			return false
		}
		if f.ManualStudentID != "" && p.ManualStudentID() != f.ManualStudentID {
			return false
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(m.withRelations(p).DisplayName()), strings.ToLower(f.Search)) {
			return false
		}
		return true
	}), nil
}

func (m *memStore) ListRequirementPayments(ctx context.Context, requirementID uint) ([]models.Payment, error) {
	return m.sortedPayments(func(p models.Payment) bool { return p.RequirementID == requirementID }), nil
}

func (m *memStore) ListPersonPayments(ctx context.Context, userID uint, studentID string) ([]models.Payment, error) {
	return m.sortedPayments(func(p models.Payment) bool {
		if p.IsLinked() {
			return *p.UserID == userID
		}
		return studentID != "" && p.ManualStudentID() == studentID
	}), nil
}

func (m *memStore) CreatePayment(ctx context.Context, p *models.Payment) error {
	m.stamp(&p.BaseModel)
	row := *p
	row.User, row.Requirement = nil, nil
	m.st.payments[p.ID] = row
	return nil
}

func (m *memStore) SavePayment(ctx context.Context, p *models.Payment) error {
	return m.CreatePayment(ctx, p)
}

func (m *memStore) DeletePayments(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		delete(m.st.payments, id)
	}
	return nil
}

func (m *memStore) PaymentStats(ctx context.Context) (PaymentStats, error) {
	st := PaymentStats{TotalAmount: decimal.Zero, PaidAmount: decimal.Zero}
	for _, p := range m.st.payments {
		st.TotalPayments++
		st.TotalAmount = st.TotalAmount.Add(p.AmountPaid)
		switch p.Status {
		case models.PaymentPaid:
			st.PaidCount++
			st.PaidAmount = st.PaidAmount.Add(p.AmountPaid)
		case models.PaymentPending:
			st.PendingCount++
		case models.PaymentUnpaid:
			st.UnpaidCount++
		}
	}
	return st, nil
}

// UserRepository

func (m *memStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	u, ok := m.st.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *memStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindUserByStudentID(ctx context.Context, studentID string) (*models.User, error) {
	for _, u := range m.st.users {
		if u.StudentNumber() == studentID {
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) FindUsers(ctx context.Context, ids []uint) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.st.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) FindUsersByStudentIDs(ctx context.Context, studentIDs []string) ([]models.User, error) {
	want := map[string]bool{}
	for _, s := range studentIDs {
		want[s] = true
	}
	var out []models.User
	for _, u := range m.st.users {
		if sid := u.StudentNumber(); sid != "" && want[sid] {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *memStore) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	var out []models.User
	for _, u := range m.st.users {
		if (f.Role == "" || u.Role == f.Role) && (f.Status == "" || u.Status == f.Status) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CountUsers(ctx context.Context, f UserFilter) (int64, error) {
	users, _ := m.ListUsers(ctx, f)
	return int64(len(users)), nil
}

func (m *memStore) CreateUser(ctx context.Context, u *models.User) error {
	m.stamp(&u.BaseModel)
	m.st.users[u.ID] = *u
	return nil
}

func (m *memStore) SaveUser(ctx context.Context, u *models.User) error { return m.CreateUser(ctx, u) }

func (m *memStore) DeleteUser(ctx context.Context, id uint) error {
	delete(m.st.users, id)
	return nil
}

// EventRepository

func (m *memStore) FindEvent(ctx context.Context, id uint) (*models.Event, error) {
	e, ok := m.st.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &e, nil
}

func (m *memStore) ListEvents(ctx context.Context, f EventFilter) ([]models.Event, error) {
	var out []models.Event
	for _, e := range m.st.events {
		if len(f.Statuses) > 0 {
			keep := false
			for _, s := range f.Statuses {
				keep = keep || e.Status == s
			}
			if !keep {
				continue
			}
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(e.Title), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateEvent(ctx context.Context, e *models.Event) error {
	m.stamp(&e.BaseModel)
	m.st.events[e.ID] = *e
	return nil
}

func (m *memStore) SaveEvent(ctx context.Context, e *models.Event) error {
	return m.CreateEvent(ctx, e)
}

func (m *memStore) DeleteEvent(ctx context.Context, id uint) error {
	delete(m.st.events, id)
	for aid, a := range m.st.attendees {
		if a.EventID == id {
			delete(m.st.attendees, aid)
		}
	}
	return nil
}

func (m *memStore) CountActiveAttendees(ctx context.Context, eventID uint) (int, error) {
	return m.activeAttendees(eventID), nil
}

func (m *memStore) CountActiveAttendeesByEvent(ctx context.Context, eventIDs []uint) (map[uint]int, error) {
	out := map[uint]int{}
	for _, id := range eventIDs {
		out[id] = m.activeAttendees(id)
	}
	return out, nil
}

func (m *memStore) FindAttendee(ctx context.Context, id uint) (*models.Attendee, error) {
	a, ok := m.st.attendees[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (m *memStore) FindAttendeeByUser(ctx context.Context, eventID, userID uint) (*models.Attendee, error) {
	for _, a := range m.st.attendees {
		if a.EventID == eventID && a.UserID == userID {
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ListAttendees(ctx context.Context, eventID uint) ([]models.Attendee, error) {
	var out []models.Attendee
	for _, a := range m.st.attendees {
		if a.EventID == eventID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) CreateAttendee(ctx context.Context, a *models.Attendee) error {
	if a.ID == 0 {
		for _, other := range m.st.attendees {
			if other.EventID == a.EventID && other.UserID == a.UserID {
				return fmt.Errorf("duplicate attendee (%d, %d)", a.EventID, a.UserID)
			}
		}
	}
	m.stamp(&a.BaseModel)
	m.st.attendees[a.ID] = *a
	return nil
}

func (m *memStore) SaveAttendee(ctx context.Context, a *models.Attendee) error {
	return m.CreateAttendee(ctx, a)
}

func (m *memStore) DeleteAttendee(ctx context.Context, id uint) error {
	delete(m.st.attendees, id)
	return nil
}

// TicketRepository

func (m *memStore) FindTicket(ctx context.Context, id uint) (*models.SupportTicket, error) {
	t, ok := m.st.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (m *memStore) FindTickets(ctx context.Context, ids []uint) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, id := range ids {
		if t, ok := m.st.tickets[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memStore) ListTickets(ctx context.Context, f TicketFilter) ([]models.SupportTicket, error) {
	var out []models.SupportTicket
	for _, t := range m.st.tickets {
		if f.UserID != nil && (t.UserID == nil || *t.UserID != *f.UserID) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (m *memStore) CreateTicket(ctx context.Context, t *models.SupportTicket) error {
	m.stamp(&t.BaseModel)
	m.st.tickets[t.ID] = *t
	return nil
}

func (m *memStore) SaveTicket(ctx context.Context, t *models.SupportTicket) error {
	return m.CreateTicket(ctx, t)
}

func (m *memStore) DeleteTickets(ctx context.Context, ids []uint) error {
	for _, id := range ids {
		delete(m.st.tickets, id)
	}
	return nil
}

// memBlobs is an in-memory BlobStore.
type memBlobs struct {
	files   map[string][]byte
	failPut bool
}

func newMemBlobs() *memBlobs { return &memBlobs{files: map[string][]byte{}} }

func (b *memBlobs) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if b.failPut {
		return "", errors.New("put failed")
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, body); err != nil {
		return "", err
	}
	b.files[key] = buf.Bytes()
	return "https://files.test/" + key, nil
}

func (b *memBlobs) Delete(ctx context.Context, key string) error {
	delete(b.files, key)
	return nil
}
