package services

import (
	"context"
	"io"
	"time"

	"nexus_go/models"

	"github.com/shopspring/decimal"
)

// Store is the persistence port used by every service. The MySQL adapter is
// database.GormStore; lookups of a single missing row return ErrNotFound.
type Store interface {
	RequirementRepository
	PaymentRepository
	UserRepository
	EventRepository
	TicketRepository

	// Transaction runs fn against a store bound to one database transaction.
	Transaction(ctx context.Context, fn func(tx Store) error) error
}

type RequirementRepository interface {
	FindRequirement(ctx context.Context, id uint) (*models.Requirement, error)
	ListRequirements(ctx context.Context) ([]models.Requirement, error)
	CreateRequirement(ctx context.Context, r *models.Requirement) error
	SaveRequirement(ctx context.Context, r *models.Requirement) error
	// DeleteRequirement removes the requirement and its payments.
	DeleteRequirement(ctx context.Context, id uint) error
	UpdateRequirementCounts(ctx context.Context, id uint, paid, unpaid int) error
}

// PaymentFilter narrows ListPayments. Zero values mean "any".
type PaymentFilter struct {
	RequirementID   uint
	Status          string
	Search          string
	ManualStudentID string
}

// PaymentStats are whole-table payment aggregates.
type PaymentStats struct {
	TotalPayments int64           `json:"total_payments"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaidAmount    decimal.Decimal `json:"paid_amount"`
	PaidCount     int64           `json:"paid_count"`
	PendingCount  int64           `json:"pending_count"`
	UnpaidCount   int64           `json:"unpaid_count"`
}

type PaymentRepository interface {
	FindPayment(ctx context.Context, id uint) (*models.Payment, error)
	FindPayments(ctx context.Context, ids []uint) ([]models.Payment, error)
	// ListPayments returns rows newest first with User and Requirement loaded.
	ListPayments(ctx context.Context, filter PaymentFilter) ([]models.Payment, error)
	// ListRequirementPayments returns every payment row of one requirement.
	ListRequirementPayments(ctx context.Context, requirementID uint) ([]models.Payment, error)
	// ListPersonPayments returns payments linked to userID plus manual rows carrying studentID.
	ListPersonPayments(ctx context.Context, userID uint, studentID string) ([]models.Payment, error)
	CreatePayment(ctx context.Context, p *models.Payment) error
	SavePayment(ctx context.Context, p *models.Payment) error
	DeletePayments(ctx context.Context, ids []uint) error
	PaymentStats(ctx context.Context) (PaymentStats, error)
}

// UserFilter narrows ListUsers and CountUsers.
type UserFilter struct {
	Search  string
	Role    string
	Status  string
	Program string
}

type UserRepository interface {
	FindUser(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByStudentID(ctx context.Context, studentID string) (*models.User, error)
	FindUsers(ctx context.Context, ids []uint) ([]models.User, error)
	FindUsersByStudentIDs(ctx context.Context, studentIDs []string) ([]models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]models.User, error)
	CountUsers(ctx context.Context, filter UserFilter) (int64, error)
	CreateUser(ctx context.Context, u *models.User) error
	SaveUser(ctx context.Context, u *models.User) error
	DeleteUser(ctx context.Context, id uint) error
}

// EventFilter narrows ListEvents.
type EventFilter struct {
	Search   string
	Statuses []string
}

type EventRepository interface {
	// FindEvent locks the row when called inside a transaction.
	FindEvent(ctx context.Context, id uint) (*models.Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]models.Event, error)
	CreateEvent(ctx context.Context, e *models.Event) error
	SaveEvent(ctx context.Context, e *models.Event) error
	// DeleteEvent removes the event and its attendee rows.
	DeleteEvent(ctx context.Context, id uint) error

	CountActiveAttendees(ctx context.Context, eventID uint) (int, error)
	CountActiveAttendeesByEvent(ctx context.Context, eventIDs []uint) (map[uint]int, error)
	FindAttendee(ctx context.Context, id uint) (*models.Attendee, error)
	FindAttendeeByUser(ctx context.Context, eventID, userID uint) (*models.Attendee, error)
	ListAttendees(ctx context.Context, eventID uint) ([]models.Attendee, error)
	CreateAttendee(ctx context.Context, a *models.Attendee) error
	SaveAttendee(ctx context.Context, a *models.Attendee) error
	DeleteAttendee(ctx context.Context, id uint) error
}

// TicketFilter narrows ListTickets.
type TicketFilter struct {
	UserID *uint
	Status string
}

type TicketRepository interface {
	FindTicket(ctx context.Context, id uint) (*models.SupportTicket, error)
	FindTickets(ctx context.Context, ids []uint) ([]models.SupportTicket, error)
	// ListTickets returns tickets newest first.
	ListTickets(ctx context.Context, filter TicketFilter) ([]models.SupportTicket, error)
	CreateTicket(ctx context.Context, t *models.SupportTicket) error
	SaveTicket(ctx context.Context, t *models.SupportTicket) error
	DeleteTickets(ctx context.Context, ids []uint) error
}

// BlobStore keeps uploaded files. Put returns a URL the file can be fetched from.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
