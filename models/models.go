package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func init() {
	// Amounts are rendered as JSON numbers ("100.00" -> 100), which is what the frontend expects.
	decimal.MarshalJSONWithoutQuotes = true
}

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = append((*j)[0:0], v...)
	}
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// Roles and statuses
const (
	RoleMember  = "Member"
	RoleOfficer = "Officer"
	RoleAdmin   = "Admin"

	UserStatusActive   = "active"
	UserStatusInactive = "inactive"
)

// User model (a member account)
type User struct {
	BaseModel
	Name       string     `json:"name" gorm:"size:255;not null"`
	FirstName  string     `json:"first_name" gorm:"size:255"`
	MiddleName string     `json:"middle_name" gorm:"size:255"`
	LastName   string     `json:"last_name" gorm:"size:255"`
	Email      string     `json:"email" gorm:"size:255;not null;uniqueIndex"`
	Password   string     `json:"-" gorm:"size:255;not null"`
	StudentID  *string    `json:"student_id" gorm:"size:50;uniqueIndex"`
	Program    string     `json:"program" gorm:"size:255"`
	Year       string     `json:"year" gorm:"size:50"`
	Role       string     `json:"role" gorm:"size:20;not null;default:'Member';type:enum('Member','Officer','Admin')"` // Member, Officer, Admin
	Status     string     `json:"status" gorm:"size:20;not null;default:'active';type:enum('active','inactive')"`      // active, inactive
	LastLogin  *time.Time `json:"last_login"`
}

// FullName prefers the split name columns and falls back to Name.
func (u User) FullName() string {
	if u.FirstName != "" && u.LastName != "" {
		return joinName(u.FirstName, u.MiddleName, u.LastName)
	}
	return u.Name
}

// StudentNumber returns the student id or "" when unset.
func (u User) StudentNumber() string {
	if u.StudentID == nil {
		return ""
	}
	return strings.TrimSpace(*u.StudentID)
}

// IsActive reports whether the account may use the system.
func (u User) IsActive() bool {
	return u.Status == UserStatusActive
}

func joinName(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

// Requirement statuses (derived, never stored)
const (
	RequirementDone    = "Done"
	RequirementOverdue = "Overdue"
	RequirementPending = "Pending"
)

// Requirement is a fee or obligation tracked against an expected population.
// Paid and Unpaid are aggregates owned by the requirement ledger.
type Requirement struct {
	BaseModel
	Title       string          `json:"title" gorm:"size:255;not null"`
	Description string          `json:"description" gorm:"type:text"`
	Amount      decimal.Decimal `json:"amount" gorm:"type:decimal(10,2);not null;default:0"`
	Deadline    time.Time       `json:"deadline" gorm:"type:date;not null"`
	TotalUsers  int             `json:"total_users" gorm:"not null;default:0"`
	Paid        int             `json:"paid" gorm:"not null;default:0"`
	Unpaid      int             `json:"unpaid" gorm:"not null;default:0"`

	// Relationships
	Payments []Payment `json:"payments,omitempty" gorm:"foreignKey:RequirementID"`
}

// StatusAt derives Done / Overdue / Pending relative to now.
func (r Requirement) StatusAt(now time.Time) string {
	if r.Paid >= r.TotalUsers {
		return RequirementDone
	}
	if r.IsOverdueAt(now) {
		return RequirementOverdue
	}
	return RequirementPending
}

// IsOverdueAt reports whether the deadline date has passed.
func (r Requirement) IsOverdueAt(now time.Time) bool {
	return r.Deadline.Before(now)
}

// Payment statuses
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentUnpaid  = "unpaid"
)

// Payment model. UserID and the manual name columns encode a PaymentIdentity;
// use Identity/SetIdentity instead of touching them directly.
type Payment struct {
	BaseModel
	RequirementID uint            `json:"requirement_id" gorm:"not null;index"`
	UserID        *uint           `json:"user_id" gorm:"index"`
	AmountPaid    decimal.Decimal `json:"amount_paid" gorm:"type:decimal(10,2);not null;default:0"`
	PaidAt        *time.Time      `json:"paid_at"`
	Status        string          `json:"status" gorm:"size:20;not null;default:'pending';type:enum('pending','paid','unpaid')"` // pending, paid, unpaid
	PaymentMethod string          `json:"payment_method" gorm:"size:255"`
	Notes         string          `json:"notes" gorm:"type:text"`
	FirstName     *string         `json:"first_name" gorm:"size:255"`
	MiddleName    *string         `json:"middle_name" gorm:"size:255"`
	LastName      *string         `json:"last_name" gorm:"size:255"`
	StudentID     *string         `json:"student_id" gorm:"size:50;index"`

	// Relationships
	Requirement *Requirement `json:"requirement,omitempty" gorm:"foreignKey:RequirementID"`
	User        *User        `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// IsLinked reports whether the payment is tied to a registered account.
func (p Payment) IsLinked() bool {
	return p.UserID != nil && *p.UserID != 0
}

// DisplayName returns the payer's name from either identity source.
func (p Payment) DisplayName() string {
	if p.IsLinked() && p.User != nil {
		return p.User.FullName()
	}
	return joinName(deref(p.FirstName), deref(p.MiddleName), deref(p.LastName))
}

// ManualStudentID returns the manual student id or "".
func (p Payment) ManualStudentID() string {
	if p.IsLinked() {
		return ""
	}
	return strings.TrimSpace(deref(p.StudentID))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Event statuses
const (
	EventUpcoming  = "upcoming"
	EventOngoing   = "ongoing"
	EventCompleted = "completed"
	EventCancelled = "cancelled"
)

// Event model
type Event struct {
	BaseModel
	Title       string    `json:"title" gorm:"size:255;not null"`
	Description string    `json:"description" gorm:"type:text"`
	Date        time.Time `json:"date" gorm:"type:date;not null"`
	Time        string    `json:"time" gorm:"size:5;not null"` // HH:MM
	Location    string    `json:"location" gorm:"size:255;not null"`
	Capacity    int       `json:"capacity" gorm:"not null"`
	Category    string    `json:"category" gorm:"size:255"`
	Status      string    `json:"status" gorm:"size:20;not null;default:'upcoming';type:enum('upcoming','ongoing','completed','cancelled')"` // upcoming, ongoing, completed, cancelled

	// Relationships
	Attendees []Attendee `json:"attendees,omitempty" gorm:"foreignKey:EventID"`
}

// Attendance statuses
const (
	AttendanceRegistered = "registered"
	AttendanceAttended   = "attended"
	AttendanceCancelled  = "cancelled"
)

// Attendee links a user to an event. One row per (event, user); cancelled rows are kept.
type Attendee struct {
	BaseModel
	EventID          uint      `json:"event_id" gorm:"not null;uniqueIndex:idx_attendee_event_user"`
	UserID           uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_attendee_event_user"`
	AttendanceStatus string    `json:"attendance_status" gorm:"size:20;not null;default:'registered';type:enum('registered','attended','cancelled')"`
	RegisteredAt     time.Time `json:"registered_at" gorm:"not null"`

	// Relationships
	Event *Event `json:"event,omitempty" gorm:"foreignKey:EventID"`
	User  *User  `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// IsActive reports whether the row counts against capacity.
func (a Attendee) IsActive() bool {
	return a.AttendanceStatus != AttendanceCancelled
}

// Ticket statuses and priorities
const (
	TicketOpen       = "open"
	TicketInProgress = "in_progress"
	TicketResolved   = "resolved"
	TicketClosed     = "closed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// TicketAttachment is one stored file of a support ticket.
type TicketAttachment struct {
	Path string `json:"path"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SupportTicket model. UserID is nil for public submissions, which carry contact details instead.
type SupportTicket struct {
	BaseModel
	ReferenceNumber string                                `json:"reference_number" gorm:"size:50;uniqueIndex"`
	UserID          *uint                                 `json:"user_id" gorm:"index"`
	ContactName     string                                `json:"contact_name" gorm:"size:255"`
	ContactEmail    string                                `json:"contact_email" gorm:"size:255"`
	Subject         string                                `json:"subject" gorm:"size:255;not null"`
	Message         string                                `json:"message" gorm:"type:text;not null"`
	Category        string                                `json:"category" gorm:"size:100;not null"`
	Priority        string                                `json:"priority" gorm:"size:20;not null;default:'medium';type:enum('low','medium','high','urgent')"`
	Status          string                                `json:"status" gorm:"size:20;not null;default:'open';type:enum('open','in_progress','resolved','closed')"`
	Attachments     datatypes.JSONSlice[TicketAttachment] `json:"attachments" gorm:"type:json"`

	// Relationships
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// Log model for activity tracking
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`
}
