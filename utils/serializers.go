package utils

import (
	"time"

	"nexus_go/models"

	"github.com/shopspring/decimal"
)

// Compact representations used across APIs
type UserShort struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email,omitempty"`
	StudentID string `json:"student_id,omitempty"`
	Program   string `json:"program,omitempty"`
	Year      string `json:"year,omitempty"`
}

type RequirementShort struct {
	ID       uint            `json:"id"`
	Title    string          `json:"title"`
	Amount   decimal.Decimal `json:"amount"`
	Deadline time.Time       `json:"deadline"`
}

// PaymentDTO flattens a payment for list screens. Payer fields come from the
// linked user when there is one, otherwise from the manual columns.
type PaymentDTO struct {
	ID            uint              `json:"id"`
	RequirementID uint              `json:"requirement_id"`
	UserID        *uint             `json:"user_id"`
	IsManual      bool              `json:"is_manual"`
	PayerName     string            `json:"payer_name"`
	StudentID     string            `json:"student_id"`
	AmountPaid    decimal.Decimal   `json:"amount_paid"`
	PaidAt        *time.Time        `json:"paid_at"`
	Status        string            `json:"status"`
	PaymentMethod string            `json:"payment_method"`
	Notes         string            `json:"notes"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
	User          *UserShort        `json:"user,omitempty"`
	Requirement   *RequirementShort `json:"requirement,omitempty"`
}

type AttendeeDTO struct {
	ID               uint      `json:"id"`
	EventID          uint      `json:"event_id"`
	AttendanceStatus string    `json:"attendance_status"`
	RegisteredAt     time.Time `json:"registered_at"`
	User             UserShort `json:"user"`
}

func ToUserShort(u models.User) UserShort {
	return UserShort{
		ID:        u.ID,
		Name:      u.FullName(),
		Email:     u.Email,
		StudentID: u.StudentNumber(),
		Program:   u.Program,
		Year:      u.Year,
	}
}

// ToPaymentDTO maps a payment; User and Requirement are used when preloaded.
func ToPaymentDTO(p models.Payment) PaymentDTO {
	dto := PaymentDTO{
		ID:            p.ID,
		RequirementID: p.RequirementID,
		UserID:        p.UserID,
		IsManual:      !p.IsLinked(),
		PayerName:     p.DisplayName(),
		StudentID:     p.ManualStudentID(),
		AmountPaid:    p.AmountPaid,
		PaidAt:        p.PaidAt,
		Status:        p.Status,
		PaymentMethod: p.PaymentMethod,
		Notes:         p.Notes,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
	}
	if p.IsLinked() && p.User != nil {
		us := ToUserShort(*p.User)
		dto.User = &us
		dto.StudentID = us.StudentID
	}
	if p.Requirement != nil {
		dto.Requirement = &RequirementShort{
			ID:       p.Requirement.ID,
			Title:    p.Requirement.Title,
			Amount:   p.Requirement.Amount,
			Deadline: p.Requirement.Deadline,
		}
	}
	return dto
}

func ToPaymentDTOs(payments []models.Payment) []PaymentDTO {
	out := make([]PaymentDTO, 0, len(payments))
	for _, p := range payments {
		out = append(out, ToPaymentDTO(p))
	}
	return out
}

func ToAttendeeDTOs(attendees []models.Attendee) []AttendeeDTO {
	out := make([]AttendeeDTO, 0, len(attendees))
	for _, a := range attendees {
		dto := AttendeeDTO{
			ID:               a.ID,
			EventID:          a.EventID,
			AttendanceStatus: a.AttendanceStatus,
			RegisteredAt:     a.RegisteredAt,
			User:             UserShort{ID: a.UserID},
		}
		if a.User != nil {
			dto.User = ToUserShort(*a.User)
		}
		out = append(out, dto)
	}
	return out
}
