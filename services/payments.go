package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nexus_go/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// PaymentInput is a create or full update of one payment row.
type PaymentInput struct {
	RequirementID uint                   `json:"requirement_id" validate:"required"`
	Identity      models.PaymentIdentity `json:"-" validate:"-"`
	AmountPaid    decimal.Decimal        `json:"amount_paid"`
	PaidAt        *time.Time             `json:"paid_at"`
	Status        string                 `json:"status" validate:"required,oneof=pending paid unpaid"`
	PaymentMethod string                 `json:"payment_method" validate:"max=255"`
	Notes         string                 `json:"notes"`
}

type manualPayerInput struct {
	FirstName  string `json:"first_name" validate:"required,max=255"`
	MiddleName string `json:"middle_name" validate:"max=255"`
	LastName   string `json:"last_name" validate:"required,max=255"`
	StudentID  string `json:"student_id" validate:"max=50"`
}

// PaymentService is the payment record store. Every committed write is
// followed by a ledger recalculation of each affected requirement.
type PaymentService struct {
	store  Store
	ledger *RequirementLedger
	clock  Clock
	log    *logrus.Entry
}

func NewPaymentService(store Store, ledger *RequirementLedger, clock Clock) *PaymentService {
	return &PaymentService{
		store:  store,
		ledger: ledger,
		clock:  clock,
		log:    logrus.WithField("component", "payments"),
	}
}

func (s *PaymentService) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, error) {
	return s.store.ListPayments(ctx, filter)
}

func (s *PaymentService) Get(ctx context.Context, id uint) (*models.Payment, error) {
	return s.store.FindPayment(ctx, id)
}

func (s *PaymentService) Stats(ctx context.Context) (PaymentStats, error) {
	return s.store.PaymentStats(ctx)
}

// Create validates in, stores a new row and recalculates its requirement.
func (s *PaymentService) Create(ctx context.Context, in PaymentInput) (*models.Payment, error) {
	var payment models.Payment
	err := s.store.Transaction(ctx, func(tx Store) error {
		if err := s.validate(ctx, tx, in); err != nil {
			return err
		}
		s.apply(&payment, in)
		return tx.CreatePayment(ctx, &payment)
	})
	if err != nil {
		return nil, err
	}

	s.ledger.refresh(ctx, payment.RequirementID)
	return s.reload(ctx, &payment), nil
}

// Update replaces every field of the row. When the requirement changes both
// the old and the new requirement are recalculated.
func (s *PaymentService) Update(ctx context.Context, id uint, in PaymentInput) (*models.Payment, error) {
	var (
		payment  *models.Payment
		previous uint
	)
	err := s.store.Transaction(ctx, func(tx Store) error {
		var err error
		payment, err = tx.FindPayment(ctx, id)
		if err != nil {
			return err
		}
		if err := s.validate(ctx, tx, in); err != nil {
			return err
		}
		previous = payment.RequirementID
		s.apply(payment, in)
		return tx.SavePayment(ctx, payment)
	})
	if err != nil {
		return nil, err
	}

	s.ledger.refresh(ctx, previous, payment.RequirementID)
	return s.reload(ctx, payment), nil
}

func (s *PaymentService) Delete(ctx context.Context, id uint) error {
	var requirementID uint
	err := s.store.Transaction(ctx, func(tx Store) error {
		payment, err := tx.FindPayment(ctx, id)
		if err != nil {
			return err
		}
		requirementID = payment.RequirementID
		return tx.DeletePayments(ctx, []uint{id})
	})
	if err != nil {
		return err
	}

	s.ledger.refresh(ctx, requirementID)
	return nil
}

// BatchDelete removes every listed payment or none of them, then recalculates
// each distinct requirement once. It returns the number of rows removed.
func (s *PaymentService) BatchDelete(ctx context.Context, ids []uint) (int, error) {
	if len(ids) == 0 {
		return 0, NewValidationError("payment_ids", "The payment ids field is required.")
	}
	ids = uniqueIDs(ids)
	if len(ids) == 0 {
		return 0, NewValidationError("payment_ids", "The selected payment ids are invalid.")
	}

	var requirementIDs []uint
	err := s.store.Transaction(ctx, func(tx Store) error {
		payments, err := tx.FindPayments(ctx, ids)
		if err != nil {
			return err
		}
		found := make(map[uint]struct{}, len(payments))
		for _, p := range payments {
			found[p.ID] = struct{}{}
			requirementIDs = append(requirementIDs, p.RequirementID)
		}
		verr := &ValidationError{}
		for i, id := range ids {
			if _, ok := found[id]; !ok {
				verr.Add(fmt.Sprintf("payment_ids.%d", i), "The selected payment id is invalid.")
			}
		}
		if err := verr.OrNil(); err != nil {
			return err
		}
		return tx.DeletePayments(ctx, ids)
	})
	if err != nil {
		return 0, err
	}

	s.ledger.refresh(ctx, requirementIDs...)
	s.log.WithField("count", len(ids)).Info("Payments batch deleted")
	return len(ids), nil
}

func (s *PaymentService) validate(ctx context.Context, store Store, in PaymentInput) error {
	verr := validateStruct(in)
	if in.AmountPaid.IsNegative() {
		verr.Add("amount_paid", "The amount paid must be at least 0.")
	}

	if in.RequirementID != 0 {
		if _, err := store.FindRequirement(ctx, in.RequirementID); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			verr.Add("requirement_id", "The selected requirement id is invalid.")
		}
	}

	switch id := in.Identity.(type) {
	case models.LinkedUser:
		if _, err := store.FindUser(ctx, id.UserID); err != nil {
			if !errors.Is(err, ErrNotFound) {
				return err
			}
			verr.Add("user_id", "The selected user id is invalid.")
		}
	case models.ManualPayer:
		manual := validateStruct(manualPayerInput{
			FirstName:  strings.TrimSpace(id.FirstName),
			MiddleName: strings.TrimSpace(id.MiddleName),
			LastName:   strings.TrimSpace(id.LastName),
			StudentID:  strings.TrimSpace(id.StudentID),
		})
		for field, msg := range manual.Fields {
			verr.Add(field, msg)
		}
	default:
		verr.Add("first_name", "The first name field is required when user id is not present.")
		verr.Add("last_name", "The last name field is required when user id is not present.")
	}

	return verr.OrNil()
}

// apply copies in onto p. A paid row without a payment date is stamped with
// the current time, unless it was already paid and keeps its old date.
func (s *PaymentService) apply(p *models.Payment, in PaymentInput) {
	wasPaid := p.ID != 0 && p.Status == models.PaymentPaid && p.PaidAt != nil
	previousPaidAt := p.PaidAt

	p.RequirementID = in.RequirementID
	p.SetIdentity(in.Identity)
	p.AmountPaid = in.AmountPaid.Round(2)
	p.Status = in.Status
	p.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	p.Notes = in.Notes
	p.PaidAt = in.PaidAt
	p.Requirement = nil

	if p.Status == models.PaymentPaid && p.PaidAt == nil {
		if wasPaid {
			p.PaidAt = previousPaidAt
			return
		}
		now := s.clock.Now()
		p.PaidAt = &now
	}
}

// reload fetches the row again with relations; the saved copy is returned if that fails.
func (s *PaymentService) reload(ctx context.Context, p *models.Payment) *models.Payment {
	fresh, err := s.store.FindPayment(ctx, p.ID)
	if err != nil {
		s.log.WithError(err).WithField("payment_id", p.ID).Warn("Failed to reload payment")
		return p
	}
	return fresh
}

// ForMember lists a member's own payments together with manual rows that
// carry the member's student id, newest first.
func (s *PaymentService) ForMember(ctx context.Context, user *models.User) ([]models.Payment, error) {
	return s.store.ListPersonPayments(ctx, user.ID, user.StudentNumber())
}
