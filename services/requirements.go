package services

import (
	"context"
	"strings"

	"nexus_go/models"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type RequirementInput struct {
	Title       string          `json:"title" validate:"required,max=255"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Deadline    string          `json:"deadline" validate:"required"`
	TotalUsers  int             `json:"total_users" validate:"min=0"`
}

// RequirementSummary is a requirement with its derived status.
type RequirementSummary struct {
	models.Requirement
	Status string `json:"status"`
}

type RequirementService struct {
	store  Store
	ledger *RequirementLedger
	clock  Clock
	log    *logrus.Entry
}

func NewRequirementService(store Store, ledger *RequirementLedger, clock Clock) *RequirementService {
	return &RequirementService{
		store:  store,
		ledger: ledger,
		clock:  clock,
		log:    logrus.WithField("component", "requirements"),
	}
}

func (s *RequirementService) summarize(r models.Requirement) RequirementSummary {
	return RequirementSummary{Requirement: r, Status: r.StatusAt(s.clock.Now())}
}

func (s *RequirementService) List(ctx context.Context) ([]RequirementSummary, error) {
	reqs, err := s.store.ListRequirements(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RequirementSummary, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, s.summarize(r))
	}
	return out, nil
}

func (s *RequirementService) Get(ctx context.Context, id uint) (*RequirementSummary, error) {
	r, err := s.store.FindRequirement(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := s.summarize(*r)
	return &sum, nil
}

// Create stores a requirement with nobody paid yet.
func (s *RequirementService) Create(ctx context.Context, in RequirementInput) (*RequirementSummary, error) {
	r := models.Requirement{}
	if err := s.apply(&r, in); err != nil {
		return nil, err
	}
	r.Paid = 0
	r.Unpaid = r.TotalUsers
	if err := s.store.CreateRequirement(ctx, &r); err != nil {
		return nil, err
	}
	sum := s.summarize(r)
	return &sum, nil
}

// Update saves the new fields and recalculates, since total_users may have changed.
func (s *RequirementService) Update(ctx context.Context, id uint, in RequirementInput) (*RequirementSummary, error) {
	r, err := s.store.FindRequirement(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(r, in); err != nil {
		return nil, err
	}
	r.Payments = nil
	if err := s.store.SaveRequirement(ctx, r); err != nil {
		return nil, err
	}

	s.ledger.refresh(ctx, r.ID)
	return s.Get(ctx, r.ID)
}

// Delete removes the requirement together with its payments.
func (s *RequirementService) Delete(ctx context.Context, id uint) error {
	if _, err := s.store.FindRequirement(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteRequirement(ctx, id); err != nil {
		return err
	}
	s.log.WithField("requirement_id", id).Info("Requirement deleted")
	return nil
}

func (s *RequirementService) apply(r *models.Requirement, in RequirementInput) error {
	verr := validateStruct(in)
	if in.Amount.IsNegative() {
		verr.Add("amount", "The amount must be at least 0.")
	}
	deadline, err := parseDate(in.Deadline, s.clock.Now().Location())
	if in.Deadline != "" && err != nil {
		verr.Add("deadline", "The deadline is not a valid date.")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	r.Title = strings.TrimSpace(in.Title)
	r.Description = in.Description
	r.Amount = in.Amount.Round(2)
	r.Deadline = deadline
	r.TotalUsers = in.TotalUsers
	return nil
}
