package services

import (
	"context"
	"errors"
	"fmt"

	"nexus_go/models"

	"github.com/sirupsen/logrus"
)

// RequirementLedger keeps Requirement.Paid and Requirement.Unpaid equal to
// what the payment rows say. Every recalculation starts from the rows, so
// running it twice gives the same result as running it once.
type RequirementLedger struct {
	store Store
	log   *logrus.Entry
}

func NewRequirementLedger(store Store) *RequirementLedger {
	return &RequirementLedger{store: store, log: logrus.WithField("component", "ledger")}
}

// PaidPayerCount counts distinct payers among paid rows. Linked rows count
// once per user; every manual row counts once on its own.
func PaidPayerCount(payments []models.Payment) int {
	linked := make(map[uint]struct{})
	manual := 0
	for _, p := range payments {
		if p.Status != models.PaymentPaid {
			continue
		}
		if p.IsLinked() {
			linked[*p.UserID] = struct{}{}
			continue
		}
		manual++
	}
	return len(linked) + manual
}

// UnpaidCount is max(0, total-paid).
func UnpaidCount(total, paid int) int {
	if d := total - paid; d > 0 {
		return d
	}
	return 0
}

// Recalculate recomputes one requirement. A requirement that no longer exists
// is skipped and (nil, nil) is returned.
func (l *RequirementLedger) Recalculate(ctx context.Context, requirementID uint) (*models.Requirement, error) {
	req, err := l.store.FindRequirement(ctx, requirementID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	payments, err := l.store.ListRequirementPayments(ctx, requirementID)
	if err != nil {
		return nil, fmt.Errorf("load payments of requirement %d: %w", requirementID, err)
	}

	paid := PaidPayerCount(payments)
	unpaid := UnpaidCount(req.TotalUsers, paid)
	if err := l.store.UpdateRequirementCounts(ctx, requirementID, paid, unpaid); err != nil {
		return nil, fmt.Errorf("update counts of requirement %d: %w", requirementID, err)
	}

	req.Paid, req.Unpaid = paid, unpaid
	return req, nil
}

// RecalculateMany recalculates each distinct id once. Failures do not stop the
// remaining ids; they are joined into the returned error.
func (l *RequirementLedger) RecalculateMany(ctx context.Context, requirementIDs ...uint) error {
	var errs []error
	for _, id := range uniqueIDs(requirementIDs) {
		if _, err := l.Recalculate(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecalculateAll recalculates every requirement and returns them with fresh counts.
func (l *RequirementLedger) RecalculateAll(ctx context.Context) ([]models.Requirement, error) {
	reqs, err := l.store.ListRequirements(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Requirement, 0, len(reqs))
	var errs []error
	for _, r := range reqs {
		fresh, err := l.Recalculate(ctx, r.ID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if fresh != nil {
			out = append(out, *fresh)
		}
	}
	return out, errors.Join(errs...)
}

// refresh runs after a committed payment write. The write stands even when
// this fails; the aggregate stays stale until the next recalculation.
func (l *RequirementLedger) refresh(ctx context.Context, requirementIDs ...uint) {
	if err := l.RecalculateMany(ctx, requirementIDs...); err != nil {
		l.log.WithFields(logrus.Fields{
			"requirement_ids": uniqueIDs(requirementIDs),
		}).Warnf("Requirement counts left stale: %v", err)
	}
}
