package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"nexus_go/models"

	"github.com/shopspring/decimal"
)

func newPaymentFixture() (*memStore, *fixedClock, *PaymentService) {
	clock := newClock()
	store := newMemStore(clock)
	return store, clock, NewPaymentService(store, NewRequirementLedger(store), clock)
}

func TestCreateLinkedPaymentUpdatesCounts(t *testing.T) {
	store, _, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")
	u := store.addUser("Juan", "Cruz", "")

	_, err := svc.Create(context.Background(), PaymentInput{
		RequirementID: req.ID,
		Identity:      models.LinkedUser{UserID: u.ID},
		Status:        models.PaymentPaid,
		AmountPaid:    decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got := store.requirement(req.ID)
	if got.Paid != 1 || got.Unpaid != 9 {
		t.Fatalf("expected paid=1 unpaid=9, got paid=%d unpaid=%d", got.Paid, got.Unpaid)
	}
}

func TestCreatePaidStampsPaidAt(t *testing.T) {
	store, clock, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")

	p, err := svc.Create(context.Background(), PaymentInput{
		RequirementID: req.ID,
		Identity:      models.ManualPayer{FirstName: "Ana", LastName: "Reyes"},
		Status:        models.PaymentPaid,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.PaidAt == nil || !p.PaidAt.Equal(clock.now) {
		t.Fatalf("expected paid_at %v, got %v", clock.now, p.PaidAt)
	}
}

func TestCreateKeepsSuppliedPaidAt(t *testing.T) {
	store, _, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")
	when := time.Date(2025, 8, 15, 8, 0, 0, 0, time.UTC)

	p, err := svc.Create(context.Background(), PaymentInput{
		RequirementID: req.ID,
		Identity:      models.ManualPayer{FirstName: "Ana", LastName: "Reyes"},
		Status:        models.PaymentPaid,
		PaidAt:        &when,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !p.PaidAt.Equal(when) {
		t.Fatalf("expected supplied paid_at, got %v", p.PaidAt)
	}
}

func TestUpdateToPaidStampsPaidAt(t *testing.T) {
	store, clock, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")
	in := PaymentInput{
		RequirementID: req.ID,
		Identity:      models.ManualPayer{FirstName: "Ana", LastName: "Reyes"},
		Status:        models.PaymentPending,
	}
	p, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.PaidAt != nil {
		t.Fatalf("pending payment must not have paid_at")
	}

	clock.now = clock.now.Add(2 * time.Hour)
	in.Status = models.PaymentPaid
	p, err = svc.Update(context.Background(), p.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.PaidAt == nil || !p.PaidAt.Equal(clock.now) {
		t.Fatalf("expected paid_at %v, got %v", clock.now, p.PaidAt)
	}
	if got := store.requirement(req.ID); got.Paid != 1 {
		t.Fatalf("expected paid=1 after update, got %d", got.Paid)
	}
}

func TestUpdatePaidRowKeepsPaidAt(t *testing.T) {
	store, clock, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")
	in := PaymentInput{
		RequirementID: req.ID,
		Identity:      models.ManualPayer{FirstName: "Ana", LastName: "Reyes"},
		Status:        models.PaymentPaid,
		AmountPaid:    decimal.NewFromInt(50),
	}
	p, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stamped := *p.PaidAt

	clock.now = clock.now.Add(48 * time.Hour)
	in.AmountPaid = decimal.NewFromInt(100)
	p, err = svc.Update(context.Background(), p.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.PaidAt == nil || !p.PaidAt.Equal(stamped) {
		t.Fatalf("expected paid_at to stay %v, got %v", stamped, p.PaidAt)
	}
}

func TestLinkedUserClearsManualFields(t *testing.T) {
	store, _, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")
	u := store.addUser("Juan", "Cruz", "")

	p, err := svc.Create(context.Background(), PaymentInput{
		RequirementID: req.ID,
		Identity:      models.ManualPayer{FirstName: "Ana", LastName: "Reyes", StudentID: "S-9"},
		Status:        models.PaymentPending,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	p, err = svc.Update(context.Background(), p.ID, PaymentInput{
		RequirementID: req.ID,
		Identity:      models.LinkedUser{UserID: u.ID},
		Status:        models.PaymentPending,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.FirstName != nil || p.LastName != nil || p.StudentID != nil {
		t.Fatalf("manual fields must be cleared, got %+v", p)
	}
	if p.UserID == nil || *p.UserID != u.ID {
		t.Fatalf("expected user %d, got %v", u.ID, p.UserID)
	}
}

func TestPaymentValidation(t *testing.T) {
	store, _, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")

	tests := []struct {
		name  string
		in    PaymentInput
		field string
	}{
		{"manual needs first name", PaymentInput{RequirementID: req.ID, Identity: models.ManualPayer{LastName: "Cruz"}, Status: models.PaymentPaid}, "first_name"},
		{"manual needs last name", PaymentInput{RequirementID: req.ID, Identity: models.ManualPayer{FirstName: "Ana"}, Status: models.PaymentPaid}, "last_name"},
		{"no identity", PaymentInput{RequirementID: req.ID, Status: models.PaymentPaid}, "first_name"},
		{"unknown requirement", PaymentInput{RequirementID: 404, Identity: models.ManualPayer{FirstName: "A", LastName: "B"}, Status: models.PaymentPaid}, "requirement_id"},
		{"unknown user", PaymentInput{RequirementID: req.ID, Identity: models.LinkedUser{UserID: 404}, Status: models.PaymentPaid}, "user_id"},
		{"bad status", PaymentInput{RequirementID: req.ID, Identity: models.ManualPayer{FirstName: "A", LastName: "B"}, Status: "refunded"}, "status"},
		{"negative amount", PaymentInput{RequirementID: req.ID, Identity: models.ManualPayer{FirstName: "A", LastName: "B"}, Status: models.PaymentPaid, AmountPaid: decimal.NewFromInt(-1)}, "amount_paid"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.in)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := verr.Fields[tc.field]; !ok {
				t.Fatalf("expected error on %s, got %v", tc.field, verr.Fields)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("validation error must wrap ErrValidation")
			}
		})
	}
	if len(store.st.payments) != 0 {
		t.Fatalf("no payment may be written on validation failure")
	}
}

func TestUpdateMovingRequirementRecalculatesBoth(t *testing.T) {
	store, _, svc := newPaymentFixture()
	a := store.addRequirement("A", 5, "100")
	b := store.addRequirement("B", 5, "100")
	u := store.addUser("Juan", "Cruz", "")

	in := PaymentInput{RequirementID: a.ID, Identity: models.LinkedUser{UserID: u.ID}, Status: models.PaymentPaid}
	p, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	in.RequirementID = b.ID
	if _, err := svc.Update(context.Background(), p.ID, in); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got := store.requirement(a.ID); got.Paid != 0 || got.Unpaid != 5 {
		t.Fatalf("old requirement not recalculated: %d/%d", got.Paid, got.Unpaid)
	}
	if got := store.requirement(b.ID); got.Paid != 1 || got.Unpaid != 4 {
		t.Fatalf("new requirement not recalculated: %d/%d", got.Paid, got.Unpaid)
	}
}

func TestBatchDeleteRecalculatesDistinctRequirements(t *testing.T) {
	store, _, svc := newPaymentFixture()
	a := store.addRequirement("A", 5, "100")
	b := store.addRequirement("B", 5, "100")
	var ids []uint
	for i := 0; i < 3; i++ {
		ids = append(ids, seedPayment(store, a.ID, nil, models.PaymentPaid).ID)
	}
	ids = append(ids, seedPayment(store, b.ID, nil, models.PaymentPaid).ID)

	n, err := svc.BatchDelete(context.Background(), ids)
	if err != nil {
		t.Fatalf("batch delete: %v", err)
	}
	if n != 4 || len(store.st.payments) != 0 {
		t.Fatalf("expected 4 deletions, got %d (left %d)", n, len(store.st.payments))
	}
	if store.countUpdates[a.ID] != 1 || store.countUpdates[b.ID] != 1 {
		t.Fatalf("expected one recalculation per requirement, got %v", store.countUpdates)
	}
	if got := store.requirement(a.ID); got.Paid != 0 || got.Unpaid != 5 {
		t.Fatalf("unexpected counts %d/%d", got.Paid, got.Unpaid)
	}
}

func TestBatchDeleteUnknownIDDeletesNothing(t *testing.T) {
	store, _, svc := newPaymentFixture()
	req := store.addRequirement("A", 5, "100")
	p := seedPayment(store, req.ID, nil, models.PaymentPaid)

	_, err := svc.BatchDelete(context.Background(), []uint{p.ID, 999})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.st.payments) != 1 {
		t.Fatalf("payment must survive a rejected batch")
	}
}

func TestDeleteUnknownPayment(t *testing.T) {
	_, _, svc := newPaymentFixture()
	if err := svc.Delete(context.Background(), 42); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStaleAggregateDoesNotFailWrite(t *testing.T) {
	store, _, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")
	store.failCounts = true

	_, err := svc.Create(context.Background(), PaymentInput{
		RequirementID: req.ID,
		Identity:      models.ManualPayer{FirstName: "Ana", LastName: "Reyes"},
		Status:        models.PaymentPaid,
	})
	if err != nil {
		t.Fatalf("write must succeed when recalculation fails, got %v", err)
	}
	if len(store.st.payments) != 1 {
		t.Fatalf("payment must be stored")
	}
	if got := store.requirement(req.ID); got.Paid != 0 {
		t.Fatalf("expected stale aggregate, got paid=%d", got.Paid)
	}

	store.failCounts = false
	if _, err := NewRequirementLedger(store).RecalculateAll(context.Background()); err != nil {
		t.Fatalf("repair: %v", err)
	}
	if got := store.requirement(req.ID); got.Paid != 1 {
		t.Fatalf("repair did not fix counts, paid=%d", got.Paid)
	}
}

func TestForMemberIncludesManualShadowRows(t *testing.T) {
	store, _, svc := newPaymentFixture()
	req := store.addRequirement("Dues", 10, "100")
	u := store.addUser("Juan", "Cruz", "2021-001")
	seedPayment(store, req.ID, &u.ID, models.PaymentPaid)
	shadow := models.Payment{RequirementID: req.ID, Status: models.PaymentPending,
		FirstName: sptr("Juan"), LastName: sptr("Cruz"), StudentID: sptr("2021-001")}
	_ = store.CreatePayment(context.Background(), &shadow)
	seedPayment(store, req.ID, nil, models.PaymentPaid)

	payments, err := svc.ForMember(context.Background(), &u)
	if err != nil {
		t.Fatalf("for member: %v", err)
	}
	if len(payments) != 2 {
		t.Fatalf("expected direct and shadow payment, got %d", len(payments))
	}
}
