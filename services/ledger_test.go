package services

import (
	"context"
	"testing"

	"nexus_go/models"

	"github.com/shopspring/decimal"
)

func uptr(v uint) *uint { return &v }

func sptr(s string) *string { return &s }

func TestPaidPayerCount(t *testing.T) {
	tests := []struct {
		name     string
		payments []models.Payment
		want     int
	}{
		{"empty", nil, 0},
		{"ignores unpaid and pending", []models.Payment{
			{UserID: uptr(1), Status: models.PaymentPending},
			{UserID: uptr(2), Status: models.PaymentUnpaid},
		}, 0},
		{"same user counted once", []models.Payment{
			{UserID: uptr(1), Status: models.PaymentPaid},
			{UserID: uptr(1), Status: models.PaymentPaid},
		}, 1},
		{"each manual row counts", []models.Payment{
			{FirstName: sptr("A"), LastName: sptr("B"), Status: models.PaymentPaid},
			{FirstName: sptr("A"), LastName: sptr("B"), Status: models.PaymentPaid},
		}, 2},
		{"mixed", []models.Payment{
			{UserID: uptr(1), Status: models.PaymentPaid},
			{UserID: uptr(2), Status: models.PaymentPaid},
			{UserID: uptr(2), Status: models.PaymentPaid},
			{FirstName: sptr("X"), LastName: sptr("Y"), Status: models.PaymentPaid},
			{FirstName: sptr("X"), LastName: sptr("Y"), Status: models.PaymentPending},
		}, 3},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := PaidPayerCount(tc.payments); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestUnpaidCountNeverNegative(t *testing.T) {
	if got := UnpaidCount(2, 5); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := UnpaidCount(10, 3); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func seedPayment(m *memStore, reqID uint, userID *uint, status string) models.Payment {
	p := models.Payment{RequirementID: reqID, UserID: userID, Status: status, AmountPaid: decimal.NewFromInt(100)}
	if userID == nil {
		p.FirstName, p.LastName = sptr("Walk"), sptr("In")
	}
	_ = m.CreatePayment(context.Background(), &p)
	return p
}

func TestRecalculateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(newClock())
	req := store.addRequirement("Dues", 10, "100")
	seedPayment(store, req.ID, uptr(7), models.PaymentPaid)
	seedPayment(store, req.ID, uptr(7), models.PaymentPaid)
	seedPayment(store, req.ID, nil, models.PaymentPaid)
	seedPayment(store, req.ID, uptr(8), models.PaymentPending)

	ledger := NewRequirementLedger(store)
	first, err := ledger.Recalculate(ctx, req.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	second, err := ledger.Recalculate(ctx, req.ID)
	if err != nil {
		t.Fatalf("recalculate: %v", err)
	}

	if first.Paid != 2 || first.Unpaid != 8 {
		t.Fatalf("expected paid=2 unpaid=8, got paid=%d unpaid=%d", first.Paid, first.Unpaid)
	}
	if first.Paid != second.Paid || first.Unpaid != second.Unpaid {
		t.Fatalf("second run changed counts: %+v vs %+v", first, second)
	}
}

func TestRecalculateMissingRequirementIsNoop(t *testing.T) {
	store := newMemStore(newClock())
	ledger := NewRequirementLedger(store)

	req, err := ledger.Recalculate(context.Background(), 999)
	if err != nil || req != nil {
		t.Fatalf("expected silent no-op, got %v, %v", req, err)
	}
}

func TestRecalculateManyTouchesEachRequirementOnce(t *testing.T) {
	store := newMemStore(newClock())
	a := store.addRequirement("A", 3, "50")
	b := store.addRequirement("B", 3, "50")

	ledger := NewRequirementLedger(store)
	if err := ledger.RecalculateMany(context.Background(), a.ID, b.ID, a.ID, a.ID, 0); err != nil {
		t.Fatalf("recalculate many: %v", err)
	}
	if store.countUpdates[a.ID] != 1 || store.countUpdates[b.ID] != 1 {
		t.Fatalf("expected one update each, got %v", store.countUpdates)
	}
}

func TestRecalculateAllMatchesIncremental(t *testing.T) {
	ctx := context.Background()
	clock := newClock()
	store := newMemStore(clock)
	u1 := store.addUser("Ana", "Cruz", "S-1")
	u2 := store.addUser("Ben", "Diaz", "S-2")
	r1 := store.addRequirement("Dues", 5, "100")
	r2 := store.addRequirement("Shirt", 2, "250")

	svc := NewPaymentService(store, NewRequirementLedger(store), clock)
	inputs := []PaymentInput{
		{RequirementID: r1.ID, Identity: models.LinkedUser{UserID: u1.ID}, Status: models.PaymentPaid},
		{RequirementID: r1.ID, Identity: models.LinkedUser{UserID: u2.ID}, Status: models.PaymentPending},
		{RequirementID: r1.ID, Identity: models.ManualPayer{FirstName: "Cy", LastName: "Eng"}, Status: models.PaymentPaid},
		{RequirementID: r2.ID, Identity: models.LinkedUser{UserID: u1.ID}, Status: models.PaymentPaid},
		{RequirementID: r2.ID, Identity: models.LinkedUser{UserID: u2.ID}, Status: models.PaymentPaid},
		{RequirementID: r2.ID, Identity: models.ManualPayer{FirstName: "Di", LastName: "Fox"}, Status: models.PaymentPaid},
	}
	for _, in := range inputs {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatalf("create payment: %v", err)
		}
	}
	incremental := map[uint]models.Requirement{r1.ID: store.requirement(r1.ID), r2.ID: store.requirement(r2.ID)}

	// Corrupt the aggregates, then repair.
	for id, r := range store.st.requirements {
		r.Paid, r.Unpaid = 99, 99
		store.st.requirements[id] = r
	}
	all, err := NewRequirementLedger(store).RecalculateAll(ctx)
	if err != nil {
		t.Fatalf("recalculate all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(all))
	}
	for _, r := range all {
		want := incremental[r.ID]
		if r.Paid != want.Paid || r.Unpaid != want.Unpaid {
			t.Fatalf("requirement %d: full=%d/%d incremental=%d/%d", r.ID, r.Paid, r.Unpaid, want.Paid, want.Unpaid)
		}
	}
	if got := store.requirement(r2.ID); got.Paid != 3 || got.Unpaid != 0 {
		t.Fatalf("expected clamped unpaid 0 with paid 3, got %d/%d", got.Paid, got.Unpaid)
	}
}
