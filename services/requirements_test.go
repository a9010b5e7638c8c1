package services

import (
	"context"
	"errors"
	"testing"

	"nexus_go/models"

	"github.com/shopspring/decimal"
)

func newRequirementService(store *memStore) *RequirementService {
	return NewRequirementService(store, NewRequirementLedger(store), store.clock)
}

func TestCreateRequirementStartsUnpaid(t *testing.T) {
	store := newMemStore(newClock())
	svc := newRequirementService(store)

	r, err := svc.Create(context.Background(), RequirementInput{
		Title:      "Org Shirt",
		Amount:     decimal.RequireFromString("350.005"),
		Deadline:   "2025-09-30",
		TotalUsers: 40,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if r.Paid != 0 || r.Unpaid != 40 {
		t.Fatalf("expected 0/40, got %d/%d", r.Paid, r.Unpaid)
	}
	if r.Status != models.RequirementPending {
		t.Fatalf("expected pending status, got %s", r.Status)
	}
	if !r.Amount.Equal(decimal.RequireFromString("350.01")) {
		t.Fatalf("expected amount rounded to cents, got %s", r.Amount)
	}
}

func TestRequirementValidation(t *testing.T) {
	svc := newRequirementService(newMemStore(newClock()))

	tests := []struct {
		name  string
		in    RequirementInput
		field string
	}{
		{"missing title", RequirementInput{Deadline: "2025-09-30"}, "title"},
		{"missing deadline", RequirementInput{Title: "Dues"}, "deadline"},
		{"bad deadline", RequirementInput{Title: "Dues", Deadline: "soon"}, "deadline"},
		{"negative amount", RequirementInput{Title: "Dues", Deadline: "2025-09-30", Amount: decimal.NewFromInt(-5)}, "amount"},
		{"negative total", RequirementInput{Title: "Dues", Deadline: "2025-09-30", TotalUsers: -1}, "total_users"},
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
		})
	}
}

func TestUpdateTotalUsersRecalculates(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(newClock())
	svc := newRequirementService(store)
	req := store.addRequirement("Dues", 10, "100")
	u := store.addUser("Ana", "Cruz", "")
	seedPayment(store, req.ID, &u.ID, models.PaymentPaid)

	got, err := svc.Update(ctx, req.ID, RequirementInput{
		Title: "Dues", Amount: decimal.NewFromInt(100), Deadline: "2025-10-01", TotalUsers: 1,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Paid != 1 || got.Unpaid != 0 {
		t.Fatalf("expected 1/0 after shrinking the population, got %d/%d", got.Paid, got.Unpaid)
	}
	if got.Status != models.RequirementDone {
		t.Fatalf("expected completed status, got %s", got.Status)
	}
}

func TestDeleteRequirementCascades(t *testing.T) {
	ctx := context.Background()
	store := newMemStore(newClock())
	svc := newRequirementService(store)
	keep := store.addRequirement("Keep", 5, "10")
	drop := store.addRequirement("Drop", 5, "10")
	seedPayment(store, keep.ID, nil, models.PaymentPaid)
	seedPayment(store, drop.ID, nil, models.PaymentPaid)
	seedPayment(store, drop.ID, nil, models.PaymentPending)

	if err := svc.Delete(ctx, drop.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(store.st.payments) != 1 {
		t.Fatalf("expected only the other requirement's payment left, have %d", len(store.st.payments))
	}
	if _, err := svc.Get(ctx, drop.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(ctx, drop.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
