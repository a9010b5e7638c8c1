package models

import (
	"testing"
	"time"
)

func TestRequirementStatusAt(t *testing.T) {
	now := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		req  Requirement
		want string
	}{
		{"done when everyone paid", Requirement{TotalUsers: 3, Paid: 3, Deadline: now.AddDate(0, 0, -5)}, RequirementDone},
		{"overdue after deadline", Requirement{TotalUsers: 3, Paid: 1, Deadline: now.AddDate(0, 0, -1)}, RequirementOverdue},
		{"pending before deadline", Requirement{TotalUsers: 3, Paid: 1, Deadline: now.AddDate(0, 0, 1)}, RequirementPending},
		{"done with zero population", Requirement{TotalUsers: 0, Paid: 0, Deadline: now.AddDate(0, 0, -1)}, RequirementDone},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.req.StatusAt(now); got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

func TestSetIdentityLinkedClearsManualFields(t *testing.T) {
	first, sid := "Ana", "2021-0001"
	p := Payment{FirstName: &first, StudentID: &sid}

	p.SetIdentity(LinkedUser{UserID: 7})

	if !p.IsLinked() || *p.UserID != 7 {
		t.Fatalf("expected linked user 7, got %v", p.UserID)
	}
	if p.FirstName != nil || p.StudentID != nil || p.LastName != nil || p.MiddleName != nil {
		t.Fatalf("manual fields must be cleared for linked payments")
	}
	if _, ok := p.Identity().(LinkedUser); !ok {
		t.Fatalf("expected LinkedUser identity, got %T", p.Identity())
	}
}

func TestSetIdentityManual(t *testing.T) {
	uid := uint(3)
	p := Payment{UserID: &uid}

	p.SetIdentity(ManualPayer{FirstName: " Ana ", LastName: "Cruz", StudentID: "S-1"})

	if p.IsLinked() {
		t.Fatalf("manual payment must not keep user id")
	}
	m, ok := p.Identity().(ManualPayer)
	if !ok {
		t.Fatalf("expected ManualPayer identity, got %T", p.Identity())
	}
	if m.FirstName != "Ana" || m.LastName != "Cruz" || m.StudentID != "S-1" || m.MiddleName != "" {
		t.Fatalf("unexpected manual identity %+v", m)
	}
	if p.DisplayName() != "Ana Cruz" {
		t.Fatalf("unexpected display name %q", p.DisplayName())
	}
}

func TestUserFullName(t *testing.T) {
	u := User{Name: "Juan Dela Cruz"}
	if u.FullName() != "Juan Dela Cruz" {
		t.Fatalf("expected fallback to Name, got %q", u.FullName())
	}
	u.FirstName, u.MiddleName, u.LastName = "Juan", "P", "Dela Cruz"
	if u.FullName() != "Juan P Dela Cruz" {
		t.Fatalf("unexpected full name %q", u.FullName())
	}
}
