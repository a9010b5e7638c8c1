package services

import (
	"context"
	"errors"
	"testing"

	"nexus_go/models"
)

func newRegistrationFixture(capacity int) (*memStore, *CapacityManager, models.Event) {
	clock := newClock()
	store := newMemStore(clock)
	ev := store.addEvent("General Assembly", capacity)
	return store, NewCapacityManager(store, clock), ev
}

func TestRegisterUntilFull(t *testing.T) {
	ctx := context.Background()
	store, mgr, ev := newRegistrationFixture(2)
	a := store.addUser("Ana", "Cruz", "")
	b := store.addUser("Ben", "Diaz", "")
	c := store.addUser("Cy", "Eng", "")

	for _, u := range []models.User{a, b} {
		if _, err := mgr.Register(ctx, ev.ID, u.ID); err != nil {
			t.Fatalf("register %d: %v", u.ID, err)
		}
	}

	events := NewEventService(store, store.clock)
	sum, err := events.Get(ctx, ev.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !sum.IsFull || sum.Registered != 2 {
		t.Fatalf("expected full event with 2 registered, got %+v", sum)
	}

	_, err = mgr.Register(ctx, ev.ID, c.ID)
	var cerr *ConflictError
	if !errors.As(err, &cerr) || !errors.Is(err, ErrEventFull) {
		t.Fatalf("expected EventFull conflict, got %v", err)
	}
	if cerr.Message != "Event is at full capacity." {
		t.Fatalf("unexpected message %q", cerr.Message)
	}
	if len(store.st.attendees) != 2 {
		t.Fatalf("no row may be created for a full event, have %d", len(store.st.attendees))
	}
}

func TestRegisterTwiceConflicts(t *testing.T) {
	ctx := context.Background()
	store, mgr, ev := newRegistrationFixture(5)
	u := store.addUser("Ana", "Cruz", "")

	if _, err := mgr.Register(ctx, ev.ID, u.ID); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, err := mgr.Register(ctx, ev.ID, u.ID)
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected AlreadyRegistered, got %v", err)
	}
}

func TestCancelThenRegisterReusesRow(t *testing.T) {
	ctx := context.Background()
	store, mgr, ev := newRegistrationFixture(1)
	u := store.addUser("Ana", "Cruz", "")

	first, err := mgr.Register(ctx, ev.ID, u.ID)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	cancelled, err := mgr.Cancel(ctx, ev.ID, u.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.AttendanceStatus != models.AttendanceCancelled {
		t.Fatalf("expected cancelled, got %s", cancelled.AttendanceStatus)
	}
	if store.activeAttendees(ev.ID) != 0 {
		t.Fatalf("cancelled row must free its slot")
	}

	again, err := mgr.Register(ctx, ev.ID, u.ID)
	if err != nil {
		t.Fatalf("re-register: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected row %d to be reactivated, got new row %d", first.ID, again.ID)
	}
	if len(store.st.attendees) != 1 || store.activeAttendees(ev.ID) != 1 {
		t.Fatalf("expected exactly one active row")
	}
}

func TestCancelUnknownRegistration(t *testing.T) {
	store, mgr, ev := newRegistrationFixture(1)
	u := store.addUser("Ana", "Cruz", "")
	if _, err := mgr.Cancel(context.Background(), ev.ID, u.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestBatchRegisterIsAtomic(t *testing.T) {
	ctx := context.Background()
	store, mgr, ev := newRegistrationFixture(3)
	var ids []uint
	for _, n := range []string{"Ana", "Ben", "Cy", "Di"} {
		ids = append(ids, store.addUser(n, "Test", "").ID)
	}
	if _, err := mgr.Register(ctx, ev.ID, ids[0]); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := mgr.BatchRegister(ctx, ev.ID, ids[1:])
	if !errors.Is(err, ErrEventFull) {
		t.Fatalf("expected capacity error, got %v", err)
	}
	if err.Error() != "Cannot register all selected users. Only 2 spots remaining." {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if len(store.st.attendees) != 1 {
		t.Fatalf("batch must not create rows when rejected, have %d", len(store.st.attendees))
	}
}

func TestBatchRegisterSkipsActiveAndReactivatesCancelled(t *testing.T) {
	ctx := context.Background()
	store, mgr, ev := newRegistrationFixture(10)
	a := store.addUser("Ana", "Cruz", "")
	b := store.addUser("Ben", "Diaz", "")
	c := store.addUser("Cy", "Eng", "")

	if _, err := mgr.Register(ctx, ev.ID, a.ID); err != nil {
		t.Fatalf("register a: %v", err)
	}
	bRow, err := mgr.Register(ctx, ev.ID, b.ID)
	if err != nil {
		t.Fatalf("register b: %v", err)
	}
	if _, err := mgr.Cancel(ctx, ev.ID, b.ID); err != nil {
		t.Fatalf("cancel b: %v", err)
	}

	res, err := mgr.BatchRegister(ctx, ev.ID, []uint{a.ID, b.ID, c.ID, c.ID})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(res.Skipped) != 1 || res.Skipped[0] != a.ID {
		t.Fatalf("expected user %d skipped, got %v", a.ID, res.Skipped)
	}
	if len(res.Registered) != 2 {
		t.Fatalf("expected 2 newly registered, got %d", len(res.Registered))
	}
	if res.Registered[0].ID != bRow.ID {
		t.Fatalf("expected cancelled row %d reactivated, got %d", bRow.ID, res.Registered[0].ID)
	}
	if len(store.st.attendees) != 3 || store.activeAttendees(ev.ID) != 3 {
		t.Fatalf("expected 3 active rows, have %d/%d", store.activeAttendees(ev.ID), len(store.st.attendees))
	}
}

func TestBatchRegisterUnknownUser(t *testing.T) {
	store, mgr, ev := newRegistrationFixture(10)
	a := store.addUser("Ana", "Cruz", "")

	_, err := mgr.BatchRegister(context.Background(), ev.ID, []uint{a.ID, 999})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(store.st.attendees) != 0 {
		t.Fatalf("no rows may be created")
	}
}

func TestSetAttendanceStatusChecksCapacityOnReactivation(t *testing.T) {
	ctx := context.Background()
	store, mgr, ev := newRegistrationFixture(1)
	a := store.addUser("Ana", "Cruz", "")
	b := store.addUser("Ben", "Diaz", "")

	aRow, err := mgr.Register(ctx, ev.ID, a.ID)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := mgr.Cancel(ctx, ev.ID, a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := mgr.Register(ctx, ev.ID, b.ID); err != nil {
		t.Fatalf("register b: %v", err)
	}

	if _, err := mgr.SetAttendanceStatus(ctx, aRow.ID, models.AttendanceAttended); !errors.Is(err, ErrEventFull) {
		t.Fatalf("expected EventFull, got %v", err)
	}
	if _, err := mgr.SetAttendanceStatus(ctx, aRow.ID, "maybe"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCapacityEditGuard(t *testing.T) {
	ctx := context.Background()
	store, mgr, ev := newRegistrationFixture(3)
	for _, n := range []string{"Ana", "Ben"} {
		u := store.addUser(n, "Test", "")
		if _, err := mgr.Register(ctx, ev.ID, u.ID); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	events := NewEventService(store, store.clock)
	in := EventInput{
		Title: "General Assembly", Description: "Yearly", Date: "2025-09-08", Time: "09:00",
		Location: "Hall", Capacity: 1, Category: "Meeting", Status: models.EventUpcoming,
	}
	_, err := events.Update(ctx, ev.ID, in)
	if !errors.Is(err, ErrCapacityBelowRegistered) {
		t.Fatalf("expected CapacityBelowRegistered, got %v", err)
	}
	if err.Error() != "Capacity cannot be less than current registered attendees (2)." {
		t.Fatalf("unexpected message %q", err.Error())
	}

	in.Capacity = 2
	sum, err := events.Update(ctx, ev.ID, in)
	if err != nil {
		t.Fatalf("update to exact count: %v", err)
	}
	if !sum.IsFull {
		t.Fatalf("expected event to be full at capacity 2")
	}
}
