package services

import (
	"context"
	"errors"
	"fmt"

	"nexus_go/models"

	"github.com/sirupsen/logrus"
)

// BatchRegistration reports what a batch registration did.
type BatchRegistration struct {
	Registered []models.Attendee `json:"registered"`
	Skipped    []uint            `json:"skipped_user_ids"`
}

// CapacityManager owns attendee registration. The number of non-cancelled
// attendee rows of an event never exceeds its capacity.
type CapacityManager struct {
	store Store
	clock Clock
	log   *logrus.Entry
}

func NewCapacityManager(store Store, clock Clock) *CapacityManager {
	return &CapacityManager{store: store, clock: clock, log: logrus.WithField("component", "registrations")}
}

// Register signs one user up. A cancelled registration is reactivated.
func (m *CapacityManager) Register(ctx context.Context, eventID, userID uint) (*models.Attendee, error) {
	var attendee *models.Attendee
	err := m.store.Transaction(ctx, func(tx Store) error {
		event, err := tx.FindEvent(ctx, eventID)
		if err != nil {
			return err
		}
		if err := userExists(ctx, tx, userID); err != nil {
			return err
		}

		existing, err := tx.FindAttendeeByUser(ctx, eventID, userID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if existing != nil && existing.IsActive() {
			return conflict(ErrAlreadyRegistered, "User is already registered for this event.")
		}

		registered, err := tx.CountActiveAttendees(ctx, eventID)
		if err != nil {
			return err
		}
		if registered >= event.Capacity {
			return conflict(ErrEventFull, "Event is at full capacity.")
		}

		attendee, err = m.activate(ctx, tx, eventID, userID, existing)
		return err
	})
	if err != nil {
		return nil, err
	}
	return attendee, nil
}

// BatchRegister registers every listed user or none of them. The whole list,
// duplicates removed, must fit in the remaining slots. Users already
// registered are skipped.
func (m *CapacityManager) BatchRegister(ctx context.Context, eventID uint, userIDs []uint) (*BatchRegistration, error) {
	if len(userIDs) == 0 {
		return nil, NewValidationError("user_ids", "The user ids field is required.")
	}
	ids := uniqueIDs(userIDs)
	if len(ids) == 0 {
		return nil, NewValidationError("user_ids", "The selected user ids are invalid.")
	}

	result := &BatchRegistration{Registered: []models.Attendee{}, Skipped: []uint{}}
	err := m.store.Transaction(ctx, func(tx Store) error {
		event, err := tx.FindEvent(ctx, eventID)
		if err != nil {
			return err
		}

		users, err := tx.FindUsers(ctx, ids)
		if err != nil {
			return err
		}
		known := make(map[uint]struct{}, len(users))
		for _, u := range users {
			known[u.ID] = struct{}{}
		}
		verr := &ValidationError{}
		for i, id := range ids {
			if _, ok := known[id]; !ok {
				verr.Add(fmt.Sprintf("user_ids.%d", i), "The selected user id is invalid.")
			}
		}
		if err := verr.OrNil(); err != nil {
			return err
		}

		rows, err := tx.ListAttendees(ctx, eventID)
		if err != nil {
			return err
		}
		existing := make(map[uint]*models.Attendee, len(rows))
		registered := 0
		for i := range rows {
			existing[rows[i].UserID] = &rows[i]
			if rows[i].IsActive() {
				registered++
			}
		}

		remaining := event.Capacity - registered
		if remaining < 0 {
			remaining = 0
		}
		if len(ids) > remaining {
			return conflict(ErrEventFull,
				fmt.Sprintf("Cannot register all selected users. Only %d spots remaining.", remaining))
		}

		for _, id := range ids {
			if a, ok := existing[id]; ok && a.IsActive() {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			a, err := m.activate(ctx, tx, eventID, id, existing[id])
			if err != nil {
				return err
			}
			result.Registered = append(result.Registered, *a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"event_id":   eventID,
		"registered": len(result.Registered),
		"skipped":    len(result.Skipped),
	}).Info("Batch registration completed")
	return result, nil
}

// Cancel marks a user's registration cancelled, freeing its slot. Cancelling
// twice is not an error.
func (m *CapacityManager) Cancel(ctx context.Context, eventID, userID uint) (*models.Attendee, error) {
	var attendee *models.Attendee
	err := m.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.FindEvent(ctx, eventID); err != nil {
			return err
		}
		var err error
		attendee, err = tx.FindAttendeeByUser(ctx, eventID, userID)
		if err != nil {
			return err
		}
		if !attendee.IsActive() {
			return nil
		}
		attendee.AttendanceStatus = models.AttendanceCancelled
		return tx.SaveAttendee(ctx, attendee)
	})
	if err != nil {
		return nil, err
	}
	return attendee, nil
}

// SetAttendanceStatus changes a row's status. Moving a cancelled row back to
// an active status needs a free slot.
func (m *CapacityManager) SetAttendanceStatus(ctx context.Context, attendeeID uint, status string) (*models.Attendee, error) {
	switch status {
	case models.AttendanceRegistered, models.AttendanceAttended, models.AttendanceCancelled:
	default:
		return nil, NewValidationError("attendance_status", "The selected attendance status is invalid.")
	}

	var attendee *models.Attendee
	err := m.store.Transaction(ctx, func(tx Store) error {
		var err error
		attendee, err = tx.FindAttendee(ctx, attendeeID)
		if err != nil {
			return err
		}
		if !attendee.IsActive() && status != models.AttendanceCancelled {
			event, err := tx.FindEvent(ctx, attendee.EventID)
			if err != nil {
				return err
			}
			registered, err := tx.CountActiveAttendees(ctx, attendee.EventID)
			if err != nil {
				return err
			}
			if registered >= event.Capacity {
				return conflict(ErrEventFull, "Event is at full capacity.")
			}
		}
		attendee.AttendanceStatus = status
		attendee.Event, attendee.User = nil, nil
		return tx.SaveAttendee(ctx, attendee)
	})
	if err != nil {
		return nil, err
	}
	return attendee, nil
}

// RemoveAttendee deletes the row entirely.
func (m *CapacityManager) RemoveAttendee(ctx context.Context, attendeeID uint) error {
	return m.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.FindAttendee(ctx, attendeeID); err != nil {
			return err
		}
		return tx.DeleteAttendee(ctx, attendeeID)
	})
}

func (m *CapacityManager) activate(ctx context.Context, tx Store, eventID, userID uint, existing *models.Attendee) (*models.Attendee, error) {
	now := m.clock.Now()
	if existing != nil {
		existing.AttendanceStatus = models.AttendanceRegistered
		existing.RegisteredAt = now
		existing.Event, existing.User = nil, nil
		if err := tx.SaveAttendee(ctx, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}
	a := &models.Attendee{
		EventID:          eventID,
		UserID:           userID,
		AttendanceStatus: models.AttendanceRegistered,
		RegisteredAt:     now,
	}
	if err := tx.CreateAttendee(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func userExists(ctx context.Context, store Store, userID uint) error {
	if userID == 0 {
		return NewValidationError("user_id", "The user id field is required.")
	}
	if _, err := store.FindUser(ctx, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return NewValidationError("user_id", "The selected user id is invalid.")
		}
		return err
	}
	return nil
}
