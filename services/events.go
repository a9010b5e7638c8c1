package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nexus_go/models"

	"github.com/sirupsen/logrus"
)

type EventInput struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Date        string `json:"date" validate:"required"`
	Time        string `json:"time" validate:"required"`
	Location    string `json:"location" validate:"required,max=255"`
	Capacity    int    `json:"capacity" validate:"required,min=1"`
	Category    string `json:"category" validate:"required,max=255"`
	Status      string `json:"status" validate:"required,oneof=upcoming ongoing completed cancelled"`
}

// EventSummary is an event with its live registration count.
type EventSummary struct {
	models.Event
	Registered int  `json:"registered"`
	IsFull     bool `json:"is_full"`
}

// EventStats counts events by status.
type EventStats struct {
	Total     int `json:"total"`
	Upcoming  int `json:"upcoming"`
	Ongoing   int `json:"ongoing"`
	Completed int `json:"completed"`
	Cancelled int `json:"cancelled"`
}

// EventService is the event catalogue: event CRUD and roster reads.
type EventService struct {
	store Store
	clock Clock
	log   *logrus.Entry
}

func NewEventService(store Store, clock Clock) *EventService {
	return &EventService{store: store, clock: clock, log: logrus.WithField("component", "events")}
}

func (s *EventService) List(ctx context.Context, filter EventFilter) ([]EventSummary, error) {
	events, err := s.store.ListEvents(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(events))
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	counts, err := s.store.CountActiveAttendeesByEvent(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]EventSummary, 0, len(events))
	for _, e := range events {
		out = append(out, summarizeEvent(e, counts[e.ID]))
	}
	return out, nil
}

// ListVisible returns the events members may see and register for.
func (s *EventService) ListVisible(ctx context.Context, search string) ([]EventSummary, error) {
	return s.List(ctx, EventFilter{
		Search:   search,
		Statuses: []string{models.EventUpcoming, models.EventOngoing},
	})
}

func (s *EventService) Get(ctx context.Context, id uint) (*EventSummary, error) {
	e, err := s.store.FindEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	n, err := s.store.CountActiveAttendees(ctx, id)
	if err != nil {
		return nil, err
	}
	sum := summarizeEvent(*e, n)
	return &sum, nil
}

func (s *EventService) Stats(ctx context.Context) (EventStats, error) {
	events, err := s.store.ListEvents(ctx, EventFilter{})
	if err != nil {
		return EventStats{}, err
	}
	stats := EventStats{Total: len(events)}
	for _, e := range events {
		switch e.Status {
		case models.EventUpcoming:
			stats.Upcoming++
		case models.EventOngoing:
			stats.Ongoing++
		case models.EventCompleted:
			stats.Completed++
		case models.EventCancelled:
			stats.Cancelled++
		}
	}
	return stats, nil
}

// Attendees lists every attendee row of an event, cancelled ones included.
func (s *EventService) Attendees(ctx context.Context, eventID uint) ([]models.Attendee, error) {
	if _, err := s.store.FindEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.store.ListAttendees(ctx, eventID)
}

// Create stores a new event. The date may not be before today.
func (s *EventService) Create(ctx context.Context, in EventInput) (*EventSummary, error) {
	e := models.Event{}
	date, err := s.parse(in)
	if err != nil {
		return nil, err
	}
	today := startOfDay(s.clock.Now())
	if date.Before(today) {
		return nil, NewValidationError("date", "The date must be a date after or equal to today.")
	}
	fill(&e, in, date)
	if err := s.store.CreateEvent(ctx, &e); err != nil {
		return nil, err
	}
	sum := summarizeEvent(e, 0)
	return &sum, nil
}

// Update saves new event fields. Capacity may not drop below the number of
// non-cancelled registrations.
func (s *EventService) Update(ctx context.Context, id uint, in EventInput) (*EventSummary, error) {
	date, err := s.parse(in)
	if err != nil {
		return nil, err
	}

	var (
		event      *models.Event
		registered int
	)
	err = s.store.Transaction(ctx, func(tx Store) error {
		var err error
		event, err = tx.FindEvent(ctx, id)
		if err != nil {
			return err
		}
		registered, err = tx.CountActiveAttendees(ctx, id)
		if err != nil {
			return err
		}
		if err := checkCapacityEdit(in.Capacity, registered); err != nil {
			return err
		}
		fill(event, in, date)
		event.Attendees = nil
		return tx.SaveEvent(ctx, event)
	})
	if err != nil {
		return nil, err
	}
	sum := summarizeEvent(*event, registered)
	return &sum, nil
}

// Delete removes the event and its attendee rows.
func (s *EventService) Delete(ctx context.Context, id uint) error {
	if _, err := s.store.FindEvent(ctx, id); err != nil {
		return err
	}
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return err
	}
	s.log.WithField("event_id", id).Info("Event deleted")
	return nil
}

func (s *EventService) parse(in EventInput) (time.Time, error) {
	verr := validateStruct(in)
	date, err := parseDate(in.Date, s.clock.Now().Location())
	if in.Date != "" && err != nil {
		verr.Add("date", "The date is not a valid date.")
	}
	if in.Time != "" {
		if _, err := time.Parse("15:04", strings.TrimSpace(in.Time)); err != nil {
			verr.Add("time", "The time does not match the format H:i.")
		}
	}
	return date, verr.OrNil()
}

func fill(e *models.Event, in EventInput, date time.Time) {
	e.Title = strings.TrimSpace(in.Title)
	e.Description = in.Description
	e.Date = date
	e.Location = strings.TrimSpace(in.Location)
	e.Capacity = in.Capacity
	e.Category = strings.TrimSpace(in.Category)
	e.Status = in.Status
	if t, err := time.Parse("15:04", strings.TrimSpace(in.Time)); err == nil {
		e.Time = t.Format("15:04")
	}
}

func summarizeEvent(e models.Event, registered int) EventSummary {
	return EventSummary{Event: e, Registered: registered, IsFull: registered >= e.Capacity}
}

// checkCapacityEdit rejects a capacity below the current registrations.
func checkCapacityEdit(capacity, registered int) error {
	if capacity < registered {
		return conflict(ErrCapacityBelowRegistered,
			fmt.Sprintf("Capacity cannot be less than current registered attendees (%d).", registered))
	}
	return nil
}
