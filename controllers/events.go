package controllers

import (
	"bytes"
	"fmt"

	"nexus_go/middleware"
	"nexus_go/models"
	"nexus_go/services"
	"nexus_go/utils"

	"github.com/gofiber/fiber/v2"
)

type EventController struct {
	events   *services.EventService
	capacity *services.CapacityManager
}

func NewEventController(events *services.EventService, capacity *services.CapacityManager) *EventController {
	return &EventController{events: events, capacity: capacity}
}

// GetEvents lists events with their registered counts. Members only see
// upcoming and ongoing events.
func (ec *EventController) GetEvents(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	var events []services.EventSummary
	if utils.IsManagementRole(user.Role) {
		filter := services.EventFilter{Search: c.Query("search")}
		if status := c.Query("status"); status != "" && status != "all" {
			filter.Statuses = []string{status}
		}
		events, err = ec.events.List(c.UserContext(), filter)
	} else {
		events, err = ec.events.ListVisible(c.UserContext(), c.Query("search"))
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

func (ec *EventController) GetEvent(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event ID")
	}
	event, err := ec.events.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"event": event})
}

func (ec *EventController) GetStats(c *fiber.Ctx) error {
	stats, err := ec.events.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

func (ec *EventController) CreateEvent(c *fiber.Ctx) error {
	var in services.EventInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	event, err := ec.events.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Event created successfully",
		"event":   event,
	})
}

func (ec *EventController) UpdateEvent(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event ID")
	}
	var in services.EventInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	event, err := ec.events.Update(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Event updated successfully",
		"event":   event,
	})
}

func (ec *EventController) DeleteEvent(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event ID")
	}
	if err := ec.events.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Event deleted successfully"})
}

func (ec *EventController) GetAttendees(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event ID")
	}
	attendees, err := ec.events.Attendees(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"attendees": utils.ToAttendeeDTOs(attendees)})
}

// RegisterAttendees registers a list of users in one transaction.
func (ec *EventController) RegisterAttendees(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event ID")
	}
	var req struct {
		UserIDs []uint `json:"user_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	result, err := ec.capacity.BatchRegister(c.UserContext(), id, req.UserIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":          fmt.Sprintf("%d attendee(s) registered successfully", len(result.Registered)),
		"registered":       utils.ToAttendeeDTOs(result.Registered),
		"skipped_user_ids": result.Skipped,
	})
}

// Register signs the current user up for an event.
func (ec *EventController) Register(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event ID")
	}
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	attendee, err := ec.capacity.Register(c.UserContext(), id, user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":  "Successfully registered for the event",
		"attendee": attendee,
	})
}

// CancelRegistration cancels the current user's registration.
func (ec *EventController) CancelRegistration(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event ID")
	}
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	attendee, err := ec.capacity.Cancel(c.UserContext(), id, user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":  "Registration cancelled",
		"attendee": attendee,
	})
}

func (ec *EventController) UpdateAttendanceStatus(c *fiber.Ctx) error {
	id, ok := paramID(c, "attendeeId")
	if !ok {
		return badRequest(c, "Invalid attendee ID")
	}
	var req struct {
		AttendanceStatus string `json:"attendance_status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	attendee, err := ec.capacity.SetAttendanceStatus(c.UserContext(), id, req.AttendanceStatus)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message":  "Attendance status updated",
		"attendee": attendee,
	})
}

func (ec *EventController) RemoveAttendee(c *fiber.Ctx) error {
	id, ok := paramID(c, "attendeeId")
	if !ok {
		return badRequest(c, "Invalid attendee ID")
	}
	if err := ec.capacity.RemoveAttendee(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Attendee removed"})
}

// ExportRoster downloads the attendee list of one event as XLSX.
func (ec *EventController) ExportRoster(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid event ID")
	}
	event, err := ec.events.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	attendees, err := ec.events.Attendees(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}

	table := utils.Table{
		Sheet:  "Attendees",
		Header: []string{"#", "Name", "Student ID", "Email", "Program", "Year", "Status", "Registered At"},
	}
	for i, a := range utils.ToAttendeeDTOs(attendees) {
		table.Rows = append(table.Rows, []interface{}{
			i + 1, a.User.Name, a.User.StudentID, a.User.Email, a.User.Program, a.User.Year,
			a.AttendanceStatus, a.RegisteredAt.Format("2006-01-02 15:04"),
		})
	}

	var buf bytes.Buffer
	if err := utils.WriteXLSX(&buf, table); err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="event_%d_%s_roster.xlsx"`,
		event.ID, event.Date.Format("20060102")))
	return c.Send(buf.Bytes())
}

// eventIsOpen reports whether members may still register.
func eventIsOpen(e services.EventSummary) bool {
	return (e.Status == models.EventUpcoming || e.Status == models.EventOngoing) && !e.IsFull
}
