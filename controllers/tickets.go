package controllers

import (
	"fmt"
	"mime/multipart"
	"strings"

	"nexus_go/middleware"
	"nexus_go/services"
	"nexus_go/utils"

	"github.com/gofiber/fiber/v2"
)

type SupportTicketController struct {
	desk              *services.SupportDesk
	allowedExtensions []string
}

func NewSupportTicketController(desk *services.SupportDesk, allowedExtensions []string) *SupportTicketController {
	if len(allowedExtensions) == 0 {
		allowedExtensions = utils.AttachmentExtensions
	}
	return &SupportTicketController{desk: desk, allowedExtensions: allowedExtensions}
}

// ticketInput reads the ticket fields from a JSON body or a multipart form.
func ticketInput(c *fiber.Ctx) (services.TicketInput, []*multipart.FileHeader, error) {
	var in services.TicketInput
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		err := c.BodyParser(&in)
		return in, nil, err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return in, nil, err
	}
	in = services.TicketInput{
		Subject:      utils.SanitizeString(c.FormValue("subject")),
		Message:      utils.SanitizeString(c.FormValue("message")),
		Category:     c.FormValue("category"),
		Priority:     c.FormValue("priority"),
		ContactName:  utils.SanitizeString(c.FormValue("contact_name")),
		ContactEmail: utils.SanitizeString(c.FormValue("contact_email")),
	}
	files := append(form.File["attachments"], form.File["attachments[]"]...)
	return in, files, nil
}

// CreateTicket accepts tickets from members and from anonymous visitors.
func (tc *SupportTicketController) CreateTicket(c *fiber.Ctx) error {
	in, files, err := ticketInput(c)
	if err != nil {
		return badRequest(c, "Invalid request body")
	}

	verr := &services.ValidationError{}
	for i, fh := range files {
		if !utils.IsValidFileExtension(fh.Filename, tc.allowedExtensions) {
			verr.Add(fmt.Sprintf("attachments.%d", i),
				"The attachment must be a file of type: "+strings.Join(tc.allowedExtensions, ", ")+".")
		}
	}
	if err := verr.OrNil(); err != nil {
		return respondError(c, err)
	}

	uploads := make([]services.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return badRequest(c, "Failed to read attachment")
		}
		defer f.Close()
		uploads = append(uploads, services.Upload{
			Name:        fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
		})
	}

	var requester *uint
	if user, err := middleware.GetCurrentUser(c); err == nil {
		id := user.ID
		requester = &id
	}

	ticket, err := tc.desk.Create(c.UserContext(), requester, in, uploads)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message":          "Support ticket submitted successfully",
		"reference_number": ticket.ReferenceNumber,
		"ticket":           ticket,
	})
}

// GetMyTickets lists the current user's tickets.
func (tc *SupportTicketController) GetMyTickets(c *fiber.Ctx) error {
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	tickets, err := tc.desk.ListForUser(c.UserContext(), user.ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tickets": tickets})
}

// GetTickets lists every ticket for the support desk.
func (tc *SupportTicketController) GetTickets(c *fiber.Ctx) error {
	tickets, err := tc.desk.ListAll(c.UserContext(), services.TicketFilter{Status: c.Query("status")})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"tickets": tickets})
}

func (tc *SupportTicketController) GetTicket(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid ticket ID")
	}
	user, err := middleware.GetCurrentUser(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}
	ticket, err := tc.desk.Get(c.UserContext(), id, user)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ticket": ticket})
}

func (tc *SupportTicketController) UpdateTicketStatus(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid ticket ID")
	}
	var in services.TicketStatusInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "Invalid request body")
	}
	ticket, err := tc.desk.UpdateStatus(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Ticket updated successfully",
		"ticket":  ticket,
	})
}

func (tc *SupportTicketController) DeleteTicket(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid ticket ID")
	}
	if err := tc.desk.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Ticket deleted successfully"})
}

func (tc *SupportTicketController) BatchDeleteTickets(c *fiber.Ctx) error {
	ids, err := bodyIDs(c)
	if err != nil {
		return respondError(c, err)
	}
	n, err := tc.desk.BatchDelete(c.UserContext(), ids)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%d ticket(s) deleted successfully", n),
		"deleted": n,
	})
}
