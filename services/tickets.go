package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"nexus_go/models"
	"nexus_go/utils"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultMaxAttachmentSize is 10 MB per file.
const DefaultMaxAttachmentSize int64 = 10 << 20

// MaxAttachments is the number of files one ticket may carry.
const MaxAttachments = 5

type TicketInput struct {
	Subject      string `json:"subject" validate:"required,min=5,max=255"`
	Message      string `json:"message" validate:"required,min=10,max=5000"`
	Category     string `json:"category" validate:"required,oneof=technical billing account general other"`
	Priority     string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
	ContactName  string `json:"contact_name" validate:"max=255"`
	ContactEmail string `json:"contact_email" validate:"omitempty,email,max=255"`
}

type TicketStatusInput struct {
	Status   string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
	Priority string `json:"priority" validate:"omitempty,oneof=low medium high urgent"`
}

// Upload is one attachment received with a ticket.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// SupportDesk stores support tickets and their attachment blobs.
type SupportDesk struct {
	store             Store
	blobs             BlobStore
	clock             Clock
	log               *logrus.Entry
	MaxAttachmentSize int64
}

func NewSupportDesk(store Store, blobs BlobStore, clock Clock) *SupportDesk {
	return &SupportDesk{
		store:             store,
		blobs:             blobs,
		clock:             clock,
		log:               logrus.WithField("component", "support"),
		MaxAttachmentSize: DefaultMaxAttachmentSize,
	}
}

// Create stores a new open ticket. requester is nil for public submissions,
// which then need a contact name and email.
func (d *SupportDesk) Create(ctx context.Context, requester *uint, in TicketInput, uploads []Upload) (*models.SupportTicket, error) {
	verr := validateStruct(in)
	if requester == nil {
		if strings.TrimSpace(in.ContactName) == "" {
			verr.Add("contact_name", "The contact name field is required.")
		}
		if strings.TrimSpace(in.ContactEmail) == "" {
			verr.Add("contact_email", "The contact email field is required.")
		}
	}
	if len(uploads) > MaxAttachments {
		verr.Add("attachments", fmt.Sprintf("The attachments may not have more than %d items.", MaxAttachments))
	}
	for i, u := range uploads {
		if d.MaxAttachmentSize > 0 && u.Size > d.MaxAttachmentSize {
			verr.Add(fmt.Sprintf("attachments.%d", i),
				fmt.Sprintf("The attachment may not be greater than %d kilobytes.", d.MaxAttachmentSize/1024))
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	reference, err := referenceNumber(d.clock.Now())
	if err != nil {
		return nil, err
	}
	attachments, err := d.upload(ctx, uploads)
	if err != nil {
		return nil, err
	}

	priority := in.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	ticket := &models.SupportTicket{
		ReferenceNumber: reference,
		UserID:          requester,
		ContactName:     strings.TrimSpace(in.ContactName),
		ContactEmail:    strings.TrimSpace(in.ContactEmail),
		Subject:         strings.TrimSpace(in.Subject),
		Message:         in.Message,
		Category:        in.Category,
		Priority:        priority,
		Status:          models.TicketOpen,
		Attachments:     attachments,
	}
	if err := d.store.CreateTicket(ctx, ticket); err != nil {
		d.removeBlobs(ctx, attachments)
		return nil, err
	}

	d.log.WithFields(logrus.Fields{
		"reference":   ticket.ReferenceNumber,
		"attachments": len(attachments),
	}).Info("Support ticket created")
	return ticket, nil
}

func (d *SupportDesk) ListForUser(ctx context.Context, userID uint) ([]models.SupportTicket, error) {
	return d.store.ListTickets(ctx, TicketFilter{UserID: &userID})
}

func (d *SupportDesk) ListAll(ctx context.Context, filter TicketFilter) ([]models.SupportTicket, error) {
	return d.store.ListTickets(ctx, filter)
}

// Get returns a ticket. Members may only read their own tickets.
func (d *SupportDesk) Get(ctx context.Context, id uint, viewer *models.User) (*models.SupportTicket, error) {
	ticket, err := d.store.FindTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	if viewer != nil && viewer.Role == models.RoleMember {
		if ticket.UserID == nil || *ticket.UserID != viewer.ID {
			return nil, ErrForbidden
		}
	}
	return ticket, nil
}

func (d *SupportDesk) UpdateStatus(ctx context.Context, id uint, in TicketStatusInput) (*models.SupportTicket, error) {
	if err := validateStruct(in).OrNil(); err != nil {
		return nil, err
	}
	ticket, err := d.store.FindTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	ticket.Status = in.Status
	if in.Priority != "" {
		ticket.Priority = in.Priority
	}
	ticket.User = nil
	if err := d.store.SaveTicket(ctx, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

// Delete removes the ticket and every stored attachment.
func (d *SupportDesk) Delete(ctx context.Context, id uint) error {
	_, err := d.BatchDelete(ctx, []uint{id})
	return err
}

// BatchDelete removes all listed tickets or none, then their attachments.
func (d *SupportDesk) BatchDelete(ctx context.Context, ids []uint) (int, error) {
	if len(ids) == 0 {
		return 0, NewValidationError("ticket_ids", "The ticket ids field is required.")
	}
	ids = uniqueIDs(ids)

	var attachments []models.TicketAttachment
	err := d.store.Transaction(ctx, func(tx Store) error {
		tickets, err := tx.FindTickets(ctx, ids)
		if err != nil {
			return err
		}
		if len(tickets) != len(ids) {
			if len(ids) == 1 {
				return ErrNotFound
			}
			return NewValidationError("ticket_ids", "The selected ticket ids are invalid.")
		}
		for _, t := range tickets {
			attachments = append(attachments, t.Attachments...)
		}
		return tx.DeleteTickets(ctx, ids)
	})
	if err != nil {
		return 0, err
	}

	d.removeBlobs(ctx, attachments)
	return len(ids), nil
}

func (d *SupportDesk) upload(ctx context.Context, uploads []Upload) ([]models.TicketAttachment, error) {
	attachments := make([]models.TicketAttachment, 0, len(uploads))
	for _, u := range uploads {
		key := path.Join("support_attachments", d.clock.Now().Format("2006/01"),
			uuid.New().String()+strings.ToLower(filepath.Ext(u.Name)))
		url, err := d.blobs.Put(ctx, key, u.Body, u.Size, u.ContentType)
		if err != nil {
			d.removeBlobs(ctx, attachments)
			return nil, fmt.Errorf("store attachment %q: %w", u.Name, err)
		}
		attachments = append(attachments, models.TicketAttachment{
			Path: key,
			Name: filepath.Base(u.Name),
			URL:  url,
		})
	}
	return attachments, nil
}

// removeBlobs is best effort; a missing blob must not fail a delete.
func (d *SupportDesk) removeBlobs(ctx context.Context, attachments []models.TicketAttachment) {
	for _, a := range attachments {
		if err := d.blobs.Delete(ctx, a.Path); err != nil {
			d.log.WithError(err).WithField("path", a.Path).Warn("Failed to delete attachment")
		}
	}
}

// referenceNumber is TICKET-XXXXXXXX-YYYYMMDD.
func referenceNumber(now time.Time) (string, error) {
	id, err := utils.GenerateRandomString(8)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TICKET-%s-%s", strings.ToUpper(id), now.Format("20060102")), nil
}
