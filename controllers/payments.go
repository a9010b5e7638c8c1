package controllers

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"nexus_go/models"
	"nexus_go/services"
	"nexus_go/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type PaymentController struct {
	payments *services.PaymentService
	clock    services.Clock
}

func NewPaymentController(payments *services.PaymentService, clock services.Clock) *PaymentController {
	return &PaymentController{payments: payments, clock: clock}
}

// paymentRequest is the wire form of a payment. A user_id wins over the
// manual name fields.
type paymentRequest struct {
	RequirementID uint             `json:"requirement_id"`
	UserID        *uint            `json:"user_id"`
	FirstName     string           `json:"first_name"`
	MiddleName    string           `json:"middle_name"`
	LastName      string           `json:"last_name"`
	StudentID     string           `json:"student_id"`
	AmountPaid    *decimal.Decimal `json:"amount_paid"`
	PaidAt        string           `json:"paid_at"`
	Status        string           `json:"status"`
	PaymentMethod string           `json:"payment_method"`
	Notes         string           `json:"notes"`
}

func (r paymentRequest) toInput() (services.PaymentInput, error) {
	verr := &services.ValidationError{}
	in := services.PaymentInput{
		RequirementID: r.RequirementID,
		Status:        r.Status,
		PaymentMethod: r.PaymentMethod,
		Notes:         r.Notes,
	}
	switch {
	case r.UserID != nil && *r.UserID != 0:
		in.Identity = models.LinkedUser{UserID: *r.UserID}
	case strings.TrimSpace(r.FirstName) != "" || strings.TrimSpace(r.LastName) != "":
		in.Identity = models.ManualPayer{
			FirstName:  r.FirstName,
			MiddleName: r.MiddleName,
			LastName:   r.LastName,
			StudentID:  r.StudentID,
		}
	}
	if r.AmountPaid == nil {
		verr.Add("amount_paid", "The amount paid field is required.")
	} else {
		in.AmountPaid = *r.AmountPaid
	}

	if s := strings.TrimSpace(r.PaidAt); s != "" {
		var parsed *time.Time
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
				parsed = &t
				break
			}
		}
		if parsed == nil {
			verr.Add("paid_at", "The paid at field must be a valid date.")
		}
		in.PaidAt = parsed
	}
	return in, verr.OrNil()
}

func paymentFilter(c *fiber.Ctx) services.PaymentFilter {
	return services.PaymentFilter{
		RequirementID:   uint(c.QueryInt("requirement_id", 0)),
		Status:          c.Query("status"),
		Search:          c.Query("search"),
		ManualStudentID: c.Query("student_id"),
	}
}

func (pc *PaymentController) GetPayments(c *fiber.Ctx) error {
	payments, err := pc.payments.List(c.UserContext(), paymentFilter(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"payments": utils.ToPaymentDTOs(payments)})
}

func (pc *PaymentController) GetPayment(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	payment, err := pc.payments.Get(c.UserContext(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"payment": utils.ToPaymentDTO(*payment)})
}

func (pc *PaymentController) GetStats(c *fiber.Ctx) error {
	stats, err := pc.payments.Stats(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"stats": stats})
}

func (pc *PaymentController) CreatePayment(c *fiber.Ctx) error {
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in, err := req.toInput()
	if err != nil {
		return respondError(c, err)
	}
	payment, err := pc.payments.Create(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"message": "Payment recorded successfully",
		"payment": utils.ToPaymentDTO(*payment),
	})
}

func (pc *PaymentController) UpdatePayment(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	var req paymentRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	in, err := req.toInput()
	if err != nil {
		return respondError(c, err)
	}
	payment, err := pc.payments.Update(c.UserContext(), id, in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "Payment updated successfully",
		"payment": utils.ToPaymentDTO(*payment),
	})
}

func (pc *PaymentController) DeletePayment(c *fiber.Ctx) error {
	id, ok := paramID(c, "id")
	if !ok {
		return badRequest(c, "Invalid payment ID")
	}
	if err := pc.payments.Delete(c.UserContext(), id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"message": "Payment deleted successfully"})
}

// BatchDeletePayments removes every listed payment or none of them.
func (pc *PaymentController) BatchDeletePayments(c *fiber.Ctx) error {
	var req struct {
		PaymentIDs []uint `json:"payment_ids"`
	}
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	n, err := pc.payments.BatchDelete(c.UserContext(), req.PaymentIDs)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": fmt.Sprintf("%d payment(s) deleted successfully", n),
		"deleted": n,
	})
}

// ExportPayments streams the filtered payment list as CSV, or XLSX with ?format=xlsx.
func (pc *PaymentController) ExportPayments(c *fiber.Ctx) error {
	payments, err := pc.payments.List(c.UserContext(), paymentFilter(c))
	if err != nil {
		return respondError(c, err)
	}

	table := utils.Table{
		Sheet:  "Payments",
		Header: []string{"ID", "Payer", "Student ID", "Requirement", "Amount Paid", "Status", "Payment Method", "Paid At", "Recorded At"},
	}
	for _, p := range utils.ToPaymentDTOs(payments) {
		requirement := ""
		if p.Requirement != nil {
			requirement = p.Requirement.Title
		}
		paidAt := ""
		if p.PaidAt != nil {
			paidAt = p.PaidAt.Format("2006-01-02 15:04")
		}
		table.Rows = append(table.Rows, []interface{}{
			p.ID, p.PayerName, p.StudentID, requirement, p.AmountPaid.StringFixed(2),
			p.Status, p.PaymentMethod, paidAt, p.CreatedAt.Format("2006-01-02 15:04"),
		})
	}

	stamp := pc.clock.Now().Format("2006-01-02_150405")
	var buf bytes.Buffer
	if c.Query("format") == "xlsx" {
		if err := utils.WriteXLSX(&buf, table); err != nil {
			return respondError(c, err)
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="payments_%s.xlsx"`, stamp))
		return c.Send(buf.Bytes())
	}

	if err := utils.WriteCSV(&buf, table); err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="payments_%s.csv"`, stamp))
	return c.Send(buf.Bytes())
}
