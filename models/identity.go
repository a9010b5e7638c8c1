package models

import "strings"

// PaymentIdentity is who a payment belongs to: either a registered account
// (LinkedUser) or a manually entered payer (ManualPayer).
type PaymentIdentity interface {
	isPaymentIdentity()
}

// LinkedUser identifies the payer by account id.
type LinkedUser struct {
	UserID uint
}

// ManualPayer identifies a payer without an account.
type ManualPayer struct {
	FirstName  string
	MiddleName string
	LastName   string
	StudentID  string
}

func (LinkedUser) isPaymentIdentity()  {}
func (ManualPayer) isPaymentIdentity() {}

// Identity decodes the row's identity columns.
func (p Payment) Identity() PaymentIdentity {
	if p.IsLinked() {
		return LinkedUser{UserID: *p.UserID}
	}
	return ManualPayer{
		FirstName:  deref(p.FirstName),
		MiddleName: deref(p.MiddleName),
		LastName:   deref(p.LastName),
		StudentID:  deref(p.StudentID),
	}
}

// SetIdentity encodes id into the row. A linked user always clears the manual columns.
func (p *Payment) SetIdentity(id PaymentIdentity) {
	switch v := id.(type) {
	case LinkedUser:
		uid := v.UserID
		p.UserID = &uid
		p.FirstName, p.MiddleName, p.LastName, p.StudentID = nil, nil, nil, nil
		p.User = nil
	case ManualPayer:
		p.UserID = nil
		p.User = nil
		p.FirstName = optional(v.FirstName)
		p.MiddleName = optional(v.MiddleName)
		p.LastName = optional(v.LastName)
		p.StudentID = optional(v.StudentID)
	}
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
