package otp

import (
	"time"

	"github.com/google/uuid"
)

// Purpose is what a confirmation code authorizes.
type Purpose string

const (
	PurposeLogin                 Purpose = "LOGIN"
	PurposeTransactionAccept     Purpose = "TRANSACTION_ACCEPT"
	PurposeDeviceHandover        Purpose = "DEVICE_HANDOVER"
	PurposeVendorReceipt         Purpose = "VENDOR_RECEIPT_CONFIRMATION"
	PurposeTransactionCompletion Purpose = "TRANSACTION_COMPLETION"
	PurposePaymentConfirm        Purpose = "PAYMENT_CONFIRM"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeTransactionAccept, PurposeDeviceHandover,
		PurposeVendorReceipt, PurposeTransactionCompletion, PurposePaymentConfirm:
		return true
	}
	return false
}

// Status of a gate. ISSUED is the only non-terminal status.
type Status string

const (
	StatusIssued   Status = "ISSUED"
	StatusVerified Status = "VERIFIED"
	StatusExpired  Status = "EXPIRED"
	StatusFailed   Status = "FAILED"
)

// Binding is what a code is tied to. A code only verifies against the same binding.
type Binding struct {
	Phone         string
	Purpose       Purpose
	TransactionID *uuid.UUID
}

// Gate is one issued confirmation code.
type Gate struct {
	ID            uuid.UUID  `db:"id"`
	Phone         string     `db:"phone"`
	Purpose       Purpose    `db:"purpose"`
	TransactionID *uuid.UUID `db:"transaction_id"`
	Amount        *int64     `db:"amount"`
	CodeHash      string     `db:"code_hash"`
	Status        Status     `db:"status"`
	Attempts      int        `db:"attempts"`
	ExpiresAt     time.Time  `db:"expires_at"`
	VerifiedAt    *time.Time `db:"verified_at"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Binding returns the binding the gate was issued for.
func (g *Gate) Binding() Binding {
	return Binding{Phone: g.Phone, Purpose: g.Purpose, TransactionID: g.TransactionID}
}

// Matches reports whether b is the binding the gate was issued for.
func (g *Gate) Matches(b Binding) bool {
	if g.Phone != b.Phone || g.Purpose != b.Purpose {
		return false
	}
	switch {
	case g.TransactionID == nil && b.TransactionID == nil:
		return true
	case g.TransactionID == nil || b.TransactionID == nil:
		return false
	default:
		return *g.TransactionID == *b.TransactionID
	}
}

// ExpiredAt reports whether the code lifetime has elapsed at now.
func (g *Gate) ExpiredAt(now time.Time) bool {
	return !now.Before(g.ExpiresAt)
}
