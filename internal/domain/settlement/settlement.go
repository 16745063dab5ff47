// Package settlement splits a final offer between client, agent and platform.
package settlement

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNegativeOffer = errors.New("final offer must not be negative")
	ErrInvalidRate   = errors.New("rate must be between 0 and 10000 basis points")
	ErrUnknownMethod = errors.New("unknown payment method")
)

// PaymentMethod is how the client is paid out.
type PaymentMethod string

const (
	PaymentUPI          PaymentMethod = "UPI"
	PaymentBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentCash         PaymentMethod = "CASH"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentUPI, PaymentBankTransfer, PaymentCash:
		return true
	}
	return false
}

// Rates are basis points of the final offer (500 = 5%).
type Rates struct {
	AgentCommissionBps int64
	PlatformFeeBps     int64
}

func DefaultRates() Rates {
	return Rates{AgentCommissionBps: 500, PlatformFeeBps: 200}
}

func (r Rates) Validate() error {
	if r.AgentCommissionBps < 0 || r.AgentCommissionBps > 10_000 ||
		r.PlatformFeeBps < 0 || r.PlatformFeeBps > 10_000 {
		return ErrInvalidRate
	}
	return nil
}

// Breakdown is the computed split. All amounts are paise.
// The client receives the full final offer; the vendor funds commission and fee on top,
// so VendorCharge == ClientPayout + AgentCommission + PlatformFee.
type Breakdown struct {
	FinalOffer      int64
	ClientPayout    int64
	AgentCommission int64
	PlatformFee     int64
	VendorCharge    int64
}

// Compute splits finalOffer. Percentages round down to the paisa.
func Compute(finalOffer int64, rates Rates) (Breakdown, error) {
	if finalOffer < 0 {
		return Breakdown{}, ErrNegativeOffer
	}
	if err := rates.Validate(); err != nil {
		return Breakdown{}, err
	}

	commission := finalOffer * rates.AgentCommissionBps / 10_000
	fee := finalOffer * rates.PlatformFeeBps / 10_000

	return Breakdown{
		FinalOffer:      finalOffer,
		ClientPayout:    finalOffer,
		AgentCommission: commission,
		PlatformFee:     fee,
		VendorCharge:    finalOffer + commission + fee,
	}, nil
}

// Settlement is the persisted, at-most-once record of a transaction's payout.
type Settlement struct {
	TransactionID uuid.UUID     `db:"transaction_id"`
	Breakdown                   // db columns mapped by the repository
	PaymentMethod PaymentMethod `db:"payment_method"`
	SettledAt     time.Time     `db:"settled_at"`
}
