package transactions

import (
	"errors"
	"fmt"
)

var (
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrTransactionClosed    = errors.New("transaction is closed")
	ErrStageOrder           = errors.New("verification step out of order")
	ErrForbidden            = errors.New("not allowed to act on this transaction")
	ErrAgentUnavailable     = errors.New("agent is offline")
	ErrPickupInPast         = errors.New("pickup time must be in the future")
	ErrIdentityNotConfirmed = errors.New("all identity checks must pass and an ID photo is required")
	ErrInvalidInspection    = errors.New("inspection needs a condition, battery health between 0 and 100 and at least one photo")
	ErrHandoverPhoto        = errors.New("handover photo is required")
	ErrWrongGate            = errors.New("code does not belong to the current step")
	ErrNothingToResend      = errors.New("no code is pending for this transaction")
	ErrSettlementNotFound   = errors.New("settlement not found")
)

// StageError reports an attempt to skip or repeat a verification step.
type StageError struct {
	Current Stage
	Wanted  Stage
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: cannot move to %s from %s", ErrStageOrder, e.Wanted, e.Current)
}

func (e *StageError) Unwrap() error {
	return ErrStageOrder
}
