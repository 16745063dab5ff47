package api

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
	"github.com/dirtsid3r/cellflip/internal/domain/transactions"
	"github.com/dirtsid3r/cellflip/internal/domain/users"
	"github.com/dirtsid3r/cellflip/pkg/auth"
)

var errorCodes = []struct {
	err  error
	code connect.Code
}{
	{users.ErrUserNotFound, connect.CodeNotFound},
	{listings.ErrListingNotFound, connect.CodeNotFound},
	{agents.ErrAgentNotFound, connect.CodeNotFound},
	{transactions.ErrTransactionNotFound, connect.CodeNotFound},
	{transactions.ErrSettlementNotFound, connect.CodeNotFound},
	{otp.ErrGateNotFound, connect.CodeNotFound},

	{users.ErrUserAlreadyExists, connect.CodeAlreadyExists},

	{users.ErrInvalidInput, connect.CodeInvalidArgument},
	{listings.ErrMissingDevice, connect.CodeInvalidArgument},
	{listings.ErrInvalidCondition, connect.CodeInvalidArgument},
	{listings.ErrInvalidAskingPrice, connect.CodeInvalidArgument},
	{listings.ErrInvalidIMEI, connect.CodeInvalidArgument},
	{listings.ErrInvalidBattery, connect.CodeInvalidArgument},
	{listings.ErrInvalidAddress, connect.CodeInvalidArgument},
	{listings.ErrReasonRequired, connect.CodeInvalidArgument},
	{listings.ErrUnsupportedPhotoType, connect.CodeInvalidArgument},
	{bids.ErrInvalidBidAmount, connect.CodeInvalidArgument},
	{agents.ErrInvalidAvailability, connect.CodeInvalidArgument},
	{transactions.ErrPickupInPast, connect.CodeInvalidArgument},
	{transactions.ErrIdentityNotConfirmed, connect.CodeInvalidArgument},
	{transactions.ErrInvalidInspection, connect.CodeInvalidArgument},
	{transactions.ErrHandoverPhoto, connect.CodeInvalidArgument},
	{settlement.ErrUnknownMethod, connect.CodeInvalidArgument},
	{otp.ErrInvalidPhone, connect.CodeInvalidArgument},
	{otp.ErrInvalidPurpose, connect.CodeInvalidArgument},
	{otp.ErrInvalidCode, connect.CodeInvalidArgument},
	{otp.ErrGateBindingMismatch, connect.CodeInvalidArgument},
	{transactions.ErrWrongGate, connect.CodeInvalidArgument},

	{users.ErrRoleNotAllowed, connect.CodePermissionDenied},
	{listings.ErrUnauthorized, connect.CodePermissionDenied},
	{bids.ErrOwnerCannotBid, connect.CodePermissionDenied},
	{transactions.ErrForbidden, connect.CodePermissionDenied},

	{otp.ErrResendCooldown, connect.CodeResourceExhausted},

	{listings.ErrInvalidTransition, connect.CodeFailedPrecondition},
	{listings.ErrCannotCancel, connect.CodeFailedPrecondition},
	{listings.ErrListingClosed, connect.CodeFailedPrecondition},
	{bids.ErrBidTooLow, connect.CodeFailedPrecondition},
	{bids.ErrListingNotOpen, connect.CodeFailedPrecondition},
	{bids.ErrBiddingClosed, connect.CodeFailedPrecondition},
	{bids.ErrBiddingStillOpen, connect.CodeFailedPrecondition},
	{bids.ErrNoBids, connect.CodeFailedPrecondition},
	{transactions.ErrTransactionClosed, connect.CodeFailedPrecondition},
	{transactions.ErrStageOrder, connect.CodeFailedPrecondition},
	{transactions.ErrAgentUnavailable, connect.CodeFailedPrecondition},
	{transactions.ErrNothingToResend, connect.CodeFailedPrecondition},
	{otp.ErrGateAlreadyUsed, connect.CodeFailedPrecondition},
	{otp.ErrGateExpired, connect.CodeFailedPrecondition},
	{otp.ErrGateFailed, connect.CodeFailedPrecondition},

	{auth.ErrNoPrincipal, connect.CodeUnauthenticated},
}

// toConnectError maps domain sentinels to connect codes. Unknown errors are
// reported as internal without leaking their text.
func toConnectError(err error) error {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return connect.NewError(m.code, err)
		}
	}
	return connect.NewError(connect.CodeInternal, errors.New("internal error"))
}

func invalidArgument(msg string) error {
	return connect.NewError(connect.CodeInvalidArgument, errors.New(msg))
}
