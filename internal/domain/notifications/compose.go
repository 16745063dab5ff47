package notifications

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dirtsid3r/cellflip/pkg/events"
)

// recipient is either a literal phone or a user ID field to resolve.
type recipient struct {
	phone   string
	userKey string
}

type draft struct {
	to   recipient
	text string
}

// Rupees formats paise as ₹ with two decimals.
func Rupees(paise int64) string {
	sign := ""
	if paise < 0 {
		sign = "-"
		paise = -paise
	}
	return fmt.Sprintf("%s₹%d.%02d", sign, paise/100, paise%100)
}

var purposeText = map[string]string{
	"LOGIN":                       "log in",
	"TRANSACTION_ACCEPT":          "accept the final offer",
	"DEVICE_HANDOVER":             "confirm the device handover",
	"VENDOR_RECEIPT_CONFIRMATION": "confirm you received the device",
	"TRANSACTION_COMPLETION":      "complete the sale",
	"PAYMENT_CONFIRM":             "confirm the payment",
}

// drafts maps an event to the messages it should produce. Unknown event
// types produce none.
func drafts(env *events.Envelope) []draft {
	s := env.String
	client := recipient{userKey: "client_id"}
	vendor := recipient{userKey: "vendor_id"}

	switch env.EventType {
	case events.TypeOTPIssued:
		action := purposeText[s("purpose")]
		if action == "" {
			action = "continue"
		}
		text := fmt.Sprintf("Your CellFlip code is %s. Use it to %s.", s("code"), action)
		if env.Data["amount"] != nil {
			text += fmt.Sprintf(" Amount: %s.", Rupees(env.Int64("amount")))
		}
		if exp, err := time.Parse(time.RFC3339, s("expires_at")); err == nil {
			text += fmt.Sprintf(" It expires at %s UTC. Never share it.", exp.UTC().Format("15:04"))
		}
		return []draft{{to: recipient{phone: s("phone")}, text: text}}

	case events.TypeUserRegistered:
		return []draft{{to: recipient{phone: s("phone")}, text: fmt.Sprintf("Welcome to CellFlip, %s!", s("full_name"))}}

	case events.TypeListingSubmitted:
		return []draft{{client, fmt.Sprintf("Your %s listing was submitted and is awaiting review.", s("title"))}}

	case events.TypeListingApproved:
		return []draft{{client, fmt.Sprintf("Your %s listing is live. Bidding is open until %s.", s("title"), s("bidding_ends_at"))}}

	case events.TypeListingRejected:
		return []draft{{client, fmt.Sprintf("Your listing was not approved: %s", s("reason"))}}

	case events.TypeListingCancelled:
		return []draft{{client, fmt.Sprintf("Your listing was cancelled: %s", s("reason"))}}

	case events.TypeBidPlaced:
		return []draft{{client, fmt.Sprintf("New bid of %s on your %s.", Rupees(env.Int64("amount")), s("title"))}}

	case events.TypeBidAccepted:
		amount := Rupees(env.Int64("amount"))
		return []draft{
			{vendor, fmt.Sprintf("Your bid of %s on %s was accepted.", amount, s("title"))},
			{client, fmt.Sprintf("You accepted a bid of %s on your %s. An agent will be assigned shortly.", amount, s("title"))},
		}

	case events.TypeBiddingEnded:
		if s("outcome") == "no_bids" {
			return []draft{{client, "Bidding ended without any bids. Your listing was closed."}}
		}
		return nil

	case events.TypeAgentAssigned:
		return []draft{{client, fmt.Sprintf("Agent %s (%s) will pick up your device.", s("agent_name"), s("agent_phone"))}}

	case events.TypeVerificationCompleted:
		return []draft{
			{client, fmt.Sprintf("You accepted the final offer of %s.", Rupees(env.Int64("final_offer")))},
			{vendor, fmt.Sprintf("Device verified. Final price %s after %s in deductions.", Rupees(env.Int64("final_offer")), Rupees(env.Int64("total_deductions")))},
		}

	case events.TypePaymentSettled:
		return []draft{
			{client, fmt.Sprintf("Payment of %s is on its way via %s.", Rupees(env.Int64("client_payout")), strings.ReplaceAll(s("payment_method"), "_", " "))},
			{vendor, fmt.Sprintf("Sale complete. You were charged %s.", Rupees(env.Int64("vendor_charge")))},
		}

	case events.TypeTransactionDisputed:
		text := fmt.Sprintf("A dispute was raised on your transaction: %s", s("reason"))
		return []draft{{client, text}, {vendor, text}}
	}
	return nil
}

// Compose builds the messages for env, resolving user IDs through dir.
func Compose(ctx context.Context, env *events.Envelope, dir Directory) ([]Message, error) {
	var out []Message
	for _, d := range drafts(env) {
		phone := d.to.phone
		if d.to.userKey != "" {
			id, err := uuid.Parse(env.String(d.to.userKey))
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", events.ErrMalformedEnvelope, d.to.userKey, err)
			}
			phone, err = dir.PhoneOf(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to resolve %s: %w", d.to.userKey, err)
			}
		}
		if phone == "" {
			continue
		}
		out = append(out, Message{To: phone, Text: d.text})
	}
	return out, nil
}
