package listings

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a listing.
type Status string

const (
	StatusSubmitted              Status = "submitted"
	StatusUnderReview            Status = "under_review"
	StatusApproved               Status = "approved"
	StatusRejected               Status = "rejected"
	StatusBiddingActive          Status = "bidding_active"
	StatusBiddingEnded           Status = "bidding_ended"
	StatusPickupScheduled        Status = "pickup_scheduled"
	StatusVerificationInProgress Status = "verification_in_progress"
	StatusCompleted              Status = "completed"
	StatusCancelled              Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusSubmitted:              {StatusUnderReview, StatusCancelled},
	StatusUnderReview:            {StatusApproved, StatusRejected, StatusCancelled},
	StatusApproved:               {StatusBiddingActive},
	StatusBiddingActive:          {StatusBiddingEnded, StatusCancelled},
	StatusBiddingEnded:           {StatusPickupScheduled, StatusCancelled},
	StatusPickupScheduled:        {StatusVerificationInProgress, StatusCancelled},
	StatusVerificationInProgress: {StatusCompleted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Terminal statuses never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRejected || s == StatusCancelled
}

func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok || s.Terminal()
}

// Condition is the self-reported or inspected device condition.
type Condition string

const (
	ConditionExcellent Condition = "EXCELLENT"
	ConditionGood      Condition = "GOOD"
	ConditionFair      Condition = "FAIR"
	ConditionPoor      Condition = "POOR"
)

func (c Condition) Valid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Accessories included with the device.
type Accessories struct {
	Box     bool `json:"box"`
	Charger bool `json:"charger"`
	Bill    bool `json:"bill"`
}

// CoreCount counts the box and charger, the accessories pricing depends on.
func (a Accessories) CoreCount() int {
	n := 0
	if a.Box {
		n++
	}
	if a.Charger {
		n++
	}
	return n
}

// Warranty on the device.
type Warranty struct {
	Active    bool
	ExpiresAt *time.Time
}

// Address is the pickup location.
type Address struct {
	Line      string
	City      string
	Pincode   string
	Latitude  float64
	Longitude float64
}

// Listing is a device offered by a client for resale.
type Listing struct {
	ID                 uuid.UUID   `db:"id"`
	ClientID           uuid.UUID   `db:"client_id"`
	Brand              string      `db:"brand"`
	Model              string      `db:"model"`
	Variant            string      `db:"variant"`
	Color              string      `db:"color"`
	Condition          Condition   `db:"condition"`
	Description        string      `db:"description"`
	AskingPrice        int64       `db:"asking_price"`
	IMEIs              []string    `db:"imeis"`
	Warranty           Warranty    `db:"-"`
	Accessories        Accessories `db:"-"`
	BatteryHealth      int         `db:"battery_health"`
	Pickup             Address     `db:"-"`
	PhotoKeys          []string    `db:"photo_keys"`
	Status             Status      `db:"status"`
	RejectionReason    string      `db:"rejection_reason"`
	CancellationReason string      `db:"cancellation_reason"`
	CurrentHighestBid  int64       `db:"current_highest_bid"`
	AcceptedBidID      *uuid.UUID  `db:"accepted_bid_id"`
	ApprovedAt         *time.Time  `db:"approved_at"`
	BiddingEndsAt      *time.Time  `db:"bidding_ends_at"`
	CreatedAt          time.Time   `db:"created_at"`
	UpdatedAt          time.Time   `db:"updated_at"`
}

// IsOwnedBy checks if the given user owns this listing
func (l *Listing) IsOwnedBy(userID uuid.UUID) bool {
	return l.ClientID == userID
}

// TransitionTo moves the listing to status to, or returns ErrInvalidTransition.
func (l *Listing) TransitionTo(to Status, now time.Time) error {
	if !CanTransition(l.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, l.Status, to)
	}
	l.Status = to
	l.UpdatedAt = now
	return nil
}

// BiddingOpenAt reports whether a bid placed at now falls inside the bidding window.
func (l *Listing) BiddingOpenAt(now time.Time) bool {
	return l.Status == StatusBiddingActive && l.BiddingEndsAt != nil && now.Before(*l.BiddingEndsAt)
}

// DeadlinePassed reports whether the bidding window is over at now.
func (l *Listing) DeadlinePassed(now time.Time) bool {
	return l.BiddingEndsAt != nil && !now.Before(*l.BiddingEndsAt)
}

// Title is a human readable device name.
func (l *Listing) Title() string {
	title := l.Brand + " " + l.Model
	if l.Variant != "" {
		title += " " + l.Variant
	}
	return title
}
