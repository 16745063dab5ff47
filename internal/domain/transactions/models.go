package transactions

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/dirtsid3r/cellflip/internal/domain/listings"
)

// Phase is the coarse position of a deal in the marketplace flow.
type Phase string

const (
	PhaseListing      Phase = "LISTING"
	PhaseBidding      Phase = "BIDDING"
	PhaseVerification Phase = "VERIFICATION"
	PhaseCompletion   Phase = "COMPLETION"
)

// Status of a transaction.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
	StatusDisputed   Status = "DISPUTED"
)

// Terminal statuses accept no further stage changes.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusDisputed
}

// Stage is the agent verification step.
type Stage string

const (
	StageAwaitingAgent      Stage = "AWAITING_AGENT"
	StageAgentAssigned      Stage = "AGENT_ASSIGNED"
	StagePickupScheduled    Stage = "PICKUP_SCHEDULED"
	StageIdentityVerified   Stage = "IDENTITY_VERIFIED"
	StageDeviceInspected    Stage = "DEVICE_INSPECTED"
	StageDeductionsCalc     Stage = "DEDUCTIONS_CALCULATED"
	StageFinalOfferSent     Stage = "FINAL_OFFER_SENT"
	StageCustomerAccepted   Stage = "CUSTOMER_ACCEPTED"
	StageHandedOverToVendor Stage = "HANDED_OVER_TO_VENDOR"
	StageVendorConfirmed    Stage = "VENDOR_CONFIRMED"
	StagePaid               Stage = "PAID"
)

var stageOrder = []Stage{
	StageAwaitingAgent,
	StageAgentAssigned,
	StagePickupScheduled,
	StageIdentityVerified,
	StageDeviceInspected,
	StageDeductionsCalc,
	StageFinalOfferSent,
	StageCustomerAccepted,
	StageHandedOverToVendor,
	StageVendorConfirmed,
	StagePaid,
}

// Previous returns the stage that must be complete before s, or "" for the first stage.
func (s Stage) Previous() Stage {
	i := slices.Index(stageOrder, s)
	if i <= 0 {
		return ""
	}
	return stageOrder[i-1]
}

// Reached reports whether s is at or past target.
func (s Stage) Reached(target Stage) bool {
	return slices.Index(stageOrder, s) >= slices.Index(stageOrder, target)
}

// IdentityCheck records the agent's checks of the seller at pickup.
type IdentityCheck struct {
	IDDocumentVerified bool      `json:"id_document_verified"`
	NameMatches        bool      `json:"name_matches"`
	PhoneMatches       bool      `json:"phone_matches"`
	AddressMatches     bool      `json:"address_matches"`
	IDPhotoKey         string    `json:"id_photo_key"`
	VerifiedAt         time.Time `json:"verified_at"`
}

// Passed reports whether every check holds and the ID photo was captured.
func (c IdentityCheck) Passed() bool {
	return c.IDDocumentVerified && c.NameMatches && c.PhoneMatches && c.AddressMatches && c.IDPhotoKey != ""
}

// Inspection is the agent's physical assessment of the device.
type Inspection struct {
	ActualCondition  listings.Condition   `json:"actual_condition"`
	FunctionalIssues []string             `json:"functional_issues"`
	CosmeticIssues   []string             `json:"cosmetic_issues"`
	Accessories      listings.Accessories `json:"accessories"`
	BatteryHealth    int                  `json:"battery_health"`
	PhotoKeys        []string             `json:"photo_keys"`
	Notes            string               `json:"notes"`
	InspectedAt      time.Time            `json:"inspected_at"`
}

// Category of a price deduction.
type Category string

const (
	CategoryCosmetic          Category = "COSMETIC"
	CategoryFunctional        Category = "FUNCTIONAL"
	CategoryMissingAccessory  Category = "MISSING_ACCESSORY"
	CategoryConditionMismatch Category = "CONDITION_MISMATCH"
	CategoryOther             Category = "OTHER"
)

// Severity of a deduction. Each deduction rule carries a fixed severity.
type Severity string

const (
	SeverityMinor    Severity = "MINOR"
	SeverityModerate Severity = "MODERATE"
	SeverityMajor    Severity = "MAJOR"
)

// Deduction is one price reduction applied after inspection. Amount is paise.
type Deduction struct {
	Category    Category `json:"category"`
	Description string   `json:"description"`
	RateBps     int64    `json:"rate_bps"`
	Amount      int64    `json:"amount"`
	Severity    Severity `json:"severity"`
}

// Transaction links an accepted bid to its pickup, verification and payout.
type Transaction struct {
	ID                uuid.UUID      `db:"id"`
	ListingID         uuid.UUID      `db:"listing_id"`
	BidID             uuid.UUID      `db:"bid_id"`
	ClientID          uuid.UUID      `db:"client_id"`
	VendorID          uuid.UUID      `db:"vendor_id"`
	AgentID           *uuid.UUID     `db:"agent_id"`
	BidAmount         int64          `db:"bid_amount"`
	Phase             Phase          `db:"phase"`
	Status            Status         `db:"status"`
	Stage             Stage          `db:"stage"`
	PickupScheduledAt *time.Time     `db:"pickup_scheduled_at"`
	Identity          *IdentityCheck `db:"identity_check"`
	Inspection        *Inspection    `db:"inspection"`
	Deductions        []Deduction    `db:"deductions"`
	TotalDeductions   int64          `db:"total_deductions"`
	FinalOffer        int64          `db:"final_offer"`
	OfferGateID       *uuid.UUID     `db:"offer_gate_id"`
	VendorGateID      *uuid.UUID     `db:"vendor_gate_id"`
	CompletionGateID  *uuid.UUID     `db:"completion_gate_id"`
	HandoverPhotoKey  string         `db:"handover_photo_key"`
	DisputeReason     string         `db:"dispute_reason"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

// IsParty reports whether userID is the client, vendor or assigned agent.
func (t *Transaction) IsParty(userID uuid.UUID) bool {
	return t.ClientID == userID || t.VendorID == userID || t.IsAssignedAgent(userID)
}

func (t *Transaction) IsAssignedAgent(userID uuid.UUID) bool {
	return t.AgentID != nil && *t.AgentID == userID
}

// Advance moves the transaction to stage to. Stages cannot be skipped or repeated.
func (t *Transaction) Advance(to Stage, now time.Time) error {
	if t.Status.Terminal() {
		return ErrTransactionClosed
	}
	if to.Previous() == "" || t.Stage != to.Previous() {
		return &StageError{Current: t.Stage, Wanted: to}
	}
	t.Stage = to
	t.UpdatedAt = now
	return nil
}
