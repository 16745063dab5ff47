package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
	"github.com/dirtsid3r/cellflip/internal/domain/transactions"
	"github.com/dirtsid3r/cellflip/internal/domain/users"
	"github.com/dirtsid3r/cellflip/internal/domain/vendorstats"
)

// Wire messages. Money is paise; times are RFC3339 strings.

type User struct {
	ID        string `json:"id"`
	Phone     string `json:"phone"`
	FullName  string `json:"full_name"`
	City      string `json:"city"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

type RegisterRequest struct {
	Phone    string `json:"phone"`
	FullName string `json:"full_name"`
	City     string `json:"city"`
	Role     string `json:"role"`
}

type CreateStaffRequest struct {
	Phone     string  `json:"phone"`
	FullName  string  `json:"full_name"`
	City      string  `json:"city"`
	Role      string  `json:"role"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type UserResponse struct {
	User *User `json:"user"`
}

type GetProfileRequest struct{}

type RequestLoginCodeRequest struct {
	Phone string `json:"phone"`
}

type RequestLoginCodeResponse struct {
	GateID    string `json:"gate_id"`
	ExpiresAt string `json:"expires_at"`
}

type VerifyLoginCodeRequest struct {
	Phone  string `json:"phone"`
	GateID string `json:"gate_id"`
	Code   string `json:"code"`
}

type VerifyLoginCodeResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   string `json:"expires_at"`
	User        *User  `json:"user"`
}

type Address struct {
	Line      string  `json:"line"`
	City      string  `json:"city"`
	Pincode   string  `json:"pincode"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Listing struct {
	ID                 string   `json:"id"`
	ClientID           string   `json:"client_id"`
	Title              string   `json:"title"`
	Brand              string   `json:"brand"`
	Model              string   `json:"model"`
	Variant            string   `json:"variant,omitempty"`
	Color              string   `json:"color,omitempty"`
	Condition          string   `json:"condition"`
	Description        string   `json:"description,omitempty"`
	AskingPrice        int64    `json:"asking_price"`
	IMEIs              []string `json:"imeis"`
	HasWarranty        bool     `json:"has_warranty"`
	WarrantyExpiry     string   `json:"warranty_expiry,omitempty"`
	HasBox             bool     `json:"has_box"`
	HasCharger         bool     `json:"has_charger"`
	HasBill            bool     `json:"has_bill"`
	BatteryHealth      int      `json:"battery_health"`
	Pickup             Address  `json:"pickup"`
	PhotoKeys          []string `json:"photo_keys"`
	Status             string   `json:"status"`
	RejectionReason    string   `json:"rejection_reason,omitempty"`
	CancellationReason string   `json:"cancellation_reason,omitempty"`
	CurrentHighestBid  int64    `json:"current_highest_bid"`
	AcceptedBidID      string   `json:"accepted_bid_id,omitempty"`
	BiddingEndsAt      string   `json:"bidding_ends_at,omitempty"`
	CreatedAt          string   `json:"created_at"`
	UpdatedAt          string   `json:"updated_at"`
}

type SubmitListingRequest struct {
	Brand          string   `json:"brand"`
	Model          string   `json:"model"`
	Variant        string   `json:"variant"`
	Color          string   `json:"color"`
	Condition      string   `json:"condition"`
	Description    string   `json:"description"`
	AskingPrice    int64    `json:"asking_price"`
	IMEIs          []string `json:"imeis"`
	HasWarranty    bool     `json:"has_warranty"`
	WarrantyExpiry string   `json:"warranty_expiry"`
	HasBox         bool     `json:"has_box"`
	HasCharger     bool     `json:"has_charger"`
	HasBill        bool     `json:"has_bill"`
	BatteryHealth  int      `json:"battery_health"`
	Pickup         Address  `json:"pickup"`
}

type ListingRequest struct {
	ListingID string `json:"listing_id"`
}

type ListingReasonRequest struct {
	ListingID string `json:"listing_id"`
	Reason    string `json:"reason"`
}

type ListListingsRequest struct {
	Brand     string `json:"brand"`
	Condition string `json:"condition"`
	Status    string `json:"status"`
	MinPrice  int64  `json:"min_price"`
	MaxPrice  int64  `json:"max_price"`
	Sort      string `json:"sort"`
	PageSize  int    `json:"page_size"`
	Offset    int    `json:"offset"`
}

type ListingResponse struct {
	Listing *Listing `json:"listing"`
}

type ListingsResponse struct {
	Listings []*Listing `json:"listings"`
}

type PhotoUploadRequest struct {
	ListingID   string `json:"listing_id"`
	ContentType string `json:"content_type"`
}

type UploadResponse struct {
	Key       string            `json:"key"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt string            `json:"expires_at"`
}

type Bid struct {
	ID        string `json:"id"`
	ListingID string `json:"listing_id"`
	VendorID  string `json:"vendor_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type PlaceBidRequest struct {
	ListingID string `json:"listing_id"`
	Amount    int64  `json:"amount"`
}

type BidResponse struct {
	Bid *Bid `json:"bid"`
}

type BidsResponse struct {
	Bids []*Bid `json:"bids"`
}

type MyBidsRequest struct{}

type CloseBiddingResponse struct {
	Outcome       string `json:"outcome"`
	WinningBid    *Bid   `json:"winning_bid,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type Transaction struct {
	ID                string                      `json:"id"`
	ListingID         string                      `json:"listing_id"`
	BidID             string                      `json:"bid_id"`
	ClientID          string                      `json:"client_id"`
	VendorID          string                      `json:"vendor_id"`
	AgentID           string                      `json:"agent_id,omitempty"`
	BidAmount         int64                       `json:"bid_amount"`
	Phase             string                      `json:"phase"`
	Status            string                      `json:"status"`
	Stage             string                      `json:"stage"`
	PickupScheduledAt string                      `json:"pickup_scheduled_at,omitempty"`
	Identity          *transactions.IdentityCheck `json:"identity_check,omitempty"`
	Inspection        *transactions.Inspection    `json:"inspection,omitempty"`
	Deductions        []transactions.Deduction    `json:"deductions"`
	TotalDeductions   int64                       `json:"total_deductions"`
	FinalOffer        int64                       `json:"final_offer"`
	OfferGateID       string                      `json:"offer_gate_id,omitempty"`
	VendorGateID      string                      `json:"vendor_gate_id,omitempty"`
	CompletionGateID  string                      `json:"completion_gate_id,omitempty"`
	HandoverPhotoKey  string                      `json:"handover_photo_key,omitempty"`
	DisputeReason     string                      `json:"dispute_reason,omitempty"`
	CreatedAt         string                      `json:"created_at"`
	UpdatedAt         string                      `json:"updated_at"`
}

type TransactionRequest struct {
	TransactionID string `json:"transaction_id"`
}

type TransactionReasonRequest struct {
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
}

type ListMyTransactionsRequest struct{}

type TransactionResponse struct {
	Transaction *Transaction `json:"transaction"`
}

type TransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
}

type AssignAgentRequest struct {
	TransactionID string `json:"transaction_id"`
	AgentID       string `json:"agent_id"`
}

type SchedulePickupRequest struct {
	TransactionID string `json:"transaction_id"`
	At            string `json:"at"`
}

type VerifyIdentityRequest struct {
	TransactionID      string `json:"transaction_id"`
	IDDocumentVerified bool   `json:"id_document_verified"`
	NameMatches        bool   `json:"name_matches"`
	PhoneMatches       bool   `json:"phone_matches"`
	AddressMatches     bool   `json:"address_matches"`
	IDPhotoKey         string `json:"id_photo_key"`
}

type InspectDeviceRequest struct {
	TransactionID    string   `json:"transaction_id"`
	ActualCondition  string   `json:"actual_condition"`
	FunctionalIssues []string `json:"functional_issues"`
	CosmeticIssues   []string `json:"cosmetic_issues"`
	HasBox           bool     `json:"has_box"`
	HasCharger       bool     `json:"has_charger"`
	HasBill          bool     `json:"has_bill"`
	BatteryHealth    int      `json:"battery_health"`
	PhotoKeys        []string `json:"photo_keys"`
	Notes            string   `json:"notes"`
}

type CodeRequest struct {
	TransactionID string `json:"transaction_id"`
	GateID        string `json:"gate_id"`
	Code          string `json:"code"`
}

type ConfirmCompletionRequest struct {
	TransactionID string `json:"transaction_id"`
	GateID        string `json:"gate_id"`
	Code          string `json:"code"`
	PaymentMethod string `json:"payment_method"`
}

type HandOverRequest struct {
	TransactionID string `json:"transaction_id"`
	PhotoKey      string `json:"photo_key"`
}

type EvidenceUploadRequest struct {
	TransactionID string `json:"transaction_id"`
	Kind          string `json:"kind"`
	ContentType   string `json:"content_type"`
}

type Settlement struct {
	TransactionID   string `json:"transaction_id"`
	FinalOffer      int64  `json:"final_offer"`
	ClientPayout    int64  `json:"client_payout"`
	AgentCommission int64  `json:"agent_commission"`
	PlatformFee     int64  `json:"platform_fee"`
	VendorCharge    int64  `json:"vendor_charge"`
	PaymentMethod   string `json:"payment_method"`
	SettledAt       string `json:"settled_at"`
}

type SettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type Agent struct {
	UserID        string  `json:"user_id"`
	FullName      string  `json:"full_name"`
	Phone         string  `json:"phone"`
	City          string  `json:"city"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Rating        float64 `json:"rating"`
	TotalPickups  int     `json:"total_pickups"`
	ActivePickups int     `json:"active_pickups"`
	Availability  string  `json:"availability"`
}

type VendorStatsRequest struct {
	VendorID string `json:"vendor_id,omitempty"`
}

type VendorStats struct {
	VendorID       string  `json:"vendor_id"`
	TotalBids      int64   `json:"total_bids"`
	TotalAmountBid int64   `json:"total_amount_bid"`
	WonBids        int64   `json:"won_bids"`
	SuccessRate    float64 `json:"success_rate"`
	TotalSpent     int64   `json:"total_spent"`
	LastBidAt      string  `json:"last_bid_at,omitempty"`
}

type VendorStatsResponse struct {
	Stats *VendorStats `json:"stats"`
}

type Candidate struct {
	Agent      *Agent  `json:"agent"`
	DistanceKm float64 `json:"distance_km"`
	SameCity   bool    `json:"same_city"`
}

type RankAgentsResponse struct {
	Candidates []*Candidate `json:"candidates"`
}

type GetAgentRequest struct {
	AgentID string `json:"agent_id"`
}

type SetAvailabilityRequest struct {
	Availability string `json:"availability"`
}

type AgentResponse struct {
	Agent *Agent `json:"agent"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func formatID(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

func parseID(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, invalidArgument("invalid " + field)
	}
	return id, nil
}

func toUser(u *users.User) *User {
	return &User{
		ID:        u.ID.String(),
		Phone:     u.Phone,
		FullName:  u.FullName,
		City:      u.City,
		Role:      string(u.Role),
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func toListing(l *listings.Listing) *Listing {
	return &Listing{
		ID:                 l.ID.String(),
		ClientID:           l.ClientID.String(),
		Title:              l.Title(),
		Brand:              l.Brand,
		Model:              l.Model,
		Variant:            l.Variant,
		Color:              l.Color,
		Condition:          string(l.Condition),
		Description:        l.Description,
		AskingPrice:        l.AskingPrice,
		IMEIs:              l.IMEIs,
		HasWarranty:        l.Warranty.Active,
		WarrantyExpiry:     formatTimePtr(l.Warranty.ExpiresAt),
		HasBox:             l.Accessories.Box,
		HasCharger:         l.Accessories.Charger,
		HasBill:            l.Accessories.Bill,
		BatteryHealth:      l.BatteryHealth,
		Pickup:             Address(l.Pickup),
		PhotoKeys:          l.PhotoKeys,
		Status:             string(l.Status),
		RejectionReason:    l.RejectionReason,
		CancellationReason: l.CancellationReason,
		CurrentHighestBid:  l.CurrentHighestBid,
		AcceptedBidID:      formatID(l.AcceptedBidID),
		BiddingEndsAt:      formatTimePtr(l.BiddingEndsAt),
		CreatedAt:          formatTime(l.CreatedAt),
		UpdatedAt:          formatTime(l.UpdatedAt),
	}
}

func toListings(found []*listings.Listing) *ListingsResponse {
	out := make([]*Listing, len(found))
	for i, l := range found {
		out[i] = toListing(l)
	}
	return &ListingsResponse{Listings: out}
}

func toUpload(u *listings.PresignedUpload) *UploadResponse {
	return &UploadResponse{
		Key:       u.Key,
		URL:       u.URL,
		Method:    u.Method,
		Headers:   u.Headers,
		ExpiresAt: formatTime(u.ExpiresAt),
	}
}

func toBid(b *bids.Bid) *Bid {
	return &Bid{
		ID:        b.ID.String(),
		ListingID: b.ListingID.String(),
		VendorID:  b.VendorID.String(),
		Amount:    b.Amount,
		Status:    string(b.Status),
		CreatedAt: formatTime(b.CreatedAt),
	}
}

func toBids(found []*bids.Bid) *BidsResponse {
	out := make([]*Bid, len(found))
	for i, b := range found {
		out[i] = toBid(b)
	}
	return &BidsResponse{Bids: out}
}

func toTransaction(t *transactions.Transaction) *Transaction {
	deductions := t.Deductions
	if deductions == nil {
		deductions = []transactions.Deduction{}
	}
	return &Transaction{
		ID:                t.ID.String(),
		ListingID:         t.ListingID.String(),
		BidID:             t.BidID.String(),
		ClientID:          t.ClientID.String(),
		VendorID:          t.VendorID.String(),
		AgentID:           formatID(t.AgentID),
		BidAmount:         t.BidAmount,
		Phase:             string(t.Phase),
		Status:            string(t.Status),
		Stage:             string(t.Stage),
		PickupScheduledAt: formatTimePtr(t.PickupScheduledAt),
		Identity:          t.Identity,
		Inspection:        t.Inspection,
		Deductions:        deductions,
		TotalDeductions:   t.TotalDeductions,
		FinalOffer:        t.FinalOffer,
		OfferGateID:       formatID(t.OfferGateID),
		VendorGateID:      formatID(t.VendorGateID),
		CompletionGateID:  formatID(t.CompletionGateID),
		HandoverPhotoKey:  t.HandoverPhotoKey,
		DisputeReason:     t.DisputeReason,
		CreatedAt:         formatTime(t.CreatedAt),
		UpdatedAt:         formatTime(t.UpdatedAt),
	}
}

func toSettlement(s *settlement.Settlement) *Settlement {
	return &Settlement{
		TransactionID:   s.TransactionID.String(),
		FinalOffer:      s.FinalOffer,
		ClientPayout:    s.ClientPayout,
		AgentCommission: s.AgentCommission,
		PlatformFee:     s.PlatformFee,
		VendorCharge:    s.VendorCharge,
		PaymentMethod:   string(s.PaymentMethod),
		SettledAt:       formatTime(s.SettledAt),
	}
}

func toAgent(a *agents.Agent) *Agent {
	return &Agent{
		UserID:        a.UserID.String(),
		FullName:      a.FullName,
		Phone:         a.Phone,
		City:          a.City,
		Latitude:      a.Location.Latitude,
		Longitude:     a.Location.Longitude,
		Rating:        a.Rating,
		TotalPickups:  a.TotalPickups,
		ActivePickups: a.ActivePickups,
		Availability:  string(a.Availability),
	}
}

func toVendorStats(s *vendorstats.VendorStats) *VendorStats {
	return &VendorStats{
		VendorID:       s.VendorID.String(),
		TotalBids:      s.TotalBids,
		TotalAmountBid: s.TotalAmountBid,
		WonBids:        s.WonBids,
		SuccessRate:    s.SuccessRate(),
		TotalSpent:     s.TotalSpent,
		LastBidAt:      formatTimePtr(s.LastBidAt),
	}
}
