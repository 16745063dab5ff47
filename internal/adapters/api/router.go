package api

import (
	"context"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/otp"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
	"github.com/dirtsid3r/cellflip/internal/domain/transactions"
	"github.com/dirtsid3r/cellflip/internal/domain/users"
	"github.com/dirtsid3r/cellflip/internal/domain/vendorstats"
)

type UserService interface {
	Register(ctx context.Context, cmd users.RegisterCommand) (*users.User, error)
	CreateStaff(ctx context.Context, cmd users.StaffCommand) (*users.User, error)
	RequestLoginCode(ctx context.Context, phone string) (*otp.Gate, error)
	VerifyLoginCode(ctx context.Context, phone string, gateID uuid.UUID, code string) (*users.Session, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*users.User, error)
}

type ListingService interface {
	Submit(ctx context.Context, cmd listings.SubmitCommand) (*listings.Listing, error)
	GetListing(ctx context.Context, id uuid.UUID) (*listings.Listing, error)
	List(ctx context.Context, filter listings.ListFilter) ([]*listings.Listing, error)
	ListMine(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*listings.Listing, error)
	StartReview(ctx context.Context, id uuid.UUID) (*listings.Listing, error)
	Approve(ctx context.Context, id uuid.UUID) (*listings.Listing, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*listings.Listing, error)
	Cancel(ctx context.Context, id, clientID uuid.UUID, reason string) (*listings.Listing, error)
	RequestPhotoUpload(ctx context.Context, id, clientID uuid.UUID, contentType string) (*listings.PresignedUpload, error)
}

type BidService interface {
	PlaceBid(ctx context.Context, cmd bids.PlaceBidCommand) (*bids.Bid, error)
	CloseBidding(ctx context.Context, listingID uuid.UUID) (*bids.CloseResult, error)
	ListingBids(ctx context.Context, listingID uuid.UUID) ([]*bids.Bid, error)
	VendorBids(ctx context.Context, vendorID uuid.UUID) ([]*bids.Bid, error)
}

type StatsService interface {
	Get(ctx context.Context, vendorID uuid.UUID) (*vendorstats.VendorStats, error)
}

type TransactionService interface {
	Get(ctx context.Context, actor transactions.Actor, id uuid.UUID) (*transactions.Transaction, error)
	ListMine(ctx context.Context, actor transactions.Actor) ([]*transactions.Transaction, error)
	RankAgents(ctx context.Context, id uuid.UUID) ([]agents.Candidate, error)
	AssignAgent(ctx context.Context, id, agentID uuid.UUID) (*transactions.Transaction, error)
	SchedulePickup(ctx context.Context, actor transactions.Actor, id uuid.UUID, at time.Time) (*transactions.Transaction, error)
	VerifyIdentity(ctx context.Context, actor transactions.Actor, id uuid.UUID, check transactions.IdentityCheck) (*transactions.Transaction, error)
	InspectDevice(ctx context.Context, actor transactions.Actor, id uuid.UUID, in transactions.Inspection) (*transactions.Transaction, error)
	CalculateDeductions(ctx context.Context, actor transactions.Actor, id uuid.UUID) (*transactions.Transaction, error)
	SendFinalOffer(ctx context.Context, actor transactions.Actor, id uuid.UUID) (*transactions.Transaction, error)
	AcceptFinalOffer(ctx context.Context, actor transactions.Actor, id, gateID uuid.UUID, code string) (*transactions.Transaction, error)
	DeclineFinalOffer(ctx context.Context, actor transactions.Actor, id uuid.UUID, reason string) (*transactions.Transaction, error)
	HandOverToVendor(ctx context.Context, actor transactions.Actor, id uuid.UUID, photoKey string) (*transactions.Transaction, error)
	ConfirmVendorReceipt(ctx context.Context, actor transactions.Actor, id, gateID uuid.UUID, code string) (*transactions.Transaction, error)
	ConfirmCompletion(ctx context.Context, actor transactions.Actor, id, gateID uuid.UUID, code string, method settlement.PaymentMethod) (*settlement.Settlement, error)
	ResendCode(ctx context.Context, actor transactions.Actor, id uuid.UUID) (*transactions.Transaction, error)
	RaiseDispute(ctx context.Context, actor transactions.Actor, id uuid.UUID, reason string) (*transactions.Transaction, error)
	RequestEvidenceUpload(ctx context.Context, actor transactions.Actor, id uuid.UUID, kind, contentType string) (*listings.PresignedUpload, error)
}

type AgentService interface {
	GetAgent(ctx context.Context, userID uuid.UUID) (*agents.Agent, error)
	SetAvailability(ctx context.Context, userID uuid.UUID, availability agents.Availability) error
}

// Services are the domain services exposed over the API.
type Services struct {
	Users        UserService
	Listings     ListingService
	Bids         BidService
	Stats        StatsService
	Transactions TransactionService
	Agents       AgentService
}

// NewRouter mounts every procedure on a mux. opts are applied to each handler
// after the JSON codec, typically the auth and rate limit interceptors.
func NewRouter(svc Services, opts ...connect.HandlerOption) *http.ServeMux {
	opts = append([]connect.HandlerOption{connect.WithCodec(JSONCodec{})}, opts...)
	mux := http.NewServeMux()

	authH := NewAuthHandler(svc.Users)
	unary(mux, ProcedureRegister, authH.Register, opts)
	unary(mux, ProcedureRequestLoginCode, authH.RequestLoginCode, opts)
	unary(mux, ProcedureVerifyLoginCode, authH.VerifyLoginCode, opts)
	unary(mux, ProcedureGetProfile, authH.GetProfile, opts)
	unary(mux, ProcedureCreateStaff, authH.CreateStaff, opts)

	listingH := NewListingHandler(svc.Listings)
	unary(mux, ProcedureSubmitListing, listingH.SubmitListing, opts)
	unary(mux, ProcedureGetListing, listingH.GetListing, opts)
	unary(mux, ProcedureListListings, listingH.ListListings, opts)
	unary(mux, ProcedureListMyListings, listingH.ListMyListings, opts)
	unary(mux, ProcedureStartReview, listingH.StartReview, opts)
	unary(mux, ProcedureApproveListing, listingH.ApproveListing, opts)
	unary(mux, ProcedureRejectListing, listingH.RejectListing, opts)
	unary(mux, ProcedureCancelListing, listingH.CancelListing, opts)
	unary(mux, ProcedureRequestPhotoUpload, listingH.RequestPhotoUpload, opts)

	bidH := NewBidHandler(svc.Bids, svc.Stats)
	unary(mux, ProcedurePlaceBid, bidH.PlaceBid, opts)
	unary(mux, ProcedureListingBids, bidH.ListingBids, opts)
	unary(mux, ProcedureMyBids, bidH.MyBids, opts)
	unary(mux, ProcedureCloseBidding, bidH.CloseBidding, opts)
	unary(mux, ProcedureVendorStats, bidH.VendorStats, opts)

	txH := NewTransactionHandler(svc.Transactions)
	unary(mux, ProcedureGetTransaction, txH.GetTransaction, opts)
	unary(mux, ProcedureListMyTransactions, txH.ListMyTransactions, opts)
	unary(mux, ProcedureRankAgents, txH.RankAgents, opts)
	unary(mux, ProcedureAssignAgent, txH.AssignAgent, opts)
	unary(mux, ProcedureSchedulePickup, txH.SchedulePickup, opts)
	unary(mux, ProcedureVerifyIdentity, txH.VerifyIdentity, opts)
	unary(mux, ProcedureInspectDevice, txH.InspectDevice, opts)
	unary(mux, ProcedureCalculateDeductions, txH.CalculateDeductions, opts)
	unary(mux, ProcedureSendFinalOffer, txH.SendFinalOffer, opts)
	unary(mux, ProcedureAcceptFinalOffer, txH.AcceptFinalOffer, opts)
	unary(mux, ProcedureDeclineFinalOffer, txH.DeclineFinalOffer, opts)
	unary(mux, ProcedureHandOverToVendor, txH.HandOverToVendor, opts)
	unary(mux, ProcedureConfirmVendorReceipt, txH.ConfirmVendorReceipt, opts)
	unary(mux, ProcedureConfirmCompletion, txH.ConfirmCompletion, opts)
	unary(mux, ProcedureResendCode, txH.ResendCode, opts)
	unary(mux, ProcedureRaiseDispute, txH.RaiseDispute, opts)
	unary(mux, ProcedureRequestEvidenceUpload, txH.RequestEvidenceUpload, opts)

	agentH := NewAgentHandler(svc.Agents)
	unary(mux, ProcedureGetAgent, agentH.GetAgent, opts)
	unary(mux, ProcedureSetAvailability, agentH.SetAvailability, opts)

	return mux
}

func unary[Req, Res any](
	mux *http.ServeMux,
	procedure string,
	fn func(context.Context, *connect.Request[Req]) (*connect.Response[Res], error),
	opts []connect.HandlerOption,
) {
	mux.Handle(procedure, connect.NewUnaryHandler(procedure, fn, opts...))
}
