package api

import "github.com/dirtsid3r/cellflip/pkg/auth"

const (
	AuthServiceName        = "cellflip.v1.AuthService"
	ListingServiceName     = "cellflip.v1.ListingService"
	BidServiceName         = "cellflip.v1.BidService"
	TransactionServiceName = "cellflip.v1.TransactionService"
	AgentServiceName       = "cellflip.v1.AgentService"
)

const (
	ProcedureRegister         = "/" + AuthServiceName + "/Register"
	ProcedureRequestLoginCode = "/" + AuthServiceName + "/RequestLoginCode"
	ProcedureVerifyLoginCode  = "/" + AuthServiceName + "/VerifyLoginCode"
	ProcedureGetProfile       = "/" + AuthServiceName + "/GetProfile"
	ProcedureCreateStaff      = "/" + AuthServiceName + "/CreateStaff"

	ProcedureSubmitListing      = "/" + ListingServiceName + "/SubmitListing"
	ProcedureGetListing         = "/" + ListingServiceName + "/GetListing"
	ProcedureListListings       = "/" + ListingServiceName + "/ListListings"
	ProcedureListMyListings     = "/" + ListingServiceName + "/ListMyListings"
	ProcedureStartReview        = "/" + ListingServiceName + "/StartReview"
	ProcedureApproveListing     = "/" + ListingServiceName + "/ApproveListing"
	ProcedureRejectListing      = "/" + ListingServiceName + "/RejectListing"
	ProcedureCancelListing      = "/" + ListingServiceName + "/CancelListing"
	ProcedureRequestPhotoUpload = "/" + ListingServiceName + "/RequestPhotoUpload"

	ProcedurePlaceBid     = "/" + BidServiceName + "/PlaceBid"
	ProcedureListingBids  = "/" + BidServiceName + "/ListingBids"
	ProcedureMyBids       = "/" + BidServiceName + "/MyBids"
	ProcedureCloseBidding = "/" + BidServiceName + "/CloseBidding"
	ProcedureVendorStats  = "/" + BidServiceName + "/VendorStats"

	ProcedureGetTransaction        = "/" + TransactionServiceName + "/GetTransaction"
	ProcedureListMyTransactions    = "/" + TransactionServiceName + "/ListMyTransactions"
	ProcedureRankAgents            = "/" + TransactionServiceName + "/RankAgents"
	ProcedureAssignAgent           = "/" + TransactionServiceName + "/AssignAgent"
	ProcedureSchedulePickup        = "/" + TransactionServiceName + "/SchedulePickup"
	ProcedureVerifyIdentity        = "/" + TransactionServiceName + "/VerifyIdentity"
	ProcedureInspectDevice         = "/" + TransactionServiceName + "/InspectDevice"
	ProcedureCalculateDeductions   = "/" + TransactionServiceName + "/CalculateDeductions"
	ProcedureSendFinalOffer        = "/" + TransactionServiceName + "/SendFinalOffer"
	ProcedureAcceptFinalOffer      = "/" + TransactionServiceName + "/AcceptFinalOffer"
	ProcedureDeclineFinalOffer     = "/" + TransactionServiceName + "/DeclineFinalOffer"
	ProcedureHandOverToVendor      = "/" + TransactionServiceName + "/HandOverToVendor"
	ProcedureConfirmVendorReceipt  = "/" + TransactionServiceName + "/ConfirmVendorReceipt"
	ProcedureConfirmCompletion     = "/" + TransactionServiceName + "/ConfirmCompletion"
	ProcedureResendCode            = "/" + TransactionServiceName + "/ResendCode"
	ProcedureRaiseDispute          = "/" + TransactionServiceName + "/RaiseDispute"
	ProcedureRequestEvidenceUpload = "/" + TransactionServiceName + "/RequestEvidenceUpload"

	ProcedureGetAgent        = "/" + AgentServiceName + "/GetAgent"
	ProcedureSetAvailability = "/" + AgentServiceName + "/SetAvailability"
)

var (
	public      = auth.Rule{Public: true}
	anyone      = auth.Rule{Roles: []auth.Role{auth.RoleClient, auth.RoleVendor, auth.RoleAgent, auth.RoleAdmin}}
	adminOnly   = auth.Rule{Roles: []auth.Role{auth.RoleAdmin}}
	clientOnly  = auth.Rule{Roles: []auth.Role{auth.RoleClient}}
	vendorOnly  = auth.Rule{Roles: []auth.Role{auth.RoleVendor}}
	agentOnly   = auth.Rule{Roles: []auth.Role{auth.RoleAgent}}
	agentAdmin  = auth.Rule{Roles: []auth.Role{auth.RoleAgent, auth.RoleAdmin}}
	vendorAdmin = auth.Rule{Roles: []auth.Role{auth.RoleVendor, auth.RoleAdmin}}
)

// Policy is the role table checked once per request by the auth interceptor.
// Per-record ownership is checked by the domain services.
func Policy() auth.Policy {
	return auth.Policy{
		ProcedureRegister:         public,
		ProcedureRequestLoginCode: public,
		ProcedureVerifyLoginCode:  public,
		ProcedureGetProfile:       anyone,
		ProcedureCreateStaff:      adminOnly,

		ProcedureSubmitListing:      clientOnly,
		ProcedureGetListing:         anyone,
		ProcedureListListings:       anyone,
		ProcedureListMyListings:     clientOnly,
		ProcedureStartReview:        adminOnly,
		ProcedureApproveListing:     adminOnly,
		ProcedureRejectListing:      adminOnly,
		ProcedureCancelListing:      clientOnly,
		ProcedureRequestPhotoUpload: clientOnly,

		ProcedurePlaceBid:     vendorOnly,
		ProcedureListingBids:  anyone,
		ProcedureMyBids:       vendorOnly,
		ProcedureCloseBidding: adminOnly,
		ProcedureVendorStats:  vendorAdmin,

		ProcedureGetTransaction:        anyone,
		ProcedureListMyTransactions:    anyone,
		ProcedureRankAgents:            adminOnly,
		ProcedureAssignAgent:           adminOnly,
		ProcedureSchedulePickup:        agentAdmin,
		ProcedureVerifyIdentity:        agentAdmin,
		ProcedureInspectDevice:         agentAdmin,
		ProcedureCalculateDeductions:   agentAdmin,
		ProcedureSendFinalOffer:        agentAdmin,
		ProcedureAcceptFinalOffer:      clientOnly,
		ProcedureDeclineFinalOffer:     clientOnly,
		ProcedureHandOverToVendor:      agentAdmin,
		ProcedureConfirmVendorReceipt:  vendorOnly,
		ProcedureConfirmCompletion:     clientOnly,
		ProcedureResendCode:            anyone,
		ProcedureRaiseDispute:          anyone,
		ProcedureRequestEvidenceUpload: agentAdmin,

		ProcedureGetAgent:        agentAdmin,
		ProcedureSetAvailability: agentOnly,
	}
}
