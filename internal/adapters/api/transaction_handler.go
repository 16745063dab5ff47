package api

import (
	"context"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/internal/domain/settlement"
	"github.com/dirtsid3r/cellflip/internal/domain/transactions"
	"github.com/dirtsid3r/cellflip/pkg/auth"
)

type TransactionHandler struct {
	transactions TransactionService
}

func NewTransactionHandler(transactions TransactionService) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// target resolves the caller and the transaction a request refers to.
func target(ctx context.Context, rawID string) (transactions.Actor, uuid.UUID, error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return transactions.Actor{}, uuid.Nil, toConnectError(err)
	}
	id, err := parseID(rawID, "transaction_id")
	if err != nil {
		return transactions.Actor{}, uuid.Nil, err
	}
	return transactions.Actor{UserID: principal.UserID, Role: principal.Role}, id, nil
}

func respondTransaction(t *transactions.Transaction, err error) (*connect.Response[TransactionResponse], error) {
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&TransactionResponse{Transaction: toTransaction(t)}), nil
}

func (h *TransactionHandler) GetTransaction(
	ctx context.Context,
	req *connect.Request[TransactionRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.Get(ctx, actor, id))
}

func (h *TransactionHandler) ListMyTransactions(
	ctx context.Context,
	_ *connect.Request[ListMyTransactionsRequest],
) (*connect.Response[TransactionsResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	found, err := h.transactions.ListMine(ctx, transactions.Actor{UserID: principal.UserID, Role: principal.Role})
	if err != nil {
		return nil, toConnectError(err)
	}
	out := make([]*Transaction, len(found))
	for i, t := range found {
		out[i] = toTransaction(t)
	}
	return connect.NewResponse(&TransactionsResponse{Transactions: out}), nil
}

// RankAgents lists candidate agents for the pickup, best first.
func (h *TransactionHandler) RankAgents(
	ctx context.Context,
	req *connect.Request[TransactionRequest],
) (*connect.Response[RankAgentsResponse], error) {
	id, err := parseID(req.Msg.TransactionID, "transaction_id")
	if err != nil {
		return nil, err
	}
	ranked, err := h.transactions.RankAgents(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	out := make([]*Candidate, len(ranked))
	for i, c := range ranked {
		out[i] = &Candidate{Agent: toAgent(c.Agent), DistanceKm: c.DistanceKm, SameCity: c.SameCity}
	}
	return connect.NewResponse(&RankAgentsResponse{Candidates: out}), nil
}

func (h *TransactionHandler) AssignAgent(
	ctx context.Context,
	req *connect.Request[AssignAgentRequest],
) (*connect.Response[TransactionResponse], error) {
	id, err := parseID(req.Msg.TransactionID, "transaction_id")
	if err != nil {
		return nil, err
	}
	agentID, err := parseID(req.Msg.AgentID, "agent_id")
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.AssignAgent(ctx, id, agentID))
}

func (h *TransactionHandler) SchedulePickup(
	ctx context.Context,
	req *connect.Request[SchedulePickupRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	at, err := time.Parse(time.RFC3339, req.Msg.At)
	if err != nil {
		return nil, invalidArgument("invalid at format")
	}
	return respondTransaction(h.transactions.SchedulePickup(ctx, actor, id, at))
}

func (h *TransactionHandler) VerifyIdentity(
	ctx context.Context,
	req *connect.Request[VerifyIdentityRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	return respondTransaction(h.transactions.VerifyIdentity(ctx, actor, id, transactions.IdentityCheck{
		IDDocumentVerified: msg.IDDocumentVerified,
		NameMatches:        msg.NameMatches,
		PhoneMatches:       msg.PhoneMatches,
		AddressMatches:     msg.AddressMatches,
		IDPhotoKey:         msg.IDPhotoKey,
	}))
}

func (h *TransactionHandler) InspectDevice(
	ctx context.Context,
	req *connect.Request[InspectDeviceRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	msg := req.Msg
	return respondTransaction(h.transactions.InspectDevice(ctx, actor, id, transactions.Inspection{
		ActualCondition:  listings.Condition(msg.ActualCondition),
		FunctionalIssues: msg.FunctionalIssues,
		CosmeticIssues:   msg.CosmeticIssues,
		Accessories:      listings.Accessories{Box: msg.HasBox, Charger: msg.HasCharger, Bill: msg.HasBill},
		BatteryHealth:    msg.BatteryHealth,
		PhotoKeys:        msg.PhotoKeys,
		Notes:            msg.Notes,
	}))
}

func (h *TransactionHandler) CalculateDeductions(
	ctx context.Context,
	req *connect.Request[TransactionRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.CalculateDeductions(ctx, actor, id))
}

func (h *TransactionHandler) SendFinalOffer(
	ctx context.Context,
	req *connect.Request[TransactionRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.SendFinalOffer(ctx, actor, id))
}

func (h *TransactionHandler) AcceptFinalOffer(
	ctx context.Context,
	req *connect.Request[CodeRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	gateID, err := parseID(req.Msg.GateID, "gate_id")
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.AcceptFinalOffer(ctx, actor, id, gateID, req.Msg.Code))
}

func (h *TransactionHandler) DeclineFinalOffer(
	ctx context.Context,
	req *connect.Request[TransactionReasonRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.DeclineFinalOffer(ctx, actor, id, req.Msg.Reason))
}

func (h *TransactionHandler) HandOverToVendor(
	ctx context.Context,
	req *connect.Request[HandOverRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.HandOverToVendor(ctx, actor, id, req.Msg.PhotoKey))
}

func (h *TransactionHandler) ConfirmVendorReceipt(
	ctx context.Context,
	req *connect.Request[CodeRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	gateID, err := parseID(req.Msg.GateID, "gate_id")
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.ConfirmVendorReceipt(ctx, actor, id, gateID, req.Msg.Code))
}

// ConfirmCompletion consumes the client's completion code and settles the payout.
func (h *TransactionHandler) ConfirmCompletion(
	ctx context.Context,
	req *connect.Request[ConfirmCompletionRequest],
) (*connect.Response[SettlementResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	gateID, err := parseID(req.Msg.GateID, "gate_id")
	if err != nil {
		return nil, err
	}
	method := settlement.PaymentMethod(req.Msg.PaymentMethod)
	settled, err := h.transactions.ConfirmCompletion(ctx, actor, id, gateID, req.Msg.Code, method)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&SettlementResponse{Settlement: toSettlement(settled)}), nil
}

func (h *TransactionHandler) ResendCode(
	ctx context.Context,
	req *connect.Request[TransactionRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.ResendCode(ctx, actor, id))
}

func (h *TransactionHandler) RaiseDispute(
	ctx context.Context,
	req *connect.Request[TransactionReasonRequest],
) (*connect.Response[TransactionResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	return respondTransaction(h.transactions.RaiseDispute(ctx, actor, id, req.Msg.Reason))
}

func (h *TransactionHandler) RequestEvidenceUpload(
	ctx context.Context,
	req *connect.Request[EvidenceUploadRequest],
) (*connect.Response[UploadResponse], error) {
	actor, id, err := target(ctx, req.Msg.TransactionID)
	if err != nil {
		return nil, err
	}
	upload, err := h.transactions.RequestEvidenceUpload(ctx, actor, id, req.Msg.Kind, req.Msg.ContentType)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toUpload(upload)), nil
}
