package api

import (
	"context"
	"errors"

	"connectrpc.com/connect"

	"github.com/dirtsid3r/cellflip/internal/domain/bids"
	"github.com/dirtsid3r/cellflip/pkg/auth"
)

type BidHandler struct {
	bids  BidService
	stats StatsService
}

func NewBidHandler(bids BidService, stats StatsService) *BidHandler {
	return &BidHandler{bids: bids, stats: stats}
}

func (h *BidHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[BidResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	listingID, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}

	bid, err := h.bids.PlaceBid(ctx, bids.PlaceBidCommand{
		ListingID: listingID,
		VendorID:  principal.UserID,
		Amount:    req.Msg.Amount,
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&BidResponse{Bid: toBid(bid)}), nil
}

func (h *BidHandler) ListingBids(
	ctx context.Context,
	req *connect.Request[ListingRequest],
) (*connect.Response[BidsResponse], error) {
	listingID, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}
	found, err := h.bids.ListingBids(ctx, listingID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toBids(found)), nil
}

func (h *BidHandler) MyBids(
	ctx context.Context,
	_ *connect.Request[MyBidsRequest],
) (*connect.Response[BidsResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	found, err := h.bids.VendorBids(ctx, principal.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toBids(found)), nil
}

// CloseBidding closes an expired listing now instead of waiting for the scheduler.
func (h *BidHandler) CloseBidding(
	ctx context.Context,
	req *connect.Request[ListingRequest],
) (*connect.Response[CloseBiddingResponse], error) {
	listingID, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}
	result, err := h.bids.CloseBidding(ctx, listingID)
	if err != nil {
		return nil, toConnectError(err)
	}

	res := &CloseBiddingResponse{
		Outcome:       result.Outcome,
		TransactionID: formatID(result.TransactionID),
	}
	if result.WinningBid != nil {
		res.WinningBid = toBid(result.WinningBid)
	}
	return connect.NewResponse(res), nil
}

// VendorStats returns a vendor's bidding record. Vendors see their own; admins
// pass vendor_id.
func (h *BidHandler) VendorStats(
	ctx context.Context,
	req *connect.Request[VendorStatsRequest],
) (*connect.Response[VendorStatsResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	vendorID := principal.UserID
	if req.Msg.VendorID != "" {
		if vendorID, err = parseID(req.Msg.VendorID, "vendor_id"); err != nil {
			return nil, err
		}
	}
	if principal.Role != auth.RoleAdmin && vendorID != principal.UserID {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("vendors may only view their own stats"))
	}

	stats, err := h.stats.Get(ctx, vendorID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&VendorStatsResponse{Stats: toVendorStats(stats)}), nil
}
