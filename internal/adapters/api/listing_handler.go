package api

import (
	"context"
	"time"

	"connectrpc.com/connect"

	"github.com/dirtsid3r/cellflip/internal/domain/listings"
	"github.com/dirtsid3r/cellflip/pkg/auth"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ListingHandler struct {
	listings ListingService
}

func NewListingHandler(listings ListingService) *ListingHandler {
	return &ListingHandler{listings: listings}
}

func (h *ListingHandler) SubmitListing(
	ctx context.Context,
	req *connect.Request[SubmitListingRequest],
) (*connect.Response[ListingResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	msg := req.Msg
	warranty := listings.Warranty{Active: msg.HasWarranty}
	if msg.WarrantyExpiry != "" {
		expiry, err := time.Parse(time.RFC3339, msg.WarrantyExpiry)
		if err != nil {
			return nil, invalidArgument("invalid warranty_expiry format")
		}
		warranty.ExpiresAt = &expiry
	}

	listing, err := h.listings.Submit(ctx, listings.SubmitCommand{
		ClientID:      principal.UserID,
		Brand:         msg.Brand,
		Model:         msg.Model,
		Variant:       msg.Variant,
		Color:         msg.Color,
		Condition:     listings.Condition(msg.Condition),
		Description:   msg.Description,
		AskingPrice:   msg.AskingPrice,
		IMEIs:         msg.IMEIs,
		Warranty:      warranty,
		Accessories:   listings.Accessories{Box: msg.HasBox, Charger: msg.HasCharger, Bill: msg.HasBill},
		BatteryHealth: msg.BatteryHealth,
		Pickup:        listings.Address(msg.Pickup),
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListingResponse{Listing: toListing(listing)}), nil
}

func (h *ListingHandler) GetListing(
	ctx context.Context,
	req *connect.Request[ListingRequest],
) (*connect.Response[ListingResponse], error) {
	id, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}
	listing, err := h.listings.GetListing(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListingResponse{Listing: toListing(listing)}), nil
}

// ListListings browses the catalogue. Only admins may filter by status; everyone
// else sees listings open for bidding.
func (h *ListingHandler) ListListings(
	ctx context.Context,
	req *connect.Request[ListListingsRequest],
) (*connect.Response[ListingsResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	msg := req.Msg
	status := listings.Status(msg.Status)
	if principal.Role != auth.RoleAdmin || status == "" {
		status = listings.StatusBiddingActive
	}
	found, err := h.listings.List(ctx, listings.ListFilter{
		Brand:     msg.Brand,
		Condition: listings.Condition(msg.Condition),
		Status:    status,
		MinPrice:  msg.MinPrice,
		MaxPrice:  msg.MaxPrice,
		Sort:      listings.SortOrder(msg.Sort),
		Limit:     pageSize(msg.PageSize),
		Offset:    max(msg.Offset, 0),
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toListings(found)), nil
}

func (h *ListingHandler) ListMyListings(
	ctx context.Context,
	req *connect.Request[ListListingsRequest],
) (*connect.Response[ListingsResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	found, err := h.listings.ListMine(ctx, principal.UserID, pageSize(req.Msg.PageSize), max(req.Msg.Offset, 0))
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toListings(found)), nil
}

func (h *ListingHandler) StartReview(
	ctx context.Context,
	req *connect.Request[ListingRequest],
) (*connect.Response[ListingResponse], error) {
	id, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}
	listing, err := h.listings.StartReview(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListingResponse{Listing: toListing(listing)}), nil
}

// ApproveListing approves a listing and opens its bidding window.
func (h *ListingHandler) ApproveListing(
	ctx context.Context,
	req *connect.Request[ListingRequest],
) (*connect.Response[ListingResponse], error) {
	id, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}
	listing, err := h.listings.Approve(ctx, id)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListingResponse{Listing: toListing(listing)}), nil
}

func (h *ListingHandler) RejectListing(
	ctx context.Context,
	req *connect.Request[ListingReasonRequest],
) (*connect.Response[ListingResponse], error) {
	id, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}
	listing, err := h.listings.Reject(ctx, id, req.Msg.Reason)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListingResponse{Listing: toListing(listing)}), nil
}

func (h *ListingHandler) CancelListing(
	ctx context.Context,
	req *connect.Request[ListingReasonRequest],
) (*connect.Response[ListingResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	id, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}
	listing, err := h.listings.Cancel(ctx, id, principal.UserID, req.Msg.Reason)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListingResponse{Listing: toListing(listing)}), nil
}

func (h *ListingHandler) RequestPhotoUpload(
	ctx context.Context,
	req *connect.Request[PhotoUploadRequest],
) (*connect.Response[UploadResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	id, err := parseID(req.Msg.ListingID, "listing_id")
	if err != nil {
		return nil, err
	}
	upload, err := h.listings.RequestPhotoUpload(ctx, id, principal.UserID, req.Msg.ContentType)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(toUpload(upload)), nil
}

func pageSize(requested int) int {
	if requested <= 0 {
		return defaultPageSize
	}
	return min(requested, maxPageSize)
}
