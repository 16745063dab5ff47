package api

import (
	"context"

	"connectrpc.com/connect"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/internal/domain/users"
	"github.com/dirtsid3r/cellflip/pkg/auth"
)

type AuthHandler struct {
	users UserService
}

func NewAuthHandler(users UserService) *AuthHandler {
	return &AuthHandler{users: users}
}

// Register creates a client or vendor account. Staff roles go through CreateStaff.
func (h *AuthHandler) Register(
	ctx context.Context,
	req *connect.Request[RegisterRequest],
) (*connect.Response[UserResponse], error) {
	user, err := h.users.Register(ctx, users.RegisterCommand{
		Phone:    req.Msg.Phone,
		FullName: req.Msg.FullName,
		City:     req.Msg.City,
		Role:     auth.Role(req.Msg.Role),
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&UserResponse{User: toUser(user)}), nil
}

func (h *AuthHandler) CreateStaff(
	ctx context.Context,
	req *connect.Request[CreateStaffRequest],
) (*connect.Response[UserResponse], error) {
	user, err := h.users.CreateStaff(ctx, users.StaffCommand{
		Phone:    req.Msg.Phone,
		FullName: req.Msg.FullName,
		City:     req.Msg.City,
		Role:     auth.Role(req.Msg.Role),
		Location: agents.Location{Latitude: req.Msg.Latitude, Longitude: req.Msg.Longitude},
	})
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&UserResponse{User: toUser(user)}), nil
}

// RequestLoginCode sends a LOGIN code to a registered phone. The gate id is
// returned so the client can echo it back with the code.
func (h *AuthHandler) RequestLoginCode(
	ctx context.Context,
	req *connect.Request[RequestLoginCodeRequest],
) (*connect.Response[RequestLoginCodeResponse], error) {
	gate, err := h.users.RequestLoginCode(ctx, req.Msg.Phone)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&RequestLoginCodeResponse{
		GateID:    gate.ID.String(),
		ExpiresAt: formatTime(gate.ExpiresAt),
	}), nil
}

func (h *AuthHandler) VerifyLoginCode(
	ctx context.Context,
	req *connect.Request[VerifyLoginCodeRequest],
) (*connect.Response[VerifyLoginCodeResponse], error) {
	gateID, err := parseID(req.Msg.GateID, "gate_id")
	if err != nil {
		return nil, err
	}
	session, err := h.users.VerifyLoginCode(ctx, req.Msg.Phone, gateID, req.Msg.Code)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&VerifyLoginCodeResponse{
		AccessToken: session.AccessToken,
		ExpiresAt:   formatTime(session.ExpiresAt),
		User:        toUser(session.User),
	}), nil
}

func (h *AuthHandler) GetProfile(
	ctx context.Context,
	_ *connect.Request[GetProfileRequest],
) (*connect.Response[UserResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	user, err := h.users.GetProfile(ctx, principal.UserID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&UserResponse{User: toUser(user)}), nil
}
