package api

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/dirtsid3r/cellflip/internal/domain/agents"
	"github.com/dirtsid3r/cellflip/pkg/auth"
)

type AgentHandler struct {
	agents AgentService
}

func NewAgentHandler(agents AgentService) *AgentHandler {
	return &AgentHandler{agents: agents}
}

// GetAgent returns an agent profile. Agents may only read their own; an empty
// agent_id means the caller.
func (h *AgentHandler) GetAgent(
	ctx context.Context,
	req *connect.Request[GetAgentRequest],
) (*connect.Response[AgentResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}

	agentID := principal.UserID
	if req.Msg.AgentID != "" {
		if agentID, err = parseID(req.Msg.AgentID, "agent_id"); err != nil {
			return nil, err
		}
	}
	if principal.Role != auth.RoleAdmin && agentID != principal.UserID {
		return nil, connect.NewError(connect.CodePermissionDenied, errors.New("agents may only view their own profile"))
	}
	return h.respond(ctx, agentID)
}

func (h *AgentHandler) SetAvailability(
	ctx context.Context,
	req *connect.Request[SetAvailabilityRequest],
) (*connect.Response[AgentResponse], error) {
	principal, err := auth.PrincipalFrom(ctx)
	if err != nil {
		return nil, toConnectError(err)
	}
	if err := h.agents.SetAvailability(ctx, principal.UserID, agents.Availability(req.Msg.Availability)); err != nil {
		return nil, toConnectError(err)
	}
	return h.respond(ctx, principal.UserID)
}

func (h *AgentHandler) respond(ctx context.Context, agentID uuid.UUID) (*connect.Response[AgentResponse], error) {
	agent, err := h.agents.GetAgent(ctx, agentID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&AgentResponse{Agent: toAgent(agent)}), nil
}
