package auth

import (
	"context"
	"testing"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	placeBid    = "/cellflip.v1.BidService/PlaceBid"
	requestCode = "/cellflip.v1.AuthService/RequestLoginCode"
)

var testPolicy = Policy{
	placeBid:    {Roles: []Role{RoleVendor}},
	requestCode: {Public: true},
}

// procedureRequest wraps a request so Spec() reports the given procedure.
type procedureRequest struct {
	connect.AnyRequest
	procedure string
}

func (r procedureRequest) Spec() connect.Spec {
	return connect.Spec{Procedure: r.procedure}
}

func newRequest(procedure, token string) connect.AnyRequest {
	req := connect.NewRequest(&struct{}{})
	if token != "" {
		req.Header().Set("Authorization", token)
	}
	return procedureRequest{AnyRequest: req, procedure: procedure}
}

func TestAuthInterceptor(t *testing.T) {
	signer, _ := newTestSigner(t)
	vendorID := uuid.New()

	vendorToken, err := signer.IssueAccessToken(vendorID, "919000000001", RoleVendor)
	require.NoError(t, err)
	clientToken, err := signer.IssueAccessToken(uuid.New(), "919000000002", RoleClient)
	require.NoError(t, err)

	var seen *Principal
	next := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		if p, err := PrincipalFrom(ctx); err == nil {
			seen = &p
		}
		return connect.NewResponse(&struct{}{}), nil
	}
	interceptor := NewAuthInterceptor(signer, testPolicy)

	tests := []struct {
		name      string
		procedure string
		header    string
		wantCode  connect.Code
	}{
		{name: "allowed role", procedure: placeBid, header: "Bearer " + vendorToken.Token},
		{name: "public procedure without token", procedure: requestCode},
		{name: "wrong role", procedure: placeBid, header: "Bearer " + clientToken.Token, wantCode: connect.CodePermissionDenied},
		{name: "missing header", procedure: placeBid, wantCode: connect.CodeUnauthenticated},
		{name: "missing bearer prefix", procedure: placeBid, header: vendorToken.Token, wantCode: connect.CodeUnauthenticated},
		{name: "garbage token", procedure: placeBid, header: "Bearer nope", wantCode: connect.CodeUnauthenticated},
		{name: "unknown procedure", procedure: "/cellflip.v1.Secret/Do", header: "Bearer " + vendorToken.Token, wantCode: connect.CodePermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			_, err := interceptor(next)(context.Background(), newRequest(tt.procedure, tt.header))
			if tt.wantCode == 0 {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, connect.CodeOf(err))
		})
	}

	t.Run("principal injected", func(t *testing.T) {
		_, err := interceptor(next)(context.Background(), newRequest(placeBid, "Bearer "+vendorToken.Token))
		require.NoError(t, err)
		require.NotNil(t, seen)
		assert.Equal(t, vendorID, seen.UserID)
		assert.Equal(t, RoleVendor, seen.Role)
	})
}

func TestPolicy_Allows(t *testing.T) {
	assert.True(t, testPolicy.Allows(placeBid, RoleVendor))
	assert.False(t, testPolicy.Allows(placeBid, RoleAdmin))
	assert.True(t, testPolicy.Allows(requestCode, RoleClient))
	assert.False(t, testPolicy.Allows("/unknown", RoleAdmin))
}
