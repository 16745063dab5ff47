package auth

import (
	"context"
	"errors"
	"slices"
	"strings"

	"connectrpc.com/connect"
	"github.com/google/uuid"
)

type contextKey string

const (
	tokenHeader              = "Authorization"
	tokenPrefix              = "Bearer "
	UserClaimsKey contextKey = "user_claims"
)

// Rule describes who may call one procedure.
type Rule struct {
	Public bool
	Roles  []Role
}

// Policy maps full procedure names ("/cellflip.v1.BidService/PlaceBid") to rules.
// Procedures absent from the policy are denied.
type Policy map[string]Rule

// Allows reports whether role may call procedure. Public procedures allow any role.
func (p Policy) Allows(procedure string, role Role) bool {
	rule, ok := p[procedure]
	if !ok {
		return false
	}
	return rule.Public || slices.Contains(rule.Roles, role)
}

// NewAuthInterceptor authenticates the bearer token and enforces the role policy
// once per request. Claims are placed in the context for handlers.
func NewAuthInterceptor(signer *Signer, policy Policy) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure
			rule, ok := policy[procedure]
			if !ok {
				return nil, connect.NewError(connect.CodePermissionDenied, errors.New("procedure not allowed"))
			}
			if rule.Public {
				return next(ctx, req)
			}

			authHeader := req.Header().Get(tokenHeader)
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing authorization header"))
			}

			if !strings.HasPrefix(authHeader, tokenPrefix) {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid authorization header format"))
			}

			claims, err := signer.ValidateToken(strings.TrimPrefix(authHeader, tokenPrefix))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("invalid or expired token"))
			}

			if !policy.Allows(procedure, claims.Role) {
				return nil, connect.NewError(connect.CodePermissionDenied, errors.New("role not allowed"))
			}

			return next(WithClaims(ctx, claims), req)
		}
	}
}

// WithClaims returns a context carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserClaimsKey, claims)
}

// GetUserClaims retrieves the full claims from the context.
func GetUserClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(UserClaimsKey).(*Claims)
	return claims, ok
}

// Principal is the authenticated caller.
type Principal struct {
	UserID uuid.UUID
	Phone  string
	Role   Role
}

var ErrNoPrincipal = errors.New("no authenticated principal in context")

// PrincipalFrom extracts the caller from the context.
func PrincipalFrom(ctx context.Context) (Principal, error) {
	claims, ok := GetUserClaims(ctx)
	if !ok {
		return Principal{}, ErrNoPrincipal
	}
	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Principal{}, ErrNoPrincipal
	}
	return Principal{UserID: id, Phone: claims.Phone, Role: claims.Role}, nil
}
