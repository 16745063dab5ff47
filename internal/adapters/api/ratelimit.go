package api

import (
	"context"
	"errors"
	"net"
	"time"

	"connectrpc.com/connect"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// NewRateLimitInterceptor limits calls to the listed procedures per caller IP.
// Other procedures pass through untouched.
func NewRateLimitInterceptor(limit int64, period time.Duration, procedures ...string) connect.UnaryInterceptorFunc {
	if limit <= 0 {
		limit = 5
	}
	if period <= 0 {
		period = time.Minute
	}
	limited := make(map[string]bool, len(procedures))
	for _, p := range procedures {
		limited[p] = true
	}
	instance := limiter.New(memory.NewStore(), limiter.Rate{Period: period, Limit: limit})

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			procedure := req.Spec().Procedure
			if !limited[procedure] {
				return next(ctx, req)
			}

			key := peerHost(req.Peer().Addr) + "|" + procedure
			lctx, err := instance.Get(ctx, key)
			if err != nil {
				return nil, connect.NewError(connect.CodeInternal, errors.New("rate limiter unavailable"))
			}
			if lctx.Reached {
				return nil, connect.NewError(connect.CodeResourceExhausted, errors.New("too many requests, try again later"))
			}
			return next(ctx, req)
		}
	}
}

func peerHost(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
