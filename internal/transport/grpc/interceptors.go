package grpc

import (
	"context"
	"time"

	grpclib "google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// DefaultRequestTimeoutInterceptor bounds requests that arrive without a
// client deadline.
func DefaultRequestTimeoutInterceptor(timeout time.Duration) grpclib.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

type rpcObserver interface {
	ObserveRPC(method, code string)
}

// MetricsInterceptor counts completed RPCs by method and status code.
func MetricsInterceptor(obs rpcObserver) grpclib.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpclib.UnaryServerInfo, handler grpclib.UnaryHandler) (any, error) {
		resp, err := handler(ctx, req)
		obs.ObserveRPC(info.FullMethod, status.Code(err).String())
		return resp, err
	}
}
