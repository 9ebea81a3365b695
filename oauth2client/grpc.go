package oauth2client

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor that adds
// "authorization: Bearer <token>" to the outgoing metadata.
//
// If token acquisition fails, the RPC is aborted with the error. No header is added for
// unauthenticated environments.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "gateway:9090",
//	    grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
//	)
func (tm *TokenManager) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply interface{},
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		ctx, err := tm.outgoingContext(ctx)
		if err != nil {
			return err
		}

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor that adds
// "authorization: Bearer <token>" to the outgoing metadata.
func (tm *TokenManager) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		ctx, err := tm.outgoingContext(ctx)
		if err != nil {
			return nil, err
		}

		return streamer(ctx, desc, cc, method, opts...)
	}
}

func (tm *TokenManager) outgoingContext(ctx context.Context) (context.Context, error) {
	token, err := tm.EnsureToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth2: failed to get token: %w", err)
	}
	if token == "" {
		return ctx, nil
	}

	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token), nil
}

// PerRPCCredentials returns credentials for grpc.WithPerRPCCredentials. They require a
// secure transport.
func (tm *TokenManager) PerRPCCredentials() credentials.PerRPCCredentials {
	return perRPCCredentials{tm: tm}
}

type perRPCCredentials struct {
	tm *TokenManager
}

func (c perRPCCredentials) GetRequestMetadata(ctx context.Context, _ ...string) (map[string]string, error) {
	token, err := c.tm.EnsureToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("oauth2: failed to get token: %w", err)
	}
	if token == "" {
		return map[string]string{}, nil
	}

	return map[string]string{"authorization": "Bearer " + token}, nil
}

func (perRPCCredentials) RequireTransportSecurity() bool {
	return true
}
