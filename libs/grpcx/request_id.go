package grpcx

import (
	"context"
	"strings"

	"github.com/md-rashed-zaman/storefront/libs/httpx"
	"google.golang.org/grpc/metadata"
)

// RequestIDMetadataKey is httpx.RequestIDHeader in gRPC's lowercase metadata form.
const RequestIDMetadataKey = "x-request-id"

// RequestIDFromContext and WithRequestID share httpx's context slot, so an id minted by the
// HTTP middleware is the one forwarded on outgoing gRPC calls and vice versa.
func RequestIDFromContext(ctx context.Context) string {
	return httpx.RequestIDFromContext(ctx)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return httpx.ContextWithRequestID(ctx, id)
}

// incomingRequestID returns the caller's id, ignoring blank or oversized values.
func incomingRequestID(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	for _, v := range md.Get(RequestIDMetadataKey) {
		v = strings.TrimSpace(v)
		if v != "" && len(v) <= 128 {
			return v
		}
	}
	return ""
}
