package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

type contextKey string

const tenantKey contextKey = "tenant_id"

// TenantHeader is the metadata key the API gateway sets after authenticating
// the merchant.
const TenantHeader = "x-merchant-id"

func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// GetTenantID returns the tenant set by ContextInterceptor, falling back to
// incoming metadata.
func GetTenantID(ctx context.Context) string {
	if val, ok := ctx.Value(tenantKey).(string); ok && val != "" {
		return val
	}

	md, ok := metadata.FromIncomingContext(ctx)
	if ok {
		if val := md.Get(TenantHeader); len(val) > 0 {
			return strings.TrimSpace(val[0])
		}
	}
	return ""
}

// ContextInterceptor copies the tenant from metadata into the request context.
func ContextInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if tenantID := GetTenantID(ctx); tenantID != "" {
			ctx = WithTenantID(ctx, tenantID)
		}
		return handler(ctx, req)
	}
}
