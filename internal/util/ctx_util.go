package util

import (
	"context"

	"github.com/RoyceAzure/lab/storefront/internal/constants"
)

func WithMemberID(ctx context.Context, memberID int64) context.Context {
	return context.WithValue(ctx, constants.MemberIDKey, memberID)
}

// MemberIDFromContext 沒有經過 auth middleware 時回傳 false
func MemberIDFromContext(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(constants.MemberIDKey).(int64)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, constants.RequestIDKey, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(constants.RequestIDKey).(string); ok {
		return v
	}
	return "unknown"
}
