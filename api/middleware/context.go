package middleware

import "context"

type ctxKey int

const (
	userIDKey ctxKey = iota
	roleKey
	requestIDKey
)

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func withString(ctx context.Context, key ctxKey, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// UserIDFromContext returns the authenticated caller, or "" for public routes.
func UserIDFromContext(ctx context.Context) string { return stringValue(ctx, userIDKey) }

// RoleFromContext returns the caller's role claim.
func RoleFromContext(ctx context.Context) string { return stringValue(ctx, roleKey) }

// RequestIDFromContext returns the id echoed in X-Request-Id.
func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, requestIDKey) }

func WithUserID(ctx context.Context, userID string) context.Context {
	return withString(ctx, userIDKey, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return withString(ctx, roleKey, role)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return withString(ctx, requestIDKey, requestID)
}
