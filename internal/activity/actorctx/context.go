// Package actorctx propagates the acting principal and request provenance
// through context.Context so the activity recorder can resolve them without a
// dependency on the HTTP layer. The auth middleware populates these values
// once per request; everything downstream reads them.
package actorctx

import "context"

type contextKey string

const (
	userIDKey    contextKey = "activity_user_id"
	userNameKey  contextKey = "activity_user_name"
	ipAddressKey contextKey = "activity_ip_address"
	userAgentKey contextKey = "activity_user_agent"
)

// WithActor returns a context carrying the authenticated principal.
func WithActor(ctx context.Context, userID, userName string) context.Context {
	if userID != "" {
		ctx = context.WithValue(ctx, userIDKey, userID)
	}
	if userName != "" {
		ctx = context.WithValue(ctx, userNameKey, userName)
	}
	return ctx
}

// Actor returns the principal stored by WithActor, or empty strings.
func Actor(ctx context.Context) (userID, userName string) {
	userID, _ = ctx.Value(userIDKey).(string)
	userName, _ = ctx.Value(userNameKey).(string)
	return userID, userName
}

// WithProvenance returns a context carrying the client IP and user agent.
func WithProvenance(ctx context.Context, ipAddress, userAgent string) context.Context {
	if ipAddress != "" {
		ctx = context.WithValue(ctx, ipAddressKey, ipAddress)
	}
	if userAgent != "" {
		ctx = context.WithValue(ctx, userAgentKey, userAgent)
	}
	return ctx
}

// Provenance returns the client IP and user agent stored by WithProvenance.
func Provenance(ctx context.Context) (ipAddress, userAgent string) {
	ipAddress, _ = ctx.Value(ipAddressKey).(string)
	userAgent, _ = ctx.Value(userAgentKey).(string)
	return ipAddress, userAgent
}
