package testutil

import (
	"context"
	"time"

	id "behaviortrace/pkg/domain"
	"behaviortrace/pkg/requestcontext"
)

// AuthenticatedContext builds a context carrying an authenticated actor
// and session, simulating what the surrounding application's auth layer
// provides before tracking is invoked. An invalid user ID is silently
// ignored so tests can also model anonymous callers.
func AuthenticatedContext(userID, role, sessionID string) context.Context {
	ctx := context.Background()
	if parsed, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithActor(ctx, requestcontext.Actor{
			UserID: parsed,
			Role:   role,
		})
	}
	if sessionID != "" {
		ctx = requestcontext.WithSessionID(ctx, sessionID)
	}
	return ctx
}

// RequestContext layers client and request metadata over an existing
// context the way the HTTP entrypoint would.
func RequestContext(ctx context.Context, clientIP, userAgent, path, method string) context.Context {
	ctx = requestcontext.WithClientMetadata(ctx, clientIP, userAgent)
	ctx = requestcontext.WithRequestMetadata(ctx, path, method)
	return requestcontext.WithTime(ctx, time.Now())
}
