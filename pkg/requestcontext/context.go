// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Middleware sets these values; the tracking service consumes them. Keeping
// the package free of net/http lets workers and tests inject the same values
// without an HTTP stack:
//
//	ctx = requestcontext.WithActor(ctx, actor)
//	ctx = requestcontext.WithClientMetadata(ctx, ip, userAgent)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "behaviortrace/pkg/domain"
)

// Actor identifies the authenticated user on whose behalf a request runs.
// Absence of an Actor in the context means the request is anonymous.
type Actor struct {
	UserID         id.UserID
	Role           string
	FacilityID     id.FacilityID
	OrganizationID id.OrganizationID
}

// Context key types (unexported for encapsulation).
type (
	actorKey       struct{}
	sessionIDKey   struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	urlPathKey     struct{}
	httpMethodKey  struct{}
	requestTimeKey struct{}
)

// ActorFrom retrieves the authenticated actor from the context.
// The second return is false for anonymous requests.
func ActorFrom(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// WithActor injects an authenticated actor into the context.
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// SessionID retrieves the opaque session correlation key from the context.
func SessionID(ctx context.Context) string {
	if s, ok := ctx.Value(sessionIDKey{}).(string); ok {
		return s
	}
	return ""
}

// WithSessionID injects a session correlation key into the context.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey{}, sessionID)
}

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey{}).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(userAgentKey{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, clientIP)
	ctx = context.WithValue(ctx, userAgentKey{}, userAgent)
	return ctx
}

// URLPath retrieves the request URL path from the context.
func URLPath(ctx context.Context) string {
	if p, ok := ctx.Value(urlPathKey{}).(string); ok {
		return p
	}
	return ""
}

// HTTPMethod retrieves the request HTTP method from the context.
func HTTPMethod(ctx context.Context) string {
	if m, ok := ctx.Value(httpMethodKey{}).(string); ok {
		return m
	}
	return ""
}

// WithRequestMetadata injects the request URL path and HTTP method.
func WithRequestMetadata(ctx context.Context, urlPath, method string) context.Context {
	ctx = context.WithValue(ctx, urlPathKey{}, urlPath)
	ctx = context.WithValue(ctx, httpMethodKey{}, method)
	return ctx
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for non-HTTP contexts (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Also serves as the
// request start marker used to derive per-event timing metrics.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
