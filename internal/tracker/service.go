// Package tracker records behavioral events. Recording is best-effort
// telemetry: a failure anywhere in this package is logged and swallowed,
// never surfaced to the caller's request flow.
package tracker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"behaviortrace/internal/event"
	"behaviortrace/internal/sanitize"
	"behaviortrace/internal/tracker/metrics"
	"behaviortrace/pkg/requestcontext"
)

// Service assembles canonical events from request context and fans them out
// to the durable store, the processing queue, and the recency cache.
type Service struct {
	store     event.Store
	publisher event.Publisher
	cache     event.RecentCache
	logger    *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithPublisher(publisher event.Publisher) Option {
	return func(s *Service) { s.publisher = publisher }
}

func WithRecentCache(cache event.RecentCache) Option {
	return func(s *Service) { s.cache = cache }
}

func New(store event.Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("event store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Track records one user interaction. Anonymous requests (no actor in the
// context) are a silent no-op: anonymous interactions are never tracked.
//
// Track has no error return on purpose. Every side effect is individually
// best-effort; failures increment a counter and are logged with event-type
// context, and the caller's request flow is never blocked or failed.
func (s *Service) Track(ctx context.Context, eventType string, data, eventContext map[string]any) {
	actor, ok := requestcontext.ActorFrom(ctx)
	if !ok {
		metrics.AnonymousSkipped.Inc()
		return
	}
	if eventType == "" {
		s.logger.Warn("dropping event with empty type", "user_id", actor.UserID)
		return
	}

	e := s.assemble(ctx, actor, eventType, data, eventContext)

	if err := s.store.Append(ctx, e); err != nil {
		metrics.SideEffectFailures.WithLabelValues("store").Inc()
		s.logger.Warn("behavioral event store append failed",
			"event_type", eventType,
			"error", err,
		)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, e); err != nil {
			metrics.SideEffectFailures.WithLabelValues("queue").Inc()
			s.logger.Warn("behavioral event publish failed",
				"event_type", eventType,
				"error", err,
			)
		}
	}

	if s.cache != nil {
		if err := s.cache.Push(ctx, actor.UserID, e); err != nil {
			metrics.SideEffectFailures.WithLabelValues("cache").Inc()
			s.logger.Warn("recent event cache push failed",
				"event_type", eventType,
				"error", err,
			)
		}
	}

	metrics.EventsRecorded.WithLabelValues(string(e.Category)).Inc()
}

func (s *Service) assemble(ctx context.Context, actor requestcontext.Actor, eventType string, data, eventContext map[string]any) event.Event {
	now := requestcontext.Now(ctx)
	ua := requestcontext.UserAgent(ctx)

	return event.Event{
		ID:             "evt_" + uuid.NewString(),
		UserID:         actor.UserID,
		UserRole:       actor.Role,
		FacilityID:     actor.FacilityID,
		OrganizationID: actor.OrganizationID,

		Type:     eventType,
		Category: event.Categorize(eventType),

		CreatedAt: now,
		SessionID: requestcontext.SessionID(ctx),

		IPHash:        hashIdentity(requestcontext.ClientIP(ctx)),
		UserAgentHash: hashIdentity(ua),
		URLPath:       requestcontext.URLPath(ctx),
		HTTPMethod:    requestcontext.HTTPMethod(ctx),

		Data:               sanitize.EventData(data),
		Context:            sanitize.Context(eventContext),
		BrowserInfo:        browserInfo(ua),
		PerformanceMetrics: performanceMetrics(ctx),
	}
}

// hashIdentity one-way hashes client network identity. The original value
// is never retained past this call.
func hashIdentity(s string) string {
	if s == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// browserInfo derives a coarse environment fingerprint from the user agent.
// Parsed families only; the raw string never leaves this function.
func browserInfo(rawUA string) map[string]any {
	if rawUA == "" {
		return map[string]any{}
	}

	ua := useragent.New(rawUA)
	browser, _ := ua.Browser()

	deviceType := "desktop"
	switch {
	case strings.Contains(rawUA, "iPad") || strings.Contains(rawUA, "Tablet"):
		deviceType = "tablet"
	case ua.Mobile():
		deviceType = "mobile"
	}

	return map[string]any{
		"is_mobile":      ua.Mobile(),
		"is_bot":         ua.Bot(),
		"device_type":    deviceType,
		"browser_family": strings.ToLower(browser),
		"os_family":      strings.ToLower(ua.OSInfo().Name),
	}
}

// performanceMetrics reports in-request timing when the middleware stamped a
// request start time; empty otherwise.
func performanceMetrics(ctx context.Context) map[string]any {
	elapsed := time.Since(requestcontext.Now(ctx))
	if elapsed <= 0 {
		return map[string]any{}
	}
	return map[string]any{
		"execution_time": elapsed.Seconds(),
	}
}
