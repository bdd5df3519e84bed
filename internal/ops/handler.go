// Package ops exposes the worker's operational HTTP surface: health,
// metrics, and read-only debug endpoints over the behavioral pipeline.
package ops

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"behaviortrace/internal/event"
	"behaviortrace/internal/learning"
	"behaviortrace/internal/tracker"
	id "behaviortrace/pkg/domain"
	"behaviortrace/pkg/requestcontext"
)

// HealthChecker reports the health of one dependency.
type HealthChecker func(ctx context.Context) error

// Handler wires operational endpoints to the pipeline services.
type Handler struct {
	cache    event.RecentCache
	learning *learning.Service
	tracker  *tracker.Service
	logger   *slog.Logger
	checks   map[string]HealthChecker
}

func New(cache event.RecentCache, learningService *learning.Service, trackerService *tracker.Service, logger *slog.Logger) *Handler {
	return &Handler{
		cache:    cache,
		learning: learningService,
		tracker:  trackerService,
		logger:   logger,
		checks:   map[string]HealthChecker{},
	}
}

// AddHealthCheck registers a named dependency check consulted by
// /healthz.
func (h *Handler) AddHealthCheck(name string, check HealthChecker) {
	h.checks[name] = check
}

// Register mounts operational endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Post("/events", h.HandleTrack)
	r.Get("/users/{userID}/recent", h.HandleRecentEvents)
	r.Get("/users/{userID}/recommendations", h.HandleRecommendations)
	r.Post("/predictions/{predictionID}/outcome", h.HandleOutcome)
	r.Post("/models/train", h.HandleTrain)
}

type trackRequest struct {
	UserID    string         `json:"user_id"`
	Role      string         `json:"role"`
	SessionID string         `json:"session_id"`
	EventType string         `json:"event_type"`
	Data      map[string]any `json:"data"`
	Context   map[string]any `json:"context"`
}

// HandleTrack handles POST /events: records one interaction on behalf
// of the identified user. The endpoint trusts its caller for identity;
// it sits on the internal ops surface, not a public edge.
func (h *Handler) HandleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, err := id.ParseUserID(req.UserID)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return
	}
	if req.EventType == "" {
		respondError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	ctx := requestcontext.WithActor(r.Context(), requestcontext.Actor{
		UserID: userID,
		Role:   req.Role,
	})
	ctx = requestcontext.WithSessionID(ctx, req.SessionID)
	ctx = requestcontext.WithClientMetadata(ctx, r.RemoteAddr, r.UserAgent())
	ctx = requestcontext.WithRequestMetadata(ctx, r.URL.Path, r.Method)

	h.tracker.Track(ctx, req.EventType, req.Data, req.Context)
	respond(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleHealth handles GET /healthz.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status := http.StatusOK
	deps := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("health check failed", "dependency", name, "error", err)
			deps[name] = "unhealthy"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	respond(w, status, map[string]any{
		"status":       httpStatusWord(status),
		"dependencies": deps,
	})
}

// HandleRecentEvents handles GET /users/{userID}/recent: the bounded
// recency cache for one user, most recent first.
func (h *Handler) HandleRecentEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}
	if h.cache == nil {
		respondError(w, http.StatusServiceUnavailable, "recency cache not configured")
		return
	}

	events, err := h.cache.List(r.Context(), userID)
	if err != nil {
		h.logger.Error("recency cache read failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "cache read failed")
		return
	}
	respond(w, http.StatusOK, map[string]any{
		"user_id": userID,
		"events":  events,
	})
}

// HandleRecommendations handles GET /users/{userID}/recommendations.
func (h *Handler) HandleRecommendations(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.parseUserID(w, r)
	if !ok {
		return
	}

	bundle, err := h.learning.RealtimeRecommendations(r.Context(), userID)
	if err != nil {
		h.logger.Error("recommendation build failed", "user_id", userID, "error", err)
		respondError(w, http.StatusInternalServerError, "recommendation build failed")
		return
	}
	respond(w, http.StatusOK, bundle)
}

type outcomeRequest struct {
	Accurate bool `json:"accurate"`
}

// HandleOutcome handles POST /predictions/{predictionID}/outcome.
func (h *Handler) HandleOutcome(w http.ResponseWriter, r *http.Request) {
	predictionID := chi.URLParam(r, "predictionID")

	var req outcomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.learning.RecordOutcome(r.Context(), predictionID, req.Accurate)
	if errors.Is(err, learning.ErrPredictionNotFound) {
		respondError(w, http.StatusNotFound, "prediction not found")
		return
	}
	if err != nil {
		h.logger.Error("outcome recording failed",
			"prediction_id", predictionID, "error", err)
		respondError(w, http.StatusInternalServerError, "outcome recording failed")
		return
	}
	respond(w, http.StatusOK, map[string]string{"status": "recorded"})
}

// HandleTrain handles POST /models/train. The force query parameter
// bypasses the retrain gate.
func (h *Handler) HandleTrain(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))
	results := h.learning.TrainAll(r.Context(), force)
	respond(w, http.StatusOK, results)
}

func (h *Handler) parseUserID(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid user id")
		return id.UserID{}, false
	}
	return userID, true
}

func respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respond(w, status, map[string]string{"error": message})
}

func httpStatusWord(status int) string {
	if status == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
