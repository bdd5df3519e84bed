package ops

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the operational router: health and debug endpoints
// plus the Prometheus scrape target.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	h.Register(r)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}
