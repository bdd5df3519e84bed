package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsRecorded counts events that made it through recording, labeled
	// by derived category.
	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "behaviortrace_events_recorded_total",
		Help: "Total behavioral events recorded, by event category",
	}, []string{"category"})

	// AnonymousSkipped counts recording calls short-circuited because no
	// authenticated actor was present.
	AnonymousSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "behaviortrace_anonymous_skipped_total",
		Help: "Recording calls skipped because the request was anonymous",
	})

	// SideEffectFailures counts best-effort side effects that failed,
	// labeled by side effect (store, queue, cache). Failures are logged
	// and swallowed; this is how operators see them.
	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "behaviortrace_side_effect_failures_total",
		Help: "Recording side effects that failed, by side effect",
	}, []string{"side_effect"})
)
