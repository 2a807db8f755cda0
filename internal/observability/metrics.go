// Package observability exposes process-wide Prometheus metrics for the
// workout tracker.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fittracker"

var (
	workoutsPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "last_workouts_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent workout collection write.",
	})

	workoutMutations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "workout_mutations_total",
		Help:      "Number of workout mutations applied, labeled by kind.",
	}, []string{"kind"})

	sessionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "session_events_total",
		Help:      "Number of login, signup and logout operations.",
	}, []string{"event"})

	collectionSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "store",
		Name:      "workouts",
		Help:      "Number of workouts in the active collection.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled, labeled by method and status code.",
	}, []string{"method", "code"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Time spent serving HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

func init() {
	prometheus.MustRegister(workoutsPersistGauge, workoutMutations, sessionEvents, collectionSize, httpRequests, httpDuration)
}

// RecordWorkoutsPersisted updates the persistence watermark gauge.
func RecordWorkoutsPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	workoutsPersistGauge.Set(float64(ts.Unix()))
}

// RecordMutation counts an applied add, edit or delete and the resulting
// collection size.
func RecordMutation(kind string, size int) {
	workoutMutations.WithLabelValues(kind).Inc()
	collectionSize.Set(float64(size))
}

// RecordSession counts a session lifecycle event.
func RecordSession(event string, size int) {
	sessionEvents.WithLabelValues(event).Inc()
	collectionSize.Set(float64(size))
}

// InstrumentHandler records request counts and latencies for next.
func InstrumentHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		httpDuration.WithLabelValues(r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
