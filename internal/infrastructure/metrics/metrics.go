// Package metrics exposes Prometheus collectors for the ledger service, the
// event stream, the store and the HTTP API on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MirasRuslanJR/PyShark/internal/application/ledger"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
	"github.com/MirasRuslanJR/PyShark/internal/infrastructure/messaging"
	"github.com/MirasRuslanJR/PyShark/pkg/circuitbreaker"
)

const namespace = "pyshark"

// Outcome label values.
const (
	OutcomeOK        = "ok"
	OutcomeUserError = "user_error"
	OutcomeError     = "error"
)

// Metrics holds every collector. It implements ledger.Recorder,
// persistence.Observer and messaging.Observer.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	operations        *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	persistFailures   *prometheus.CounterVec
	corruptRecovered  prometheus.Counter

	events          *prometheus.CounterVec
	handlerRuns     *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec

	xpAwarded  prometheus.Counter
	level      prometheus.Gauge
	unlocks    *prometheus.CounterVec
	goalsMet   prometheus.Counter
	lessonsRun prometheus.Counter

	storeCalls    *prometheus.CounterVec
	storeDuration *prometheus.HistogramVec
	breakerState  *prometheus.GaugeVec
}

// New creates the collectors and registers them with a fresh registry,
// together with the Go runtime and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),

		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "operations_total",
			Help: "Ledger operations by outcome",
		}, []string{"op", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "operation_duration_seconds",
			Help:    "Duration of ledger operations including persistence",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "persist_failures_total",
			Help: "Mutations kept in memory because the store rejected the save",
		}, []string{"op"}),
		corruptRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ledger", Name: "corrupt_records_recovered_total",
			Help: "Stored records that failed to decode and were replaced with defaults",
		}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "events", Name: "published_total",
			Help: "Presentation events by type and origin (local or remote instance)",
		}, []string{"type", "origin"}),
		handlerRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "events", Name: "handler_runs_total",
			Help: "Event handler executions by event type and outcome",
		}, []string{"type", "outcome"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "events", Name: "handler_duration_seconds",
			Help:    "Duration of event handler executions",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"type"}),
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "progress", Name: "lesson_xp_awarded_total",
			Help: "XP awarded for lesson completions",
		}),
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "progress", Name: "level",
			Help: "Most recently reached level",
		}),
		unlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "progress", Name: "achievements_unlocked_total",
			Help: "Achievement unlocks by id",
		}, []string{"achievement"}),
		goalsMet: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "progress", Name: "daily_goals_completed_total",
			Help: "Days on which the daily goal was reached",
		}),
		lessonsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "progress", Name: "lessons_completed_total",
			Help: "First-time lesson completions",
		}),

		storeCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "store", Name: "calls_total",
			Help: "Store calls by backend, operation and outcome",
		}, []string{"backend", "op", "outcome"}),
		storeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "store", Name: "call_duration_seconds",
			Help:    "Store call latency including retries",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 3},
		}, []string{"backend", "op"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "store", Name: "circuit_state",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		}, []string{"backend"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.operations, m.operationDuration, m.persistFailures, m.corruptRecovered,
		m.events, m.handlerRuns, m.handlerDuration, m.xpAwarded, m.level, m.unlocks, m.goalsMet, m.lessonsRun,
		m.storeCalls, m.storeDuration, m.breakerState,
	)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ──────────────────────────────────────────────────────────────────────────────
// ledger.Recorder
// ──────────────────────────────────────────────────────────────────────────────

// ObserveOperation records one service call.
func (m *Metrics) ObserveOperation(op string, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	switch {
	case err == nil:
	case ledger.IsUserError(err):
		outcome = OutcomeUserError
	default:
		outcome = OutcomeError
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.operationDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// PersistFailure counts a save that failed after the mutation was applied.
func (m *Metrics) PersistFailure(op string) {
	m.persistFailures.WithLabelValues(op).Inc()
}

// CorruptRecordRecovered counts a fallback to defaults.
func (m *Metrics) CorruptRecordRecovered() {
	m.corruptRecovered.Inc()
}

// ──────────────────────────────────────────────────────────────────────────────
// persistence.Observer
// ──────────────────────────────────────────────────────────────────────────────

// ObserveStore records one guarded store call.
func (m *Metrics) ObserveStore(backend, op string, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	switch {
	case err == nil:
	case shared.IsNotFound(err):
		outcome = "not_found"
	default:
		outcome = OutcomeError
	}
	m.storeCalls.WithLabelValues(backend, op, outcome).Inc()
	m.storeDuration.WithLabelValues(backend, op).Observe(elapsed.Seconds())
}

// BreakerStateChanged exports the new circuit state.
func (m *Metrics) BreakerStateChanged(backend string, state circuitbreaker.State) {
	m.breakerState.WithLabelValues(backend).Set(float64(state))
}

// ──────────────────────────────────────────────────────────────────────────────
// Event stream
// ──────────────────────────────────────────────────────────────────────────────

// ObserveEventPublished implements messaging.Observer.
func (m *Metrics) ObserveEventPublished(eventType shared.EventType, origin string) {
	m.events.WithLabelValues(string(eventType), origin).Inc()
}

// ObserveHandler implements messaging.Observer.
func (m *Metrics) ObserveHandler(eventType shared.EventType, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.handlerRuns.WithLabelValues(string(eventType), outcome).Inc()
	m.handlerDuration.WithLabelValues(string(eventType)).Observe(elapsed.Seconds())
}

// Subscribe feeds the progress collectors from bus.
func (m *Metrics) Subscribe(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(m.HandleEvent)
}

// HandleEvent updates the progress collectors from one event. Events from
// other instances are skipped: each instance reports the progress it produced.
func (m *Metrics) HandleEvent(event shared.Event) error {
	if messaging.Origin(event) == messaging.OriginRemote {
		return nil
	}
	payload := event.Payload()

	switch event.EventType() {
	case shared.EventLevelUp:
		if lvl, ok := number(payload["newLevel"]); ok {
			m.level.Set(lvl)
		}
	case shared.EventAchievementUnlocked:
		if id, ok := payload["id"].(string); ok {
			m.unlocks.WithLabelValues(id).Inc()
		}
	case shared.EventDailyGoalCompleted:
		m.goalsMet.Inc()
	case shared.EventLessonCompleted:
		m.lessonsRun.Inc()
		if xp, ok := number(payload["xpAwarded"]); ok {
			m.xpAwarded.Add(xp)
		}
	case shared.EventProgressReset:
		m.level.Set(1)
	}
	return nil
}

// number accepts ints and the float64 values produced by JSON decoding.
func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// HTTP
// ──────────────────────────────────────────────────────────────────────────────

// GinMiddleware records request counts and latency by route template.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.httpRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
