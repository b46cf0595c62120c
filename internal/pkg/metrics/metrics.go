package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors shared by all saga services.
type Metrics struct {
	JoinDecisions     *prometheus.CounterVec
	SagaFailures      *prometheus.CounterVec
	EventsConsumed    *prometheus.CounterVec
	ValidatorOutcomes *prometheus.CounterVec
	OrdersPlaced      prometheus.Counter
	OrdersConfirmed   prometheus.Counter
	SweepEvictions    prometheus.Counter
	DeadLetters       prometheus.Counter
	gatherer          prometheus.Gatherer
}

// NewDefault registers metrics with the default Prometheus registry.
func NewDefault() *Metrics {
	return newMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
}

// New registers metrics with the provided registry. A nil registry gets a fresh one.
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return newMetrics(registry, registry)
}

func newMetrics(registerer prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	m := &Metrics{
		JoinDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_join_decisions_total",
			Help: "Correlation store decisions by kind.",
		}, []string{"decision"}),
		SagaFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_failures_total",
			Help: "Sagas that ended failed, by reason.",
		}, []string{"reason"}),
		EventsConsumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "saga_events_consumed_total",
			Help: "Consumed bus messages by topic and result.",
		}, []string{"topic", "result"}),
		ValidatorOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "validator_outcomes_total",
			Help: "Validator verdicts by validator and outcome.",
		}, []string{"validator", "outcome"}),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Orders accepted at intake.",
		}),
		OrdersConfirmed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "orders_confirmed_total",
			Help: "Orders projected as CONFIRMED.",
		}),
		SweepEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saga_sweep_evictions_total",
			Help: "Saga records evicted by the sweeper.",
		}),
		DeadLetters: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "saga_dead_letters_total",
			Help: "Messages routed to the dead-letter topic.",
		}),
		gatherer: gatherer,
	}

	registerer.MustRegister(
		m.JoinDecisions,
		m.SagaFailures,
		m.EventsConsumed,
		m.ValidatorOutcomes,
		m.OrdersPlaced,
		m.OrdersConfirmed,
		m.SweepEvictions,
		m.DeadLetters,
	)
	return m
}

// Handler exposes the registry this Metrics was registered with.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) IncJoinDecision(decision string) {
	m.JoinDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncSagaFailure(reason string) {
	m.SagaFailures.WithLabelValues(reason).Inc()
}

func (m *Metrics) IncConsumed(topic, result string) {
	m.EventsConsumed.WithLabelValues(topic, result).Inc()
}

func (m *Metrics) IncValidatorOutcome(validator, outcome string) {
	m.ValidatorOutcomes.WithLabelValues(validator, outcome).Inc()
}
