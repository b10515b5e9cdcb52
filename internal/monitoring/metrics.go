package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Market data metrics
	ticksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_ticks_total",
			Help: "Total number of market data ticks processed",
		},
		[]string{"symbol"},
	)

	volRatio = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_vol_ratio",
			Help: "Recent versus baseline volatility ratio",
		},
		[]string{"symbol"},
	)

	// Threshold metrics
	costThreshold = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_cost_threshold",
			Help: "Latest transaction cost threshold",
		},
		[]string{"symbol"},
	)

	sizeMultiplier = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_size_multiplier",
			Help: "Latest position size multiplier",
		},
		[]string{"symbol"},
	)

	thresholdDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_threshold_decisions_total",
			Help: "Threshold decisions by decision chain state",
		},
		[]string{"symbol", "state"},
	)

	// Circuit breaker metrics
	breakerTripped = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_breaker_tripped",
			Help: "1 while the symbol's circuit breaker is tripped",
		},
		[]string{"symbol"},
	)

	breakerTrips = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_breaker_trips_total",
			Help: "Circuit breaker trips by reason",
		},
		[]string{"symbol", "reason"},
	)

	// Feedback metrics
	feedbackScale = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_feedback_scale",
			Help: "Feedback loop scaling adjustment",
		},
		[]string{"symbol", "scale"},
	)

	// Risk metrics
	orderDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_order_decisions_total",
			Help: "Order admission decisions by outcome and violated limit",
		},
		[]string{"symbol", "outcome", "violation"},
	)

	portfolioGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "risk_engine_portfolio",
			Help: "Portfolio risk snapshot",
		},
		[]string{"metric"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_engine_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)
)

func init() {
	// Register metrics
	prometheus.MustRegister(ticksTotal)
	prometheus.MustRegister(volRatio)
	prometheus.MustRegister(costThreshold)
	prometheus.MustRegister(sizeMultiplier)
	prometheus.MustRegister(thresholdDecisions)
	prometheus.MustRegister(breakerTripped)
	prometheus.MustRegister(breakerTrips)
	prometheus.MustRegister(feedbackScale)
	prometheus.MustRegister(orderDecisions)
	prometheus.MustRegister(portfolioGauge)
	prometheus.MustRegister(errorsTotal)
}

// MetricsHandler handles Prometheus metrics endpoint
type MetricsHandler struct {
	next http.Handler
}

// NewMetricsHandler creates a new metrics handler
func NewMetricsHandler() *MetricsHandler {
	return &MetricsHandler{next: promhttp.Handler()}
}

// ServeHTTP serves the Prometheus metrics endpoint
func (m *MetricsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.next.ServeHTTP(w, r)
}

// RecordTick records a processed tick and the resulting volatility ratio
func RecordTick(symbol string, ratio float64) {
	ticksTotal.WithLabelValues(symbol).Inc()
	volRatio.WithLabelValues(symbol).Set(ratio)
}

// RecordThreshold records a threshold decision
func RecordThreshold(symbol, state string, threshold, multiplier float64) {
	thresholdDecisions.WithLabelValues(symbol, state).Inc()
	costThreshold.WithLabelValues(symbol).Set(threshold)
	sizeMultiplier.WithLabelValues(symbol).Set(multiplier)
}

// SetBreakerState updates the breaker gauge and counts trips
func SetBreakerState(symbol string, tripped bool, reason string) {
	if tripped {
		breakerTripped.WithLabelValues(symbol).Set(1)
		breakerTrips.WithLabelValues(symbol, reason).Inc()
		return
	}
	breakerTripped.WithLabelValues(symbol).Set(0)
}

// UpdateFeedbackScales records the feedback loop's current scales
func UpdateFeedbackScales(symbol string, volScale, sizeScale float64) {
	feedbackScale.WithLabelValues(symbol, "vol").Set(volScale)
	feedbackScale.WithLabelValues(symbol, "size").Set(sizeScale)
}

// RecordOrderDecision counts an admission decision
func RecordOrderDecision(symbol string, accepted bool, violation string) {
	outcome := "accepted"
	if !accepted {
		outcome = "rejected"
	}
	orderDecisions.WithLabelValues(symbol, outcome, violation).Inc()
}

// UpdatePortfolio records the latest portfolio snapshot
func UpdatePortfolio(notional, unrealizedPnL, leverage, valueAtRisk, worstDrawdown float64) {
	portfolioGauge.WithLabelValues("total_notional").Set(notional)
	portfolioGauge.WithLabelValues("unrealized_pnl").Set(unrealizedPnL)
	portfolioGauge.WithLabelValues("leverage").Set(leverage)
	portfolioGauge.WithLabelValues("value_at_risk").Set(valueAtRisk)
	portfolioGauge.WithLabelValues("worst_drawdown").Set(worstDrawdown)
}

// RecordError records an error metric
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
