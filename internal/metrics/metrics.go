// Package metrics exposes Prometheus counters for the paper trading engine.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/alejandrodnm/polypaper/internal/domain"
)

const namespace = "polypaper"

var (
	// Orders by action (BUY/SELL/CLOSE) and outcome.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "orders_total",
			Help:      "Simulated orders by action and status",
		},
		[]string{"action", "status"},
	)

	// Risk rejections by rule.
	RiskRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "risk",
			Name:      "rejections_total",
			Help:      "Orders rejected by the risk engine, by rule",
		},
		[]string{"rule"},
	)

	// Gateway requests by endpoint and outcome.
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "requests_total",
			Help:      "Market data requests by endpoint and outcome",
		},
		[]string{"endpoint", "outcome"},
	)

	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "gateway",
			Name:      "request_duration_seconds",
			Help:      "Market data request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// Positions valued with a cached price because the live quote failed.
	StaleQuotes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "stale_quotes_total",
			Help:      "Positions valued with the last stored price",
		},
	)

	PortfolioValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "total_value_usd",
			Help:      "Mark-to-market portfolio value",
		},
		[]string{"portfolio"},
	)

	PortfolioDrawdown = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "portfolio",
			Name:      "drawdown_ratio",
			Help:      "Drawdown from peak as a fraction",
		},
		[]string{"portfolio"},
	)
)

// ObserveOrder records the outcome of an order. Risk rejections also count
// against their rule.
func ObserveOrder(action string, err error) {
	if err == nil {
		OrdersTotal.WithLabelValues(action, "filled").Inc()
		return
	}
	var re *domain.RiskError
	if errors.As(err, &re) {
		OrdersTotal.WithLabelValues(action, "risk_rejected").Inc()
		RiskRejections.WithLabelValues(string(re.Rule)).Inc()
		return
	}
	OrdersTotal.WithLabelValues(action, "failed").Inc()
}

// ObserveGateway records one gateway call.
func ObserveGateway(endpoint string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	GatewayRequests.WithLabelValues(endpoint, outcome).Inc()
	GatewayLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// ObservePortfolio publishes the valuation gauges.
func ObservePortfolio(view domain.PortfolioView) {
	PortfolioValue.WithLabelValues(view.Name).Set(view.TotalValue)
	PortfolioDrawdown.WithLabelValues(view.Name).Set(view.DrawdownPct)
}
