// Package metrics exposes prometheus counters for the engine pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "price_samples_total", Help: "Count of price samples ingested"},
		[]string{"symbol"},
	)
	StaleSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "stale_samples_total", Help: "Price samples discarded for data-quality reasons"},
		[]string{"symbol"},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "crossover_signals_total", Help: "Crossover events detected"},
		[]string{"symbol", "direction"},
	)
	SuppressedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "suppressed_signals_total", Help: "Crossover events suppressed by the ledger"},
		[]string{"symbol", "direction"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "orders_total", Help: "Orders confirmed by the venue"},
		[]string{"symbol", "side"},
	)
	OrderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_failures_total", Help: "Order submissions that exhausted retries or were rejected"},
		[]string{"symbol", "kind"},
	)
	OrderRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "order_retries_total", Help: "Transient submission failures that were retried"},
		[]string{"symbol"},
	)
)

func init() {
	prometheus.MustRegister(
		SamplesTotal,
		StaleSamplesTotal,
		SignalsTotal,
		SuppressedTotal,
		OrdersTotal,
		OrderFailuresTotal,
		OrderRetriesTotal,
	)
}

// Serve exposes /metrics on addr in the background.
func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
