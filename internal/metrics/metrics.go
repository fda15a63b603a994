// Package metrics exposes Prometheus collectors for the ledger server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mmynk/splitledger/internal/models"
)

// Collector owns the server's metrics and the registry they live in.
// It satisfies ledger.Observer.
type Collector struct {
	registry *prometheus.Registry

	rpcRequests   *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	transitions   *prometheus.CounterVec
	balanceTiming *prometheus.HistogramVec
}

// New registers all collectors, plus the Go and process collectors, on a
// fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		rpcRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitledger_rpc_requests_total",
			Help: "Total RPC requests, labeled by procedure and result code",
		}, []string{"procedure", "code"}),
		rpcDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "splitledger_rpc_duration_seconds",
			Help:    "Latency distribution of RPC requests",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"procedure"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "splitledger_settlement_transitions_total",
			Help: "Settlement status changes",
		}, []string{"from", "to"}),
		balanceTiming: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "splitledger_balance_computation_seconds",
			Help:    "Time spent aggregating group balances",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}, []string{"result"}),
	}
}

// ObserveRPC records one finished RPC.
func (c *Collector) ObserveRPC(procedure, code string, d time.Duration) {
	c.rpcRequests.WithLabelValues(procedure, code).Inc()
	c.rpcDuration.WithLabelValues(procedure).Observe(d.Seconds())
}

func (c *Collector) SettlementTransition(rec models.SettlementRecord, from models.SettlementStatus) {
	c.transitions.WithLabelValues(string(from), string(rec.Status)).Inc()
}

func (c *Collector) BalancesComputed(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.balanceTiming.WithLabelValues(result).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
