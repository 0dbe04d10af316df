// Package metrics exposes process-local Prometheus instrumentation for a
// repair run: how large the population and archive grow, how many
// individuals get evaluated, and how long the sandboxed analyzer and gas
// calls take.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine holds the MOGA Engine's counters and gauges.
type Engine struct {
	PopulationSize      prometheus.Gauge
	ArchiveSize         prometheus.Gauge
	GenerationsTotal    prometheus.Counter
	IndividualsEvaluated prometheus.Counter
	PlausiblePatchesTotal prometheus.Counter
}

// Sandbox holds the Static Analyzer Adapter and Gas Ranker's call-latency
// instrumentation.
type Sandbox struct {
	CallDuration *prometheus.HistogramVec
	CallsTotal   *prometheus.CounterVec
}

// NewEngine registers and returns a fresh Engine metrics set.
func NewEngine() *Engine {
	return &Engine{
		PopulationSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "repaircore",
			Subsystem: "engine",
			Name:      "population_size",
			Help:      "Current number of individuals held in the working population.",
		}),
		ArchiveSize: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "repaircore",
			Subsystem: "engine",
			Name:      "archive_size",
			Help:      "Current number of individuals retained in the Pareto archive.",
		}),
		GenerationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "repaircore",
			Subsystem: "engine",
			Name:      "generations_total",
			Help:      "Total number of generations completed by the MOGA Engine.",
		}),
		IndividualsEvaluated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "repaircore",
			Subsystem: "engine",
			Name:      "individuals_evaluated_total",
			Help:      "Total number of individuals evaluated across the whole run.",
		}),
		PlausiblePatchesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "repaircore",
			Subsystem: "engine",
			Name:      "plausible_patches_total",
			Help:      "Total number of plausible patches returned.",
		}),
	}
}

// NewSandbox registers and returns a fresh Sandbox metrics set.
func NewSandbox() *Sandbox {
	return &Sandbox{
		CallDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "repaircore",
			Subsystem: "sandbox",
			Name:      "call_duration_seconds",
			Help:      "Duration of a single sandboxed tool invocation.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"tool"}), // tool: the analyzer's name, or gas-ranker
		CallsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "repaircore",
			Subsystem: "sandbox",
			Name:      "calls_total",
			Help:      "Total number of sandboxed tool invocations, by tool and outcome.",
		}, []string{"tool", "outcome"}), // outcome: ok, error
	}
}

// ObserveCall records the duration and outcome of one sandboxed tool
// invocation. Callers typically defer this around the call they're timing:
//
//	start := time.Now()
//	res, err := runner.Run(ctx, spec)
//	sb.ObserveCall("analyzer", start, err)
func (s *Sandbox) ObserveCall(tool string, start time.Time, err error) {
	s.CallDuration.WithLabelValues(tool).Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.CallsTotal.WithLabelValues(tool, outcome).Inc()
}

// Serve starts a blocking HTTP server exposing the registered metrics on
// addr's "/metrics" path, returning once ctx is cancelled or the listener
// fails.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
