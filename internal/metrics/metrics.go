package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	launches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smallsh",
			Subsystem: "job",
			Name:      "launches_total",
			Help:      "Number of processes launched, by kind.",
		}, []string{"kind"},
	)
	completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smallsh",
			Subsystem: "job",
			Name:      "completions_total",
			Help:      "Number of reaped jobs, by kind and outcome.",
		}, []string{"kind", "outcome"},
	)
	launchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smallsh",
			Subsystem: "job",
			Name:      "launch_failures_total",
			Help:      "Commands that could not be started (redirect, exec or launch).",
		}, []string{"reason"},
	)
	foregroundDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "smallsh",
			Subsystem: "job",
			Name:      "foreground_duration_seconds",
			Help:      "Time the shell spent blocked on foreground children.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "smallsh",
			Subsystem: "shell",
			Name:      "signals_total",
			Help:      "Interactive signals received by the shell.",
		}, []string{"signal"},
	)
	foregroundOnly = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "smallsh",
			Subsystem: "shell",
			Name:      "foreground_only",
			Help:      "1 while foreground-only mode is active.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{launches, completions, launchFailures, foregroundDuration, signals, foregroundOnly}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Helpers below no-op until Register has succeeded.

func IncLaunch(kind string) {
	if regOK.Load() {
		launches.WithLabelValues(kind).Inc()
	}
}

func IncCompletion(kind, outcome string) {
	if regOK.Load() {
		completions.WithLabelValues(kind, outcome).Inc()
	}
}

func IncLaunchFailure(reason string) {
	if regOK.Load() {
		launchFailures.WithLabelValues(reason).Inc()
	}
}

func ObserveForeground(d time.Duration) {
	if regOK.Load() {
		foregroundDuration.Observe(d.Seconds())
	}
}

func IncSignal(name string) {
	if regOK.Load() {
		signals.WithLabelValues(name).Inc()
	}
}

func SetForegroundOnly(on bool) {
	if regOK.Load() {
		var v float64
		if on {
			v = 1
		}
		foregroundOnly.Set(v)
	}
}
