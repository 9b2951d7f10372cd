// Package metrics exposes msgbox counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrijs2005/msgbox/internal/logging"
)

type Metrics struct {
	Registry *prometheus.Registry

	Commands          *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	ActiveConnections prometheus.Gauge
	Connections       prometheus.Counter
	ProtocolErrors    prometheus.Counter
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "msgbox",
			Subsystem: "server",
			Name:      "commands_total",
			Help:      "Number of dispatched commands by outcome",
		}, []string{"command", "outcome"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "msgbox",
			Subsystem: "server",
			Name:      "command_duration_seconds",
			Help:      "Time spent handling a command",
			Buckets:   prometheus.DefBuckets,
		}, []string{"command"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "msgbox",
			Subsystem: "server",
			Name:      "active_connections",
			Help:      "Number of connections being served",
		}),
		Connections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "msgbox",
			Subsystem: "server",
			Name:      "connections_total",
			Help:      "Number of accepted connections",
		}),
		ProtocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "msgbox",
			Subsystem: "server",
			Name:      "protocol_errors_total",
			Help:      "Number of malformed request frames",
		}),
	}
	m.Registry.MustRegister(m.Commands, m.CommandDuration, m.ActiveConnections, m.Connections, m.ProtocolErrors)
	return m
}

// ObserveCommand records one dispatched command.
func (m *Metrics) ObserveCommand(command, outcome string, elapsed time.Duration) {
	m.Commands.WithLabelValues(command, outcome).Inc()
	m.CommandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

func (m *Metrics) ConnectionOpened() {
	m.Connections.Inc()
	m.ActiveConnections.Inc()
}

func (m *Metrics) ConnectionClosed() { m.ActiveConnections.Dec() }

func (m *Metrics) ProtocolError() { m.ProtocolErrors.Inc() }

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables
// the endpoint.
func (m *Metrics) Serve(ctx context.Context, addr string, logger logging.Logger) error {
	if addr == "" {
		logger.Debug(ctx, "metrics addr is empty, not exposing prometheus metrics")
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "metrics handler listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
