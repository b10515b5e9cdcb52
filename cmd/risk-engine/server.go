package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/ducminhle1904/adaptive-risk-engine/internal/logger"
	"github.com/ducminhle1904/adaptive-risk-engine/internal/monitoring"
)

// monitoringServers serves /health and /metrics on their configured ports
type monitoringServers struct {
	log     *logger.Logger
	servers []*http.Server
}

func newMonitoringServers(log *logger.Logger, health *monitoring.HealthChecker, healthPort, metricsPort int) *monitoringServers {
	// Separate mux for the health server
	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", monitoring.NewMetricsHandler())

	return &monitoringServers{
		log: log,
		servers: []*http.Server{
			{Addr: fmt.Sprintf(":%d", healthPort), Handler: healthMux, ReadHeaderTimeout: 5 * time.Second},
			{Addr: fmt.Sprintf(":%d", metricsPort), Handler: metricsMux, ReadHeaderTimeout: 5 * time.Second},
		},
	}
}

// Start binds every listener before returning so port errors surface early.
func (m *monitoringServers) Start() error {
	for _, srv := range m.servers {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			m.Shutdown(context.Background())
			return fmt.Errorf("listen %s: %w", srv.Addr, err)
		}
		go func(srv *http.Server, ln net.Listener) {
			m.log.Info("Serving on %s", ln.Addr())
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.log.LogError("monitoring server", err)
			}
		}(srv, ln)
	}
	return nil
}

// Shutdown stops every server, waiting for in-flight requests until ctx ends.
func (m *monitoringServers) Shutdown(ctx context.Context) error {
	var errs []error
	for _, srv := range m.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
