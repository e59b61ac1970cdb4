// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nodeflow/jobflow/internal/manager"
	"github.com/nodeflow/jobflow/internal/telemetry"
)

const metricsRefreshInterval = 5 * time.Second

// startMetricsServer serves /metrics on addr until ctx is canceled.
// Serve errors other than the expected shutdown are logged, not
// fatal: a dead metrics endpoint should not take the operator down.
func startMetricsServer(ctx context.Context, addr string, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
}

// refreshMetricsLoop periodically mirrors the manager's MetricsStore
// and active-sequence count into the Prometheus collectors until ctx
// is canceled.
func refreshMetricsLoop(ctx context.Context, exporter *telemetry.Metrics, m *manager.Manager) {
	ticker := time.NewTicker(metricsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			exporter.Refresh()
			exporter.SetActiveSequences(m.ActiveSequences())
		}
	}
}
