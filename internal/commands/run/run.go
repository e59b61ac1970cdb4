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

// Package run implements the jobflow run command: it wires a workflow
// definition to a concrete cluster backend and drives the
// WorkflowManager until the target completion count is reached or a
// finish-workflow rule fires.
package run

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	k8sclient "k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/nodeflow/jobflow/internal/artifact"
	"github.com/nodeflow/jobflow/internal/cli"
	"github.com/nodeflow/jobflow/internal/config"
	"github.com/nodeflow/jobflow/internal/log"
	"github.com/nodeflow/jobflow/internal/manager"
	"github.com/nodeflow/jobflow/internal/telemetry"
	k8stracker "github.com/nodeflow/jobflow/internal/tracker/kubernetes"
	jobflowerrors "github.com/nodeflow/jobflow/pkg/errors"
	"github.com/nodeflow/jobflow/pkg/tracker"
)

var (
	kubeconfigFlag  string
	otlpEndpoint    string
	metricsAddr     string
	tracingInsecure bool
)

// NewCommand creates the run command.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workflow operator",
		Long: `run loads the workflow named by --workflow, connects to the
configured scheduler's backend, and drives every job sequence through
its steps until completions_needed is reached or a finish-workflow
rule fires. Exit codes follow spec §6: 0 on normal completion,
non-zero on startup misconfiguration.`,
		RunE: runRun,
	}

	cmd.Flags().StringVar(&kubeconfigFlag, "kubeconfig", "", "Path to a kubeconfig file (default: in-cluster config)")
	cmd.Flags().StringVar(&otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint for trace export (default: tracing disabled)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus metrics on (default: metrics not served)")
	cmd.Flags().BoolVar(&tracingInsecure, "otlp-insecure", false, "Disable TLS for the OTLP exporter")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := log.New(log.FromEnv())
	slog.SetDefault(logger)

	cfg, err := config.Load(cli.GetWorkflowPath())
	if err != nil {
		return cli.NewConfigError("failed to load workflow", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	backend, watcher, err := buildBackend(cfg, logger)
	if err != nil {
		return cli.NewConfigError("failed to configure cluster backend", err)
	}

	root, err := artifact.NewRoot(artifactConfig(cfg))
	if err != nil {
		return cli.NewConfigError("failed to configure artifact root", err)
	}

	tracer, err := telemetry.NewTracer(ctx, telemetry.TracerConfig{
		ServiceName: "jobflow",
		Endpoint:    otlpEndpoint,
		Insecure:    tracingInsecure,
	})
	if err != nil {
		return cli.NewConfigError("failed to initialize tracing", err)
	}
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	m := manager.New(cfg, backend, watcher, root).
		WithLogger(logger).
		WithObserver(tracer)

	metricsExporter := telemetry.NewMetrics(m.MetricsStore(), prometheus.DefaultRegisterer)
	if metricsAddr != "" {
		startMetricsServer(ctx, metricsAddr, logger)
	}
	go refreshMetricsLoop(ctx, metricsExporter, m)

	if err := m.Init(ctx); err != nil {
		return cli.NewRunError("reconciliation failed", err)
	}

	select {
	case <-m.Done():
		logger.Info("workflow complete")
		return nil
	default:
	}

	if err := m.Run(ctx); err != nil && ctx.Err() == nil {
		return cli.NewRunError("workflow run failed", err)
	}

	return nil
}

func buildBackend(cfg *config.Config, logger *slog.Logger) (tracker.Adapter, tracker.Watcher, error) {
	switch cfg.Scheduler {
	case "kubernetes":
		clientset, err := newKubernetesClient()
		if err != nil {
			return nil, nil, err
		}
		namespace := k8stracker.Namespace()
		adapter := k8stracker.New(clientset, namespace, cfg)
		watcher := k8stracker.NewNodeWatcher(clientset)
		return adapter, watcher, nil
	case "flux":
		return nil, nil, &jobflowerrors.ConfigError{
			Key:    "scheduler",
			Reason: "the flux backend is out of scope for this build; only kubernetes is wired",
		}
	default:
		return nil, nil, &jobflowerrors.ConfigError{Key: "scheduler", Reason: fmt.Sprintf("unsupported scheduler %q", cfg.Scheduler)}
	}
}

func newKubernetesClient() (k8sclient.Interface, error) {
	if kubeconfigFlag != "" {
		restCfg, err := clientcmd.BuildConfigFromFlags("", kubeconfigFlag)
		if err != nil {
			return nil, jobflowerrors.Wrap(err, "loading kubeconfig")
		}
		return k8sclient.NewForConfig(restCfg)
	}

	restCfg, err := rest.InClusterConfig()
	if err != nil {
		return nil, jobflowerrors.Wrap(err, "loading in-cluster config (pass --kubeconfig when running outside the cluster)")
	}
	return k8sclient.NewForConfig(restCfg)
}

func artifactConfig(cfg *config.Config) artifact.Config {
	ac := artifact.Config{Filesystem: cfg.Filesystem}
	if cfg.Registry != nil {
		ac.Registry = &artifact.RegistryConfig{
			Host:      cfg.Registry.Host,
			PlainHTTP: cfg.Registry.PlainHTTP,
			Push:      cfg.Registry.Push,
			Pull:      cfg.Registry.Pull,
		}
	}
	return ac
}
