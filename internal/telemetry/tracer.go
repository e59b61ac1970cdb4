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

package telemetry

import (
	"context"
	"crypto/tls"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerConfig configures the OTLP/HTTP exporter a Tracer ships spans
// to. Endpoint empty disables tracing entirely: NewTracer then returns
// a Tracer wrapping a no-op span processor, not an error, so operators
// can leave tracing off without special-casing the manager's wiring.
type TracerConfig struct {
	ServiceName string
	Endpoint    string
	Insecure    bool
}

// Tracer is the production EventObserver: one jobflow.event span per
// watch iteration, with phase children for each step of the fixed
// per-event order.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewTracer builds a Tracer shipping spans to cfg.Endpoint over
// OTLP/HTTP. Call Shutdown on process exit to flush pending spans.
func NewTracer(ctx context.Context, cfg TracerConfig) (*Tracer, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
		),
	)
	if err != nil {
		return nil, err
	}

	var opts []sdktrace.TracerProviderOption
	opts = append(opts, sdktrace.WithResource(res))

	if cfg.Endpoint != "" {
		exporterOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			exporterOpts = append(exporterOpts, otlptracehttp.WithInsecure())
		} else {
			exporterOpts = append(exporterOpts, otlptracehttp.WithTLSClientConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
		}
		exporter, err := otlptracehttp.New(ctx, exporterOpts...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	return &Tracer{provider: provider, tracer: provider.Tracer("jobflow")}, nil
}

// Shutdown flushes pending spans and releases exporter resources.
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// StartEvent implements EventObserver.
func (t *Tracer) StartEvent(ctx context.Context, jobid, step string) (context.Context, EventSpan) {
	ctx, span := t.tracer.Start(ctx, "jobflow.event", trace.WithAttributes(
		attribute.String("jobid", jobid),
		attribute.String("step", step),
	))
	return ctx, &tracerEventSpan{tracer: t.tracer, span: span}
}

type tracerEventSpan struct {
	tracer trace.Tracer
	span   trace.Span
}

func (e *tracerEventSpan) StartPhase(ctx context.Context, name string) PhaseSpan {
	_, span := e.tracer.Start(ctx, name)
	return &tracerPhaseSpan{span: span}
}

func (e *tracerEventSpan) End(err error) {
	if err != nil {
		e.span.RecordError(err)
		e.span.SetStatus(codes.Error, err.Error())
	}
	e.span.End()
}

type tracerPhaseSpan struct {
	span trace.Span
}

func (p *tracerPhaseSpan) SetAction(action string) {
	p.span.AddEvent("action", trace.WithAttributes(attribute.String("action", action)))
}

func (p *tracerPhaseSpan) End() {
	p.span.End()
}
