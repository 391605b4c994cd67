package tracing

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/soonlist/soonlist-backend/internal/tracing"

// Config points the exporter at a Langfuse compatible OTLP endpoint.
type Config struct {
	Endpoint    string
	PublicKey   string
	SecretKey   string
	ServiceName string
	Environment string
}

// Provider owns the process wide tracer provider and its batch exporter.
type Provider struct {
	tp *sdktrace.TracerProvider
}

func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	auth := base64.StdEncoding.EncodeToString([]byte(cfg.PublicKey + ":" + cfg.SecretKey))
	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpointURL(strings.TrimRight(cfg.Endpoint, "/")+"/v1/traces"),
		otlptracehttp.WithHeaders(map[string]string{"Authorization": "Basic " + auth}),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("deployment.environment", cfg.Environment),
	))
	if err != nil {
		return nil, fmt.Errorf("build trace resource: %w", err)
	}

	// Export runs on the batcher's goroutine; failures only reach the log.
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		logrus.WithError(err).Warn("trace export failed")
	}))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	return &Provider{tp: tp}, nil
}

func (p *Provider) Tracer() Tracer {
	return NewOTelTracer(p.tp)
}

// Shutdown flushes pending spans. Errors are logged, not returned, so exit
// paths never fail on the tracing backend.
func (p *Provider) Shutdown(ctx context.Context) {
	if err := p.tp.Shutdown(ctx); err != nil {
		logrus.WithError(err).Warn("trace provider shutdown")
	}
}

type OTelTracer struct {
	tracer trace.Tracer
}

func NewOTelTracer(tp trace.TracerProvider) *OTelTracer {
	return &OTelTracer{tracer: tp.Tracer(instrumentationName)}
}

func (t *OTelTracer) StartGeneration(ctx context.Context, info TraceInfo) (context.Context, Generation) {
	ctx, root := t.tracer.Start(ctx, info.Name, trace.WithAttributes(
		attribute.String("langfuse.trace.name", info.Name),
		attribute.String("langfuse.user.id", info.UserID),
		attribute.String("langfuse.session.id", info.SessionID),
		attribute.String("langfuse.trace.input", info.Input),
		attribute.String("langfuse.trace.metadata.prompt_version", info.PromptVersion),
	))
	ctx, span := t.tracer.Start(ctx, info.Name+".generation", trace.WithAttributes(
		attribute.String("langfuse.observation.type", "generation"),
		attribute.String("langfuse.observation.input", info.Input),
		attribute.String("gen_ai.request.model", info.Model),
	))
	return ctx, &otelGeneration{root: root, span: span}
}

type otelGeneration struct {
	root trace.Span
	span trace.Span
}

func (g *otelGeneration) End(o Outcome) {
	scores := ScoreOf(o)

	attrs := []attribute.KeyValue{
		attribute.String("gen_ai.response.model", o.Model),
		attribute.String("gen_ai.response.finish_reason", o.FinishReason),
	}
	if len(o.Warnings) > 0 {
		attrs = append(attrs, attribute.StringSlice("langfuse.observation.metadata.warnings", o.Warnings))
	}
	if scores.Quality == 1 {
		if out, err := json.Marshal(o.Output); err == nil {
			attrs = append(attrs, attribute.String("langfuse.observation.output", string(out)))
		}
	}
	g.span.SetAttributes(attrs...)

	g.span.AddEvent("score", trace.WithAttributes(
		attribute.String("score.name", "quality"),
		attribute.Float64("score.value", scores.Quality),
	))
	g.span.AddEvent("score", trace.WithAttributes(
		attribute.String("score.name", "json_conformance"),
		attribute.Float64("score.value", scores.JSONConformance),
	))

	if o.Err != nil {
		g.span.RecordError(o.Err)
		g.span.SetStatus(codes.Error, o.Err.Error())
		g.root.SetAttributes(attribute.String("langfuse.trace.metadata.error", o.Err.Error()))
		g.root.SetStatus(codes.Error, "generation failed")
	}
	g.root.SetAttributes(attribute.String("langfuse.trace.metadata.finish_reason", o.FinishReason))
	if len(o.Warnings) > 0 {
		g.root.SetAttributes(attribute.StringSlice("langfuse.trace.metadata.warnings", o.Warnings))
	}

	g.span.End()
	g.root.End()
}
