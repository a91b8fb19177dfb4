package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

var (
	ErrInvalidConfig         = errors.New("invalid telemetry configuration")
	ErrMissingServiceName    = errors.New("service name is required")
	ErrMissingServiceVersion = errors.New("service version is required")
	ErrInvalidSampleRate     = errors.New("sample rate must be between 0.0 and 1.0")
)

const defaultMetricInterval = 30 * time.Second

// Config selects what Initialize wires. An empty OTLPEndpoint keeps tracing
// and metrics in-process without exporting them.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	OTLPEndpoint   string
	EnableTracing  bool
	EnableMetrics  bool
	SampleRate     float64
	MetricInterval time.Duration
}

func (c Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingServiceName)
	case c.ServiceVersion == "":
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrMissingServiceVersion)
	case c.SampleRate < 0 || c.SampleRate > 1:
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidSampleRate)
	}
	return nil
}

// Telemetry owns the providers installed as otel globals.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

type Option func(*options)

type options struct {
	traceExporter  sdktrace.SpanExporter
	metricExporter sdkmetric.Exporter
}

// WithTraceExporter replaces the exporter chosen from Config.
func WithTraceExporter(exporter sdktrace.SpanExporter) Option {
	return func(o *options) { o.traceExporter = exporter }
}

// WithMetricExporter replaces the exporter chosen from Config.
func WithMetricExporter(exporter sdkmetric.Exporter) Option {
	return func(o *options) { o.metricExporter = exporter }
}

// Initialize builds the enabled providers, installs them globally together
// with the W3C trace context and baggage propagators, and returns a handle
// for Shutdown.
func Initialize(ctx context.Context, cfg Config, opts ...Option) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
		resource.WithFromEnv(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tel := &Telemetry{}

	if cfg.EnableTracing {
		exporter, err := traceExporter(ctx, cfg, o.traceExporter)
		if err != nil {
			return nil, err
		}
		tel.tracerProvider = sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(createSampler(cfg.SampleRate)),
			sdktrace.WithBatcher(exporter),
		)
		otel.SetTracerProvider(tel.tracerProvider)
	}

	if cfg.EnableMetrics {
		exporter, err := metricExporter(ctx, cfg, o.metricExporter)
		if err != nil {
			_ = tel.Shutdown(ctx)
			return nil, err
		}
		interval := cfg.MetricInterval
		if interval <= 0 {
			interval = defaultMetricInterval
		}
		tel.meterProvider = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))),
		)
		otel.SetMeterProvider(tel.meterProvider)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return tel, nil
}

func traceExporter(ctx context.Context, cfg Config, provided sdktrace.SpanExporter) (sdktrace.SpanExporter, error) {
	if provided != nil {
		return provided, nil
	}
	if cfg.OTLPEndpoint == "" {
		return NewDiscardTraceExporter(), nil
	}
	// Plaintext gRPC to the local collector; TLS terminates at the mesh.
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	return exporter, nil
}

func metricExporter(ctx context.Context, cfg Config, provided sdkmetric.Exporter) (sdkmetric.Exporter, error) {
	if provided != nil {
		return provided, nil
	}
	if cfg.OTLPEndpoint == "" {
		return NewDiscardMetricExporter(), nil
	}
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric exporter: %w", err)
	}
	return exporter, nil
}

func createSampler(rate float64) sdktrace.Sampler {
	switch {
	case rate <= 0:
		return sdktrace.NeverSample()
	case rate >= 1:
		return sdktrace.AlwaysSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// Shutdown flushes and stops both providers. Each provider shuts down its
// own exporter.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *Telemetry) TracerProvider() *sdktrace.TracerProvider { return t.tracerProvider }

func (t *Telemetry) MeterProvider() *sdkmetric.MeterProvider { return t.meterProvider }
