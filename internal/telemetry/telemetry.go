package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/WailSalutem-Health-Care/reminder-service/internal/config"
)

const (
	serviceNamespace = "wailsalutem"
	exportTimeout    = 5 * time.Second
	defaultRatio     = 0.1
)

// Provider owns the tracer and meter providers installed as otel globals.
// Either may be nil when its exporter could not be created.
type Provider struct {
	TracerProvider *trace.TracerProvider
	MeterProvider  *metric.MeterProvider
	logger         zerolog.Logger
}

// InitProvider installs OTLP gRPC trace and metric pipelines for the
// service. An unavailable collector only disables the affected signal.
func InitProvider(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Provider, error) {
	logger.Info().Str("endpoint", cfg.OTLPEndpoint).Msg("initializing OpenTelemetry")

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceNamespace(serviceNamespace),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Env),
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	p := &Provider{logger: logger}

	if tp, err := newTracerProvider(ctx, cfg, res); err != nil {
		logger.Warn().Err(err).Msg("tracer provider unavailable, continuing without distributed tracing")
	} else {
		p.TracerProvider = tp
		otel.SetTracerProvider(tp)
	}

	if mp, err := newMeterProvider(ctx, cfg, res); err != nil {
		logger.Warn().Err(err).Msg("meter provider unavailable, continuing without metrics export")
	} else {
		p.MeterProvider = mp
		otel.SetMeterProvider(mp)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return p, nil
}

func grpcDial() grpc.DialOption {
	return grpc.WithTransportCredentials(insecure.NewCredentials())
}

func newTracerProvider(ctx context.Context, cfg *config.Config, res *resource.Resource) (*trace.TracerProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithDialOption(grpcDial()),
		otlptracegrpc.WithTimeout(exportTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	return trace.NewTracerProvider(
		trace.WithResource(res),
		trace.WithSampler(sampler(cfg.TracesSampler, cfg.TracesSamplerArg)),
		trace.WithBatcher(exp, trace.WithBatchTimeout(exportTimeout)),
	), nil
}

// sampler maps the OTEL_TRACES_SAMPLER names to a sampler. Ratio samplers
// take arg and fall back to 10% when it is outside (0, 1].
func sampler(name string, arg float64) trace.Sampler {
	if arg <= 0 || arg > 1 {
		arg = defaultRatio
	}
	switch name {
	case "always_off":
		return trace.NeverSample()
	case "traceidratio":
		return trace.TraceIDRatioBased(arg)
	case "parentbased_always_on":
		return trace.ParentBased(trace.AlwaysSample())
	case "parentbased_traceidratio":
		return trace.ParentBased(trace.TraceIDRatioBased(arg))
	default:
		return trace.AlwaysSample()
	}
}

func newMeterProvider(ctx context.Context, cfg *config.Config, res *resource.Resource) (*metric.MeterProvider, error) {
	ctx, cancel := context.WithTimeout(ctx, exportTimeout)
	defer cancel()

	exp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlpmetricgrpc.WithDialOption(grpcDial()),
		otlpmetricgrpc.WithTimeout(exportTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
	}

	var opts []metric.PeriodicReaderOption
	if cfg.MetricsInterval > 0 {
		opts = append(opts, metric.WithInterval(cfg.MetricsInterval))
	}
	return metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(metric.NewPeriodicReader(exp, opts...)),
	), nil
}

// Shutdown flushes and stops both providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		p.logger.Error().Err(err).Msg("OpenTelemetry shutdown incomplete")
	}
	return err
}
