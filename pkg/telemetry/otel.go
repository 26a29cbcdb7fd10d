// Package telemetry provides OpenTelemetry OTLP gRPC export integration.
// Export is opt-in; when disabled, spans are no-ops.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/buildflow/buildflow/pkg/stats"
)

// OTLPConfig configures the OpenTelemetry OTLP gRPC exporter.
type OTLPConfig struct {
	// Endpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	Endpoint string

	// ServiceName identifies this service in traces
	ServiceName string

	// ServiceVersion is the version of this service
	ServiceVersion string

	// InsecureTLS disables TLS for the gRPC connection (use for local dev)
	InsecureTLS bool

	// BatchTimeout is how long to wait before sending a batch of spans
	BatchTimeout time.Duration

	// ExportTimeout is the timeout for exporting a batch
	ExportTimeout time.Duration
}

// DefaultOTLPConfig returns sensible defaults for OTLP configuration.
func DefaultOTLPConfig(serviceName string) OTLPConfig {
	return OTLPConfig{
		Endpoint:       "localhost:4317",
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		InsecureTLS:    true,
		BatchTimeout:   5 * time.Second,
		ExportTimeout:  30 * time.Second,
	}
}

// OTLPExporter manages the OpenTelemetry OTLP gRPC exporter lifecycle.
type OTLPExporter struct {
	mu sync.Mutex

	cfg            OTLPConfig
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	shutdown       func(context.Context) error
	initialized    bool
}

// NewOTLPExporter creates a new OTLP gRPC exporter.
func NewOTLPExporter(cfg OTLPConfig) *OTLPExporter {
	return &OTLPExporter{cfg: cfg}
}

// Init initializes the OTLP exporter and sets up the global tracer provider.
// Returns a shutdown function that should be called to flush and close the exporter.
func (e *OTLPExporter) Init(ctx context.Context) (func(context.Context) error, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return e.shutdown, nil
	}

	if e.cfg.BatchTimeout == 0 {
		e.cfg.BatchTimeout = 5 * time.Second
	}
	if e.cfg.ExportTimeout == 0 {
		e.cfg.ExportTimeout = 30 * time.Second
	}

	opts := []grpc.DialOption{}
	if e.cfg.InsecureTLS {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(e.cfg.Endpoint),
		otlptracegrpc.WithDialOption(opts...),
		otlptracegrpc.WithTimeout(e.cfg.ExportTimeout),
	}
	if e.cfg.InsecureTLS {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(e.cfg.ServiceName),
			semconv.ServiceVersion(e.cfg.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	e.tracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(e.cfg.BatchTimeout),
			sdktrace.WithExportTimeout(e.cfg.ExportTimeout),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)

	otel.SetTracerProvider(e.tracerProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	e.tracer = e.tracerProvider.Tracer(e.cfg.ServiceName)

	e.shutdown = func(ctx context.Context) error {
		e.mu.Lock()
		defer e.mu.Unlock()

		if !e.initialized {
			return nil
		}

		e.initialized = false
		return e.tracerProvider.Shutdown(ctx)
	}

	e.initialized = true
	return e.shutdown, nil
}

// Tracer returns the OpenTelemetry tracer.
func (e *OTLPExporter) Tracer() trace.Tracer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracer
}

// IsInitialized returns whether the exporter has been initialized.
func (e *OTLPExporter) IsInitialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// StartBuildSpan begins a span covering one build invocation.
func StartBuildSpan(ctx context.Context, tracer trace.Tracer, image string) (context.Context, trace.Span) {
	if tracer == nil {
		tracer = otel.Tracer("buildflow")
	}
	return tracer.Start(ctx, "build",
		trace.WithAttributes(attribute.String("buildflow.image", image)))
}

// RecordStats attaches the final build statistics to a span.
func RecordStats(span trace.Span, s stats.BuildStats) {
	span.SetAttributes(
		attribute.Int("buildflow.steps_total", s.StepsTotal),
		attribute.Int("buildflow.steps_completed", s.StepsCompleted),
		attribute.Int("buildflow.layers_completed", s.LayersCompleted),
		attribute.Int("buildflow.layers_cached", s.LayersCached),
		attribute.Int("buildflow.base_image_layers", s.BaseImageLayers),
		attribute.String("buildflow.final_image_id", s.FinalImageID),
	)
	if ratio, ok := s.CacheHitRatio(); ok {
		span.SetAttributes(attribute.Float64("buildflow.cache_hit_ratio", ratio))
	}
}
