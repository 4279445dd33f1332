package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/gustycube/conjunctions"

// Options configures the exporter. An empty Endpoint disables tracing.
type Options struct {
	Endpoint    string
	Insecure    bool
	Service     string
	RunID       string
	Mission     string
	SampleRatio float64 // fraction of root spans kept; <= 0 or >= 1 keeps all
}

// Init installs an OTLP/HTTP tracer provider tagged with the run id and
// mission. With no endpoint the global no-op provider stays in place.
func Init(ctx context.Context, opts Options) (func(context.Context) error, error) {
	if opts.Endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	clientOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.Insecure {
		clientOpts = append(clientOpts, otlptracehttp.WithInsecure())
	}
	exp, err := otlptracehttp.New(ctx, clientOpts...)
	if err != nil {
		return nil, err
	}
	attrs := []attribute.KeyValue{
		semconv.ServiceName(opts.Service),
		attribute.String("run.id", opts.RunID),
	}
	if opts.Mission != "" {
		attrs = append(attrs, attribute.String("mission", opts.Mission))
	}
	res, _ := resource.Merge(resource.Default(), resource.NewWithAttributes(semconv.SchemaURL, attrs...))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp, sdktrace.WithBatchTimeout(3*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(opts.SampleRatio)),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 || ratio >= 1 {
		return sdktrace.AlwaysSample()
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

// Tracer returns the tracer for one component of the search.
func Tracer(component string) trace.Tracer {
	return otel.Tracer(instrumentation + "/" + component)
}
