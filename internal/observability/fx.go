package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	fx.Provide(NewLogger),
	fx.Provide(NewRegistry),
	fx.Provide(func(reg *prometheus.Registry) prometheus.Registerer { return reg }),
	fx.Provide(NewTracerProvider),
	// The tracer provider is only consumed through otel globals.
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
)
