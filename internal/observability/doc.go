// Package observability carries the process-wide logging, metrics and tracing
// setup for the bridge.
//
// # Logging
//
// NewLogger builds a log/slog logger whose minimum level is the shared Level
// variable. Flipping Level (directly or through SetDebug) changes verbosity for
// every logger in the process at once; the debugmode chat command relies on
// this. Records pass through a redacting handler so bot tokens never reach the
// log sink, and a request id stored with AddRequestID is attached to every
// record logged with that context.
//
// When LogConfig.File is set, output is written through a size-rotated file
// (gopkg.in/natefinch/lumberjack.v2).
//
// # Metrics
//
// Metrics wraps the Prometheus collectors the bridge exports. Collectors are
// registered against the Registerer passed to NewMetrics so tests can use an
// isolated prometheus.NewRegistry. All Metrics methods are safe on a nil
// receiver.
//
// # Tracing
//
// NewTracer configures an OpenTelemetry OTLP/gRPC exporter. With no endpoint
// it returns a tracer backed by the global no-op provider.
package observability
