// Package otel publishes goLinkAuth engine metrics as OpenTelemetry observable
// instruments.
//
// [NewExporter] registers an Int64ObservableCounter per engine counter and an
// Int64ObservableGauge per latency bucket. Callers own the MeterProvider.
package otel
