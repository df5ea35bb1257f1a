// Package observe provides observability primitives for exchange adapters.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. Adapters wire the observer around their resilience
// executors and streams; the Collector subscribes to resilience events and
// turns them into OpenTelemetry instruments.
package observe
