// Package health provides health checking primitives for exchange adapters.
//
// This package implements a generic health checking framework used to monitor
// the components of a streaming adapter: circuit breakers guarding REST
// calls, websocket stream managers, and downstream dependencies. It provides
// interfaces for defining health checks, aggregating results from multiple
// checkers, and exposing health status via HTTP endpoints.
//
// # Core Concepts
//
// A Checker is any component that can report its health status. The Status
// type represents the health state: Healthy, Degraded, or Unhealthy.
//
// # Basic Usage
//
//	// Report breaker state as component health
//	cbCheck := health.NewBreakerChecker("kraken-rest", breaker)
//
//	result := cbCheck.Check(ctx)
//	if result.Status == health.StatusUnhealthy {
//	    log.Printf("REST calls failing: %s", result.Message)
//	}
//
// # Aggregating Health Checks
//
// Use Aggregator to combine multiple health checks into a single composite check:
//
//	agg := health.NewAggregator()
//	agg.Register("kraken-rest", health.NewBreakerChecker("kraken-rest", breaker))
//	agg.Register("kraken-ws", health.NewStreamChecker("kraken-ws", manager))
//
//	// Check all components
//	results := agg.CheckAll(ctx)
//	overall := agg.OverallStatus(results)
//
// # HTTP Endpoints
//
// The package provides HTTP handlers for common health check patterns:
//
//	// Liveness probe (for Kubernetes)
//	http.Handle("/healthz", health.LivenessHandler())
//
//	// Readiness probe with component checks
//	http.Handle("/readyz", health.ReadinessHandler(aggregator))
//
//	// Detailed health status
//	http.Handle("/health", health.DetailedHandler(aggregator))
package health
