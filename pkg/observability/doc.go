// Package observability provides structured logging, Prometheus metrics,
// health checks, and graceful shutdown.
//
// # Structured Logging
//
// Create a logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("company_id", companyID).Info("subscription upgraded")
//
// Request handlers should use the context-scoped logger, which carries the
// request id and company id added by the middleware:
//
//	observability.FromContext(ctx).Warn("demo mode fallback")
//
// # Prometheus Metrics
//
// Initialize metrics and expose the scrape handler:
//
//	metrics := observability.NewMetrics(nil)
//	http.Handle("/metrics", metrics.Handler())
//
// Billing counters cover intent creation by result kind, demo-mode
// fallbacks, webhook events, gate denials, and processor errors.
//
// # Health Checks
//
// The health checker pings Postgres and, when configured, Redis:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	http.HandleFunc("/readyz", checker.ReadinessHandler)
//
// # Related Packages
//
//   - pkg/config: observability configuration
//   - pkg/middleware: request id and company context middleware
package observability
