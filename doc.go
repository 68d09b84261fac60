// Package backend provides the ProHub Nexus forum API server.
//
// Entry points live under cmd/ (server, migrate, seed, promote-admin and the
// nexusctl CLI). The API is organized into subpackages:
//
//   - internal/moderation: text classification, role bypass, hide/unhide workflow and the automatic gate
//   - internal/presence: heartbeat sessions, visitor classification and online counts
//   - internal/handlers: HTTP request handlers for all API endpoints
//   - internal/models: Data models and database schemas
//   - internal/repository: User and notification persistence
//   - internal/auth: Session token validation
//   - internal/websocket: Live online counts and moderation notices
//   - internal/queue: Author notification worker pool
//   - internal/email: Moderation notices via SES
//   - internal/database: Database connection and migrations
//   - internal/middleware: HTTP middleware (auth, roles, rate limiting, tracing)
//   - internal/telemetry: OpenTelemetry tracing for HTTP and SQL
//   - internal/metrics: Prometheus collectors
//
// See the individual package documentation for detailed API reference.
package backend
