// Package observability builds the process logger and wraps error reporting.
//
// Logging is zap-based: JSON in production, console output in development.
// Error reporting goes to Sentry when SENTRY_DSN is set and is a no-op
// otherwise, so callers never need to check whether it is enabled.
package observability
