package observability

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/vinodhsukumarvictor/Church-Bible-App/config"
)

// InitSentry initialises the global Sentry client. It returns false, and
// leaves reporting disabled, when no DSN is configured.
func InitSentry(cfg config.ObservabilityConfig, release string) (bool, error) {
	if cfg.SentryDSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.SentryDSN,
		Environment: cfg.SentryEnvironment,
		Release:     release,
		SampleRate:  cfg.SentrySampleRate,
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialise sentry: %w", err)
	}
	return true, nil
}

// Flush waits for buffered events to be delivered
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// Middleware gives every request its own hub so user and tags set during
// the request do not leak into other requests. Panics are reported and
// re-raised for chi's Recoverer.
func Middleware(next http.Handler) http.Handler {
	return sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle(next)
}

// SetUser attaches the caller to the request's error-reporting scope.
// Without a request hub nothing is recorded.
func SetUser(ctx context.Context, id, email string) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return
	}
	hub.Scope().SetUser(sentry.User{ID: id, Email: email})
}

// CaptureError reports err at error level
func CaptureError(ctx context.Context, err error) {
	capture(ctx, err, sentry.LevelError, nil)
}

// CaptureWarning reports err at warning level with extra tags
func CaptureWarning(ctx context.Context, err error, tags map[string]string) {
	capture(ctx, err, sentry.LevelWarning, tags)
}

func capture(ctx context.Context, err error, level sentry.Level, tags map[string]string) {
	if err == nil {
		return
	}
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		for k, v := range tags {
			scope.SetTag(k, v)
		}
		hub.CaptureException(err)
	})
}
