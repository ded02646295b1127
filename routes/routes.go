package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"github.com/vinodhsukumarvictor/Church-Bible-App/app"
	"github.com/vinodhsukumarvictor/Church-Bible-App/handlers"
	"github.com/vinodhsukumarvictor/Church-Bible-App/internal/observability"
	"github.com/vinodhsukumarvictor/Church-Bible-App/middleware"
	"github.com/vinodhsukumarvictor/Church-Bible-App/utils"
)

// SetupRoutes configures all application routes and middleware
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	logger := deps.Logger

	r := chi.NewRouter()

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		STSSeconds:         31536000,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	// Core middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(observability.Middleware)
	r.Use(secureMiddleware.Handler)
	r.Use(chimiddleware.Timeout(requestTimeout(cfg.Server.RequestTimeout)))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	health := newHealthHandler(deps)
	admin := handlers.NewAdminHandler(deps.Resolver, deps.RoleChanges, deps.AuditPager, logger)
	pushHandler := handlers.NewPushHandler(deps.Push, deps.Resolver, logger)
	sermonsHandler := handlers.NewSermonsHandler(deps.Sermons, logger)

	// Health check endpoints
	r.HandleFunc("/api/health", health.HandleHealth)
	r.Get("/readyz", health.HandleReadiness)

	r.Route("/api", func(r chi.Router) {
		r.Get("/fetchYouTube", sermonsHandler.HandleFetchYouTube)

		r.Route("/admin", func(r chi.Router) {
			// The handler resolves the caller itself, after the rate limit
			// and body checks
			r.With(middleware.RateLimit(deps.Limiter, logger)).
				Post("/changeRole", admin.HandleChangeRole)

			r.Group(func(r chi.Router) {
				r.Use(deps.AuthMiddleware.RequireAuth)
				r.Use(deps.AuthMiddleware.RequirePrivileged)
				r.Get("/audit", admin.HandleListAudit)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(pushRateLimit(cfg.Push.RateLimit))
			r.Post("/subscribe", pushHandler.HandleSubscribe)
			r.Post("/sendPush", pushHandler.HandleSendPush)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteMethodNotAllowed(w)
	})

	return r
}

// newHealthHandler passes only the backends that exist, so a missing one is
// reported as not configured instead of as a nil pointer
func newHealthHandler(deps *app.Dependencies) *handlers.HealthHandler {
	var db handlers.DatabaseChecker
	if deps.DB != nil {
		db = deps.DB
	}
	var rdb handlers.RedisPinger
	if deps.Redis != nil {
		rdb = deps.Redis
	}
	return handlers.NewHealthHandler(db, rdb, deps.Config.Environment, deps.Logger)
}

// pushRateLimit throttles the push routes per client IP
func pushRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = utils.WriteTooManyRequests(w, "", time.Minute)
		}),
	)
}

func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}
