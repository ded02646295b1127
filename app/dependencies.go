package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vinodhsukumarvictor/Church-Bible-App/config"
	"github.com/vinodhsukumarvictor/Church-Bible-App/middleware"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories"
	"github.com/vinodhsukumarvictor/Church-Bible-App/repositories/postgres"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/audit"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/identity"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/push"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/ratelimit"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/rolechange"
	"github.com/vinodhsukumarvictor/Church-Bible-App/services/sermons"
	"github.com/vinodhsukumarvictor/Church-Bible-App/supabase"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Redis  *redis.Client
	Logger *zap.Logger

	// Repository Factory
	RepoFactory *postgres.RepositoryFactory

	// Repositories; nil when no database is configured
	Profiles          repositories.ProfileRepository
	AuditLogs         repositories.AuditRepository
	PushSubscriptions repositories.PushSubscriptionRepository
	TxManager         repositories.TransactionManager

	// Auth
	Verifier       supabase.TokenVerifier
	Resolver       *identity.Resolver
	AuthMiddleware *middleware.AuthMiddleware

	// Services
	Limiter     ratelimit.Limiter
	RoleChanges *rolechange.Service
	AuditPager  *audit.Pager
	Push        *push.Service
	Sermons     *sermons.Service
}

// NewDependencies creates and wires up all application dependencies.
// A missing database or auth configuration is not an error: the affected
// routes answer 500 "backend not configured".
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	var factory *postgres.RepositoryFactory
	if cfg.Database.IsConfigured() {
		f, err := postgres.NewRepositoryFactory(cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		factory = f
	} else {
		logger.Warn("database not configured, admin and push routes disabled")
	}

	deps, err := newDependencies(ctx, cfg, factory, logger)
	if err != nil {
		if factory != nil {
			_ = factory.Close()
		}
		return nil, err
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// newDependencies wires everything around an optional repository factory
func newDependencies(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if factory != nil {
		if err := deps.initDatabase(ctx, cfg, factory); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if err := deps.initRedis(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize redis: %w", err)
	}

	if err := deps.initLimiter(cfg); err != nil {
		_ = deps.closeRedis()
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	deps.initAuth(cfg)
	deps.initServices(cfg)

	return deps, nil
}

// initDatabase keeps the factory and initializes all repository instances
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config, factory *postgres.RepositoryFactory) error {
	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if cfg.Database.InitSchema {
		if err := factory.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}

	repos := factory.NewRepositories()
	d.Profiles = repos.Profiles
	d.AuditLogs = repos.AuditLogs
	d.PushSubscriptions = repos.PushSubscriptions
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

// initRedis connects to Redis when an address is configured. Only the
// redis rate limit backend requires it to answer at startup.
func (d *Dependencies) initRedis(ctx context.Context, cfg *config.Config) error {
	if cfg.Redis.Addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
			_ = client.Close()
			return fmt.Errorf("redis ping failed: %w", err)
		}
		d.Logger.Warn("redis ping failed", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}

	d.Redis = client
	d.Logger.Info("redis client initialized", zap.String("addr", cfg.Redis.Addr))
	return nil
}

func (d *Dependencies) initLimiter(cfg *config.Config) error {
	limiterCfg := ratelimit.Config{
		Capacity:       cfg.RateLimit.Capacity,
		RefillInterval: cfg.RateLimit.RefillInterval,
	}

	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		if d.Redis == nil {
			return errors.New("redis backend selected without a redis client")
		}
		limiter, err := ratelimit.NewRedisLimiter(d.Redis, cfg.RateLimit.KeyPrefix, limiterCfg)
		if err != nil {
			return err
		}
		d.Limiter = limiter
	} else {
		limiter, err := ratelimit.NewMemoryLimiter(limiterCfg)
		if err != nil {
			return err
		}
		d.Limiter = limiter
	}

	d.Logger.Info("rate limiter initialized",
		zap.String("backend", cfg.RateLimit.Backend),
		zap.Int("capacity", cfg.RateLimit.Capacity),
		zap.Duration("refill_interval", cfg.RateLimit.RefillInterval))
	return nil
}

// initAuth picks local JWT verification or the remote user endpoint
func (d *Dependencies) initAuth(cfg *config.Config) {
	switch {
	case !cfg.Auth.IsConfigured():
		d.Logger.Warn("supabase auth not configured, admin routes disabled")
	case cfg.Auth.VerifyRemote:
		d.Verifier = supabase.NewUserClient(cfg.Auth.SupabaseURL, cfg.Auth.ServiceRoleKey, 0)
		d.Logger.Info("auth initialized", zap.String("verifier", "remote"))
	default:
		d.Verifier = supabase.NewValidator(supabase.ValidatorConfig{
			ProjectURL:         cfg.Auth.SupabaseURL,
			JWTSecret:          cfg.Auth.JWTSecret,
			Audience:           cfg.Auth.Audience,
			CacheTTL:           cfg.Auth.JWKSCacheTTL,
			MinRefreshInterval: cfg.Auth.JWKSMinRefresh,
		})
		d.Logger.Info("auth initialized", zap.String("verifier", "local"))
	}

	d.Resolver = identity.NewResolver(d.Verifier, d.Profiles, d.Logger)
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Resolver, d.Logger)
}

func (d *Dependencies) initServices(cfg *config.Config) {
	d.RoleChanges = rolechange.NewService(d.Profiles, d.AuditLogs, d.TxManager,
		rolechange.Config{AtomicAudit: cfg.RoleChange.AtomicAudit}, d.Logger)

	d.AuditPager = audit.NewPager(d.AuditLogs, d.Profiles, d.Logger)

	d.Push = push.NewService(d.PushSubscriptions, push.Config{
		VAPIDPublicKey:  cfg.Push.VAPIDPublicKey,
		VAPIDPrivateKey: cfg.Push.VAPIDPrivateKey,
		ContactEmail:    cfg.Push.ContactEmail,
		TTL:             cfg.Push.TTL,
		MaxConcurrency:  cfg.Push.MaxConcurrency,
	}, d.Logger)
	if !cfg.Push.IsConfigured() {
		d.Logger.Warn("VAPID keys not configured, sendPush disabled")
	}

	d.Sermons = sermons.NewService(sermons.Config{
		APIKey:        cfg.YouTube.APIKey,
		BaseURL:       cfg.YouTube.BaseURL,
		DefaultHandle: cfg.YouTube.DefaultHandle,
		DefaultMax:    cfg.YouTube.DefaultMax,
		CacheTTL:      cfg.YouTube.CacheTTL,
		CacheSize:     cfg.YouTube.CacheSize,
		Timeout:       cfg.YouTube.Timeout,
	}, d.Logger)
	if cfg.YouTube.APIKey == "" {
		d.Logger.Warn("YOUTUBE_API_KEY not configured, sermons feed disabled")
	}
}

func (d *Dependencies) closeRedis() error {
	if d.Redis == nil {
		return nil
	}
	return d.Redis.Close()
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if err := d.closeRedis(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return errors.Join(errs...)
}
