package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/lockbox/pkg/api"
	"github.com/platinummonkey/lockbox/pkg/audit"
	"github.com/platinummonkey/lockbox/pkg/config"
	"github.com/platinummonkey/lockbox/pkg/folders"
	"github.com/platinummonkey/lockbox/pkg/identity"
	"github.com/platinummonkey/lockbox/pkg/middleware"
	"github.com/platinummonkey/lockbox/pkg/observability"
	"github.com/platinummonkey/lockbox/pkg/rbac"
	"github.com/platinummonkey/lockbox/pkg/secrets"
	"github.com/platinummonkey/lockbox/pkg/session"
	"github.com/platinummonkey/lockbox/pkg/sso"
	"github.com/platinummonkey/lockbox/pkg/storage"
	"github.com/platinummonkey/lockbox/pkg/storage/postgres"

	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithField("version", observability.Version).Info("Starting Lockbox")

	// Context cancelled on shutdown; background routines hang off it.
	appCtx, cancelApp := context.WithCancel(context.Background())
	defer cancelApp()

	otelProviders, err := observability.InitOTel(appCtx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to initialize OpenTelemetry: %v", err)
	}

	// Postgres: primary for all writes, replicas kept healthy in the
	// background for future read offload.
	connManager, err := postgres.NewConnectionManager(postgres.ConnectionConfig{
		PrimaryURL:  cfg.Database.URL,
		ReplicaURLs: postgres.ParseReplicaURLs(cfg.Database.ReplicaURLs),
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		Timeout:     cfg.Database.Timeout,
		MaxLifetime: 30 * time.Minute,
		MaxIdleTime: 5 * time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	db := connManager.Primary()
	connManager.StartHealthCheckRoutine(appCtx, 30*time.Second)

	if err := storage.RunMigrations(appCtx, db,
		identity.GetMigrations(),
		folders.GetMigrations(),
		secrets.GetMigrations(),
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	redisClient, err := newRedisClient(appCtx, cfg.Redis)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	registry, err := loadPolicy(cfg.RBAC)
	if err != nil {
		log.Fatalf("Failed to load RBAC policy: %v", err)
	}
	engine := rbac.NewEngine(registry)

	userStore := identity.NewStore(db)
	users := identity.NewService(userStore, engine, logger)

	sessions := session.NewManager(
		session.NewRedisStore(redisClient, cfg.Session.TTL), logger,
		session.WithCookieName(cfg.Session.CookieName),
		session.WithSecureCookies(cfg.Session.SecureCookies),
		session.WithRoleSource(userStore),
	)

	folderStore := folders.NewStore(db)
	resolver := folders.NewResolver(folderStore, folders.WithCache(4096, time.Minute))
	folderService := folders.NewService(folderStore, resolver, engine, logger)

	cipher, err := secrets.NewCipher(cfg.Secrets.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialize cipher: %v", err)
	}
	secretStore := secrets.NewStore(db)
	secretService := secrets.NewService(secretStore, folderStore, resolver, cipher, engine, logger)

	auditLog, auditStore, closeAudit, err := buildAuditSink(cfg.Audit, db)
	if err != nil {
		log.Fatalf("Failed to initialize audit sink: %v", err)
	}

	ssoHandlers, err := buildSSO(appCtx, cfg, userStore, sessions, logger)
	if err != nil {
		log.Fatalf("Failed to initialize SSO: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(promRegistry)
	}

	server := api.NewServer(api.Options{
		Logger:     logger,
		Metrics:    metrics,
		Engine:     engine,
		Sessions:   sessions,
		Users:      users,
		Folders:    folderService,
		Secrets:    secretService,
		AuditLog:   auditLog,
		AuditStore: auditStore,
		SSO:        ssoHandlers,
		RateLimit:  buildRateLimit(cfg.RateLimit, redisClient),
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port so probes and scrapes never
	// pass through session auth or rate limits.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	var listeners errgroup.Group
	listeners.Go(func() error {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("health server failed: %w", err)
		}
		return nil
	})
	listeners.Go(func() error {
		logger.WithField("addr", httpServer.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("API server failed: %w", err)
		}
		return nil
	})
	go func() {
		if err := listeners.Wait(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sm := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		cancelApp()
		return nil
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return closeAudit()
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return redisClient.Close()
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return connManager.Close()
	})
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, otelProviders, logger)
	})

	if err := sm.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown completed with errors")
		os.Exit(1)
	}
}

// newRedisClient connects using the URL, with the remaining settings
// applied on top.
func newRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

// loadPolicy returns the YAML policy overlay when configured, or nil
// for the built-in role table.
func loadPolicy(cfg config.RBACConfig) (*rbac.Registry, error) {
	if cfg.PolicyPath == "" {
		return nil, nil
	}
	return rbac.LoadPolicy(cfg.PolicyPath)
}

// buildAuditSink wires the configured audit destination. The query API
// is only available when the database sink participates.
func buildAuditSink(cfg config.AuditConfig, db *sql.DB) (audit.Logger, audit.Store, func() error, error) {
	newFileLogger := func() (*audit.FileLogger, error) {
		fileCfg := audit.DefaultFileLoggerConfig()
		fileCfg.BasePath = cfg.FilePath
		return audit.NewFileLogger(fileCfg)
	}

	switch cfg.Sink {
	case "db":
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, nil, nil, err
		}
		return dbLogger, audit.NewDBStore(dbLogger), dbLogger.Close, nil

	case "file":
		fileLogger, err := newFileLogger()
		if err != nil {
			return nil, nil, nil, err
		}
		return fileLogger, nil, fileLogger.Close, nil

	case "both":
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, nil, nil, err
		}
		fileLogger, err := newFileLogger()
		if err != nil {
			return nil, nil, nil, err
		}
		multi := audit.NewMultiLogger(dbLogger, fileLogger)
		return multi, audit.NewDBStore(dbLogger), multi.Close, nil

	default:
		return nil, nil, nil, fmt.Errorf("invalid audit sink: %s", cfg.Sink)
	}
}

// buildSSO assembles the provider registry, JIT provisioner, and login
// edge. A SAML deployment also gets a certificate watcher so IdP cert
// rotation does not need a restart.
func buildSSO(ctx context.Context, cfg *config.Config, userStore *identity.Store, sessions *session.Manager, logger *observability.Logger) (*sso.Handlers, error) {
	if !cfg.SSO.Enabled {
		return nil, nil
	}

	providerCfg := cfg.SSO.ProviderConfig()
	provider, err := sso.NewProvider(ctx, providerCfg, cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSO provider: %w", err)
	}

	registry := sso.NewRegistry()
	registry.Register(provider)

	if providerCfg.Type == sso.ProviderTypeSAML && cfg.SSO.SAMLWatchCerts {
		watcher, err := sso.NewWatcher(registry, providerCfg, cfg.Server.BaseURL, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create certificate watcher: %w", err)
		}
		go func() {
			defer observability.RecoverPanic(logger, "certificate watcher")
			if err := watcher.Run(ctx); err != nil && err != context.Canceled {
				logger.WithError(err).Error("Certificate watcher stopped")
			}
		}()
	}

	provisioner := sso.NewProvisioner(userStore, cfg.SSO.DefaultRole, logger)
	return sso.NewHandlers(registry, provisioner, sessions, cfg.Session.SecureCookies, logger), nil
}

// buildRateLimit returns the configured rate limit middleware, or nil
// when limiting is disabled.
func buildRateLimit(cfg config.RateLimitConfig, redisClient *redis.Client) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return nil
	}

	userCfg := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.RequestsPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Burst,
	}
	if cfg.Distributed {
		return middleware.NewDistributedRateLimitMiddlewareWithConfig(redisClient, userCfg).Handler
	}
	return middleware.NewRateLimitMiddlewareWithConfig(userCfg).Handler
}
