// Package serve runs the operational HTTP server: health probes, migration
// status and tenant routing diagnostics.
package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sqlassets "github.com/Teck-Lab/teck-cloud-saas/database"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/handler"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/metadata"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/migration"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/repo"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/resolver"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/cache"
	platformlogging "github.com/Teck-Lab/teck-cloud-saas/platform/go/logging"
	platformmiddleware "github.com/Teck-Lab/teck-cloud-saas/platform/go/middleware"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/persistence"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/secrets"
)

type config struct {
	Port              string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel          string        `env:"LOG_LEVEL" envDefault:"info"`
	CustomerAPIURL    string        `env:"CUSTOMER_API_URL,required"`
	SharedDatabaseURL string        `env:"SHARED_DATABASE_URL,required"`
	RedisAddr         string        `env:"REDIS_ADDR"`
	RedisPassword     string        `env:"REDIS_PASSWORD"`
	VaultAddr         string        `env:"VAULT_ADDR"`
	VaultToken        string        `env:"VAULT_TOKEN"`
	VaultMount        string        `env:"VAULT_MOUNT" envDefault:"secret"`
	VaultBasePath     string        `env:"VAULT_BASE_PATH" envDefault:"databases"`
}

// Command runs the ops server until interrupted.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the operational HTTP server",
		RunE: func(*cobra.Command, []string) error {
			return run()
		},
	}
}

func run() error {
	ctx := context.Background()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "ops-server",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("init zap logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	migrations, err := persistence.LoadMigrations(sqlassets.MigrationsFS, sqlassets.MigrationsDir)
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}
	runner := migration.NewRunner(migrations, logger, migration.RunnerConfig{})

	client, err := metadata.NewClient(metadata.ClientConfig{BaseURL: cfg.CustomerAPIURL})
	if err != nil {
		return fmt.Errorf("init customer api client: %w", err)
	}
	store := metadata.NewStore(client, logger, metadata.StoreConfig{})

	resolverCfg := resolver.Config{
		Defaults: resolver.Defaults{WriteConnectionString: cfg.SharedDatabaseURL},
	}
	var res *resolver.Resolver
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer func() {
			_ = redisClient.Close()
		}()
		res = resolver.New(store, cache.NewFailSafe(redisClient, logger, cache.FailSafeConfig{}), logger, resolverCfg)
	} else {
		res = resolver.New(store, nil, logger, resolverCfg)
	}

	creds, err := credentialStore(cfg)
	if err != nil {
		return err
	}
	orchestrator := migration.NewOrchestrator(runner, res, store, creds, logger)

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: cfg.SharedDatabaseURL})
	if err != nil {
		return fmt.Errorf("init postgres pool: %w", err)
	}
	defer persistence.ClosePool(pool)
	audit := repo.NewPostgresAuditStore(pool)

	opsHandler := handler.New(orchestrator, store, res, audit, logger)

	router := chi.NewRouter()
	router.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(),
	)
	router.Use(platformlogging.RequestLogger(logger))
	opsHandler.Register(router)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting ops server", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	select {
	case err := <-errCh:
		return fmt.Errorf("server listen failed: %w", err)
	case <-stop:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

func credentialStore(cfg config) (secrets.Store, error) {
	if cfg.VaultAddr == "" {
		return secrets.NewStaticStore(secrets.DatabaseCredentials{
			AdminConnectionString: cfg.SharedDatabaseURL,
			AppConnectionString:   cfg.SharedDatabaseURL,
		}), nil
	}
	store, err := secrets.NewVaultStore(secrets.VaultStoreConfig{
		Address:  cfg.VaultAddr,
		Token:    cfg.VaultToken,
		Mount:    cfg.VaultMount,
		BasePath: cfg.VaultBasePath,
	})
	if err != nil {
		return nil, fmt.Errorf("init vault store: %w", err)
	}
	return store, nil
}
