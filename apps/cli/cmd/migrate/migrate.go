// Package migrate holds the fleet migration commands: the shared database
// first, then every tenant that runs on its own database.
package migrate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	sqlassets "github.com/Teck-Lab/teck-cloud-saas/database"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/metadata"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/migration"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/repo"
	"github.com/Teck-Lab/teck-cloud-saas/domains/tenants/be/resolver"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/cache"
	platformlogging "github.com/Teck-Lab/teck-cloud-saas/platform/go/logging"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/persistence"
	"github.com/Teck-Lab/teck-cloud-saas/platform/go/secrets"
)

type config struct {
	CustomerAPIURL    string `env:"CUSTOMER_API_URL,required"`
	SharedDatabaseURL string `env:"SHARED_DATABASE_URL,required"`
	RedisAddr         string `env:"REDIS_ADDR"`
	RedisPassword     string `env:"REDIS_PASSWORD"`
	VaultAddr         string `env:"VAULT_ADDR"`
	VaultToken        string `env:"VAULT_TOKEN"`
	VaultMount        string `env:"VAULT_MOUNT" envDefault:"secret"`
	VaultBasePath     string `env:"VAULT_BASE_PATH" envDefault:"databases"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
}

// Command groups the migration subcommands.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations across the fleet",
		Long:  "Apply embedded schema migrations to the shared database and to every tenant running on a dedicated or external database.",
	}

	cmd.AddCommand(allCommand(), sharedCommand(), statusCommand())
	return cmd
}

func allCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Migrate the shared database, then every isolated tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.close()

			results := d.orchestrator.MigrateAll(ctx)
			d.recordAudit(results)
			printResults(cmd, results)

			if failed := countFailures(results); failed > 0 {
				return fmt.Errorf("%d of %d targets failed", failed, len(results))
			}
			return nil
		},
	}
}

func sharedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shared",
		Short: "Migrate only the shared database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.close()

			results := []migration.MigrationResult{d.orchestrator.MigrateSharedOnly(ctx)}
			d.recordAudit(results)
			printResults(cmd, results)

			if !results[0].Success {
				return fmt.Errorf("shared database migration failed: %s", results[0].ErrorMessage)
			}
			return nil
		},
	}
}

func statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report migration status for the shared database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			d, err := buildDeps()
			if err != nil {
				return err
			}
			defer d.close()

			status := d.orchestrator.SharedStatus(ctx)
			out, err := json.MarshalIndent(status, "", "  ")
			if err != nil {
				return fmt.Errorf("encode status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))

			if status.HasPendingMigrations {
				return fmt.Errorf("pending migrations")
			}
			return nil
		},
	}
}

type deps struct {
	cfg          config
	logger       *zap.Logger
	orchestrator *migration.Orchestrator
	creds        secrets.Store
	redisClient  *redis.Client
}

func buildDeps() (*deps, error) {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "migrate-cli",
		Level:     cfg.LogLevel,
	})
	if err != nil {
		return nil, fmt.Errorf("init zap logger: %w", err)
	}

	migrations, err := persistence.LoadMigrations(sqlassets.MigrationsFS, sqlassets.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("load embedded migrations: %w", err)
	}
	runner := migration.NewRunner(migrations, logger, migration.RunnerConfig{})

	client, err := metadata.NewClient(metadata.ClientConfig{BaseURL: cfg.CustomerAPIURL})
	if err != nil {
		return nil, fmt.Errorf("init customer api client: %w", err)
	}
	store := metadata.NewStore(client, logger, metadata.StoreConfig{})

	d := &deps{cfg: cfg, logger: logger}

	resolverCfg := resolver.Config{
		Defaults: resolver.Defaults{WriteConnectionString: cfg.SharedDatabaseURL},
	}
	var res *resolver.Resolver
	if cfg.RedisAddr != "" {
		d.redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		res = resolver.New(store, cache.NewFailSafe(d.redisClient, logger, cache.FailSafeConfig{}), logger, resolverCfg)
	} else {
		res = resolver.New(store, nil, logger, resolverCfg)
	}

	d.creds, err = credentialStore(cfg)
	if err != nil {
		return nil, err
	}

	d.orchestrator = migration.NewOrchestrator(runner, res, store, d.creds, logger)
	return d, nil
}

// credentialStore picks Vault when configured, otherwise a static store seeded
// with the shared database URL (local development).
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

// recordAudit writes the run outcome to the shared database. A run that
// migrated databases must not fail because the audit insert did, so failures
// only log. The write uses a fresh context: the run context may already be
// cancelled.
func (d *deps) recordAudit(results []migration.MigrationResult) {
	if len(results) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	creds, err := d.creds.GetSharedDatabaseCredentials(ctx)
	if err != nil {
		d.logger.Warn("audit skipped, shared credentials unavailable", zap.Error(err))
		return
	}
	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{ConnString: creds.AdminConnectionString, MaxConns: 2})
	if err != nil {
		d.logger.Warn("audit skipped, shared database unreachable", zap.Error(err))
		return
	}
	defer persistence.ClosePool(pool)

	store := repo.NewPostgresAuditStore(pool)
	if err := store.Record(ctx, repo.EntriesFromResults(results)); err != nil {
		d.logger.Warn("audit write failed", zap.Error(err))
	}
}

func (d *deps) close() {
	if d.redisClient != nil {
		_ = d.redisClient.Close()
	}
	_ = d.logger.Sync()
}

func printResults(cmd *cobra.Command, results []migration.MigrationResult) {
	for _, result := range results {
		target := "shared"
		if result.TenantID != nil {
			target = result.TenantName
			if target == "" {
				target = result.TenantID.String()
			}
		}
		if result.Skipped {
			fmt.Fprintf(cmd.OutOrStdout(), "skip %-24s shared strategy\n", target)
		} else if result.Success {
			fmt.Fprintf(cmd.OutOrStdout(), "ok   %-24s applied=%d duration=%s\n", target, result.MigrationsCount, result.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "FAIL %-24s %s\n", target, result.ErrorMessage)
		}
	}
}

func countFailures(results []migration.MigrationResult) int {
	failed := 0
	for _, result := range results {
		if !result.Success {
			failed++
		}
	}
	return failed
}
