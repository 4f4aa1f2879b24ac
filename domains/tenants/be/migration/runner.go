package migration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Teck-Lab/teck-cloud-saas/platform/go/persistence"
)

// migrationTarget is the slice of persistence.Migrator the runner drives.
type migrationTarget interface {
	Applied(ctx context.Context) ([]string, error)
	Pending(ctx context.Context) ([]persistence.Migration, error)
	Apply(ctx context.Context) ([]string, error)
}

// connectFunc opens a migration target for a connection string. The returned
// close function releases the underlying pool.
type connectFunc func(ctx context.Context, connString string) (migrationTarget, func(), error)

// Runner applies a fixed migration source against arbitrary databases, one
// connection string at a time. Every failure mode is folded into the returned
// result; Runner methods never return errors.
type Runner struct {
	source  []persistence.Migration
	log     *zap.Logger
	connect connectFunc
}

// RunnerConfig tunes the short-lived pools the runner dials per target.
type RunnerConfig struct {
	// ConnectTimeout bounds dialing one target; default 15 seconds.
	ConnectTimeout time.Duration
	// MaxConns caps each throwaway pool; default 2 (one for DDL, one spare).
	MaxConns int32
}

// NewRunner builds a runner over source. Both source and log are required.
func NewRunner(source []persistence.Migration, log *zap.Logger, cfg RunnerConfig) *Runner {
	if len(source) == 0 {
		panic("migration runner requires a migration source")
	}
	if log == nil {
		panic("migration runner requires logger")
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 15 * time.Second
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 2
	}

	r := &Runner{source: source, log: log}
	r.connect = func(ctx context.Context, connString string) (migrationTarget, func(), error) {
		dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()

		pool, err := persistence.NewPool(dialCtx, persistence.PoolConfig{
			ConnString: connString,
			MaxConns:   cfg.MaxConns,
		})
		if err != nil {
			return nil, nil, err
		}
		return persistence.NewMigrator(pool, source), func() { persistence.ClosePool(pool) }, nil
	}
	return r
}

// ApplyMigrations brings the database behind connString up to date. Connection
// failures, DDL failures and ledger failures all come back as an unsuccessful
// result rather than an error.
func (r *Runner) ApplyMigrations(ctx context.Context, connString string) MigrationResult {
	started := time.Now()

	target, closeTarget, err := r.connect(ctx, connString)
	if err != nil {
		r.log.Warn("migration target unreachable", zap.Error(err))
		return failureResult(started, fmt.Sprintf("connect: %v", err))
	}
	defer closeTarget()

	applied, err := target.Apply(ctx)
	if err != nil {
		r.log.Error("migration apply failed", zap.Error(err))
		return failureResult(started, fmt.Sprintf("apply: %v", err))
	}

	if len(applied) == 0 {
		r.log.Debug("database already up to date")
	} else {
		r.log.Info("migrations applied",
			zap.Int("count", len(applied)),
			zap.String("latest", applied[len(applied)-1]))
	}
	return successResult(started, applied)
}

// Status reports where the database behind connString stands. An unreachable
// database reports DatabaseExists=false with pending migrations assumed.
func (r *Runner) Status(ctx context.Context, connString string) MigrationStatus {
	target, closeTarget, err := r.connect(ctx, connString)
	if err != nil {
		r.log.Warn("migration status target unreachable", zap.Error(err))
		return unreachableStatus()
	}
	defer closeTarget()

	applied, err := target.Applied(ctx)
	if err != nil {
		r.log.Warn("migration ledger unreadable", zap.Error(err))
		return unreachableStatus()
	}
	pending, err := target.Pending(ctx)
	if err != nil {
		r.log.Warn("pending migrations unreadable", zap.Error(err))
		return unreachableStatus()
	}

	status := MigrationStatus{
		DatabaseExists:       true,
		AppliedMigrations:    applied,
		HasPendingMigrations: len(pending) > 0,
	}
	for _, mig := range pending {
		status.PendingMigrations = append(status.PendingMigrations, mig.Name)
	}
	if len(applied) > 0 {
		status.LastAppliedMigration = applied[len(applied)-1]
	}
	return status
}

// HasPendingMigrations answers whether connString is behind the embedded
// source. Unreachable databases count as behind.
func (r *Runner) HasPendingMigrations(ctx context.Context, connString string) bool {
	return r.Status(ctx, connString).HasPendingMigrations
}
