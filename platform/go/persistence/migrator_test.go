package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	sqlassets "github.com/Teck-Lab/teck-cloud-saas/database"
)

func TestLoadMigrationsOrdersByName(t *testing.T) {
	t.Parallel()

	migrations, err := LoadMigrations(sqlassets.MigrationsFS, sqlassets.MigrationsDir)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(migrations), 3)

	for i := 1; i < len(migrations); i++ {
		require.Less(t, migrations[i-1].Name, migrations[i].Name)
	}
	require.Equal(t, "0001_baseline", migrations[0].Name)
}

func TestMigratorIntegration(t *testing.T) {
	t.Parallel()

	if testing.Short() {
		t.Skip("skipping persistence integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("teck"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := NewPool(ctx, PoolConfig{ConnString: connString})
	require.NoError(t, err)
	t.Cleanup(func() {
		ClosePool(pool)
	})

	source, err := LoadMigrations(sqlassets.MigrationsFS, sqlassets.MigrationsDir)
	require.NoError(t, err)

	migrator := NewMigrator(pool, source)

	pending, err := migrator.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, len(source))

	applied, err := migrator.Apply(ctx)
	require.NoError(t, err)
	require.Len(t, applied, len(source))
	require.Equal(t, "0001_baseline", applied[0])

	// Second run is a no-op.
	applied, err = migrator.Apply(ctx)
	require.NoError(t, err)
	require.Empty(t, applied)

	pending, err = migrator.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	ledger, err := migrator.Applied(ctx)
	require.NoError(t, err)
	require.Len(t, ledger, len(source))

	// The migrated schema is usable.
	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM tenants`).Scan(&count))
	require.Equal(t, 0, count)

	// Dollar-quoted bodies and literals containing semicolons run untouched.
	triggerSource := []Migration{{
		Name: "0100_touch_trigger",
		SQL: `
CREATE TABLE release_notes (
    note_id    BIGSERIAL PRIMARY KEY,
    body       TEXT NOT NULL DEFAULT 'draft; unreviewed',
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE FUNCTION touch_updated_at() RETURNS trigger AS $$
BEGIN
    NEW.updated_at := now();
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

CREATE TRIGGER release_notes_touch
    BEFORE UPDATE ON release_notes
    FOR EACH ROW EXECUTE FUNCTION touch_updated_at();
`,
	}}

	applied, err = NewMigrator(pool, triggerSource).Apply(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"0100_touch_trigger"}, applied)

	var body string
	require.NoError(t, pool.QueryRow(ctx, `INSERT INTO release_notes DEFAULT VALUES RETURNING body`).Scan(&body))
	require.Equal(t, "draft; unreviewed", body)
}
