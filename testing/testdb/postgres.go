package testdb

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/boxdancer/EVENTUM-education-platform/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

// EnvDatabaseURL points tests at an existing database instead of a container.
const EnvDatabaseURL = "TEST_DATABASE_URL"

var (
	sharedContainer *PostgresContainer
	sharedErr       error
	sharedOnce      sync.Once
	sharedMu        sync.Mutex
)

// PostgresContainer is a migrated database shared by the tests of one package.
// Container is nil when the database comes from TEST_DATABASE_URL.
type PostgresContainer struct {
	Container *postgres.PostgresContainer
	DB        *bun.DB
	DSN       string
}

// SetupSharedPostgres starts one PostgreSQL container per test binary and applies
// the schema migrations to it. Later calls return the same instance.
//
// IMPORTANT: Tests using the shared database CANNOT run in parallel!
//
// Usage:
//
//	func TestMain(m *testing.M) {
//	    code := m.Run()
//	    testdb.TerminateShared()
//	    os.Exit(code)
//	}
//
//	func TestMyRepo(t *testing.T) {
//	    pg := testdb.SetupSharedPostgres(t)
//	    testdb.CleanupTables(t, pg.DB, "users")
//	    // ... test
//	}
func SetupSharedPostgres(t *testing.T) *PostgresContainer {
	t.Helper()

	sharedOnce.Do(func() {
		sharedContainer, sharedErr = start(context.Background())
	})
	require.NoError(t, sharedErr)

	return sharedContainer
}

func start(ctx context.Context) (*PostgresContainer, error) {
	pc := &PostgresContainer{DSN: os.Getenv(EnvDatabaseURL)}

	if pc.DSN == "" {
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("testdb"),
			postgres.WithUsername("postgres"),
			postgres.WithPassword("postgres"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2),
			),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to start postgres container: %w", err)
		}
		pc.Container = pgContainer

		pc.DSN, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		if err != nil {
			pc.terminate(ctx)
			return nil, err
		}
	}

	conn, err := db.NewWithDSN(pc.DSN)
	if err != nil {
		pc.terminate(ctx)
		return nil, err
	}
	pc.DB = conn

	if err := db.RunMigrations(ctx, conn); err != nil {
		pc.terminate(ctx)
		return nil, err
	}

	return pc, nil
}

func (pc *PostgresContainer) terminate(ctx context.Context) error {
	if pc.DB != nil {
		pc.DB.Close()
	}

	if pc.Container != nil {
		return pc.Container.Terminate(ctx)
	}
	return nil
}

// TerminateShared closes the shared database and stops its container.
// Call it once from TestMain after m.Run.
func TerminateShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedContainer == nil {
		return
	}
	if err := sharedContainer.terminate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to terminate container: %s\n", err)
	}
	sharedContainer = nil
}

func CleanupTables(t *testing.T, db *bun.DB, tables ...string) {
	t.Helper()

	ctx := context.Background()

	for _, table := range tables {
		_, err := db.ExecContext(ctx, "TRUNCATE "+table+" RESTART IDENTITY CASCADE")
		require.NoError(t, err, "failed to truncate table: %s", table)
	}
}

// CountRows returns the number of rows in table.
func CountRows(t *testing.T, db *bun.DB, table string) int {
	t.Helper()

	count, err := db.NewSelect().Table(table).Count(context.Background())
	require.NoError(t, err)
	return count
}
