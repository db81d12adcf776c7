package db_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/boxdancer/EVENTUM-education-platform/internal/db"
	"github.com/boxdancer/EVENTUM-education-platform/testing/testdb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

func TestMain(m *testing.M) {
	code := m.Run()
	testdb.TerminateShared()
	os.Exit(code)
}

func TestWithSession(t *testing.T) {
	pg := testdb.SetupSharedPostgres(t)
	ctx := context.Background()

	insert := func(ctx context.Context, tx bun.Tx, email string) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users (name, surname, email) VALUES (?, ?, ?)", "Bob", "Sponge", email)
		return err
	}

	t.Run("commits on success", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")

		err := db.WithSession(ctx, pg.DB, func(ctx context.Context, tx bun.Tx) error {
			return insert(ctx, tx, "commit@x.com")
		})
		require.NoError(t, err)

		assert.Equal(t, 1, testdb.CountRows(t, pg.DB, "users"))
	})

	t.Run("rolls back on error", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")
		boom := errors.New("boom")

		err := db.WithSession(ctx, pg.DB, func(ctx context.Context, tx bun.Tx) error {
			require.NoError(t, insert(ctx, tx, "rollback@x.com"))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		assert.Equal(t, 0, testdb.CountRows(t, pg.DB, "users"))
	})

	t.Run("rolls back on panic", func(t *testing.T) {
		testdb.CleanupTables(t, pg.DB, "users")

		assert.Panics(t, func() {
			_ = db.WithSession(ctx, pg.DB, func(ctx context.Context, tx bun.Tx) error {
				require.NoError(t, insert(ctx, tx, "panic@x.com"))
				panic("boom")
			})
		})

		assert.Equal(t, 0, testdb.CountRows(t, pg.DB, "users"))
	})
}

func TestMigrate(t *testing.T) {
	pg := testdb.SetupSharedPostgres(t)
	ctx := context.Background()

	require.NoError(t, db.Migrate(ctx, pg.DB, "status"))
	require.NoError(t, db.Migrate(ctx, pg.DB, "version"))

	// Applying twice is a no-op.
	require.NoError(t, db.RunMigrations(ctx, pg.DB))

	err := db.Migrate(ctx, pg.DB, "sideways")
	assert.ErrorContains(t, err, "unknown migration command")
}
