package db

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

func init() {
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(gooseLogger{})
}

// RunMigrations applies every pending migration.
func RunMigrations(ctx context.Context, db *bun.DB) error {
	if err := Migrate(ctx, db, "up"); err != nil {
		return err
	}
	slog.Info("database migrations completed successfully")
	return nil
}

// Migrate runs a goose command: up, down, status or version.
func Migrate(ctx context.Context, db *bun.DB, command string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	var err error
	switch command {
	case "up":
		err = goose.UpContext(ctx, db.DB, migrationsDir)
	case "down":
		err = goose.DownContext(ctx, db.DB, migrationsDir)
	case "status":
		err = goose.StatusContext(ctx, db.DB, migrationsDir)
	case "version":
		err = goose.VersionContext(ctx, db.DB, migrationsDir)
	default:
		return fmt.Errorf("unknown migration command %q", command)
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", command, err)
	}
	return nil
}

type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), "component", "goose")
	panic(fmt.Sprintf(format, v...))
}
