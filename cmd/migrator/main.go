package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/boxdancer/EVENTUM-education-platform/internal/config"
	"github.com/boxdancer/EVENTUM-education-platform/internal/db"
	"github.com/boxdancer/EVENTUM-education-platform/internal/logger"

	"github.com/joho/godotenv"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}
	command := args[0]

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	slog.SetDefault(logger.New(cfg.Log.Level))

	database, err := db.NewWithDSN(cfg.Database.DSN())
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := db.Migrate(context.Background(), database, command); err != nil {
		flag.Usage()
		log.Fatalf("%v", err)
	}
}

func usage() {
	fmt.Println("Usage: migrator <command>")
	fmt.Println("Commands:")
	fmt.Println("  up       Apply all pending migrations")
	fmt.Println("  down     Roll back the latest migration")
	fmt.Println("  status   Show migration status")
	fmt.Println("  version  Print the current schema version")
}
