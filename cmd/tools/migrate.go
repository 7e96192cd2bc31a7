package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/baxromumarov/job-collector/internal/logging"
	"github.com/baxromumarov/job-collector/internal/store"
)

func main() {
	driver := flag.String("driver", "postgres", "SQL driver: postgres or mysql")
	dsn := flag.String("dsn", os.Getenv("DATABASE_URL"), "database connection string")
	flag.Parse()

	slog.SetDefault(logging.NewWithWriter(os.Stdout, slog.LevelInfo))

	if *dsn == "" {
		slog.Error("missing -dsn (or DATABASE_URL)")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	// OpenSQL creates the job_records table when it is missing.
	db, err := store.OpenSQL(ctx, *driver, *dsn)
	if err != nil {
		slog.Error("migration failed", "driver", *driver, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	slog.Info("migrations executed successfully", "driver", *driver)
}
