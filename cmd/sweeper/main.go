package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/your-org/buddywatch/internal/asset"
	"github.com/your-org/buddywatch/internal/config"
	"github.com/your-org/buddywatch/internal/observability"
	"github.com/your-org/buddywatch/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	blobs, err := storage.OpenBlobStore(ctx, cfg)
	if err != nil {
		slog.Error("open blob store", "error", err)
		os.Exit(1)
	}
	if cfg.Database.Backend == "memory" {
		slog.Error("sweeper needs a shared record store; memory backend would sweep every blob")
		os.Exit(1)
	}
	records, closeRecords, err := storage.OpenRecordStore(ctx, cfg)
	if err != nil {
		slog.Error("open record store", "error", err)
		os.Exit(1)
	}
	defer closeRecords()

	sweeper := asset.NewSweeper(blobs, records, cfg.Sweeper.Grace)
	slog.Info("starting orphan sweeper", "interval", cfg.Sweeper.Interval, "grace", cfg.Sweeper.Grace, "once", *once)

	if *once {
		n, err := sweeper.Sweep(ctx)
		if err != nil {
			slog.Error("sweep failed", "error", err)
			closeRecords()
			os.Exit(1)
		}
		slog.Info("sweep complete", "removed", n)
		return
	}

	sweeper.Run(ctx, cfg.Sweeper.Interval)
	slog.Info("sweeper stopped")
}
