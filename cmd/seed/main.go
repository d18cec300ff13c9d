package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/godilite/towergen/internal/app"
	"github.com/godilite/towergen/internal/config"
)

func main() {
	_ = godotenv.Load(".env")

	var opts app.SeedOptions
	flag.IntVar(&opts.Towers, "towers", 5000, "number of towers to generate")
	flag.IntVar(&opts.Tickets, "tickets", 20000, "number of tickets to generate")
	flag.IntVar(&opts.StartID, "start-id", 1, "first cell id")
	flag.StringVar(&opts.TablesPath, "tables", "", "YAML tables file (defaults to TABLES_PATH, then the built-in tables)")
	flag.Parse()

	cfg := config.LoadFromEnv()

	logger, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := app.Seed(ctx, cfg, logger, opts)
	if err != nil {
		logger.Fatal("Seeding failed", zap.Error(err))
	}

	logger.Info("seed complete",
		zap.String("version", res.Version),
		zap.Time("generated_at", res.GeneratedAt),
		zap.Int("towers", res.Summary.Towers),
		zap.Int("tickets", res.Summary.Tickets),
		zap.Int("clamped_rows", res.Summary.ClampedRows),
		zap.Any("vendor_share", res.Summary.VendorShare))
	for _, ts := range res.Summary.Tiers {
		logger.Info("tier summary",
			zap.Stringer("tier", ts.Tier),
			zap.Int("towers", ts.Towers),
			zap.Float64("mean_rrc_failure_rate", ts.MeanRRCFailureRate),
			zap.Float64("std_rrc_failure_rate", ts.StdRRCFailureRate),
			zap.Float64("mean_dl_latency", ts.MeanDLLatency),
			zap.Float64("mean_dl_prb_util", ts.MeanDLPRBUtil),
			zap.Float64("mean_abnormal_release", ts.MeanAbnormalRelease),
			zap.Int("tickets", ts.Tickets),
			zap.Float64("mean_sentiment", ts.MeanSentiment))
	}
}
