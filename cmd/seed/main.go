package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/tanvi/payboard/internal/config"
	"github.com/tanvi/payboard/internal/generator"
	"github.com/tanvi/payboard/internal/logging"
	"github.com/tanvi/payboard/internal/store"
)

func main() {
	defaults := generator.DefaultConfig()
	var (
		count       = flag.Int("count", 60, "number of transactions to generate")
		startID     = flag.Int("start-id", defaults.StartID, "first TXN identifier number")
		windowHours = flag.Int("window-hours", int(defaults.Window/time.Hour), "spread timestamps over the past N hours")
		seed        = flag.Int64("seed", 0, "random seed for deterministic generation (0 = time-based)")
		workers     = flag.Int("workers", 4, "number of concurrent insert workers")
		clearFirst  = flag.Bool("clear", true, "remove existing transactions before seeding")
		writeStdout = flag.Bool("stdout", false, "write generated transactions to stdout instead of the store")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging).With("component", "seed")

	gen := generator.New(generator.Config{
		StartID: *startID,
		Window:  time.Duration(*windowHours) * time.Hour,
		Seed:    *seed,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if *writeStdout {
		txns, err := gen.Generate(ctx, *count)
		if err != nil {
			logger.Error("generation failed", "error", err)
			os.Exit(1)
		}
		if err := json.NewEncoder(os.Stdout).Encode(txns); err != nil {
			logger.Error("failed to write transactions to stdout", "error", err)
			os.Exit(1)
		}
		return
	}

	backing, err := store.NewMongo(ctx, store.Options{
		URI:            cfg.Mongo.URI,
		Database:       cfg.Mongo.Database,
		ConnectTimeout: cfg.Mongo.ConnectTimeout,
		MaxPoolSize:    cfg.Mongo.MaxPoolSize,
	})
	if err != nil {
		logger.Error("failed to create store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := backing.Close(context.Background()); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()

	if *clearFirst {
		if err := backing.Transactions().Clear(ctx); err != nil {
			logger.Error("failed to clear transactions", "error", err)
			os.Exit(1)
		}
		logger.Info("cleared existing transactions")
	}

	seeder := generator.NewSeeder(gen, generator.NewLoader(backing.Transactions(), *workers))
	inserted, err := seeder.Seed(ctx, *count)
	if err != nil {
		logger.Error("seeding failed", "error", err)
		os.Exit(1)
	}

	logger.Info("seeding complete", "inserted", inserted, "database", cfg.Mongo.Database)
}
