package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"p2p-exchange/config"
	pgStorage "p2p-exchange/internal/adapter/storage/postgres"
	"p2p-exchange/pkg/logger"
)

const usage = `usage: migrate [-config path] up | down [N]`

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.Component(logger.New(cfg.Log.Level, cfg.Log.Pretty), "migrate")
	ctx := context.Background()
	dsn := cfg.Database.DSN()

	switch flag.Arg(0) {
	case "up":
		err = pgStorage.MigrateUp(ctx, dsn, log)
	case "down":
		steps := 1
		if raw := flag.Arg(1); raw != "" {
			steps, err = strconv.Atoi(raw)
			if err != nil || steps < 1 {
				log.Fatal().Str("steps", raw).Msg("down expects a positive step count")
			}
		}
		err = pgStorage.MigrateDown(ctx, dsn, steps, log)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	log.Info().Str("direction", flag.Arg(0)).Msg("Migrations applied")
}
