package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/VishnuMK2006/invent-consolt/internal/config"
	"github.com/VishnuMK2006/invent-consolt/internal/logger"
	"github.com/VishnuMK2006/invent-consolt/internal/migrate"
	"github.com/VishnuMK2006/invent-consolt/internal/store/postgres"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "invent-migrate"})

	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|validate")
	version := flag.String("version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "invent-migrate",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
	})
	ctx := logger.WithFields(context.Background(), map[string]any{
		"env": cfg.Env,
		"cmd": *cmd,
	})

	if *cmd == "validate" {
		if err := migrate.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "migration validation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("migration validation passed")
		return
	}

	db, err := postgres.Open(ctx, cfg.DB)
	requireResource(ctx, logg, "database", err)
	defer db.Close()

	logg.Info(ctx, "migrate ready", nil)

	switch *cmd {
	case "up", "down", "status":
		err = migrate.Run(ctx, db, *cmd)
	case "version":
		if *version == "" {
			fmt.Fprintln(os.Stderr, "missing -version for version command")
			os.Exit(1)
		}
		err = migrate.MigrateToVersion(ctx, db, *version)
	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
	if err != nil {
		logg.Error(ctx, "migration failed", err, nil)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished", nil)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err, nil)
	os.Exit(1)
}
