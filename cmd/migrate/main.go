package main

import (
	"context"
	"log"
	"path/filepath"

	"placement-tests/internal/config"
	"placement-tests/internal/database"
	"placement-tests/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.Logger); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	l := logger.Get()
	defer logger.Sync()

	ctx := context.Background()
	db, err := database.Open(ctx, cfg.DB.Driver, cfg.GetDSN())
	if err != nil {
		l.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Each driver keeps its own dialect under the migrations root.
	dir := filepath.Join(cfg.DB.MigrationsDir, cfg.DB.Driver)
	if err := database.RunMigrations(ctx, db, dir, l); err != nil {
		l.Fatal("Failed to run migrations", zap.String("dir", dir), zap.Error(err))
	}
	l.Info("Migrations complete", zap.String("dir", dir))
}
