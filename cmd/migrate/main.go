package main

import (
	"os"

	"github.com/veldtec/authgate/internal/config"
	"github.com/veldtec/authgate/internal/storage"
	"github.com/veldtec/authgate/pkg/logger"
)

// Standalone migration runner for deploy pipelines that migrate before
// rolling the API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info", "text").Error("config_load_failed", "error", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := storage.Migrate(cfg.DatabaseURL); err != nil {
		log.Error("migration_failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations_applied")
}
