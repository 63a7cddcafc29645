package main

import (
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/storefront/internal/app"
)

func TestSetupLogger(t *testing.T) {
	setupLogger()

	if log.GetLevel() != log.InfoLevel {
		t.Fatalf("expected info log level, got %s", log.GetLevel())
	}

	if _, ok := log.StandardLogger().Formatter.(*log.TextFormatter); !ok {
		t.Fatalf("expected text formatter, got %T", log.StandardLogger().Formatter)
	}
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STOREFRONT_METRICS_ADDR", "localhost:9191")
	t.Setenv("STOREFRONT_STORAGE_DRIVER", "memory")

	cfg, err := app.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.MetricsAddr != "localhost:9191" {
		t.Fatalf("unexpected metrics addr: %s", cfg.MetricsAddr)
	}
	if cfg.StorageDriver != app.StorageDriverMemory {
		t.Fatalf("unexpected storage driver: %s", cfg.StorageDriver)
	}
}

func TestLoadConfig_PostgresRequiresDSN(t *testing.T) {
	t.Setenv("STOREFRONT_STORAGE_DRIVER", "postgres")
	t.Setenv("STOREFRONT_POSTGRES_DSN", "")

	if _, err := app.LoadConfig(); err == nil {
		t.Fatal("expected error when postgres driver is selected without DSN")
	}
}
