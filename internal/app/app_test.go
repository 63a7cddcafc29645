package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
)

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.StorageDriver = StorageDriverMemory
	cfg.KafkaBrokers = ""

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	err := Run(ctx, cfg)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := DefaultConfig()
	cfg.StorageDriver = "invalid-driver"
	cfg.MetricsAddr = "127.0.0.1:0"

	err := Run(context.Background(), cfg)
	if err == nil || !strings.Contains(err.Error(), "unsupported storage driver") {
		t.Fatalf("expected unsupported storage driver error, got %v", err)
	}
}

func TestRun_HealthEndpointsServeWhileRunning(t *testing.T) {
	port := findFreePort(t)

	cfg := DefaultConfig()
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", port)
	cfg.StorageDriver = StorageDriverMemory
	cfg.KafkaBrokers = ""

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg)
	}()

	// Даём время на запуск
	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/healthz", port))
	if err != nil {
		t.Fatalf("failed to get /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", resp.StatusCode)
	}

	resp, err = http.Get(fmt.Sprintf("http://127.0.0.1:%d/readyz", port))
	if err != nil {
		t.Fatalf("failed to get /readyz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from /readyz, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestNewOutboxBacklogChecker(t *testing.T) {
	runtime := newMemoryRuntime(t)

	checker := newOutboxBacklogChecker(runtime, 1)
	if check := checker.Check(); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("empty outbox should be healthy, got %+v", check)
	}

	for i := 0; i < 3; i++ {
		if _, err := runtime.outboxRepo.Enqueue(newTestOutboxMessage(fmt.Sprintf("outbox-%d", i))); err != nil {
			t.Fatalf("enqueue outbox message: %v", err)
		}
	}

	if check := checker.Check(); check.Status != healthcheck.StatusUnhealthy {
		t.Fatalf("overfilled outbox should be unhealthy, got %+v", check)
	}

	// Нулевой лимит отключает проверку backlog.
	unlimited := newOutboxBacklogChecker(runtime, 0)
	if check := unlimited.Check(); check.Status != healthcheck.StatusHealthy {
		t.Fatalf("unlimited checker should stay healthy, got %+v", check)
	}
}

func TestCloseStorage_Nil(_ *testing.T) {
	logger := log.WithField("test", "close-storage")

	// Не должно паниковать
	closeStorage(nil, logger)
	closeStorage(&runtimeDependencies{}, logger)
}
