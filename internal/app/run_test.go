package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func testRunConfig(t *testing.T) Config {
	t.Helper()

	cfg := DefaultConfig()
	cfg.HTTPAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.MetricsAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))
	cfg.OutboxPollInterval = 20 * time.Millisecond
	cfg.ShutdownTimeout = time.Second
	return cfg
}

func TestRun_MemoryGracefulShutdown(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.GRPCHealthAddr = fmt.Sprintf("127.0.0.1:%d", findFreePort(t))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- Run(ctx, cfg) }()

	api := "http://" + cfg.HTTPAddr
	waitForServer(t, "http://"+cfg.MetricsAddr+"/livez")
	waitForServer(t, api+"/orders")

	// без идентификации покупателя API отвечает 401
	status, _ := get(t, api+"/orders")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body := get(t, "http://"+cfg.MetricsAddr+"/readyz")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ready", body)

	status, body = get(t, "http://"+cfg.MetricsAddr+"/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, `"storage"`)
	assert.Contains(t, body, `"outbox"`)

	conn, err := grpc.NewClient(cfg.GRPCHealthAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	checkCtx, checkCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer checkCancel()
	resp, err := healthpb.NewHealthClient(conn).Check(checkCtx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())

	cancel()
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "expected context.Canceled, got %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}

func TestRun_InvalidStorageDriver(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.StorageDriver = "invalid-driver"

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestRun_InvalidTimezone(t *testing.T) {
	cfg := testRunConfig(t)
	cfg.Timezone = "Nowhere/City"

	err := Run(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}
