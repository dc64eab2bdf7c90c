//go:build integration

package ratelimit

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestRedisWindow(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	addr := startRedis(t)
	ctx := context.Background()

	w, err := NewRedisWindow(ctx, addr, "", 2, time.Minute)
	require.NoError(t, err)
	defer w.Close()

	for i := 0; i < 2; i++ {
		ok, ttl, err := w.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Greater(t, ttl, time.Duration(0))
	}

	ok, _, err := w.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _, err = w.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, ok, "keys are counted independently")
}

func TestNewRedisWindowUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	_, err := NewRedisWindow(ctx, "127.0.0.1:1", "", 1, time.Minute)
	assert.Error(t, err)
}
