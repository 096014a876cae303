package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"treasury-charts/internal/storage"
)

// setupTestRedis starts a Redis container and returns its address.
func setupTestRedis(t *testing.T) (string, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	cleanup := func() {
		_ = container.Terminate(ctx)
	}
	return fmt.Sprintf("%s:%s", host, port.Port()), cleanup
}

func TestChartCache(t *testing.T) {
	addr, cleanup := setupTestRedis(t)
	defer cleanup()

	ctx := context.Background()
	cache, err := NewChartCache(ctx, Options{Addr: addr})
	require.NoError(t, err)
	defer cache.Close()

	other, err := NewChartCache(ctx, Options{Addr: addr, Prefix: "other:"})
	require.NoError(t, err)
	defer other.Close()

	_, err = cache.Get(ctx, "sold:light")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, cache.Put(ctx, "", []byte("x")), storage.ErrInvalidInput)

	require.NoError(t, cache.Put(ctx, "sold:light", []byte(`{"name":"sold"}`)))
	require.NoError(t, cache.Put(ctx, "minted:dark", []byte(`{"name":"minted"}`)))
	require.NoError(t, other.Put(ctx, "sold:light", []byte("kept")))

	got, err := cache.Get(ctx, "sold:light")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"sold"}`, string(got))

	require.NoError(t, cache.Clear(ctx))

	_, err = cache.Get(ctx, "sold:light")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = cache.Get(ctx, "minted:dark")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err = other.Get(ctx, "sold:light")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(got), "clear only touches its own prefix")

	assert.NoError(t, cache.Clear(ctx), "clearing an empty cache")
}

func TestNewChartCache_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewChartCache(ctx, Options{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
