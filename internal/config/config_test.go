package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "missing.env"))

	cf, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "8080", cf.ServerPort)
	require.Equal(t, StoreBackendMemory, cf.StoreBackend)
	require.Equal(t, 3*time.Second, cf.LockTimeout)
	require.Equal(t, "storefront.orders", cf.KafkaOrderTopic)
	require.Empty(t, cf.Brokers())
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.env")
	content := "SERVER_PORT=9090\nSTORE_BACKEND=postgres\nLOCK_TIMEOUT=5s\nKAFKA_BROKERS=a:9092, b:9092\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv(configPathEnv, path)
	t.Setenv("OUTBOX_BATCH_SIZE", "7")
	t.Setenv("SERVER_PORT", "7070")

	cf, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "7070", cf.ServerPort)
	require.Equal(t, StoreBackendPostgres, cf.StoreBackend)
	require.Equal(t, 5*time.Second, cf.LockTimeout)
	require.Equal(t, 7, cf.OutboxBatchSize)
	require.Equal(t, []string{"a:9092", "b:9092"}, cf.Brokers())
}
