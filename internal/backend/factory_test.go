package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fincore/internal/config"
	"fincore/internal/core"
	"fincore/internal/ledger/memory"
	"fincore/internal/storage"
)

func TestBackendTypeIsValid(t *testing.T) {
	assert.True(t, SQLiteBackend.IsValid())
	assert.True(t, MemoryBackend.IsValid())
	assert.False(t, BackendType("sheets").IsValid())
	assert.Equal(t, "sqlite", SQLiteBackend.String())
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(&config.Config{DataBackend: config.BackendSQLite, SQLiteDBPath: "/tmp/x.db"})
	assert.Equal(t, SQLiteBackend, cfg.Type)
	assert.Equal(t, "/tmp/x.db", cfg.SQLiteDBPath)
}

func TestCreateStoreMemory(t *testing.T) {
	ctx := context.Background()
	res, err := NewFactory(nil).CreateStore(ctx, Config{Type: MemoryBackend})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, res.Store)

	ready := res.Ready()
	require.NotNil(t, ready)
	require.NoError(t, ready(ctx))

	require.NoError(t, res.Cleanup())
	assert.ErrorIs(t, ready(ctx), core.ErrStorage, "a closed store is not ready")
}

func TestCreateStoreSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "fincore.db")

	res, err := NewFactory(nil).CreateStore(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { res.Cleanup() })

	assert.IsType(t, &storage.SQLiteRepository{}, res.Store)
	require.NoError(t, res.Ready()(ctx))
}

func TestCreateStoreRejects(t *testing.T) {
	f := NewFactory(nil)
	_, err := f.CreateStore(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)

	_, err = f.CreateStore(context.Background(), Config{Type: SQLiteBackend})
	assert.Error(t, err)
}
