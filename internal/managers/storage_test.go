package managers

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/floodfreq/internal/session"
	"github.com/chrissnell/floodfreq/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewStorageManagerBackends(t *testing.T) {
	logger := zap.NewNop().Sugar()

	sm, err := NewStorageManager(config.SessionsData{Backend: config.BackendNone}, 60, logger)
	require.NoError(t, err)
	assert.IsType(t, &session.MemoryStore{}, sm.Store)
	require.NoError(t, sm.Close())

	path := filepath.Join(t.TempDir(), "sessions.db")
	sm, err = NewStorageManager(config.SessionsData{Backend: config.BackendSQLite, Path: path}, 60, logger)
	require.NoError(t, err)
	assert.IsType(t, &session.SQLiteStore{}, sm.Store)
	require.NoError(t, sm.Close())

	_, err = NewStorageManager(config.SessionsData{Backend: "valkey"}, 60, logger)
	assert.Error(t, err)
}

func TestPurgeUsesCookieLifetime(t *testing.T) {
	ctx := context.Background()
	sm, err := NewStorageManager(config.SessionsData{Backend: config.BackendNone}, 3600, zap.NewNop().Sugar())
	require.NoError(t, err)

	require.NoError(t, sm.Store.Put(ctx, "uid", map[string][]byte{"options": {1}}))

	sm.Purge(ctx, time.Now())
	_, err = sm.Store.Get(ctx, "uid", "options")
	assert.NoError(t, err, "fields younger than the cookie survive")

	sm.Purge(ctx, time.Now().Add(2*time.Hour))
	_, err = sm.Store.Get(ctx, "uid", "options")
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestJanitorStopsWithContext(t *testing.T) {
	sm, err := NewStorageManager(config.SessionsData{Backend: config.BackendNone}, 3600, zap.NewNop().Sugar())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	sm.StartJanitor(ctx, &wg, time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	cancel()
	wg.Wait()
}
