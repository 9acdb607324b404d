package managers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chrissnell/floodfreq/internal/session"
	"github.com/chrissnell/floodfreq/pkg/config"
	"go.uber.org/zap"
)

// StorageManager owns the session store and expires sessions whose cookie
// has lapsed
type StorageManager struct {
	Store  session.Store
	maxAge time.Duration
	logger *zap.SugaredLogger
}

// NewStorageManager opens the configured session backend
func NewStorageManager(sc config.SessionsData, cookieMaxAge int, logger *zap.SugaredLogger) (*StorageManager, error) {
	store, err := newStore(sc)
	if err != nil {
		return nil, fmt.Errorf("could not open %s session backend: %w", sc.Backend, err)
	}
	logger.Infof("using %s session backend", sc.Backend)

	return &StorageManager{
		Store:  store,
		maxAge: time.Duration(cookieMaxAge) * time.Second,
		logger: logger,
	}, nil
}

func newStore(sc config.SessionsData) (session.Store, error) {
	switch sc.Backend {
	case config.BackendSQLite:
		return session.NewSQLiteStore(sc.Path)
	case config.BackendPostgres:
		return session.NewPostgresStore(sc.ConnectionString)
	case config.BackendNone, "":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", sc.Backend)
	}
}

// StartJanitor purges expired session fields every interval until ctx is
// done. A zero interval or max age disables purging.
func (s *StorageManager) StartJanitor(ctx context.Context, wg *sync.WaitGroup, interval time.Duration) {
	if interval <= 0 || s.maxAge <= 0 {
		return
	}

	wg.Add(1)
	go func() {
		defer wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Purge(ctx, time.Now())
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Purge drops fields not written within the session lifetime before now
func (s *StorageManager) Purge(ctx context.Context, now time.Time) {
	n, err := s.Store.Purge(ctx, now.Add(-s.maxAge))
	if err != nil {
		s.logger.Errorw("session purge failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Infow("purged expired session fields", "count", n)
	}
}

// Close closes the session store
func (s *StorageManager) Close() error {
	return s.Store.Close()
}
