package audit

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Config holds audit manager configuration
type Config struct {
	DBPath        string
	DBKey         string // Encryption key for SQLCipher
	RetentionDays int    // 0 = forever
}

// Manager owns the audit storage and its retention loop.
type Manager struct {
	storage       *Storage
	retentionDays int

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Open initializes storage, runs one retention pass and starts the hourly
// cleanup loop.
func Open(cfg Config) (*Manager, error) {
	storage, err := NewStorage(cfg.DBPath, cfg.DBKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	m := &Manager{
		storage:       storage,
		retentionDays: cfg.RetentionDays,
		stopChan:      make(chan struct{}),
	}

	if cfg.RetentionDays > 0 {
		if deleted, err := storage.CleanupOldData(cfg.RetentionDays); err != nil {
			log.Warn("Initial cleanup failed: %v", err)
		} else if deleted > 0 {
			log.Info("Initial cleanup: removed %d old records", deleted)
		}

		m.wg.Add(1)
		go m.cleanupLoop()
	}
	return m, nil
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			if _, err := m.storage.CleanupOldData(m.retentionDays); err != nil {
				log.Warn("Periodic cleanup failed: %v", err)
			}
		}
	}
}

// Record stores e. A nil Manager discards it, so callers need not check
// whether auditing is enabled.
func (m *Manager) Record(ctx context.Context, e Entry) error {
	if m == nil {
		return nil
	}
	return m.storage.Record(ctx, e)
}

// Storage returns the storage, or nil for a nil Manager.
func (m *Manager) Storage() *Storage {
	if m == nil {
		return nil
	}
	return m.storage
}

// Shutdown stops the cleanup loop and closes the database.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m == nil {
		return nil
	}
	var err error
	m.stopOnce.Do(func() {
		close(m.stopChan)

		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			log.Warn("Shutdown: cleanup loop did not stop in time")
		}

		if cerr := m.storage.Close(); cerr != nil {
			log.Error("Storage close error: %v", cerr)
			err = cerr
		}
	})
	return err
}
