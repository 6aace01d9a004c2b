package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// OrphanDeleter removes holds left behind by deleted devices
type OrphanDeleter interface {
	DeleteOrphanHolds(ctx context.Context) (int64, error)
}

// OrphanCleaner periodically removes holds whose device was deleted
type OrphanCleaner struct {
	store         OrphanDeleter
	logger        zerolog.Logger
	cleanupPeriod time.Duration
	runTimeout    time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
	wg            sync.WaitGroup

	// Stats
	mu              sync.RWMutex
	totalDeleted    int64
	totalCleanups   int64
	totalFailures   int64
	lastCleanup     time.Time
	lastDeleteCount int64
}

// OrphanCleanerConfig holds configuration for the cleaner
type OrphanCleanerConfig struct {
	CleanupPeriod time.Duration // How often to run cleanup (default: 1 hour)
	RunTimeout    time.Duration // Upper bound for a single run (default: 30s)
}

// DefaultOrphanCleanerConfig returns sensible defaults
func DefaultOrphanCleanerConfig() OrphanCleanerConfig {
	return OrphanCleanerConfig{
		CleanupPeriod: 1 * time.Hour,
		RunTimeout:    30 * time.Second,
	}
}

// OrphanCleanerStats contains statistics about the cleaner
type OrphanCleanerStats struct {
	TotalDeleted    int64     `json:"total_deleted"`
	TotalCleanups   int64     `json:"total_cleanups"`
	TotalFailures   int64     `json:"total_failures"`
	LastCleanup     time.Time `json:"last_cleanup,omitempty"`
	LastDeleteCount int64     `json:"last_delete_count"`
}

// NewOrphanCleaner creates and starts a new orphan cleaner
func NewOrphanCleaner(store OrphanDeleter, config OrphanCleanerConfig, logger zerolog.Logger) *OrphanCleaner {
	defaults := DefaultOrphanCleanerConfig()
	cleanupPeriod := config.CleanupPeriod
	if cleanupPeriod <= 0 {
		logger.Warn().
			Dur("provided_period", cleanupPeriod).
			Dur("default_period", defaults.CleanupPeriod).
			Msg("Invalid CleanupPeriod provided (zero or negative), using default")
		cleanupPeriod = defaults.CleanupPeriod
	}
	runTimeout := config.RunTimeout
	if runTimeout <= 0 {
		runTimeout = defaults.RunTimeout
	}

	c := &OrphanCleaner{
		store:         store,
		logger:        logger,
		cleanupPeriod: cleanupPeriod,
		runTimeout:    runTimeout,
		stopChan:      make(chan struct{}),
	}

	c.wg.Add(1)
	go c.cleanupLoop()

	logger.Info().
		Dur("cleanup_period", cleanupPeriod).
		Msg("OrphanCleaner started")

	return c
}

// cleanupLoop runs the periodic cleanup
func (c *OrphanCleaner) cleanupLoop() {
	defer c.wg.Done()

	c.runCleanup()

	ticker := time.NewTicker(c.cleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.stopChan:
			c.logger.Info().Msg("OrphanCleaner stopped")
			return
		}
	}
}

// runCleanup performs the actual cleanup operation
func (c *OrphanCleaner) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), c.runTimeout)
	defer cancel()

	deleted, err := c.store.DeleteOrphanHolds(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.totalCleanups++
	c.lastCleanup = time.Now()

	if err != nil {
		c.totalFailures++
		c.logger.Error().Err(err).Msg("Orphan hold cleanup failed")
		return
	}

	c.totalDeleted += deleted
	c.lastDeleteCount = deleted
	if deleted > 0 {
		c.logger.Info().Int64("deleted", deleted).Msg("Orphan hold cleanup completed")
	} else {
		c.logger.Debug().Msg("Orphan hold cleanup completed, nothing to delete")
	}
}

// Stop gracefully stops the cleaner
func (c *OrphanCleaner) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
}

// Stats returns current cleaner statistics
func (c *OrphanCleaner) Stats() OrphanCleanerStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return OrphanCleanerStats{
		TotalDeleted:    c.totalDeleted,
		TotalCleanups:   c.totalCleanups,
		TotalFailures:   c.totalFailures,
		LastCleanup:     c.lastCleanup,
		LastDeleteCount: c.lastDeleteCount,
	}
}

// RunNow triggers an immediate cleanup
func (c *OrphanCleaner) RunNow() {
	c.runCleanup()
}
