package cache

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/plumeapp/plume/pkg/logger"
)

const defaultCleanupSpec = "@hourly"

// Cleaner periodically purges expired rows from the database cache store.
type Cleaner struct {
	store *DatabaseStore
	cron  *cron.Cron
	spec  string
	log   *zap.Logger
}

// CleanerOption customises the Cleaner.
type CleanerOption func(*Cleaner)

// WithSchedule overrides the cron specification for cache cleanup.
func WithSchedule(spec string) CleanerOption {
	return func(c *Cleaner) {
		if spec != "" {
			c.spec = spec
		}
	}
}

// NewCleaner builds a Cleaner for the supplied database store.
func NewCleaner(store *DatabaseStore, opts ...CleanerOption) (*Cleaner, error) {
	if store == nil {
		return nil, errors.New("cache cleaner: store is required")
	}

	cleaner := &Cleaner{
		store: store,
		cron:  cron.New(),
		spec:  defaultCleanupSpec,
		log:   logger.WithModule("cache.cleanup"),
	}
	for _, opt := range opts {
		opt(cleaner)
	}
	return cleaner, nil
}

// Start registers and launches the cleanup schedule.
func (c *Cleaner) Start() error {
	_, err := c.cron.AddFunc(c.spec, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cache cleanup failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	c.cron.Start()
	return nil
}

// Stop halts the schedule and returns a context that is done once in-flight
// jobs finish.
func (c *Cleaner) Stop() context.Context {
	return c.cron.Stop()
}

// RunOnce purges expired entries immediately.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	start := time.Now()
	purged, err := c.store.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	if purged > 0 {
		c.log.Info("purged expired cache entries",
			zap.Int64("count", purged),
			zap.Duration("duration", time.Since(start)),
		)
	}
	return nil
}
