package maintenance

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/linkupapp/linkup/internal/models"
	"github.com/linkupapp/linkup/pkg/logger"
)

const (
	defaultSupersededRetention = 90 * 24 * time.Hour
	defaultReadRetention       = 30 * 24 * time.Hour
	defaultSchedule            = "@hourly"
)

// Cleaner prunes historical data in the background: superseded relationship
// rows past their audit window and read notifications past their retention.
type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
	now  func() time.Time
	log  *zap.Logger

	schedule            string
	supersededRetention time.Duration
	readRetention       time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification for the cleanup job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithSupersededRetention adjusts how long superseded relationship rows are kept.
func WithSupersededRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.supersededRetention = retention
		}
	}
}

// WithReadRetention adjusts how long read notifications are kept.
func WithReadRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.readRetention = retention
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:                  db,
		now:                 time.Now,
		schedule:            defaultSchedule,
		supersededRetention: defaultSupersededRetention,
		readRetention:       defaultReadRetention,
		log:                 logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("cleanup failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if _, err := CleanupSupersededRelationships(ctx, c.db, c.now().Add(-c.supersededRetention)); err != nil {
		errs = multierr.Append(errs, err)
	}

	if _, err := CleanupReadNotifications(ctx, c.db, c.now().Add(-c.readRetention)); err != nil {
		errs = multierr.Append(errs, err)
	}

	return errs
}

// CleanupSupersededRelationships deletes relationship history rows superseded
// before the cutoff. Current rows are never touched.
func CleanupSupersededRelationships(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup relationships: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("superseded_at IS NOT NULL AND superseded_at < ?", cutoff).
		Delete(&models.Relationship{})
	return result.RowsAffected, result.Error
}

// CleanupReadNotifications deletes notifications read before the cutoff.
// Unread notifications are retained regardless of age.
func CleanupReadNotifications(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("cleanup notifications: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("is_read = ? AND read_at < ?", true, cutoff).
		Delete(&models.Notification{})
	return result.RowsAffected, result.Error
}
