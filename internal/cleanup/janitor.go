package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"docseal/signature-backend/pkg/storage"
)

// Janitor periodically deletes signed documents older than a retention age.
type Janitor struct {
	cron   *cron.Cron
	store  storage.ObjectStore
	prefix string
	maxAge time.Duration
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	running bool
}

// NewJanitor prunes objects under prefix older than maxAge.
func NewJanitor(store storage.ObjectStore, prefix string, maxAge time.Duration, logger *zap.Logger) *Janitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Janitor{
		cron:   cron.New(),
		store:  store,
		prefix: prefix,
		maxAge: maxAge,
		logger: logger,
		now:    time.Now,
	}
}

// Start schedules the sweep with a standard cron expression or descriptor such as
// "@hourly".
func (j *Janitor) Start(ctx context.Context, schedule string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return fmt.Errorf("janitor already running")
	}

	_, err := j.cron.AddFunc(schedule, func() {
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("Cleanup sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cleanup schedule %q: %w", schedule, err)
	}

	j.logger.Info("Starting cleanup janitor",
		zap.String("schedule", schedule),
		zap.Duration("max_age", j.maxAge),
	)
	j.cron.Start()
	j.running = true
	return nil
}

// Stop waits for a running sweep to finish.
func (j *Janitor) Stop() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if !j.running {
		return
	}
	j.logger.Info("Stopping cleanup janitor")
	<-j.cron.Stop().Done()
	j.running = false
}

// Sweep deletes expired objects once and returns how many were removed.
func (j *Janitor) Sweep(ctx context.Context) (int, error) {
	objects, err := j.store.List(ctx, j.prefix)
	if err != nil {
		return 0, err
	}
	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, o := range objects {
		if !o.ModTime.Before(cutoff) {
			continue
		}
		if err := j.store.Delete(ctx, o.Key); err != nil {
			j.logger.Warn("Failed to delete expired document", zap.String("key", o.Key), zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		j.logger.Info("Pruned expired documents", zap.Int("count", removed))
	}
	return removed, nil
}
