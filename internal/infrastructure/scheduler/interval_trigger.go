package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobSubmitter queues jobs by kind
type JobSubmitter interface {
	Submit(kind JobKind) (*Job, error)
}

// IntervalTriggerConfig holds configuration for an interval trigger
type IntervalTriggerConfig struct {
	Kind     JobKind
	Interval time.Duration
	// RunOnStart submits one job immediately instead of waiting a full interval
	RunOnStart bool
}

// IntervalTrigger submits a job of one kind every Interval
type IntervalTrigger struct {
	config    IntervalTriggerConfig
	submitter JobSubmitter
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   time.Time
}

// NewIntervalTrigger creates a new interval trigger
func NewIntervalTrigger(config IntervalTriggerConfig, submitter JobSubmitter, logger *zap.Logger) (*IntervalTrigger, error) {
	if !config.Kind.IsValid() || config.Interval <= 0 {
		return nil, ErrInvalidConfig
	}
	return &IntervalTrigger{
		config:    config,
		submitter: submitter,
		logger:    logger.With(zap.String("job_kind", string(config.Kind))),
	}, nil
}

// Start starts the trigger
func (t *IntervalTrigger) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = true
	t.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	t.wg.Add(1)
	go t.runLoop(ctx)

	t.logger.Info("Interval trigger started",
		zap.Duration("interval", t.config.Interval),
		zap.Bool("run_on_start", t.config.RunOnStart),
	)

	return nil
}

// Stop stops the trigger
func (t *IntervalTrigger) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.isRunning {
		t.mu.Unlock()
		return nil
	}
	t.isRunning = false
	t.mu.Unlock()

	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("Interval trigger stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastRun returns when a job was last submitted, zero if never
func (t *IntervalTrigger) LastRun() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastRun
}

func (t *IntervalTrigger) runLoop(ctx context.Context) {
	defer t.wg.Done()

	if t.config.RunOnStart {
		t.Trigger()
	}

	ticker := time.NewTicker(t.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Trigger()
		}
	}
}

// Trigger submits a job now. A job of the same kind still in flight is not duplicated.
func (t *IntervalTrigger) Trigger() {
	job, err := t.submitter.Submit(t.config.Kind)
	switch {
	case errors.Is(err, ErrJobAlreadyActive):
		t.logger.Debug("Previous run still in progress, skipping")
		return
	case err != nil:
		t.logger.Warn("Failed to submit job", zap.Error(err))
		return
	}

	t.mu.Lock()
	t.lastRun = time.Now()
	t.mu.Unlock()

	t.logger.Debug("Job triggered", zap.String("job_id", job.ID.String()))
}
