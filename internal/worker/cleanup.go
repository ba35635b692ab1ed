// Package worker runs the scheduled energy maintenance jobs.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"dreamcatcher/internal/ledger"
)

// Cleaner sweeps lapsed energy lots.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (ledger.CleanupResult, error)
}

// CleanupRecorder counts cleanup runs.
type CleanupRecorder interface {
	Cleanup(success bool)
}

// CleanupJob removes expired lots on a cron schedule. Runs never overlap; a
// tick that fires while a sweep is still going is skipped.
type CleanupJob struct {
	cleaner  Cleaner
	recorder CleanupRecorder
	logger   zerolog.Logger
	timeout  time.Duration

	mu      sync.Mutex
	running bool
}

func NewCleanupJob(cleaner Cleaner, recorder CleanupRecorder, logger zerolog.Logger) *CleanupJob {
	return &CleanupJob{cleaner: cleaner, recorder: recorder, logger: logger, timeout: 10 * time.Minute}
}

// RunOnce executes a single sweep and reports it.
func (j *CleanupJob) RunOnce(ctx context.Context) (ledger.CleanupResult, error) {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		j.logger.Warn().Msg("worker: cleanup still running, tick skipped")
		return ledger.CleanupResult{}, nil
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	runCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	started := time.Now()
	res, err := j.cleaner.CleanupExpired(runCtx)
	if j.recorder != nil {
		j.recorder.Cleanup(err == nil)
	}
	evt := j.logger.Info()
	if err != nil {
		evt = j.logger.Error().Err(err)
	}
	evt.Int("users", res.Users).
		Int("entries", res.CleanedEntries).
		Int("amount", res.TotalExpired).
		Dur("took", time.Since(started)).
		Msg("worker: cleanup run")
	return res, err
}

// Schedule registers the job on c under spec, a standard five-field cron
// expression.
func (j *CleanupJob) Schedule(ctx context.Context, c *cron.Cron, spec string) (cron.EntryID, error) {
	id, err := c.AddFunc(spec, func() {
		_, _ = j.RunOnce(ctx)
	})
	if err != nil {
		return 0, fmt.Errorf("schedule cleanup %q: %w", spec, err)
	}
	return id, nil
}

// NewCron builds a scheduler evaluating expressions in UTC, matching the
// ledger's calendar days.
func NewCron(logger zerolog.Logger) *cron.Cron {
	return cron.New(
		cron.WithLocation(time.UTC),
		cron.WithLogger(cronLogger{logger: logger}),
	)
}

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
