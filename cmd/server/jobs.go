package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	sweepJobTimeout = 2 * time.Minute
	pruneInterval   = time.Minute
	cronStopTimeout = 5 * time.Second
)

type creditSweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type pruner interface {
	Prune() int
}

// cronLogger routes scheduler events through slog.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron "+msg, append(keysAndValues, "err", err)...)
}

func newScheduler(logr *slog.Logger) *cron.Cron {
	cl := cronLogger{log: logr}
	return cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
}

// registerJobs schedules the credit sweep and the rate limiter cleanup.
func registerJobs(c *cron.Cron, logr *slog.Logger, credits creditSweeper, limiter pruner, sweepEvery time.Duration) error {
	if sweepEvery <= 0 {
		sweepEvery = time.Minute
	}

	_, err := c.AddFunc("@every "+sweepEvery.String(), func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepJobTimeout)
		defer cancel()

		credited, err := credits.Sweep(ctx)
		if err != nil {
			logr.Error("credit sweep failed", "err", err)
			return
		}
		if credited > 0 {
			logr.Info("credit sweep finished", "credited", credited)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule credit sweep: %w", err)
	}

	_, err = c.AddFunc("@every "+pruneInterval.String(), func() {
		if removed := limiter.Prune(); removed > 0 {
			logr.Debug("rate limiter pruned", "visitors", removed)
		}
	})
	if err != nil {
		return fmt.Errorf("schedule limiter prune: %w", err)
	}
	return nil
}

// stopScheduler waits for running jobs, giving up after cronStopTimeout.
func stopScheduler(c *cron.Cron, logr *slog.Logger) {
	done := c.Stop()
	select {
	case <-done.Done():
		logr.Info("cron jobs stopped")
	case <-time.After(cronStopTimeout):
		logr.Warn("cron jobs still running after timeout")
	}
}
