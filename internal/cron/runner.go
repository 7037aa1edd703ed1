// Package cronrunner schedules named background jobs on a seconds-resolution
// cron. A job never overlaps itself and a panicking job is logged, not fatal.
package cronrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Job func(ctx context.Context) error

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
	names   map[cron.EntryID]string
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger})),
		),
		logger:  logger,
		baseCtx: baseCtx,
		names:   map[cron.EntryID]string{},
	}
}

// Add registers job under name. Specs accept the six-field form with seconds
// and descriptors such as "@every 15m".
func (r *Runner) Add(name, spec string, job Job) (cron.EntryID, error) {
	id, err := r.cron.AddFunc(spec, func() { r.run(name, job) })
	if err != nil {
		return 0, fmt.Errorf("schedule %s (%q): %w", name, spec, err)
	}
	r.names[id] = name
	r.logger.Info("cron job registered", zap.String("job", name), zap.String("spec", spec))
	return id, nil
}

func (r *Runner) run(name string, job Job) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("cron job panicked",
				zap.String("job", name),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
		}
	}()
	if err := job(r.baseCtx); err != nil {
		r.logger.Warn("cron job failed", zap.String("job", name), zap.Duration("duration", time.Since(started)), zap.Error(err))
		return
	}
	r.logger.Debug("cron job finished", zap.String("job", name), zap.Duration("duration", time.Since(started)))
}

// Next reports the next activation per job name.
func (r *Runner) Next() map[string]time.Time {
	out := make(map[string]time.Time, len(r.names))
	for _, e := range r.cron.Entries() {
		out[r.names[e.ID]] = e.Next
	}
	return out
}

func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("jobs", len(r.names)))
	r.cron.Start()
}

// Stop waits for running jobs to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

type cronLogger struct{ l *zap.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Infow("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}
