// Package scheduler runs the batch job on a cron schedule without overlap.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/thyholm1234/DOF.not/internal/logger"
)

// DefaultSchedule runs a batch every two minutes
const DefaultSchedule = "@every 2m"

// Job is one scheduled run. The context ends when the scheduler stops.
type Job func(ctx context.Context) error

// GetLogger returns the package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("scheduler")
}

// Scheduler wraps a cron instance holding a single job
type Scheduler struct {
	cron     *cron.Cron
	mu       sync.Mutex
	entryID  cron.EntryID
	location *time.Location
	log      logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler evaluating schedules in loc. A nil loc is local time.
func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	log := GetLogger()
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		location: loc,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Schedule sets the job. A previous job is replaced.
func (s *Scheduler) Schedule(spec, name string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}

	id, err := s.cron.AddFunc(spec, func() {
		start := time.Now()
		if err := job(s.ctx); err != nil {
			s.log.Warn("scheduled run failed",
				logger.String("job", name),
				logger.Duration("duration", time.Since(start)),
				logger.Error(err))
			return
		}
		s.log.Debug("scheduled run finished",
			logger.String("job", name),
			logger.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	s.entryID = id
	s.log.Info("job scheduled",
		logger.String("job", name),
		logger.String("schedule", spec),
		logger.String("timezone", s.location.String()))
	return nil
}

// RunNow runs the scheduled job once in the calling goroutine. It goes
// through the same chain as scheduled runs, so it is skipped while a
// scheduled run is in progress.
func (s *Scheduler) RunNow() bool {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return false
	}
	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return false
	}
	entry.WrappedJob.Run()
	return true
}

// Next returns the next scheduled run, zero when not started or no job is set
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	return s.cron.Entry(id).Next
}

// Start begins the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler, cancels the running job's context and waits
// for it to return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger adapts the module logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug("cron: "+msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error("cron: "+msg, append(fields(keysAndValues), logger.Error(err))...)
}

func fields(kv []any) []logger.Field {
	out := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		out = append(out, logger.Any(key, kv[i+1]))
	}
	return out
}
