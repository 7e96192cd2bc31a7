package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var ErrSchedulerStarted = errors.New("scheduler already started")

// Scheduler triggers a cycle immediately on Start and then every interval.
// Ticks that arrive while a cycle is running are dropped, not queued.
type Scheduler struct {
	cycle    func(context.Context)
	interval time.Duration
	cron     *cron.Cron
	now      func() time.Time

	mu          sync.Mutex
	started     bool
	state       State
	entry       cron.EntryID
	lastTrigger time.Time
	skipped     int
	runCtx      context.Context
	wg          sync.WaitGroup
}

func NewScheduler(cycle func(context.Context), interval time.Duration) *Scheduler {
	logger := cronLogger{}
	return &Scheduler{
		cycle:    cycle,
		interval: interval,
		cron:     cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger))),
		now:      time.Now,
	}
}

// Start runs the first cycle in the background and starts the timer. Cycles run
// on a context detached from ctx's cancellation; use Stop to end scheduling.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrSchedulerStarted
	}
	s.started = true
	s.runCtx = context.WithoutCancel(ctx)
	s.entry = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() { s.trigger() }))
	s.mu.Unlock()

	s.cron.Start()
	slog.Info("scheduler started", "interval", s.interval.String())
	s.trigger()
	return nil
}

// Stop prevents further cycles and waits for a running one to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.wg.Wait()
	slog.Info("scheduler stopped")
}

// trigger handles a tick. It reports whether a cycle was started.
func (s *Scheduler) trigger() bool {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
		s.skipped++
		s.mu.Unlock()
		slog.Warn("tick skipped, previous cycle still running")
		return false
	case StateStopped:
		s.mu.Unlock()
		return false
	}
	s.state = StateRunning
	s.lastTrigger = s.now()
	ctx := s.runCtx
	if ctx == nil {
		ctx = context.Background()
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.complete()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("cycle panicked", "panic", fmt.Sprint(r))
			}
		}()
		s.cycle(ctx)
	}()
	return true
}

func (s *Scheduler) complete() {
	s.mu.Lock()
	if s.state == StateRunning {
		s.state = StateIdle
	}
	s.mu.Unlock()
	s.wg.Done()

	if next := s.NextRun(); !next.IsZero() {
		slog.Info("next cycle scheduled", "at", next.UTC().Format(time.RFC3339))
	}
}

// NextRun is when the next cycle is due, or zero when nothing is scheduled.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateStopped || !s.started {
		return time.Time{}
	}
	if next := s.cron.Entry(s.entry).Next; !next.IsZero() {
		return next
	}
	if !s.lastTrigger.IsZero() {
		return s.lastTrigger.Add(s.interval)
	}
	return time.Time{}
}

func (s *Scheduler) LastTrigger() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTrigger
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Skipped counts ticks dropped because a cycle was still running.
func (s *Scheduler) Skipped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// cronLogger routes robfig/cron logs to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
