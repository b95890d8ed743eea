package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rickgao/yf-price-fetcher/internal/fetcher"
)

// ErrRunInProgress is returned by RunOnce while another run is active.
var ErrRunInProgress = errors.New("sync run already in progress")

// Runner performs one sync pass.
type Runner interface {
	Run(ctx context.Context) (fetcher.Result, error)
}

// RunnerFunc is a function adapter for Runner.
type RunnerFunc func(ctx context.Context) (fetcher.Result, error)

func (f RunnerFunc) Run(ctx context.Context) (fetcher.Result, error) {
	return f(ctx)
}

// Config holds scheduler configuration.
type Config struct {
	Spec       string // robfig/cron spec (default: "@every 15m")
	RunOnStart bool
}

// Status describes the most recent finished run.
type Status struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Result     fetcher.Result
	Err        string
}

// Scheduler periodically runs a Runner.
type Scheduler struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
	cron   *cron.Cron

	running sync.Mutex // held for the duration of a run

	statusMu sync.Mutex
	last     Status

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Scheduler.
func New(cfg Config, runner Runner, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		runner: runner,
		logger: logger,
	}
}

// Start registers the cron job and begins scheduling.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	cl := cronLogger{s.logger}
	s.cron = cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	if _, err := s.cron.AddFunc(s.cfg.Spec, s.tick); err != nil {
		s.cancel()
		return fmt.Errorf("register sync job %q: %w", s.cfg.Spec, err)
	}
	s.cron.Start()

	if s.cfg.RunOnStart {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.tick()
		}()
	}

	s.logger.Info("scheduler started",
		"spec", s.cfg.Spec,
		"run_on_start", s.cfg.RunOnStart,
	)
	return nil
}

// Stop cancels any active run and waits for it to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		if s.cron != nil {
			<-s.cron.Stop().Done()
		}
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunOnce runs a sync now unless one is already running.
func (s *Scheduler) RunOnce(ctx context.Context) (fetcher.Result, error) {
	if !s.running.TryLock() {
		return fetcher.Result{}, ErrRunInProgress
	}
	defer s.running.Unlock()

	started := time.Now()
	res, err := s.runner.Run(ctx)

	st := Status{StartedAt: started, FinishedAt: time.Now(), Result: res}
	if err != nil {
		st.Err = err.Error()
	}
	s.statusMu.Lock()
	s.last = st
	s.statusMu.Unlock()

	return res, err
}

// LastRun returns the status of the most recent finished run.
// ok is false before the first run completes.
func (s *Scheduler) LastRun() (st Status, ok bool) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	return s.last, !s.last.FinishedAt.IsZero()
}

// tick is the scheduled job.
func (s *Scheduler) tick() {
	res, err := s.RunOnce(s.ctx)
	switch {
	case errors.Is(err, ErrRunInProgress):
		s.logger.Info("skipping scheduled sync, run in progress")
	case err != nil:
		s.logger.Error("scheduled sync failed", "error", err)
	default:
		s.logger.Info("scheduled sync finished",
			"processed", res.Processed,
			"inserted", res.Inserted,
			"failed_batches", res.FailedBatches,
		)
	}
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append([]any{"error", err}, keysAndValues...)...)
}
