// Package jobs runs the periodic maintenance work of the metadata service.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"groupfolderMetadata/internal/metrics"
)

// Job is one unit of periodic work
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// ErrUnknownJob is returned by RunOnce for a name that was never registered
var ErrUnknownJob = errors.New("unknown job")

type schedule struct {
	job      Job
	interval time.Duration
	running  sync.Mutex
}

// Scheduler runs each registered job on its own ticker. A run that is still in progress
// when the next tick fires is not started twice.
type Scheduler struct {
	schedules map[string]*schedule
	logger    *zap.Logger
	metrics   *metrics.Metrics
	mu        sync.RWMutex
	wg        sync.WaitGroup
	cancel    context.CancelFunc
}

// NewScheduler creates an empty scheduler
func NewScheduler(logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		schedules: make(map[string]*schedule),
		logger:    logger,
		metrics:   m,
	}
}

// Register adds job to run every interval once the scheduler is started
func (s *Scheduler) Register(job Job, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.schedules[job.Name()]; exists {
		return fmt.Errorf("job %s is already registered", job.Name())
	}
	s.schedules[job.Name()] = &schedule{job: job, interval: interval}
	return nil
}

// Names returns the registered job names in sorted order
func (s *Scheduler) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.schedules))
	for name := range s.schedules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start launches one goroutine per job. They stop when ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	for _, sch := range s.schedules {
		s.wg.Add(1)
		go s.loop(ctx, sch)
	}
	s.mu.Unlock()

	s.logger.Info("job scheduler started", zap.Strings("jobs", s.Names()))
}

// Stop cancels all job loops and waits for running jobs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// RunOnce runs the named job immediately and returns its error
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.RLock()
	sch, ok := s.schedules[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	sch.running.Lock()
	defer sch.running.Unlock()
	return s.execute(ctx, sch.job)
}

func (s *Scheduler) loop(ctx context.Context, sch *schedule) {
	defer s.wg.Done()

	ticker := time.NewTicker(sch.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !sch.running.TryLock() {
				s.logger.Warn("skipping job run, previous run still in progress", zap.String("job", sch.job.Name()))
				continue
			}
			s.execute(ctx, sch.job)
			sch.running.Unlock()
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, job Job) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name(), p)
		}
		elapsed := time.Since(start)
		s.metrics.ObserveJob(job.Name(), err, elapsed)
		if err != nil {
			s.logger.Error("job failed", zap.String("job", job.Name()), zap.Duration("elapsed", elapsed), zap.Error(err))
			return
		}
		s.logger.Info("job finished", zap.String("job", job.Name()), zap.Duration("elapsed", elapsed))
	}()

	return job.Run(ctx)
}
