package schedule

import (
	"context"
	"errors"
	"sync"
	"time"

	"bastion/internal/support"

	"github.com/charmbracelet/log"
)

// Job is the unit of scheduled work. It must respect ctx cancellation.
type Job func(ctx context.Context)

// Scheduler runs named recurring jobs on ticker loops. When leadership
// locking is enabled, each job only executes on the worker currently holding
// the Redis lock for it; without Redis every worker runs its own loop.
type Scheduler struct {
	ctx        context.Context
	lockPrefix string

	mu   sync.Mutex
	jobs map[string]context.CancelFunc
}

// New builds a scheduler whose jobs stop when ctx is cancelled. A non-empty
// lockPrefix enables per-job Redis leadership with keys prefix+jobID.
func New(ctx context.Context, lockPrefix string) *Scheduler {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Scheduler{
		ctx:        ctx,
		lockPrefix: lockPrefix,
		jobs:       make(map[string]context.CancelFunc),
	}
}

// Recurring registers and starts a job that runs immediately and then on
// every interval tick. Scheduling the same jobID again replaces the previous
// registration.
func (s *Scheduler) Recurring(jobID string, interval time.Duration, job Job) error {
	if jobID == "" {
		return errors.New("schedule: job id cannot be empty")
	}
	if job == nil {
		return errors.New("schedule: job cannot be nil")
	}
	if interval <= 0 {
		return errors.New("schedule: interval must be positive")
	}

	jobCtx, cancel := context.WithCancel(s.ctx)

	s.mu.Lock()
	if prev, ok := s.jobs[jobID]; ok {
		prev()
	}
	s.jobs[jobID] = cancel
	s.mu.Unlock()

	go s.runJob(jobCtx, jobID, interval, job)
	return nil
}

// Cancel stops a job. It reports whether the job was scheduled.
func (s *Scheduler) Cancel(jobID string) bool {
	s.mu.Lock()
	cancel, ok := s.jobs[jobID]
	if ok {
		delete(s.jobs, jobID)
	}
	s.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// IsScheduled reports whether a job is currently registered.
func (s *Scheduler) IsScheduled(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobs[jobID]
	return ok
}

// Shutdown cancels every registered job.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(s.jobs))
	for id, cancel := range s.jobs {
		cancels = append(cancels, cancel)
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}

func (s *Scheduler) runJob(ctx context.Context, jobID string, interval time.Duration, job Job) {
	if s.lockPrefix == "" {
		runLoop(ctx, interval, job)
		return
	}

	err := support.RunWithLeader(ctx, s.lockPrefix+jobID, support.DefaultLeadershipTTL, func(leaderCtx context.Context) {
		runLoop(leaderCtx, interval, job)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("scheduled job falling back to local execution", "job", jobID, "error", err)
		runLoop(ctx, interval, job)
	}
}

func runLoop(ctx context.Context, interval time.Duration, job Job) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	job(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job(ctx)
		}
	}
}
