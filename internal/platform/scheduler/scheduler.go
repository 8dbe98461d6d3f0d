package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kislikjeka/moneyledger/internal/platform/exchange"
	"github.com/kislikjeka/moneyledger/pkg/logger"
)

const lockPrefix = "exchange:sync:"

// Syncer runs one ingestion for a source
type Syncer interface {
	Sync(ctx context.Context, sourceKey string, pairKeys []string) (*exchange.SyncResult, error)
}

// Scheduler polls every configured source on its own timer
type Scheduler struct {
	syncer Syncer
	locker Locker
	jobs   []Job
	logger *logger.Logger
	now    func() time.Time

	wg      sync.WaitGroup
	stopCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// New creates a scheduler
func New(syncer Syncer, locker Locker, jobs []Job, log *logger.Logger) *Scheduler {
	return &Scheduler{
		syncer: syncer,
		locker: locker,
		jobs:   jobs,
		logger: log.WithField("component", "scheduler"),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}
}

// Run starts one loop per job and blocks until ctx is done or Stop is called
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.wg.Add(len(s.jobs))
	s.mu.Unlock()

	if len(s.jobs) == 0 {
		s.logger.Info("no exchange sources scheduled")
	}

	for _, job := range s.jobs {
		s.logger.Info("scheduling exchange source",
			"source", job.SourceKey,
			"interval", job.Interval,
			"fallback_interval", job.FallbackInterval,
			"windowed", job.Window != nil)

		go func(job Job) {
			defer s.wg.Done()
			s.loop(ctx, job)
		}(job)
	}

	select {
	case <-ctx.Done():
		s.logger.Info("scheduler stopping (context done)")
	case <-s.stopCh:
		s.logger.Info("scheduler stopping (stop signal)")
	}
	s.wg.Wait()
}

// Stop stops every loop and waits for in-flight runs to return
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, job Job) {
	for {
		now := s.now()
		if job.Due(now) {
			s.RunJob(ctx, job)
			now = s.now()
		}

		timer := time.NewTimer(job.NextDelay(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopCh:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// RunJob performs one guarded run. A run already in progress elsewhere is skipped.
func (s *Scheduler) RunJob(ctx context.Context, job Job) {
	log := s.logger.WithField("source", job.SourceKey)
	timeout := job.timeout()

	release, acquired, err := s.locker.TryLock(ctx, lockPrefix+job.SourceKey, timeout+30*time.Second)
	if err != nil {
		log.Error("failed to acquire sync lock", "error", err)
		return
	}
	if !acquired {
		log.Info("sync already running, skipping")
		return
	}
	defer func() {
		if err := release(context.Background()); err != nil {
			log.Warn("failed to release sync lock", "error", err)
		}
	}()

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.syncer.Sync(runCtx, job.SourceKey, nil); err != nil {
		log.Warn("scheduled sync failed", "error", err, "retryable", exchange.IsRetryable(err))
	}
}
