// Package scheduler owns the per-release poll timers. Every timer tick
// tries to take the release's lease and, when it wins, hands the tick
// to the coordinator. Losing the lease is silent; another instance is
// doing the work.
package scheduler

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shiplane/shiplane/api/rest/service/cronjob"
	"github.com/shiplane/shiplane/internal/coordinator"
	"github.com/shiplane/shiplane/internal/metrics"
	"github.com/shiplane/shiplane/internal/models"
	"github.com/shiplane/shiplane/pkg/log"
)

type Scheduler struct {
	ctx         context.Context
	coordinator *coordinator.Coordinator
	cronJobs    cronjob.CronJob
	nodeID      string
	interval    time.Duration

	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// New builds a scheduler. Poll loops derive from ctx, not from the
// caller of StartPolling, so a request-scoped start outlives its
// request. An empty nodeID falls back to the hostname so lease rows
// are attributable in multi-instance deployments.
func New(
	ctx context.Context,
	coord *coordinator.Coordinator,
	cronJobs cronjob.CronJob,
	nodeID string,
	interval time.Duration,
) *Scheduler {
	if nodeID == "" {
		if host, err := os.Hostname(); err == nil {
			nodeID = host
		} else {
			nodeID = uuid.NewString()
		}
	}

	return &Scheduler{
		ctx:         ctx,
		coordinator: coord,
		cronJobs:    cronJobs,
		nodeID:      nodeID,
		interval:    interval,
		cancels:     map[uuid.UUID]context.CancelFunc{},
	}
}

// StartPolling begins the poll loop for a release. Starting an already
// polled release is a no-op.
func (s *Scheduler) StartPolling(releaseID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.cancels[releaseID]; ok {
		return
	}

	loopCtx, cancel := context.WithCancel(s.ctx)
	s.cancels[releaseID] = cancel
	metrics.ReleasesPolling.Inc()

	s.wg.Add(1)
	go s.loop(loopCtx, releaseID)

	log.Info("polling started", "release_id", releaseID, "node_id", s.nodeID)
}

// StopPolling cancels the poll loop for a release. All persisted state
// stays untouched; StartPolling re-derives everything from rows.
// Stopping an unknown release is a no-op.
func (s *Scheduler) StopPolling(releaseID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked(releaseID)
}

func (s *Scheduler) stopLocked(releaseID uuid.UUID) {
	cancel, ok := s.cancels[releaseID]
	if !ok {
		return
	}

	cancel()
	delete(s.cancels, releaseID)
	metrics.ReleasesPolling.Dec()

	log.Info("polling stopped", "release_id", releaseID)
}

// Resume restarts poll loops for every release whose cron job is still
// live. Called at boot so restarts pick up where the previous process
// stopped.
func (s *Scheduler) Resume() error {
	for _, status := range []models.CronStatus{models.CronStatusPending, models.CronStatusRunning} {
		jobs, err := s.cronJobs.ListByCronStatus(status)
		if err != nil {
			return err
		}
		for _, job := range jobs {
			s.StartPolling(job.ReleaseID)
		}
	}
	return nil
}

// Shutdown stops every poll loop and waits for in-flight ticks.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	for id := range s.cancels {
		s.stopLocked(id)
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, releaseID uuid.UUID) {
	defer s.wg.Done()
	defer func() {
		// Free the lease immediately instead of waiting out the
		// timeout. Best-effort; expiry covers a crash.
		if err := s.cronJobs.ReleaseLock(releaseID, s.nodeID); err != nil {
			log.Warn("failed to release lease", "release_id", releaseID, "error", err)
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if done := s.tick(ctx, releaseID); done {
			s.StopPolling(releaseID)
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// tick runs one lease-guarded coordinator pass. The returned flag is
// true when polling must stop permanently.
func (s *Scheduler) tick(ctx context.Context, releaseID uuid.UUID) bool {
	acquired, err := s.cronJobs.AcquireLock(releaseID, s.nodeID, time.Now().UTC())
	if err != nil {
		metrics.PollTicksTotal.WithLabelValues("error").Inc()
		log.Error("lease acquisition failed", "release_id", releaseID, "error", err)
		return false
	}
	if !acquired {
		metrics.PollTicksTotal.WithLabelValues("contention").Inc()
		metrics.LockContentionTotal.WithLabelValues(s.nodeID).Inc()
		return false
	}

	switch err := s.coordinator.Tick(ctx, releaseID); {
	case errors.Is(err, coordinator.ErrPollingComplete):
		metrics.PollTicksTotal.WithLabelValues("complete").Inc()
		log.Info("release polling complete", "release_id", releaseID)
		return true
	case err != nil:
		metrics.PollTicksTotal.WithLabelValues("error").Inc()
		log.Error("poll tick failed", "release_id", releaseID, "error", err)
	default:
		metrics.PollTicksTotal.WithLabelValues("ok").Inc()
	}
	return false
}
