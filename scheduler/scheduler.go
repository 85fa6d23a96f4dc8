// Package scheduler polls the blob source for new case files and runs them
// through the ingestion pipeline on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
	"golang.org/x/sync/errgroup"

	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/logging"
	"github.com/giygas/cureid-api/metrics"
)

var _ interfaces.Scheduler = (*Scheduler)(nil)

// DefaultMaxAttempts is how many runs a failing file is retried in before it is skipped.
const DefaultMaxAttempts = 3

// Scheduler ingests every file of the source once. Files are processed
// concurrently up to the worker limit.
type Scheduler struct {
	source      interfaces.BlobSource
	ingestor    interfaces.Ingestor
	interval    time.Duration
	workers     int
	maxAttempts int
	scheduler   *gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool

	mu        sync.Mutex
	processed map[string]struct{}
	attempts  map[string]int
	status    interfaces.IngestionStatus
}

// NewScheduler creates a scheduler running every intervalMinutes with at most
// workers files in flight.
func NewScheduler(source interfaces.BlobSource, ingestor interfaces.Ingestor, intervalMinutes, workers int) *Scheduler {
	if intervalMinutes < 1 {
		intervalMinutes = 1
	}
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		source:      source,
		ingestor:    ingestor,
		interval:    time.Duration(intervalMinutes) * time.Minute,
		workers:     workers,
		maxAttempts: DefaultMaxAttempts,
		scheduler:   gocron.NewScheduler(time.Local),
		ctx:         ctx,
		cancel:      cancel,
		processed:   make(map[string]struct{}),
		attempts:    make(map[string]int),
	}
}

// Start runs a first ingestion, then schedules the next ones.
func (s *Scheduler) Start() error {
	if err := s.RunOnce(s.ctx); err != nil {
		logging.Error("Failed to perform initial ingestion", "error", err)
		return fmt.Errorf("initial ingestion failed: %w", err)
	}

	minutes := int(s.interval / time.Minute)
	_, err := s.scheduler.Every(minutes).Minutes().WaitForSchedule().Do(func() {
		if err := s.RunOnce(s.ctx); err != nil {
			logging.Error("Failed to ingest case files", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule ingestion", "error", err)
		return fmt.Errorf("failed to schedule ingestion: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring()

	logging.Info("Ingestion scheduled", "interval_minutes", minutes, "workers", s.workers)
	return nil
}

// Stop cancels in-flight ingestion and stops scheduling.
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// Status returns a snapshot of the ingestion state.
func (s *Scheduler) Status() interfaces.IngestionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := s.status
	status.IsRunning = s.running.Load()
	return status
}

// RunOnce ingests every file not yet processed. A run already in progress
// makes it return immediately. Only a failure to list the source is returned;
// per-file failures are logged and retried on the next run.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		logging.Info("Ingestion already in progress, skipping...")
		return nil
	}
	defer s.running.Store(false)

	start := time.Now()
	s.mu.Lock()
	s.status.LastRun = start
	s.mu.Unlock()

	names, err := s.source.List(ctx)
	if err != nil {
		return fmt.Errorf("list case files: %w", err)
	}
	pending := s.pending(names)
	if len(pending) == 0 {
		logging.Debug("No new case files")
		s.markSuccess(start)
		return nil
	}

	logging.Info("Starting ingestion", "files", len(pending))

	var succeeded, failed atomic.Int64
	var g errgroup.Group
	g.SetLimit(s.workers)
	for _, name := range pending {
		g.Go(func() error {
			if s.ingest(ctx, name) {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	s.status.FilesProcessed += int(succeeded.Load())
	s.status.FilesFailed += int(failed.Load())
	s.mu.Unlock()
	if failed.Load() == 0 {
		s.markSuccess(start)
	}

	logging.Info("Ingestion completed",
		"duration", time.Since(start).String(),
		"succeeded", succeeded.Load(),
		"failed", failed.Load(),
	)
	return nil
}

func (s *Scheduler) markSuccess(at time.Time) {
	s.mu.Lock()
	s.status.LastSuccess = at
	s.mu.Unlock()
}

func (s *Scheduler) pending(names []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, name := range names {
		if _, done := s.processed[name]; !done {
			out = append(out, name)
		}
	}
	return out
}

// ingest processes one file and reports whether it succeeded. A file that
// keeps failing is given up after maxAttempts runs.
func (s *Scheduler) ingest(ctx context.Context, name string) bool {
	err := s.process(ctx, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		s.processed[name] = struct{}{}
		delete(s.attempts, name)
		metrics.FilesIngested.WithLabelValues("success").Inc()
		return true
	}

	metrics.FilesIngested.WithLabelValues("failure").Inc()
	s.attempts[name]++
	if s.attempts[name] >= s.maxAttempts {
		s.processed[name] = struct{}{}
		delete(s.attempts, name)
		logging.Error("Giving up on case file", "file", name, "attempts", s.maxAttempts, "error", err)
	} else {
		logging.Warn("Case file failed, will retry", "file", name, "attempt", s.attempts[name], "error", err)
	}
	return false
}

func (s *Scheduler) process(ctx context.Context, name string) error {
	body, err := s.source.Read(ctx, name)
	if err != nil {
		return err
	}
	result, err := s.ingestor.Process(ctx, name, body)
	if err != nil {
		return err
	}
	logging.Info("Case file ingested", "file", name, "drug_id", result.DrugID, "cases", result.Cases)
	return nil
}

// startHealthMonitoring warns when ingestion has not succeeded for three intervals.
func (s *Scheduler) startHealthMonitoring() {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				if last := s.Status().LastSuccess; time.Since(last) > 3*s.interval {
					logging.Warn("Ingestion has not succeeded recently", "last_success", last)
				}
			}
		}
	}()
}
