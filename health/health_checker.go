// Package health reports the state of the document store and of ingestion.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/giygas/cureid-api/interfaces"
)

const pingTimeout = 2 * time.Second

// Pinger is the part of the document store the checker uses.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatusSource reports ingestion state, typically the scheduler.
type StatusSource interface {
	Status() interfaces.IngestionStatus
}

// HealthCheckerImpl implements interfaces.HealthChecker.
type HealthCheckerImpl struct {
	store    Pinger
	status   StatusSource
	interval time.Duration
	now      func() time.Time
}

// NewHealthChecker creates a checker. status may be nil when this process
// does not run ingestion.
func NewHealthChecker(store Pinger, status StatusSource, interval time.Duration) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		store:    store,
		status:   status,
		interval: interval,
		now:      time.Now,
	}
}

// HealthCheck is unhealthy when the store does not answer a ping and degraded
// when ingestion has not succeeded for three intervals.
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	data = map[string]any{}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	storeErr := h.store.Ping(pingCtx)
	if storeErr != nil {
		data["store"] = "down"
		data["store_error"] = storeErr.Error()
	} else {
		data["store"] = "up"
	}

	stale := false
	if h.status != nil {
		ingestion := h.status.Status()
		data["is_ingesting"] = ingestion.IsRunning
		data["files_processed"] = ingestion.FilesProcessed
		data["files_failed"] = ingestion.FilesFailed
		if !ingestion.LastRun.IsZero() {
			data["last_ingestion_run"] = ingestion.LastRun.Format(time.RFC3339)
			data["next_ingestion"] = h.NextIngestion(ingestion.LastRun).Format(time.RFC3339)
		}
		if !ingestion.LastSuccess.IsZero() {
			age := h.now().Sub(ingestion.LastSuccess)
			data["last_success"] = ingestion.LastSuccess.Format(time.RFC3339)
			data["ingestion_age_minutes"] = math.Round(age.Minutes()*10) / 10
			stale = age > 3*h.interval
		}
	}

	switch {
	case storeErr != nil:
		return "unhealthy", data, http.StatusServiceUnavailable
	case stale:
		return "degraded", data, http.StatusServiceUnavailable
	}
	return "healthy", data, http.StatusOK
}

// NextIngestion returns the next scheduled run after lastRun.
func (h *HealthCheckerImpl) NextIngestion(lastRun time.Time) time.Time {
	next := lastRun.Add(h.interval)
	if now := h.now(); h.interval > 0 {
		for next.Before(now) {
			next = next.Add(h.interval)
		}
	}
	return next
}
