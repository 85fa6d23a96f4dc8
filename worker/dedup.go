// Package worker persists the entries emitted by the ingestion pipeline.
// Drug entries are always written; regimen entries pass through a DedupGate first.
package worker

import (
	"context"
	"fmt"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/metrics"
)

// DedupGate suppresses regimen entries whose case is already stored.
type DedupGate struct {
	lookup interfaces.RegimenLookup
}

// NewDedupGate creates a gate backed by lookup.
func NewDedupGate(lookup interfaces.RegimenLookup) *DedupGate {
	return &DedupGate{lookup: lookup}
}

// ShouldPersist reports whether no regimen entry with the same RegimenId exists.
func (g *DedupGate) ShouldPersist(ctx context.Context, entry *entities.RegimenEntry) (bool, error) {
	_, found, err := g.lookup.FindByRegimenID(ctx, entry.RegimenID)
	if err != nil {
		return false, fmt.Errorf("regimen %d lookup: %w", entry.RegimenID, err)
	}
	if found {
		metrics.RegimenDuplicates.Inc()
		return false, nil
	}
	return true, nil
}
