package worker

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/logging"
	"github.com/giygas/cureid-api/metrics"
)

var (
	_ interfaces.EntryPersister = (*Persister)(nil)
	_ interfaces.EntrySink      = (*DirectSink)(nil)
)

// DrugWriter stores drug entries.
type DrugWriter interface {
	AddOrUpdate(ctx context.Context, entry *entities.DrugEntry) (*entities.DrugEntry, error)
}

// RegimenWriter stores regimen entries and finds them by case id.
type RegimenWriter interface {
	interfaces.RegimenLookup
	AddOrUpdate(ctx context.Context, entry *entities.RegimenEntry) (*entities.RegimenEntry, error)
}

// Persister writes entries to the repositories.
type Persister struct {
	drugs    DrugWriter
	regimens RegimenWriter
	gate     *DedupGate
	inflight singleflight.Group
}

// NewPersister creates a persister. The dedup gate looks regimens up through regimens.
func NewPersister(drugs DrugWriter, regimens RegimenWriter) *Persister {
	return &Persister{
		drugs:    drugs,
		regimens: regimens,
		gate:     NewDedupGate(regimens),
	}
}

// PersistDrug writes a drug entry unconditionally.
func (p *Persister) PersistDrug(ctx context.Context, entry *entities.DrugEntry) error {
	saved, err := p.drugs.AddOrUpdate(ctx, entry)
	if err != nil {
		return fmt.Errorf("persist drug entry for case %d: %w", entry.CureID, err)
	}
	metrics.EntriesPersisted.WithLabelValues(entities.EntryTypeDrug).Inc()
	logging.Debug("Persisted drug entry", "id", saved.ID, "drug_id", saved.DrugID, "case_id", saved.CureID)
	return nil
}

// PersistRegimen writes a regimen entry unless its case was already stored.
// It reports whether the entry was written. Concurrent calls for the same
// case id share one check-and-write; only the caller that ran it reports true.
func (p *Persister) PersistRegimen(ctx context.Context, entry *entities.RegimenEntry) (bool, error) {
	ran := false
	v, err, _ := p.inflight.Do(strconv.Itoa(entry.RegimenID), func() (any, error) {
		ran = true
		return p.persistRegimen(ctx, entry)
	})
	if err != nil {
		return false, err
	}
	if !ran {
		metrics.RegimenDuplicates.Inc()
		logging.Debug("Skipped duplicate regimen entry", "regimen_id", entry.RegimenID)
		return false, nil
	}
	return v.(bool), nil
}

func (p *Persister) persistRegimen(ctx context.Context, entry *entities.RegimenEntry) (bool, error) {
	ok, err := p.gate.ShouldPersist(ctx, entry)
	if err != nil {
		return false, err
	}
	if !ok {
		logging.Debug("Skipped duplicate regimen entry", "regimen_id", entry.RegimenID)
		return false, nil
	}

	saved, err := p.regimens.AddOrUpdate(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("persist regimen entry %d: %w", entry.RegimenID, err)
	}
	metrics.EntriesPersisted.WithLabelValues(entities.EntryTypeRegimen).Inc()
	logging.Debug("Persisted regimen entry", "id", saved.ID, "regimen_id", saved.RegimenID, "regimen", saved.RegimenName)
	return true, nil
}

// DirectSink persists entries as soon as the pipeline emits them.
type DirectSink struct {
	persister interfaces.EntryPersister
}

// NewDirectSink creates a sink writing through persister.
func NewDirectSink(persister interfaces.EntryPersister) *DirectSink {
	return &DirectSink{persister: persister}
}

func (s *DirectSink) EmitDrug(ctx context.Context, entry *entities.DrugEntry) error {
	return s.persister.PersistDrug(ctx, entry)
}

func (s *DirectSink) EmitRegimen(ctx context.Context, entry *entities.RegimenEntry) error {
	_, err := s.persister.PersistRegimen(ctx, entry)
	return err
}
