// Package interfaces defines the contracts between the ingestion pipeline, the
// repositories and the document stores, so each layer can be swapped or faked in tests.
package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/query"
)

// OpStats is reported by every store operation. Charge is store-specific:
// documents scanned for the memory store, rows touched for Postgres.
type OpStats struct {
	Elapsed time.Duration
	Charge  float64
}

// ItemResponse is a single document read or written by a store.
type ItemResponse struct {
	Document json.RawMessage
	Stats    OpStats
}

// FeedResponse is a list of documents or projected rows.
type FeedResponse struct {
	Documents []json.RawMessage
	Stats     OpStats
}

// DocumentStore is a partitioned JSON document store. Point operations address a
// document by (container, partitionKey, id). Misses on point operations return an
// error wrapping data.ErrNotFound; I/O failures return *data.StoreUnavailableError.
type DocumentStore interface {
	EnsureContainer(ctx context.Context, container string) error

	Upsert(ctx context.Context, container, partitionKey, id string, doc json.RawMessage) (ItemResponse, error)
	Replace(ctx context.Context, container, partitionKey, id string, doc json.RawMessage) (ItemResponse, error)
	Read(ctx context.Context, container, partitionKey, id string) (ItemResponse, error)
	Delete(ctx context.Context, container, partitionKey, id string) (OpStats, error)

	// QueryFirst returns the first document, in id order, matching every filter.
	QueryFirst(ctx context.Context, container string, filters []query.Clause) (ItemResponse, bool, error)
	// QueryPage returns documents with TypeName == q.TypeName matching q.Filters, ordered then paged.
	QueryPage(ctx context.Context, container string, q query.Query) (FeedResponse, error)
	// QueryProjection runs a parameterized statement and returns one JSON object per row.
	QueryProjection(ctx context.Context, container string, stmt query.Statement) (FeedResponse, error)

	Ping(ctx context.Context) error
}

// DrugSink receives drug entries produced by the ingestion pipeline.
type DrugSink interface {
	EmitDrug(ctx context.Context, entry *entities.DrugEntry) error
}

// RegimenSink receives regimen entries produced by the ingestion pipeline.
type RegimenSink interface {
	EmitRegimen(ctx context.Context, entry *entities.RegimenEntry) error
}

// EntrySink receives both entry kinds.
type EntrySink interface {
	DrugSink
	RegimenSink
}

// EntryPersister writes entries to the store. PersistRegimen reports whether
// the entry was written or suppressed as a duplicate.
type EntryPersister interface {
	PersistDrug(ctx context.Context, entry *entities.DrugEntry) error
	PersistRegimen(ctx context.Context, entry *entities.RegimenEntry) (bool, error)
}

// RegimenLookup finds an existing regimen entry by its case id.
type RegimenLookup interface {
	FindByRegimenID(ctx context.Context, regimenID int) (*entities.RegimenEntry, bool, error)
}

// IngestResult summarizes one processed file.
type IngestResult struct {
	FileName string
	DrugID   int
	DrugName string
	Cases    int
}

// Ingestor turns one raw case file into entries handed to the sinks.
type Ingestor interface {
	Process(ctx context.Context, fileName string, body []byte) (*IngestResult, error)
}

// BlobSource lists and reads raw case files.
type BlobSource interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, name string) ([]byte, error)
}

// DrugReader serves the drug aggregate read model.
type DrugReader interface {
	AggregateByAgeAndGender(ctx context.Context, age int, gender string) ([]entities.AggregateResult, error)
}

// RegimenReader serves the regimen read model.
type RegimenReader interface {
	ListByDrugAgeAndGender(ctx context.Context, drugID, age int, gender string) ([]entities.RegimenResult, error)
}

// IngestionStatus is the state of the periodic ingestion job.
type IngestionStatus struct {
	LastRun        time.Time
	LastSuccess    time.Time
	FilesProcessed int
	FilesFailed    int
	IsRunning      bool
}

// Scheduler drives periodic ingestion.
type Scheduler interface {
	Start() error
	Stop()
	Status() IngestionStatus
}

// HealthChecker reports service health for the /health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)
}

// HTTPHandler serves the read API.
type HTTPHandler interface {
	ServeDrugs(w http.ResponseWriter, r *http.Request)
	ServeRegimens(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// RequestValidator validates read API query parameters.
type RequestValidator interface {
	ValidateAge(input string) (int, error)
	ValidateGender(input string) (string, error)
	ValidateDrugID(input string) (int, error)
}
