// Package repository persists entities in a DocumentStore. A Repository is bound
// to one entity type through an explicit Mapping that names its container and
// partition key.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/giygas/cureid-api/caseparser/entities"
	"github.com/giygas/cureid-api/data"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/logging"
	"github.com/giygas/cureid-api/metrics"
	"github.com/giygas/cureid-api/query"
)

// Mapping binds an entity type to its storage layout.
type Mapping[T entities.Entity] struct {
	// TypeName is written to every document and scopes the listing operations.
	TypeName string
	// Container holding the documents. Empty means TypeName.
	Container string
	// PartitionKey derives the partition of an entity that has none yet.
	PartitionKey func(T) string
	// New allocates an empty entity to decode into.
	New func() T
}

// Page is one page of a listing. HasMore is set when the store returned an
// item past the end of the page.
type Page[T any] struct {
	Items   []T
	HasMore bool
}

// Repository is the generic persistence layer for one entity type.
type Repository[T entities.Entity] struct {
	store   interfaces.DocumentStore
	cache   *data.ContainerCache
	mapping Mapping[T]
	newID   func() string
}

// New creates a repository. The cache is shared by every repository of a process.
func New[T entities.Entity](store interfaces.DocumentStore, cache *data.ContainerCache, mapping Mapping[T]) (*Repository[T], error) {
	if store == nil {
		return nil, errors.New("repository: nil store")
	}
	if mapping.TypeName == "" {
		return nil, errors.New("repository: mapping has no type name")
	}
	if mapping.New == nil {
		return nil, fmt.Errorf("repository %s: mapping has no constructor", mapping.TypeName)
	}
	if cache == nil {
		cache = data.NewContainerCache()
	}
	return &Repository[T]{
		store:   store,
		cache:   cache,
		mapping: mapping,
		newID:   uuid.NewString,
	}, nil
}

// SetIDSource replaces the id generator used by AddOrUpdate.
func (r *Repository[T]) SetIDSource(newID func() string) {
	r.newID = newID
}

// TypeName returns the mapped type name.
func (r *Repository[T]) TypeName() string {
	return r.mapping.TypeName
}

// Container returns the container holding this repository's documents.
func (r *Repository[T]) Container() string {
	return r.cache.Resolve(r.mapping.TypeName, r.mapping.Container)
}

// InitializeContainers makes sure the mapped container exists.
func (r *Repository[T]) InitializeContainers(ctx context.Context) error {
	container := r.Container()
	if err := r.store.EnsureContainer(ctx, container); err != nil {
		return fmt.Errorf("initialize container %s: %w", container, err)
	}
	logging.Debug("Container ready", "container", container, "type", r.mapping.TypeName)
	return nil
}

func hasID(id string) bool {
	return id != "" && id != uuid.Nil.String()
}

// AddOrUpdate assigns a fresh id to an entity without one, then upserts it.
// The returned entity is decoded from the stored document.
func (r *Repository[T]) AddOrUpdate(ctx context.Context, entity T) (T, error) {
	if base := entity.Base(); !hasID(base.ID) {
		base.ID = r.newID()
	}
	return r.write(ctx, "upsert", entity)
}

// Upsert writes an entity that already has an id.
func (r *Repository[T]) Upsert(ctx context.Context, entity T) (T, error) {
	if !hasID(entity.Base().ID) {
		var zero T
		return zero, fmt.Errorf("upsert %s: entity has no id", r.mapping.TypeName)
	}
	return r.write(ctx, "upsert", entity)
}

// Update replaces an existing entity. A missing document is a *data.NotFoundError.
func (r *Repository[T]) Update(ctx context.Context, entity T) (T, error) {
	if !hasID(entity.Base().ID) {
		var zero T
		return zero, fmt.Errorf("update %s: entity has no id", r.mapping.TypeName)
	}
	return r.write(ctx, "replace", entity)
}

func (r *Repository[T]) write(ctx context.Context, op string, entity T) (T, error) {
	var zero T
	base := entity.Base()
	base.TypeName = r.mapping.TypeName
	if base.PartitionKey == "" && r.mapping.PartitionKey != nil {
		base.PartitionKey = r.mapping.PartitionKey(entity)
	}
	if base.PartitionKey == "" {
		return zero, fmt.Errorf("%s %s: entity has no partition key", op, r.mapping.TypeName)
	}

	body, err := json.Marshal(entity)
	if err != nil {
		return zero, fmt.Errorf("%s %s: %w", op, r.mapping.TypeName, err)
	}

	container := r.Container()
	var resp interfaces.ItemResponse
	if op == "replace" {
		resp, err = r.store.Replace(ctx, container, base.PartitionKey, base.ID, body)
	} else {
		resp, err = r.store.Upsert(ctx, container, base.PartitionKey, base.ID, body)
	}
	if err != nil {
		return zero, err
	}
	r.record(op, resp.Stats)
	return r.decode(resp.Document)
}

// Delete removes the entity's document.
func (r *Repository[T]) Delete(ctx context.Context, entity T) error {
	base := entity.Base()
	return r.DeleteByID(ctx, r.Container(), base.PartitionKey, base.ID)
}

// DeleteByID removes a document. An empty container means the mapped one.
func (r *Repository[T]) DeleteByID(ctx context.Context, container, partitionKey, id string) error {
	if container == "" {
		container = r.Container()
	}
	stats, err := r.store.Delete(ctx, container, partitionKey, id)
	if err != nil {
		return err
	}
	r.record("delete", stats)
	return nil
}

// GetByID reads a document by partition and id. A miss is reported with
// found == false and no error.
func (r *Repository[T]) GetByID(ctx context.Context, partitionKey, id string) (T, bool, error) {
	var zero T
	resp, err := r.store.Read(ctx, r.Container(), partitionKey, id)
	if errors.Is(err, data.ErrNotFound) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	r.record("read", resp.Stats)
	entity, err := r.decode(resp.Document)
	return entity, err == nil, err
}

// FindByID locates a document by id alone. It scans every partition and is
// only meant for callers that do not know the partition key.
func (r *Repository[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	return r.Find(ctx, query.Where("id", query.Eq, id))
}

// GetByIDs returns the entities whose id is in ids, ordered by id.
func (r *Repository[T]) GetByIDs(ctx context.Context, ids []string) ([]T, error) {
	if len(ids) == 0 {
		return []T{}, nil
	}
	page, err := r.query(ctx, query.Query{
		TypeName: r.mapping.TypeName,
		Filters:  []query.Clause{query.Where("id", query.In, ids)},
		Order:    query.Order{Field: "id"},
	})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Find returns the first entity of this type matching every clause.
func (r *Repository[T]) Find(ctx context.Context, clauses ...query.Clause) (T, bool, error) {
	var zero T
	filters := append([]query.Clause{query.Where("TypeName", query.Eq, r.mapping.TypeName)}, clauses...)
	resp, found, err := r.store.QueryFirst(ctx, r.Container(), filters)
	if err != nil {
		return zero, false, err
	}
	r.record("query_first", resp.Stats)
	if !found {
		return zero, false, nil
	}
	entity, err := r.decode(resp.Document)
	return entity, err == nil, err
}

// GetItems lists entities by ascending Name.
func (r *Repository[T]) GetItems(ctx context.Context, startIndex, pageSize int) (*Page[T], error) {
	return r.GetItemsFiltered(ctx, startIndex, pageSize, query.Order{Field: "Name"})
}

// GetItemsFiltered lists entities matching every filter in the given order.
// One item past the page is requested to fill HasMore; it is never returned.
func (r *Repository[T]) GetItemsFiltered(ctx context.Context, startIndex, pageSize int, order query.Order, filters ...query.Clause) (*Page[T], error) {
	if startIndex < 0 {
		return nil, fmt.Errorf("start index %d is negative", startIndex)
	}
	if pageSize < 1 {
		return nil, fmt.Errorf("page size %d must be positive", pageSize)
	}

	items, err := r.query(ctx, query.Query{
		TypeName: r.mapping.TypeName,
		Filters:  filters,
		Order:    order,
		Offset:   startIndex,
		Limit:    pageSize + 1,
	})
	if err != nil {
		return nil, err
	}

	page := &Page[T]{Items: items}
	if len(items) > pageSize {
		page.Items = items[:pageSize]
		page.HasMore = true
	}
	return page, nil
}

// GetItemFiltered returns the first entity by ascending Name matching every filter.
func (r *Repository[T]) GetItemFiltered(ctx context.Context, filters ...query.Clause) (T, bool, error) {
	var zero T
	page, err := r.GetItemsFiltered(ctx, 0, 1, query.Order{Field: "Name"}, filters...)
	if err != nil {
		return zero, false, err
	}
	if len(page.Items) == 0 {
		return zero, false, nil
	}
	return page.Items[0], true, nil
}

// FindByStatement returns the first document matching a statement. Without a
// partition key the statement is scoped to the lower-cased type name, which
// is only right for entities partitioned that way.
func (r *Repository[T]) FindByStatement(ctx context.Context, stmt query.Statement) (T, bool, error) {
	var zero T
	if len(stmt.GroupBy) > 0 || len(stmt.Select) > 0 {
		return zero, false, errors.New("find by statement: use QueryProjection for grouped or projected rows")
	}
	if stmt.PartitionKey == "" {
		stmt.PartitionKey = strings.ToLower(r.mapping.TypeName)
	}
	resp, err := r.store.QueryProjection(ctx, r.Container(), stmt)
	if err != nil {
		return zero, false, err
	}
	r.record("query_statement", resp.Stats)
	if len(resp.Documents) == 0 {
		return zero, false, nil
	}
	entity, err := r.decode(resp.Documents[0])
	if err != nil {
		return zero, false, err
	}
	return entity, true, nil
}

// QueryProjection runs a statement against the repository's container and
// decodes every row into R, a type unrelated to the entity.
func QueryProjection[R any, T entities.Entity](ctx context.Context, r *Repository[T], stmt query.Statement) ([]R, error) {
	resp, err := r.store.QueryProjection(ctx, r.Container(), stmt)
	if err != nil {
		return nil, err
	}
	r.record("query_projection", resp.Stats)

	out := make([]R, 0, len(resp.Documents))
	for _, raw := range resp.Documents {
		var row R
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("decode projection row: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

func (r *Repository[T]) query(ctx context.Context, q query.Query) ([]T, error) {
	resp, err := r.store.QueryPage(ctx, r.Container(), q)
	if err != nil {
		return nil, err
	}
	r.record("query_page", resp.Stats)
	return r.decodeAll(resp.Documents)
}

func (r *Repository[T]) decode(raw json.RawMessage) (T, error) {
	entity := r.mapping.New()
	if err := json.Unmarshal(raw, entity); err != nil {
		var zero T
		return zero, fmt.Errorf("decode %s: %w", r.mapping.TypeName, err)
	}
	return entity, nil
}

func (r *Repository[T]) decodeAll(docs []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, raw := range docs {
		entity, err := r.decode(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, entity)
	}
	return out, nil
}

// record publishes the store's latency and charge for one operation.
func (r *Repository[T]) record(op string, stats interfaces.OpStats) {
	container := r.Container()
	metrics.StoreOperationDuration.WithLabelValues(op, container).Observe(stats.Elapsed.Seconds())
	metrics.StoreOperationCharge.WithLabelValues(op, container).Observe(stats.Charge)
	logging.Debug("Store operation",
		"operation", op,
		"container", container,
		"type", r.mapping.TypeName,
		"elapsed_ms", stats.Elapsed.Milliseconds(),
		"charge", stats.Charge,
	)
}
