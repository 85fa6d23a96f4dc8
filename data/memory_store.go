package data

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/query"
)

var _ interfaces.DocumentStore = (*MemoryStore)(nil)

type storedDoc struct {
	partitionKey string
	id           string
	raw          json.RawMessage
	fields       map[string]any
}

// MemoryStore is an in-process DocumentStore. Documents are kept as JSON and
// evaluated with the query package interpreter. Charge is the number of
// documents examined by an operation.
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]map[string]map[string]*storedDoc // container -> partition -> id
	now        func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers: make(map[string]map[string]map[string]*storedDoc),
		now:        time.Now,
	}
}

func (m *MemoryStore) EnsureContainer(ctx context.Context, container string) error {
	if err := checkContext(ctx, "ensure container"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.containers[container]; !ok {
		m.containers[container] = make(map[string]map[string]*storedDoc)
	}
	return nil
}

func (m *MemoryStore) Upsert(ctx context.Context, container, partitionKey, id string, doc json.RawMessage) (interfaces.ItemResponse, error) {
	return m.write(ctx, "upsert", container, partitionKey, id, doc, false)
}

func (m *MemoryStore) Replace(ctx context.Context, container, partitionKey, id string, doc json.RawMessage) (interfaces.ItemResponse, error) {
	return m.write(ctx, "replace", container, partitionKey, id, doc, true)
}

func (m *MemoryStore) write(ctx context.Context, op, container, partitionKey, id string, doc json.RawMessage, mustExist bool) (interfaces.ItemResponse, error) {
	start := m.now()
	if err := checkContext(ctx, op); err != nil {
		return interfaces.ItemResponse{}, err
	}
	if id == "" || partitionKey == "" {
		return interfaces.ItemResponse{}, fmt.Errorf("%s: id and partition key are required", op)
	}

	var fields map[string]any
	if err := json.Unmarshal(doc, &fields); err != nil {
		return interfaces.ItemResponse{}, fmt.Errorf("%s: document is not a JSON object: %w", op, err)
	}
	fields["id"] = id
	fields["_ts"] = m.now().Unix()
	raw, err := json.Marshal(fields)
	if err != nil {
		return interfaces.ItemResponse{}, fmt.Errorf("%s: %w", op, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	partitions, ok := m.containers[container]
	if !ok {
		partitions = make(map[string]map[string]*storedDoc)
		m.containers[container] = partitions
	}
	docs, ok := partitions[partitionKey]
	if !ok {
		docs = make(map[string]*storedDoc)
		partitions[partitionKey] = docs
	}
	if _, exists := docs[id]; mustExist && !exists {
		return interfaces.ItemResponse{}, &NotFoundError{Container: container, PartitionKey: partitionKey, ID: id}
	}
	docs[id] = &storedDoc{partitionKey: partitionKey, id: id, raw: raw, fields: fields}

	return interfaces.ItemResponse{
		Document: raw,
		Stats:    interfaces.OpStats{Elapsed: m.now().Sub(start), Charge: 1},
	}, nil
}

func (m *MemoryStore) Read(ctx context.Context, container, partitionKey, id string) (interfaces.ItemResponse, error) {
	start := m.now()
	if err := checkContext(ctx, "read"); err != nil {
		return interfaces.ItemResponse{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.containers[container][partitionKey][id]
	if !ok {
		return interfaces.ItemResponse{}, &NotFoundError{Container: container, PartitionKey: partitionKey, ID: id}
	}
	return interfaces.ItemResponse{
		Document: doc.raw,
		Stats:    interfaces.OpStats{Elapsed: m.now().Sub(start), Charge: 1},
	}, nil
}

func (m *MemoryStore) Delete(ctx context.Context, container, partitionKey, id string) (interfaces.OpStats, error) {
	start := m.now()
	if err := checkContext(ctx, "delete"); err != nil {
		return interfaces.OpStats{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	docs := m.containers[container][partitionKey]
	if _, ok := docs[id]; !ok {
		return interfaces.OpStats{}, &NotFoundError{Container: container, PartitionKey: partitionKey, ID: id}
	}
	delete(docs, id)
	if len(docs) == 0 {
		delete(m.containers[container], partitionKey)
	}
	return interfaces.OpStats{Elapsed: m.now().Sub(start), Charge: 1}, nil
}

func (m *MemoryStore) QueryFirst(ctx context.Context, container string, filters []query.Clause) (interfaces.ItemResponse, bool, error) {
	start := m.now()
	if err := checkContext(ctx, "query first"); err != nil {
		return interfaces.ItemResponse{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.snapshot(container, "")
	for i, doc := range docs {
		ok, err := query.Match(doc.fields, filters, nil)
		if err != nil {
			return interfaces.ItemResponse{}, false, err
		}
		if ok {
			return interfaces.ItemResponse{
				Document: doc.raw,
				Stats:    interfaces.OpStats{Elapsed: m.now().Sub(start), Charge: float64(i + 1)},
			}, true, nil
		}
	}
	return interfaces.ItemResponse{
		Stats: interfaces.OpStats{Elapsed: m.now().Sub(start), Charge: float64(len(docs))},
	}, false, nil
}

func (m *MemoryStore) QueryPage(ctx context.Context, container string, q query.Query) (interfaces.FeedResponse, error) {
	start := m.now()
	if err := checkContext(ctx, "query page"); err != nil {
		return interfaces.FeedResponse{}, err
	}
	if err := q.Validate(); err != nil {
		return interfaces.FeedResponse{}, err
	}
	filters := q.Filters
	if q.TypeName != "" {
		filters = append([]query.Clause{query.Where("TypeName", query.Eq, q.TypeName)}, filters...)
	}

	m.mu.RLock()
	docs := m.snapshot(container, "")
	m.mu.RUnlock()

	var matched []*storedDoc
	for _, doc := range docs {
		ok, err := query.Match(doc.fields, filters, nil)
		if err != nil {
			return interfaces.FeedResponse{}, err
		}
		if ok {
			matched = append(matched, doc)
		}
	}

	if q.Order.Field != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			a, _ := query.Value(matched[i].fields, q.Order.Field)
			b, _ := query.Value(matched[j].fields, q.Order.Field)
			cmp := query.Compare(a, b)
			if q.Order.Direction == query.Descending {
				cmp = -cmp
			}
			return cmp < 0
		})
	}

	if q.Offset >= len(matched) {
		matched = nil
	} else {
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]json.RawMessage, 0, len(matched))
	for _, doc := range matched {
		out = append(out, doc.raw)
	}
	return interfaces.FeedResponse{
		Documents: out,
		Stats:     interfaces.OpStats{Elapsed: m.now().Sub(start), Charge: float64(len(docs))},
	}, nil
}

func (m *MemoryStore) QueryProjection(ctx context.Context, container string, stmt query.Statement) (interfaces.FeedResponse, error) {
	start := m.now()
	if err := checkContext(ctx, "query projection"); err != nil {
		return interfaces.FeedResponse{}, err
	}
	if err := stmt.Validate(); err != nil {
		return interfaces.FeedResponse{}, err
	}

	m.mu.RLock()
	docs := m.snapshot(container, stmt.PartitionKey)
	m.mu.RUnlock()

	var rows []map[string]any
	groups := make(map[string]map[string]any)
	for _, doc := range docs {
		ok, err := query.Match(doc.fields, stmt.Where, stmt.Params)
		if err != nil {
			return interfaces.FeedResponse{}, err
		}
		if !ok {
			continue
		}

		switch {
		case len(stmt.GroupBy) > 0:
			key, row, err := groupKey(doc.fields, stmt.GroupBy)
			if err != nil {
				return interfaces.FeedResponse{}, err
			}
			existing, found := groups[key]
			if !found {
				for _, f := range stmt.Sums {
					row[f] = float64(0)
				}
				groups[key] = row
				rows = append(rows, row)
				existing = row
			}
			for _, f := range stmt.Sums {
				if n, ok := numeric(doc.fields, f); ok {
					existing[f] = existing[f].(float64) + n
				}
			}
		case len(stmt.Select) > 0:
			row := make(map[string]any, len(stmt.Select))
			for _, f := range stmt.Select {
				if v, ok := query.Value(doc.fields, f); ok {
					row[f] = v
				}
			}
			rows = append(rows, row)
		default:
			rows = append(rows, doc.fields)
		}
	}

	out := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		raw, err := json.Marshal(row)
		if err != nil {
			return interfaces.FeedResponse{}, fmt.Errorf("query projection: %w", err)
		}
		out = append(out, raw)
	}
	return interfaces.FeedResponse{
		Documents: out,
		Stats:     interfaces.OpStats{Elapsed: m.now().Sub(start), Charge: float64(len(docs))},
	}, nil
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return checkContext(ctx, "ping")
}

// Reset removes every document and container.
func (m *MemoryStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.containers = make(map[string]map[string]map[string]*storedDoc)
}

// Count returns the number of documents in a container.
func (m *MemoryStore) Count(container string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, docs := range m.containers[container] {
		n += len(docs)
	}
	return n
}

// snapshot returns the container's documents sorted by id then partition.
// An empty partitionKey spans every partition. Caller must hold the read lock.
func (m *MemoryStore) snapshot(container, partitionKey string) []*storedDoc {
	var out []*storedDoc
	for pk, docs := range m.containers[container] {
		if partitionKey != "" && pk != partitionKey {
			continue
		}
		for _, doc := range docs {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].id != out[j].id {
			return out[i].id < out[j].id
		}
		return out[i].partitionKey < out[j].partitionKey
	})
	return out
}

func groupKey(fields map[string]any, groupBy []string) (string, map[string]any, error) {
	row := make(map[string]any, len(groupBy))
	parts := make([]string, 0, len(groupBy))
	for _, f := range groupBy {
		v, _ := query.Value(fields, f)
		row[f] = v
		b, err := json.Marshal(v)
		if err != nil {
			return "", nil, fmt.Errorf("group by %s: %w", f, err)
		}
		parts = append(parts, string(b))
	}
	return strings.Join(parts, "\x00"), row, nil
}

func numeric(fields map[string]any, path string) (float64, bool) {
	v, ok := query.Value(fields, path)
	if !ok {
		return 0, false
	}
	n, ok := v.(float64)
	return n, ok
}

func checkContext(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return &StoreUnavailableError{Op: op, Err: err}
	}
	return nil
}
