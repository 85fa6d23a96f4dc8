// Package postgres implements the document store on a PostgreSQL JSONB table.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/giygas/cureid-api/data"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/query"
)

var _ interfaces.DocumentStore = (*Store)(nil)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store keeps every container in one table keyed by (container, partition_key, id).
type Store struct {
	db     queryable
	ping   func(ctx context.Context) error
	schema string
}

// NewPool opens and verifies a connection pool.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// NewStore creates a store whose tables live in schema.
func NewStore(pool *pgxpool.Pool, schema string) (*Store, error) {
	schema = strings.ToLower(schema)
	if !schemaPattern.MatchString(schema) {
		return nil, fmt.Errorf("invalid schema name %q", schema)
	}
	return &Store{db: pool, ping: pool.Ping, schema: schema}, nil
}

func (s *Store) documents() string {
	return s.schema + ".documents"
}

// InitializeDatabase creates the schema and tables if they do not exist.
func (s *Store) InitializeDatabase(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.containers (
			name       TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			container     TEXT  NOT NULL,
			partition_key TEXT  NOT NULL,
			id            TEXT  NOT NULL,
			body          JSONB NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (container, partition_key, id)
		)`, s.documents()),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS documents_body_idx ON %s USING GIN (body jsonb_path_ops)`, s.documents()),
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return classify("initialize database", err)
		}
	}
	return nil
}

// ResetDatabase removes every document and container.
func (s *Store) ResetDatabase(ctx context.Context) error {
	_, err := s.db.Exec(ctx, fmt.Sprintf(`TRUNCATE %s, %s.containers`, s.documents(), s.schema))
	if err != nil {
		return classify("reset database", err)
	}
	return nil
}

func (s *Store) EnsureContainer(ctx context.Context, container string) error {
	_, err := s.db.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s.containers (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, s.schema),
		container)
	if err != nil {
		return classify("ensure container", err)
	}
	return nil
}

const stampBody = `$4::jsonb || jsonb_build_object('id', $3::text, '_ts', floor(extract(epoch from now()))::bigint)`

func (s *Store) Upsert(ctx context.Context, container, partitionKey, id string, doc json.RawMessage) (interfaces.ItemResponse, error) {
	if id == "" || partitionKey == "" {
		return interfaces.ItemResponse{}, errors.New("upsert: id and partition key are required")
	}
	start := time.Now()
	sql := fmt.Sprintf(`INSERT INTO %s (container, partition_key, id, body)
		VALUES ($1, $2, $3, %s)
		ON CONFLICT (container, partition_key, id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()
		RETURNING body`, s.documents(), stampBody)

	var body []byte
	if err := s.db.QueryRow(ctx, sql, container, partitionKey, id, string(doc)).Scan(&body); err != nil {
		return interfaces.ItemResponse{}, classify("upsert", err)
	}
	return interfaces.ItemResponse{
		Document: body,
		Stats:    interfaces.OpStats{Elapsed: time.Since(start), Charge: 1},
	}, nil
}

func (s *Store) Replace(ctx context.Context, container, partitionKey, id string, doc json.RawMessage) (interfaces.ItemResponse, error) {
	start := time.Now()
	sql := fmt.Sprintf(`UPDATE %s SET body = %s, updated_at = now()
		WHERE container = $1 AND partition_key = $2 AND id = $3
		RETURNING body`, s.documents(), stampBody)

	var body []byte
	err := s.db.QueryRow(ctx, sql, container, partitionKey, id, string(doc)).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return interfaces.ItemResponse{}, &data.NotFoundError{Container: container, PartitionKey: partitionKey, ID: id}
	}
	if err != nil {
		return interfaces.ItemResponse{}, classify("replace", err)
	}
	return interfaces.ItemResponse{
		Document: body,
		Stats:    interfaces.OpStats{Elapsed: time.Since(start), Charge: 1},
	}, nil
}

func (s *Store) Read(ctx context.Context, container, partitionKey, id string) (interfaces.ItemResponse, error) {
	start := time.Now()
	sql := fmt.Sprintf(`SELECT body FROM %s WHERE container = $1 AND partition_key = $2 AND id = $3`, s.documents())

	var body []byte
	err := s.db.QueryRow(ctx, sql, container, partitionKey, id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return interfaces.ItemResponse{}, &data.NotFoundError{Container: container, PartitionKey: partitionKey, ID: id}
	}
	if err != nil {
		return interfaces.ItemResponse{}, classify("read", err)
	}
	return interfaces.ItemResponse{
		Document: body,
		Stats:    interfaces.OpStats{Elapsed: time.Since(start), Charge: 1},
	}, nil
}

func (s *Store) Delete(ctx context.Context, container, partitionKey, id string) (interfaces.OpStats, error) {
	start := time.Now()
	tag, err := s.db.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE container = $1 AND partition_key = $2 AND id = $3`, s.documents()),
		container, partitionKey, id)
	if err != nil {
		return interfaces.OpStats{}, classify("delete", err)
	}
	if tag.RowsAffected() == 0 {
		return interfaces.OpStats{}, &data.NotFoundError{Container: container, PartitionKey: partitionKey, ID: id}
	}
	return interfaces.OpStats{Elapsed: time.Since(start), Charge: float64(tag.RowsAffected())}, nil
}

func (s *Store) QueryFirst(ctx context.Context, container string, filters []query.Clause) (interfaces.ItemResponse, bool, error) {
	start := time.Now()
	b := &sqlBuilder{}
	sql, err := b.firstSQL(s.documents(), container, filters)
	if err != nil {
		return interfaces.ItemResponse{}, false, err
	}

	var body []byte
	err = s.db.QueryRow(ctx, sql, b.args...).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return interfaces.ItemResponse{Stats: interfaces.OpStats{Elapsed: time.Since(start)}}, false, nil
	}
	if err != nil {
		return interfaces.ItemResponse{}, false, classify("query first", err)
	}
	return interfaces.ItemResponse{
		Document: body,
		Stats:    interfaces.OpStats{Elapsed: time.Since(start), Charge: 1},
	}, true, nil
}

func (s *Store) QueryPage(ctx context.Context, container string, q query.Query) (interfaces.FeedResponse, error) {
	b := &sqlBuilder{}
	sql, err := b.pageSQL(s.documents(), container, q)
	if err != nil {
		return interfaces.FeedResponse{}, err
	}
	return s.feed(ctx, "query page", sql, b.args)
}

func (s *Store) QueryProjection(ctx context.Context, container string, stmt query.Statement) (interfaces.FeedResponse, error) {
	b := &sqlBuilder{}
	sql, err := b.projectionSQL(s.documents(), container, stmt)
	if err != nil {
		return interfaces.FeedResponse{}, err
	}
	return s.feed(ctx, "query projection", sql, b.args)
}

func (s *Store) feed(ctx context.Context, op, sql string, args []any) (interfaces.FeedResponse, error) {
	start := time.Now()
	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return interfaces.FeedResponse{}, classify(op, err)
	}
	defer rows.Close()

	docs := make([]json.RawMessage, 0)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return interfaces.FeedResponse{}, classify(op, err)
		}
		docs = append(docs, body)
	}
	if err := rows.Err(); err != nil {
		return interfaces.FeedResponse{}, classify(op, err)
	}
	return interfaces.FeedResponse{
		Documents: docs,
		Stats:     interfaces.OpStats{Elapsed: time.Since(start), Charge: float64(len(docs))},
	}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.ping(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

// classify maps connection, resource and timeout failures onto
// StoreUnavailableError. Other server errors are returned wrapped.
func classify(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && len(pgErr.Code) >= 2 {
		switch pgErr.Code[:2] {
		case "08", "53", "57", "58":
			return &data.StoreUnavailableError{Op: op, Err: err}
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return &data.StoreUnavailableError{Op: op, Err: err}
}
