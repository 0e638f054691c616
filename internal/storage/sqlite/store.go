// Package sqlite provides the embedded SQLite storage for the telemetry
// engine. Each table is exposed as a typed repository: insert, filtered
// reads, counts and retention deletes. Semi-structured values (spans,
// warnings, bindings, structured log payloads) are serialized only here;
// the rest of the engine works with typed values.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getlens/lens/pkg/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// insertChunkSize is the number of rows per multi-row INSERT. 50 rows
// keeps the bound-parameter count well under SQLite's per-statement
// ceiling for every table.
const insertChunkSize = 50

// Store is the SQLite-backed telemetry store.
type Store struct {
	db     *sql.DB
	path   string
	closed atomic.Bool
}

// Open opens (creating if needed) the database at path, applies the
// engine pragmas and ensures the schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// WAL lets dashboard reads run concurrently with collector writes
	// without the engine taking its own locks.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-16000",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Close closes the database handle. Safe to call more than once; all
// operations after Close return ErrStoreClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

// Ready reports whether the store can accept operations.
func (s *Store) Ready() bool {
	return s != nil && !s.closed.Load()
}

// TableSizes returns the current row count per telemetry table.
func (s *Store) TableSizes(ctx context.Context) (map[string]int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	sizes := make(map[string]int, len(telemetryTables))
	for _, table := range telemetryTables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("counting %s: %w", table, err)
		}
		sizes[table] = n
	}
	return sizes, nil
}

func (s *Store) ready() error {
	if !s.Ready() {
		return models.ErrStoreClosed
	}
	return nil
}

// telemetryTables are the tables swept by retention, in schema order.
// saved_filters is deliberately absent: presets have no retention policy.
var telemetryTables = []string{
	"requests", "queries", "events", "emails", "logs", "traces", "metrics",
}

// chunk splits items into slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for size < len(items) {
		items, chunks = items[size:], append(chunks, items[:size])
	}
	return append(chunks, items)
}

// msec converts a timestamp to the unix-millisecond representation rows
// are stored with. Zero times become the current time.
func msec(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UnixMilli()
}

// fromMsec converts a stored unix-millisecond value back to a UTC time.
func fromMsec(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// encodeJSON encodes data as a JSON string for a TEXT column.
func encodeJSON(data any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("encoding JSON: %w", err)
	}
	return string(b), nil
}

// decodeJSON decodes a TEXT column into target.
func decodeJSON(data string, target any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), target); err != nil {
		return fmt.Errorf("decoding JSON: %w", err)
	}
	return nil
}
