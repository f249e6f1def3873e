// Package recordpg writes accumulated parse records to Postgres.
//
// Records are implementation-defined values, so they go in as JSON
// alongside their source name and sequence number.  One transaction
// per batch.
package recordpg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// DefaultTable is where records land unless configured otherwise.
var DefaultTable = "records"

// Sink writes record batches to one table.
type Sink struct {
	db    *sql.DB
	table string
}

// Open connects to Postgres.
func Open(dsn, table string) (*Sink, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	return NewSink(db, table), nil
}

// NewSink wraps an existing database handle (which the caller owns).
func NewSink(db *sql.DB, table string) *Sink {
	if table == "" {
		table = DefaultTable
	}
	return &Sink{db: db, table: table}
}

// Close closes the database handle.
func (s *Sink) Close() error {
	return s.db.Close()
}

// EnsureTable creates the records table if it doesn't exist.
func (s *Sink) EnsureTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			source TEXT NOT NULL,
			seq INTEGER NOT NULL,
			record JSONB,
			PRIMARY KEY (source, seq)
		)`, s.table))
	return err
}

// Write inserts one batch of records for the given source name,
// numbered from 0 in record order.  All or nothing.
func (s *Sink) Write(ctx context.Context, source string, records []interface{}) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt := fmt.Sprintf(
		"INSERT INTO %s (source, seq, record) VALUES ($1, $2, $3)", s.table)
	for i, r := range records {
		js, jerr := json.Marshal(&r)
		if jerr != nil {
			err = jerr
			return
		}
		if _, err = tx.ExecContext(ctx, stmt, source, i, js); err != nil {
			return
		}
	}

	err = tx.Commit()
	return
}
