package results

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresStore persists outcomes in two append-only tables.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to the result database. The URI comes from
// POSTGRES_URI by default.
func OpenPostgres(uri string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open result store: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing connection. Used by tests.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the result tables when missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, table := range []string{"processing_results", "processing_errors"} {
		_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			worker_id TEXT NOT NULL,
			file_path TEXT NOT NULL DEFAULT '',
			schema_name TEXT NOT NULL DEFAULT '',
			result JSONB,
			processed_at DOUBLE PRECISION NOT NULL
		)`, table))
		if err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, rec *Record) error {
	return s.insert(ctx, "processing_results", rec)
}

func (s *PostgresStore) SaveError(ctx context.Context, rec *Record) error {
	return s.insert(ctx, "processing_errors", rec)
}

func (s *PostgresStore) insert(ctx context.Context, table string, rec *Record) error {
	payload, err := json.Marshal(rec.Result)
	if err != nil {
		return fmt.Errorf("failed to marshal result payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (worker_id, file_path, schema_name, result, processed_at) VALUES ($1, $2, $3, $4, $5)", table),
		rec.WorkerID, rec.FilePath, rec.SchemaName, payload, rec.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func (s *PostgresStore) Counts(ctx context.Context) (int64, int64, error) {
	var results, errors int64
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM processing_results").Scan(&results); err != nil {
		return 0, 0, fmt.Errorf("failed to count results: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM processing_errors").Scan(&errors); err != nil {
		return 0, 0, fmt.Errorf("failed to count errors: %w", err)
	}
	return results, errors, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
