package results

import "context"

// Record is a single processing outcome. Records are append-only;
// duplicates from retried completions are acceptable.
type Record struct {
	WorkerID    string  `json:"worker_id"`
	FilePath    string  `json:"file_path"`
	SchemaName  string  `json:"schema_name"`
	Result      any     `json:"result"`
	ProcessedAt float64 `json:"processed_at"`
}

// Store persists processing outcomes in two streams, one for
// successes and one for errors. No update or delete operations exist.
type Store interface {
	SaveResult(ctx context.Context, rec *Record) error
	SaveError(ctx context.Context, rec *Record) error
	Counts(ctx context.Context) (results, errors int64, err error)
	Close() error
}
