package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sallandpioneers/docflow/internal/model"
)

// Persisted key layout. Pending is a FIFO list (LPUSH head, pop tail),
// processing is an unordered list of in-flight documents, counters are
// plain integers.
const (
	pendingKey          = "document_queue"
	processingKey       = "processing_documents"
	processedCounterKey = "processed_documents_count"
	errorCounterKey     = "error_documents_count"
	assignmentKeyPrefix = "document:"
)

// maxClaimTimeout bounds the blocking dequeue so a client never waits
// longer than one second on an empty queue.
const maxClaimTimeout = 1 * time.Second

// Store is the durable two-region document queue.
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Enqueue appends a document to the pending queue. Never blocks.
func (s *Store) Enqueue(ctx context.Context, doc *model.Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	if err := s.rdb.LPush(ctx, pendingKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue document: %w", err)
	}
	return nil
}

// EnqueueAll appends a batch of documents in a single push, so a folder
// enqueue lands either whole or not at all.
func (s *Store) EnqueueAll(ctx context.Context, docs []*model.Document) error {
	if len(docs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}
		values = append(values, data)
	}
	if err := s.rdb.LPush(ctx, pendingKey, values...).Err(); err != nil {
		return fmt.Errorf("failed to enqueue documents: %w", err)
	}
	return nil
}

// Claim atomically moves the tail of the pending queue onto the
// processing list, blocking up to timeout. Returns (nil, nil) when the
// queue stays empty within the timeout. Two concurrent claims never
// return the same document; the move is a single Redis BLMOVE.
func (s *Store) Claim(ctx context.Context, timeout time.Duration) (*model.Document, error) {
	if timeout <= 0 || timeout > maxClaimTimeout {
		timeout = maxClaimTimeout
	}

	data, err := s.rdb.BLMove(ctx, pendingKey, processingKey, "RIGHT", "LEFT", timeout).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to claim document: %w", err)
	}

	var doc model.Document
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal claimed document: %w", err)
	}
	return &doc, nil
}

// Complete removes the record with the given document id from the
// processing list. Idempotent: completing an absent id is a no-op.
// Returns whether a record was actually removed.
func (s *Store) Complete(ctx context.Context, documentID string) (bool, error) {
	items, err := s.rdb.LRange(ctx, processingKey, 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read processing list: %w", err)
	}

	for _, item := range items {
		var doc model.Document
		if err := json.Unmarshal([]byte(item), &doc); err != nil {
			continue
		}
		if doc.ID == documentID {
			if err := s.rdb.LRem(ctx, processingKey, 1, item).Err(); err != nil {
				return false, fmt.Errorf("failed to remove from processing list: %w", err)
			}
			return true, nil
		}
	}
	return false, nil
}

// Assign records which worker holds a claimed document.
func (s *Store) Assign(ctx context.Context, documentID, workerID string) error {
	return s.rdb.HSet(ctx, assignmentKeyPrefix+documentID, map[string]interface{}{
		"worker_id":          workerID,
		"processing_started": model.Now(),
	}).Err()
}

// AssignedWorker returns the worker id holding a document, or "" when
// no assignment record exists.
func (s *Store) AssignedWorker(ctx context.Context, documentID string) (string, error) {
	workerID, err := s.rdb.HGet(ctx, assignmentKeyPrefix+documentID, "worker_id").Result()
	if err == redis.Nil {
		return "", nil
	}
	return workerID, err
}

// ClearAssignment deletes the assignment record after completion.
func (s *Store) ClearAssignment(ctx context.Context, documentID string) error {
	return s.rdb.Del(ctx, assignmentKeyPrefix+documentID).Err()
}

func (s *Store) PendingLen(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, pendingKey).Result()
}

func (s *Store) ProcessingLen(ctx context.Context) (int64, error) {
	return s.rdb.LLen(ctx, processingKey).Result()
}

// IncrProcessed bumps the global processed counter. Monotonic.
func (s *Store) IncrProcessed(ctx context.Context) error {
	return s.rdb.Incr(ctx, processedCounterKey).Err()
}

// IncrErrors bumps the global error counter. Monotonic.
func (s *Store) IncrErrors(ctx context.Context) error {
	return s.rdb.Incr(ctx, errorCounterKey).Err()
}

func (s *Store) ProcessedTotal(ctx context.Context) (int64, error) {
	return s.counter(ctx, processedCounterKey)
}

func (s *Store) ErrorsTotal(ctx context.Context) (int64, error) {
	return s.counter(ctx, errorCounterKey)
}

func (s *Store) counter(ctx context.Context, key string) (int64, error) {
	n, err := s.rdb.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
