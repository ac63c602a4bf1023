package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/sallandpioneers/docflow/internal/model"
)

// Workers are stored as JSON values under worker:{id} plus a set of
// active ids. Membership in the set defines the active set; a
// force-removed worker disappears from both.
const (
	workerKeyPrefix = "worker:"
	activeSetKey    = "active_workers"
)

// Registry holds registered workers and drives their state machine.
// All mutations happen here, in response to coordinator API calls.
type Registry struct {
	rdb              *redis.Client
	heartbeatTimeout time.Duration
}

func New(rdb *redis.Client, heartbeatTimeout time.Duration) *Registry {
	if heartbeatTimeout <= 0 {
		heartbeatTimeout = 30 * time.Second
	}
	return &Registry{rdb: rdb, heartbeatTimeout: heartbeatTimeout}
}

// Register creates a worker record in state IDLE. The name must be
// unique across active workers. The returned warning is non-empty when
// the api_url points at OpenAI but no api key was supplied.
func (r *Registry) Register(ctx context.Context, name, apiURL, modelName, apiKey, processID string) (*model.Worker, string, error) {
	switch {
	case name == "":
		return nil, "", model.Errorf(model.KindValidation, "Worker name is required")
	case apiURL == "":
		return nil, "", model.Errorf(model.KindValidation, "Worker api_url is required")
	case modelName == "":
		return nil, "", model.Errorf(model.KindValidation, "Worker model is required")
	}

	existing, err := r.List(ctx)
	if err != nil {
		return nil, "", err
	}
	for _, w := range existing {
		if w.Name == name {
			return nil, "", model.Errorf(model.KindConflict, "Worker name already in use: %s", name)
		}
	}

	var warning string
	if strings.Contains(apiURL, "openai.com") && apiKey == "" {
		warning = "WARNING: OpenAI API endpoint specified without API key"
	}

	now := model.Now()
	worker := &model.Worker{
		ID:            uuid.NewString(),
		Name:          name,
		APIURL:        apiURL,
		Model:         modelName,
		APIKey:        apiKey,
		Status:        model.StateIdle,
		RegisteredAt:  now,
		LastHeartbeat: now,
		ProcessID:     processID,
	}

	if err := r.save(ctx, worker); err != nil {
		return nil, "", err
	}
	return worker, warning, nil
}

// Get returns the worker record for an active id.
func (r *Registry) Get(ctx context.Context, workerID string) (*model.Worker, error) {
	active, err := r.rdb.SIsMember(ctx, activeSetKey, workerID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check active set: %w", err)
	}
	if !active {
		return nil, model.Errorf(model.KindNotFound, "Worker not found")
	}

	data, err := r.rdb.Get(ctx, workerKeyPrefix+workerID).Result()
	if err == redis.Nil {
		return nil, model.Errorf(model.KindNotFound, "Worker not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get worker: %w", err)
	}

	var worker model.Worker
	if err := json.Unmarshal([]byte(data), &worker); err != nil {
		return nil, fmt.Errorf("failed to unmarshal worker: %w", err)
	}
	return &worker, nil
}

// List returns all active workers.
func (r *Registry) List(ctx context.Context) ([]*model.Worker, error) {
	ids, err := r.rdb.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list active workers: %w", err)
	}
	if len(ids) == 0 {
		return []*model.Worker{}, nil
	}

	pipe := r.rdb.Pipeline()
	cmds := make([]*redis.StringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.Get(ctx, workerKeyPrefix+id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to fetch workers: %w", err)
	}

	workers := make([]*model.Worker, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		var worker model.Worker
		if err := json.Unmarshal([]byte(data), &worker); err != nil {
			continue
		}
		workers = append(workers, &worker)
	}
	return workers, nil
}

// Heartbeat applies the heartbeat rules on the pre-update state and
// returns the command the worker must obey ("" means carry on).
//
// Pre-state REMOVING: touch last_heartbeat only, command shutdown.
// Pre-state STOPPED with reported status != error: touch last_heartbeat
// only, command stop. Otherwise the reported status and document are
// accepted verbatim.
func (r *Registry) Heartbeat(ctx context.Context, workerID string, reported model.WorkerState, documentID string) (string, error) {
	worker, err := r.Get(ctx, workerID)
	if err != nil {
		if model.IsKind(err, model.KindNotFound) {
			return "", model.Errorf(model.KindUnknownWorker, "Worker not registered")
		}
		return "", err
	}
	if !reported.Valid() {
		return "", model.Errorf(model.KindValidation, "Unknown worker status: %s", reported)
	}

	now := model.Now()
	switch {
	case worker.Status == model.StateRemoving:
		worker.LastHeartbeat = now
		if err := r.save(ctx, worker); err != nil {
			return "", err
		}
		return model.CommandShutdown, nil

	case worker.Status == model.StateStopped && reported != model.StateError:
		worker.LastHeartbeat = now
		if err := r.save(ctx, worker); err != nil {
			return "", err
		}
		return model.CommandStop, nil

	default:
		worker.LastHeartbeat = now
		worker.Status = reported
		worker.CurrentDocument = documentID
		if err := r.save(ctx, worker); err != nil {
			return "", err
		}
		return "", nil
	}
}

// TouchHeartbeat refreshes last_heartbeat without touching status.
func (r *Registry) TouchHeartbeat(ctx context.Context, workerID string) error {
	return r.update(ctx, workerID, func(w *model.Worker) {
		w.LastHeartbeat = model.Now()
	})
}

// Stop sets a worker to STOPPED. A worker that is PROCESSING finishes
// its current document first and observes the stop at its next
// heartbeat. No-op when already STOPPED or ERROR.
func (r *Registry) Stop(ctx context.Context, workerID string) error {
	return r.update(ctx, workerID, func(w *model.Worker) {
		if w.Status == model.StateStopped || w.Status == model.StateError {
			return
		}
		w.Status = model.StateStopped
	})
}

// Start transitions STOPPED or ERROR back to IDLE.
func (r *Registry) Start(ctx context.Context, workerID string) error {
	worker, err := r.Get(ctx, workerID)
	if err != nil {
		return err
	}
	if worker.Status != model.StateStopped && worker.Status != model.StateError {
		return model.Errorf(model.KindState, "Worker cannot be started from %s state", worker.Status)
	}
	worker.Status = model.StateIdle
	return r.save(ctx, worker)
}

// MarkRemoving requests a graceful shutdown: the worker's next
// heartbeat returns the shutdown command and the worker exits on its
// own. This replaces any OS-level process kill.
func (r *Registry) MarkRemoving(ctx context.Context, workerID string) error {
	return r.update(ctx, workerID, func(w *model.Worker) {
		w.Status = model.StateRemoving
	})
}

// MarkProcessing records a successful claim.
func (r *Registry) MarkProcessing(ctx context.Context, workerID, documentID string) error {
	return r.update(ctx, workerID, func(w *model.Worker) {
		w.Status = model.StateProcessing
		w.CurrentDocument = documentID
	})
}

// MarkIdle records a completion.
func (r *Registry) MarkIdle(ctx context.Context, workerID string) error {
	return r.update(ctx, workerID, func(w *model.Worker) {
		w.Status = model.StateIdle
		w.CurrentDocument = ""
	})
}

// UpdateStatus writes a status directly. Used by a worker's interrupt
// path as a best-effort write alongside its final heartbeat.
func (r *Registry) UpdateStatus(ctx context.Context, workerID string, status model.WorkerState) error {
	return r.update(ctx, workerID, func(w *model.Worker) {
		w.Status = status
	})
}

// IncrProcessed bumps the per-worker processed counter.
func (r *Registry) IncrProcessed(ctx context.Context, workerID string) error {
	return r.update(ctx, workerID, func(w *model.Worker) {
		w.ProcessedDocuments++
	})
}

// IncrErrors bumps the per-worker error counter.
func (r *Registry) IncrErrors(ctx context.Context, workerID string) error {
	return r.update(ctx, workerID, func(w *model.Worker) {
		w.Errors++
	})
}

// ForceRemove deletes the worker record and drops it from the active
// set. Subsequent heartbeats from that id are rejected.
func (r *Registry) ForceRemove(ctx context.Context, workerID string) error {
	active, err := r.rdb.SIsMember(ctx, activeSetKey, workerID).Result()
	if err != nil {
		return fmt.Errorf("failed to check active set: %w", err)
	}
	if !active {
		return model.Errorf(model.KindNotFound, "Worker not found")
	}

	pipe := r.rdb.Pipeline()
	pipe.SRem(ctx, activeSetKey, workerID)
	pipe.Del(ctx, workerKeyPrefix+workerID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remove worker: %w", err)
	}
	return nil
}

// Stale reports whether a worker's last heartbeat is older than the
// configured timeout. Recorded and exposed, never acted on.
func (r *Registry) Stale(w *model.Worker) bool {
	return model.Now()-w.LastHeartbeat > r.heartbeatTimeout.Seconds()
}

func (r *Registry) update(ctx context.Context, workerID string, mutate func(*model.Worker)) error {
	worker, err := r.Get(ctx, workerID)
	if err != nil {
		return err
	}
	mutate(worker)
	return r.save(ctx, worker)
}

func (r *Registry) save(ctx context.Context, worker *model.Worker) error {
	data, err := json.Marshal(worker)
	if err != nil {
		return fmt.Errorf("failed to marshal worker: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, workerKeyPrefix+worker.ID, data, 0)
	pipe.SAdd(ctx, activeSetKey, worker.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}
