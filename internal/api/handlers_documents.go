package api

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sallandpioneers/docflow/internal/model"
	"github.com/sallandpioneers/docflow/internal/results"
)

// handleEnqueue adds a single document path to the pending queue.
func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	filePath := r.URL.Query().Get("file_path")
	schemaName := r.URL.Query().Get("schema_name")

	if filePath == "" {
		writeError(w, "file_path is required")
		return
	}

	doc := &model.Document{
		ID:         uuid.NewString(),
		Path:       filePath,
		SchemaName: schemaName,
		EnqueuedAt: model.Now(),
	}

	if err := s.queue.Enqueue(r.Context(), doc); err != nil {
		s.logger.Printf("Enqueue failed: %v", err)
		writeError(w, "Failed to enqueue document")
		return
	}

	position, _ := s.queue.PendingLen(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "Document enqueued",
		"document_id":    doc.ID,
		"queue_position": position,
		"schema":         schemaOrDefault(schemaName),
	})
}

// handleEnqueueFolder recursively enqueues every regular file under a
// folder. The file list is collected before anything is pushed, so the
// call either enqueues all files or none.
func (s *Server) handleEnqueueFolder(w http.ResponseWriter, r *http.Request) {
	folderPath := r.URL.Query().Get("folder_path")
	schemaName := r.URL.Query().Get("schema_name")

	info, err := os.Stat(folderPath)
	if err != nil || !info.IsDir() {
		writeError(w, fmt.Sprintf("Folder not found or not a directory: %s", folderPath))
		return
	}

	var files []string
	err = filepath.WalkDir(folderPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		writeError(w, fmt.Sprintf("Failed to read folder: %s", folderPath))
		return
	}

	docs := make([]*model.Document, 0, len(files))
	now := model.Now()
	for _, path := range files {
		docs = append(docs, &model.Document{
			ID:         uuid.NewString(),
			Path:       path,
			SchemaName: schemaName,
			EnqueuedAt: now,
		})
	}

	if err := s.queue.EnqueueAll(r.Context(), docs); err != nil {
		s.logger.Printf("Folder enqueue failed: %v", err)
		writeError(w, "Failed to enqueue folder documents")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Folder documents enqueued",
		"count":  len(docs),
		"folder": folderPath,
		"schema": schemaOrDefault(schemaName),
	})
}

// handleNextDocument claims one document for a worker. The claim is an
// atomic move from pending to processing, bounded to one second.
func (s *Server) handleNextDocument(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	worker, err := s.registry.Get(r.Context(), workerID)
	if err != nil {
		writeError(w, "Worker not registered")
		return
	}

	// Any poll counts as liveness
	if err := s.registry.TouchHeartbeat(r.Context(), workerID); err != nil {
		s.logger.Printf("Heartbeat refresh failed for %s: %v", workerID, err)
	}

	if !worker.Status.Active() {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":       "Worker is not in active state",
			"worker_state": worker.Status,
		})
		return
	}

	doc, err := s.queue.Claim(r.Context(), s.claimTimeout)
	if err != nil {
		s.logger.Printf("Claim failed for %s: %v", workerID, err)
		writeError(w, "Failed to claim document")
		return
	}
	if doc == nil {
		writeJSON(w, http.StatusOK, map[string]any{"status": "No documents in queue"})
		return
	}

	if err := s.registry.MarkProcessing(r.Context(), workerID, doc.ID); err != nil {
		s.logger.Printf("Failed to mark worker %s processing: %v", workerID, err)
	}
	if err := s.queue.Assign(r.Context(), doc.ID, workerID); err != nil {
		s.logger.Printf("Failed to record assignment for %s: %v", doc.ID, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "Document assigned",
		"document": doc,
	})
}

type processedRequest struct {
	IsError    bool            `json:"is_error"`
	FilePath   string          `json:"file_path"`
	SchemaName string          `json:"schema_name"`
	Result     json.RawMessage `json:"result"`
}

// handleDocumentProcessed records an outcome. The completion path
// touches four stores without a joint transaction; each step is
// individually atomic and safe to retry (at-least-once contract).
func (s *Server) handleDocumentProcessed(w http.ResponseWriter, r *http.Request) {
	workerID := r.URL.Query().Get("worker_id")
	documentID := r.URL.Query().Get("document_id")
	if workerID == "" || documentID == "" {
		writeError(w, "Missing required parameters: worker_id and document_id")
		return
	}

	if _, err := s.registry.Get(r.Context(), workerID); err != nil {
		writeError(w, "Worker not registered")
		return
	}

	var req processedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid result body")
		return
	}

	rec := &results.Record{
		WorkerID:    workerID,
		FilePath:    req.FilePath,
		SchemaName:  req.SchemaName,
		Result:      req.Result,
		ProcessedAt: model.Now(),
	}

	if req.IsError {
		if err := s.results.SaveError(r.Context(), rec); err != nil {
			s.logger.Printf("Failed to persist error record: %v", err)
		}
		if err := s.registry.IncrErrors(r.Context(), workerID); err != nil {
			s.logger.Printf("Failed to bump worker error counter: %v", err)
		}
		if err := s.queue.IncrErrors(r.Context()); err != nil {
			s.logger.Printf("Failed to bump error counter: %v", err)
		}
	} else {
		if err := s.results.SaveResult(r.Context(), rec); err != nil {
			s.logger.Printf("Failed to persist result record: %v", err)
		}
	}

	if _, err := s.queue.Complete(r.Context(), documentID); err != nil {
		s.logger.Printf("Failed to remove %s from processing: %v", documentID, err)
	}

	if err := s.registry.MarkIdle(r.Context(), workerID); err != nil {
		s.logger.Printf("Failed to mark worker %s idle: %v", workerID, err)
	}

	// The processed counters count completions, error outcomes included
	if err := s.queue.IncrProcessed(r.Context()); err != nil {
		s.logger.Printf("Failed to bump processed counter: %v", err)
	}
	if err := s.registry.IncrProcessed(r.Context(), workerID); err != nil {
		s.logger.Printf("Failed to bump worker processed counter: %v", err)
	}
	if err := s.queue.ClearAssignment(r.Context(), documentID); err != nil {
		s.logger.Printf("Failed to clear assignment for %s: %v", documentID, err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Document processed and result saved",
	})
}

// handleSystemStatus reports queue depths, counters and a worker
// summary. Counts are each read atomically but are not mutually
// consistent across the response.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	pending, _ := s.queue.PendingLen(ctx)
	processing, _ := s.queue.ProcessingLen(ctx)
	processed, _ := s.queue.ProcessedTotal(ctx)
	errorCount, _ := s.queue.ErrorsTotal(ctx)

	workers, err := s.registry.List(ctx)
	if err != nil {
		s.logger.Printf("Failed to list workers: %v", err)
		workers = nil
	}

	summaries := make([]map[string]any, 0, len(workers))
	for _, worker := range workers {
		summaries = append(summaries, map[string]any{
			"id":                  worker.ID,
			"name":                worker.Name,
			"status":              worker.Status,
			"model":               worker.Model,
			"processed_documents": worker.ProcessedDocuments,
			"errors":              worker.Errors,
			"stale":               s.registry.Stale(worker),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"queue_status": map[string]any{
			"pending":    pending,
			"processing": processing,
			"processed":  processed,
			"errors":     errorCount,
		},
		"workers": summaries,
	})
}

func schemaOrDefault(name string) string {
	if name == "" {
		return "default"
	}
	return name
}
