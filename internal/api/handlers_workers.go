package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sallandpioneers/docflow/internal/model"
)

type registerRequest struct {
	WorkerName string `json:"worker_name"`
	APIURL     string `json:"api_url"`
	Model      string `json:"model"`
	APIKey     string `json:"api_key"`
	ProcessID  string `json:"process_id"`
}

func (s *Server) handleRegisterWorker(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid registration body")
		return
	}

	worker, warning, err := s.registry.Register(r.Context(), req.WorkerName, req.APIURL, req.Model, req.APIKey, req.ProcessID)
	if err != nil {
		if kind := model.KindOf(err); kind != "" {
			writeErrorFrom(w, err)
			return
		}
		s.logger.Printf("Registration failed: %v", err)
		writeError(w, "Failed to register worker")
		return
	}

	s.logger.Printf("Worker registered: %s (%s)", worker.Name, worker.ID)

	resp := map[string]any{
		"status":    "Worker registered",
		"worker_id": worker.ID,
		"config": map[string]any{
			"api_url": worker.APIURL,
			"model":   worker.Model,
		},
	}
	if warning != "" {
		resp["warning"] = warning
	}
	writeJSON(w, http.StatusOK, resp)
}

type heartbeatRequest struct {
	WorkerID   string `json:"worker_id"`
	Status     string `json:"status"`
	DocumentID string `json:"document_id"`
}

func (s *Server) handleWorkerHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req heartbeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid heartbeat body")
		return
	}
	if req.WorkerID == "" {
		writeError(w, "Worker ID is required")
		return
	}

	command, err := s.registry.Heartbeat(r.Context(), req.WorkerID, model.WorkerState(req.Status), req.DocumentID)
	if err != nil {
		if kind := model.KindOf(err); kind != "" {
			writeErrorFrom(w, err)
			return
		}
		s.logger.Printf("Heartbeat failed for %s: %v", req.WorkerID, err)
		writeError(w, "Failed to process heartbeat")
		return
	}

	if command != "" {
		writeJSON(w, http.StatusOK, map[string]any{"command": command})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "Heartbeat received"})
}

func (s *Server) handleStopWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	if err := s.registry.Stop(r.Context(), workerID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "Worker stopped",
		"worker_id": workerID,
	})
}

func (s *Server) handleStartWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	if err := s.registry.Start(r.Context(), workerID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "Worker started",
		"worker_id": workerID,
	})
}

// handleRemoveWorker requests a graceful shutdown: the worker record
// moves to REMOVING and the worker exits at its next heartbeat.
func (s *Server) handleRemoveWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	if err := s.registry.MarkRemoving(r.Context(), workerID); err != nil {
		writeErrorFrom(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "Worker removal requested",
		"worker_id": workerID,
	})
}

func (s *Server) handleForceRemoveWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	if err := s.registry.ForceRemove(r.Context(), workerID); err != nil {
		writeErrorFrom(w, err)
		return
	}

	s.logger.Printf("Worker forcefully removed: %s", workerID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "Worker forcefully removed",
		"worker_id": workerID,
	})
}

func (s *Server) handleGetWorker(w http.ResponseWriter, r *http.Request) {
	workerID := chi.URLParam(r, "workerID")

	worker, err := s.registry.Get(r.Context(), workerID)
	if err != nil {
		if kind := model.KindOf(err); kind != "" {
			writeErrorFrom(w, err)
			return
		}
		s.logger.Printf("Worker lookup failed for %s: %v", workerID, err)
		writeError(w, "Worker not found")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"worker": worker,
		"stats": map[string]any{
			"processed_documents": worker.ProcessedDocuments,
			"errors":              worker.Errors,
			"uptime":              model.Now() - worker.RegisteredAt,
			"stale":               s.registry.Stale(worker),
		},
	})
}
