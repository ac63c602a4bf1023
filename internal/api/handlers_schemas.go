package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sallandpioneers/docflow/internal/model"
)

type addSchemaRequest struct {
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content"`
}

func (s *Server) handleAddSchema(w http.ResponseWriter, r *http.Request) {
	var req addSchemaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "Invalid schema body")
		return
	}
	if req.Name == "" {
		writeError(w, "Schema name is required")
		return
	}

	var content map[string]any
	if err := json.Unmarshal(req.Content, &content); err != nil || content == nil {
		writeError(w, "Schema content must be a JSON object")
		return
	}

	schema, err := s.schemas.Put(r.Context(), req.Name, content)
	if err != nil {
		if kind := model.KindOf(err); kind != "" {
			writeErrorFrom(w, err)
			return
		}
		s.logger.Printf("Failed to add schema: %v", err)
		writeError(w, "Failed to add schema")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Schema added successfully",
		"name":   schema.Name,
	})
}

func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	schemas, err := s.schemas.List(r.Context())
	if err != nil {
		s.logger.Printf("Failed to list schemas: %v", err)
		writeError(w, "Failed to retrieve schemas")
		return
	}

	summaries := make([]map[string]any, 0, len(schemas))
	for _, schema := range schemas {
		summaries = append(summaries, map[string]any{
			"name":       schema.Name,
			"created_at": schema.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"schemas": summaries})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	schema, err := s.schemas.Get(r.Context(), name)
	if err != nil {
		if model.IsKind(err, model.KindNotFound) {
			writeErrorStatus(w, http.StatusNotFound, "Schema not found")
			return
		}
		s.logger.Printf("Failed to get schema %s: %v", name, err)
		writeError(w, "Failed to retrieve schema")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name":       schema.Name,
		"content":    schema.Content,
		"created_at": schema.CreatedAt,
	})
}

func (s *Server) handleDeleteSchema(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.schemas.Delete(r.Context(), name); err != nil {
		if model.IsKind(err, model.KindNotFound) {
			writeErrorStatus(w, http.StatusNotFound, "Schema not found")
			return
		}
		s.logger.Printf("Failed to delete schema %s: %v", name, err)
		writeError(w, "Failed to delete schema")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "Schema deleted successfully",
		"name":   name,
	})
}
