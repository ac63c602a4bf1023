package api

import (
	"encoding/json"
	"net/http"

	"github.com/sallandpioneers/docflow/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError renders a business-logic rejection. The legacy client
// convention is HTTP 200 with an error field in the body; only missing
// schemas get a real 404.
func writeError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, map[string]any{"error": message})
}

func writeErrorStatus(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

// writeErrorFrom renders a classified rejection. The body carries the
// error kind next to the message so clients match on the kind rather
// than the text.
func writeErrorFrom(w http.ResponseWriter, err error) {
	body := map[string]any{"error": err.Error()}
	if kind := model.KindOf(err); kind != "" {
		body["kind"] = string(kind)
	}
	writeJSON(w, http.StatusOK, body)
}
