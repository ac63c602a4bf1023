package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sallandpioneers/docflow/internal/model"
)

// Getter looks up schema content by name. The worker's coordinator
// client implements this over the HTTP API.
type Getter interface {
	SchemaContent(ctx context.Context, name string) (map[string]any, error)
}

// Resolver resolves a schema name for a job: coordinator first, then a
// local schema directory as fallback. A miss in both places is an
// error the worker records as an error outcome.
type Resolver struct {
	remote Getter
	dir    string
}

func NewResolver(remote Getter, dir string) *Resolver {
	return &Resolver{remote: remote, dir: dir}
}

// Resolve returns the schema content for name, or (nil, nil) when the
// job carries no schema and general extraction applies.
func (r *Resolver) Resolve(ctx context.Context, name string) (map[string]any, error) {
	if name == "" || name == "*" {
		return nil, nil
	}

	content, err := r.remote.SchemaContent(ctx, name)
	if err == nil {
		return content, nil
	}
	if !model.IsKind(err, model.KindNotFound) {
		return nil, err
	}

	// Filesystem fallback: <dir>/<name>.json
	if r.dir != "" {
		path := filepath.Join(r.dir, name+".json")
		data, readErr := os.ReadFile(path)
		if readErr == nil {
			var content map[string]any
			if err := json.Unmarshal(data, &content); err != nil {
				return nil, fmt.Errorf("schema file %s is not a JSON object: %w", path, err)
			}
			return content, nil
		}
	}

	return nil, fmt.Errorf("schema not found: %q is missing from the coordinator and the schema directory", name)
}
