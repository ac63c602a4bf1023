package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sallandpioneers/docflow/internal/model"
)

const (
	schemaKeyPrefix = "schema:"
	schemasSetKey   = "available_schemas"
)

// Registry stores named JSON schemas. Names are unique; re-adding an
// existing name is a conflict, not an overwrite.
type Registry struct {
	rdb *redis.Client
}

func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

// Put adds a schema. Content must be a JSON object.
func (r *Registry) Put(ctx context.Context, name string, content map[string]any) (*model.Schema, error) {
	if name == "" {
		return nil, model.Errorf(model.KindValidation, "Schema name is required")
	}
	if content == nil {
		return nil, model.Errorf(model.KindValidation, "Schema content must be a JSON object")
	}

	exists, err := r.rdb.SIsMember(ctx, schemasSetKey, name).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check schema set: %w", err)
	}
	if exists {
		return nil, model.Errorf(model.KindConflict, "Schema already exists: %s", name)
	}

	schema := &model.Schema{
		Name:      name,
		Content:   content,
		CreatedAt: model.Now(),
	}
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, schemaKeyPrefix+name, data, 0)
	pipe.SAdd(ctx, schemasSetKey, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save schema: %w", err)
	}
	return schema, nil
}

// Get returns a schema by name.
func (r *Registry) Get(ctx context.Context, name string) (*model.Schema, error) {
	exists, err := r.rdb.SIsMember(ctx, schemasSetKey, name).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check schema set: %w", err)
	}
	if !exists {
		return nil, model.Errorf(model.KindNotFound, "Schema not found")
	}

	data, err := r.rdb.Get(ctx, schemaKeyPrefix+name).Result()
	if err == redis.Nil {
		return nil, model.Errorf(model.KindNotFound, "Schema not found")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}

	var schema model.Schema
	if err := json.Unmarshal([]byte(data), &schema); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema: %w", err)
	}
	return &schema, nil
}

// Delete removes a schema. Queued documents that still reference it
// fail later at extraction time; deletion does not block on them.
func (r *Registry) Delete(ctx context.Context, name string) error {
	exists, err := r.rdb.SIsMember(ctx, schemasSetKey, name).Result()
	if err != nil {
		return fmt.Errorf("failed to check schema set: %w", err)
	}
	if !exists {
		return model.Errorf(model.KindNotFound, "Schema not found")
	}

	pipe := r.rdb.Pipeline()
	pipe.Del(ctx, schemaKeyPrefix+name)
	pipe.SRem(ctx, schemasSetKey, name)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete schema: %w", err)
	}
	return nil
}

// List returns all stored schemas.
func (r *Registry) List(ctx context.Context) ([]*model.Schema, error) {
	names, err := r.rdb.SMembers(ctx, schemasSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}

	schemas := make([]*model.Schema, 0, len(names))
	for _, name := range names {
		schema, err := r.Get(ctx, name)
		if err != nil {
			continue
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}
