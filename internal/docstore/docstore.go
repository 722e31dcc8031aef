// Package docstore is the narrow document-store surface the API relies on: get by id,
// add, update fields, merge-upsert, equality queries with ordering and a limit, and counts.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a document id does not exist in its collection.
var ErrNotFound = errors.New("document not found")

// OrderByCreated orders by the store-assigned creation time.
const OrderByCreated = "createdAt"

// Document is a stored record. Data never carries the id or creation time; those are
// store-owned and merged back in by Decode.
type Document struct {
	ID        string
	Data      map[string]interface{}
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Decode unmarshals the document into v. The id and createdAt keys are filled from
// the store metadata.
func (d *Document) Decode(v interface{}) error {
	merged := make(map[string]interface{}, len(d.Data)+2)
	for k, val := range d.Data {
		merged[k] = val
	}
	merged["id"] = d.ID
	merged["createdAt"] = d.CreatedAt.UTC().Format(time.RFC3339Nano)

	raw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode document %s: %w", d.ID, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode document %s: %w", d.ID, err)
	}
	return nil
}

// Filter is an equality condition on a top-level field. A nil Value matches an explicit null.
type Filter struct {
	Field string
	Value interface{}
}

// Eq builds an equality filter.
func Eq(field string, value interface{}) Filter {
	return Filter{Field: field, Value: value}
}

// Query selects documents from one collection.
type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Desc       bool
	Limit      int
}

// Store is implemented by Postgres and Memory.
type Store interface {
	Get(ctx context.Context, collection, id string) (*Document, error)
	// Add stores fields as a new document with a generated id.
	Add(ctx context.Context, collection string, fields interface{}) (*Document, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields interface{}) (*Document, error)
	// Set merges fields into the document, creating it when absent.
	Set(ctx context.Context, collection, id string, fields interface{}) (*Document, error)
	Find(ctx context.Context, q Query) ([]Document, error)
	Count(ctx context.Context, collection string, where ...Filter) (int, error)
}

// Fields accepts a map or any JSON-object-encodable struct and returns it as a
// normalized map. The id and createdAt keys are dropped.
func Fields(v interface{}) (map[string]interface{}, error) {
	out, err := normalize(v)
	if err != nil {
		return nil, err
	}
	delete(out, "id")
	delete(out, "createdAt")
	return out, nil
}

func normalize(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("fields must encode to a JSON object: %w", err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}

func filterObject(where []Filter) (map[string]interface{}, error) {
	obj := make(map[string]interface{}, len(where))
	for _, f := range where {
		if f.Field == "" {
			return nil, errors.New("filter field must not be empty")
		}
		if f.Field == "id" || f.Field == OrderByCreated {
			return nil, fmt.Errorf("cannot filter on store-owned field %q", f.Field)
		}
		obj[f.Field] = f.Value
	}
	return normalize(obj)
}
