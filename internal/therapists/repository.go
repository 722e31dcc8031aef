package therapists

import (
	"context"
	"errors"
	"fmt"

	"mindsage/internal/docstore"
)

var (
	ErrTherapistNotFound  = errors.New("therapist not found")
	ErrStorageUnavailable = errors.New("object storage is not configured")
)

// Repository maps therapists onto the document store.
type Repository struct {
	store docstore.Store
}

func NewRepository(store docstore.Store) *Repository {
	return &Repository{store: store}
}

// ListActive returns active therapists, newest first.
func (r *Repository) ListActive(ctx context.Context) ([]Therapist, error) {
	docs, err := r.store.Find(ctx, docstore.Query{
		Collection: collection,
		Where:      []docstore.Filter{docstore.Eq("isActive", true)},
		OrderBy:    docstore.OrderByCreated,
		Desc:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("list therapists: %w", err)
	}

	out := make([]Therapist, 0, len(docs))
	for i := range docs {
		var t Therapist
		if err := docs[i].Decode(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Get returns the therapist whatever its isActive flag.
func (r *Repository) Get(ctx context.Context, id string) (*Therapist, error) {
	doc, err := r.store.Get(ctx, collection, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrTherapistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get therapist: %w", err)
	}
	return decode(doc)
}

func (r *Repository) Create(ctx context.Context, t Therapist) (*Therapist, error) {
	doc, err := r.store.Add(ctx, collection, t)
	if err != nil {
		return nil, fmt.Errorf("create therapist: %w", err)
	}
	return decode(doc)
}

func (r *Repository) Update(ctx context.Context, id string, fields map[string]interface{}) (*Therapist, error) {
	doc, err := r.store.Update(ctx, collection, id, fields)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrTherapistNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update therapist: %w", err)
	}
	return decode(doc)
}

func decode(doc *docstore.Document) (*Therapist, error) {
	var t Therapist
	if err := doc.Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}
