package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is an in-process Store. Documents are copied on the way in and out.
type Memory struct {
	mu   sync.RWMutex
	now  func() time.Time
	seq  int64
	data map[string]map[string]*memDoc
}

type memDoc struct {
	doc Document
	seq int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		now:  time.Now,
		data: make(map[string]map[string]*memDoc),
	}
}

// WithClock replaces the time source used for createdAt and updatedAt.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(d.doc), nil
}

func (m *Memory) Add(_ context.Context, collection string, fields interface{}) (*Document, error) {
	data, err := Fields(fields)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	doc := Document{ID: uuid.NewString(), Data: data, CreatedAt: now, UpdatedAt: now}
	m.put(collection, doc)
	return copyDoc(doc), nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields interface{}) (*Document, error) {
	data, err := Fields(fields)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.data[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	for k, v := range data {
		d.doc.Data[k] = v
	}
	d.doc.UpdatedAt = m.now()
	return copyDoc(d.doc), nil
}

func (m *Memory) Set(_ context.Context, collection, id string, fields interface{}) (*Document, error) {
	data, err := Fields(fields)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if d, ok := m.data[collection][id]; ok {
		for k, v := range data {
			d.doc.Data[k] = v
		}
		d.doc.UpdatedAt = m.now()
		return copyDoc(d.doc), nil
	}

	now := m.now()
	doc := Document{ID: id, Data: data, CreatedAt: now, UpdatedAt: now}
	m.put(collection, doc)
	return copyDoc(doc), nil
}

func (m *Memory) Find(_ context.Context, q Query) ([]Document, error) {
	where, err := filterObject(q.Where)
	if err != nil {
		return nil, err
	}

	// Documents are mutated in place by Update and Set, so sorting and copying must
	// happen under the lock too.
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*memDoc, 0)
	for _, d := range m.data[q.Collection] {
		if contains(d.doc.Data, where) {
			matched = append(matched, d)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if q.OrderBy == "" {
			return a.seq < b.seq
		}
		c := compareField(a, b, q.OrderBy)
		if c == 0 {
			c = compareInt(a.seq, b.seq)
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}

	out := make([]Document, 0, len(matched))
	for _, d := range matched {
		out = append(out, *copyDoc(d.doc))
	}
	return out, nil
}

func (m *Memory) Count(ctx context.Context, collection string, where ...Filter) (int, error) {
	docs, err := m.Find(ctx, Query{Collection: collection, Where: where})
	if err != nil {
		return 0, err
	}
	return len(docs), nil
}

func (m *Memory) put(collection string, doc Document) {
	coll, ok := m.data[collection]
	if !ok {
		coll = make(map[string]*memDoc)
		m.data[collection] = coll
	}
	m.seq++
	coll[doc.ID] = &memDoc{doc: doc, seq: m.seq}
}

// contains mirrors JSONB containment for top-level keys: every filter key must be
// present with an equal value.
func contains(data, where map[string]interface{}) bool {
	for k, want := range where {
		got, ok := data[k]
		if !ok || !reflect.DeepEqual(got, want) {
			return false
		}
	}
	return true
}

func compareField(a, b *memDoc, field string) int {
	if field == OrderByCreated {
		switch {
		case a.doc.CreatedAt.Before(b.doc.CreatedAt):
			return -1
		case a.doc.CreatedAt.After(b.doc.CreatedAt):
			return 1
		}
		return 0
	}

	av, bv := a.doc.Data[field], b.doc.Data[field]
	switch x := av.(type) {
	case float64:
		if y, ok := bv.(float64); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	case string:
		if y, ok := bv.(string); ok {
			switch {
			case x < y:
				return -1
			case x > y:
				return 1
			}
			return 0
		}
	}
	return compareString(fmt.Sprint(av), fmt.Sprint(bv))
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareString(a, b string) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func copyDoc(d Document) *Document {
	raw, _ := json.Marshal(d.Data)
	var data map[string]interface{}
	_ = json.Unmarshal(raw, &data)
	if data == nil {
		data = map[string]interface{}{}
	}
	d.Data = data
	return &d
}
