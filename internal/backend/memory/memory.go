// Package memory is an in-process backend.Backend for development and tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/dmitrijs2005/tokenkeeper/internal/backend"
	"github.com/dmitrijs2005/tokenkeeper/internal/models"
	"github.com/google/uuid"
)

// Backend keeps documents in a map per namespace.
type Backend struct {
	mu   sync.RWMutex
	docs map[string]map[string]models.Document
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{docs: make(map[string]map[string]models.Document)}
}

// Ready reports whether b was built by a constructor.
func (b *Backend) Ready() bool {
	return b != nil && b.docs != nil
}

func (b *Backend) Query(_ context.Context, namespace string, filters []backend.Filter, opts ...backend.QueryOption) ([]backend.Entity, error) {
	o := backend.ApplyQueryOptions(opts...)

	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []backend.Entity
	for id, doc := range b.docs[namespace] {
		ok, err := backend.Match(doc, filters)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		e := backend.Entity{Key: models.Key{Namespace: namespace, ID: id}}
		if !o.KeysOnly {
			e.Doc = maps.Clone(doc)
		}
		result = append(result, e)
	}
	return result, nil
}

func (b *Backend) Upsert(_ context.Context, key models.Key, doc models.Document) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns, ok := b.docs[key.Namespace]
	if !ok {
		ns = make(map[string]models.Document)
		b.docs[key.Namespace] = ns
	}
	ns[key.ID] = maps.Clone(doc)
	return nil
}

func (b *Backend) Delete(_ context.Context, keys ...models.Key) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, k := range keys {
		delete(b.docs[k.Namespace], k.ID)
	}
	return nil
}

func (b *Backend) AllocateKey(_ context.Context, namespace string) (models.Key, error) {
	return models.Key{Namespace: namespace, ID: uuid.NewString()}, nil
}
