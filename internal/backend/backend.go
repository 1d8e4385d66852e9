// Package backend declares the persistence contract the token store relies
// on: a namespaced key/document store with filtered point lookups, upsert by
// key, delete by key and key allocation.
//
// Implementations only need per-call atomicity. The store never asks a
// backend for a transaction spanning several calls.
package backend

import (
	"context"

	"github.com/dmitrijs2005/tokenkeeper/internal/models"
)

// Operator is a filter comparison.
type Operator string

const (
	OpEqual   Operator = "="
	OpGreater Operator = ">"
)

// Filter restricts a query to documents whose Field compares to Value.
type Filter struct {
	Field string
	Op    Operator
	Value any
}

// Eq builds an equality filter.
func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

// Gt builds a greater-than filter.
func Gt(field string, value any) Filter {
	return Filter{Field: field, Op: OpGreater, Value: value}
}

// Entity is a query result. Doc is nil for keys-only queries.
type Entity struct {
	Key models.Key
	Doc models.Document
}

// QueryOptions are the optional query settings.
type QueryOptions struct {
	KeysOnly bool
}

// QueryOption mutates QueryOptions.
type QueryOption func(*QueryOptions)

// KeysOnly asks the backend to return keys without documents.
func KeysOnly() QueryOption {
	return func(o *QueryOptions) { o.KeysOnly = true }
}

// ApplyQueryOptions folds opts into a QueryOptions value.
func ApplyQueryOptions(opts ...QueryOption) QueryOptions {
	var o QueryOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// Backend is the capability surface the store needs.
type Backend interface {
	// Query returns every entity of namespace matching all filters.
	Query(ctx context.Context, namespace string, filters []Filter, opts ...QueryOption) ([]Entity, error)

	// Upsert writes doc under key, replacing any previous document.
	Upsert(ctx context.Context, key models.Key, doc models.Document) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...models.Key) error

	// AllocateKey returns a fresh key in namespace.
	AllocateKey(ctx context.Context, namespace string) (models.Key, error)
}
