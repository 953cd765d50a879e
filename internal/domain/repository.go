package domain

import (
	"context"
	"time"
)

// CacheRepository defines the interface for caching operations.
// Entries are insert-if-absent and never overwritten; Delete only evicts corrupt entries.
// A zero TTL stores the entry for the lifetime of the backend.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// SetIfAbsent stores value only when key is not present and reports whether it did
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
}

// ProductClient defines the interface for interacting with the OpenFoodFacts API
type ProductClient interface {
	GetProduct(ctx context.Context, code string) (*ProductRecord, error)
	SearchProduct(ctx context.Context, term string) (*ProductRecord, error)
}

// ProductURLResolver derives the canonical product-page URL for a record.
// It returns an empty string when no URL can be built (e.g. no code).
type ProductURLResolver interface {
	Resolve(ctx context.Context, product *ProductRecord) string
}

// ChatClient sends one system + user exchange to a chat completion service
type ChatClient interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// ChatRequest is a single-turn chat completion request
type ChatRequest struct {
	System string
	User   string
	// JSONSchema, when set, asks the model for structured output with this schema
	JSONSchema map[string]interface{}
	SchemaName string
}
