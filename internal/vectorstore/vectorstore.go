// Package vectorstore defines the vector storage boundary and its backends.
//
// The core needs exactly four operations from a vector store: get or create
// a named collection, add documents with precomputed embeddings, query by
// embedding for nearest neighbors, and close. Everything else (index
// structures, persistence formats) belongs to the backend.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"lore/internal/config"
)

// Sentinel errors for vector store operations.
var (
	// ErrStore indicates a backend failure (connection, write, query).
	ErrStore = errors.New("vector store error")

	// ErrCollectionNotFound is returned when a collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// SimilaritySpace selects the distance function for a collection.
type SimilaritySpace string

const (
	SpaceCosine SimilaritySpace = "cosine"
	SpaceL2     SimilaritySpace = "l2"
)

// Document is a stored record: a text document with its embedding and
// denormalized metadata. The ID is the primary key; adding a document with
// an existing ID replaces the previous record (upsert-by-id).
type Document struct {
	ID        string
	Content   string
	Embedding []float32
	Metadata  map[string]string
}

// QueryResult holds nearest-neighbor results in increasing distance order.
// The slices are parallel.
type QueryResult struct {
	Documents []string
	Metadatas []map[string]string
	IDs       []string
	Distances []float32
}

// Len returns the number of results.
func (r QueryResult) Len() int { return len(r.IDs) }

// Collection is a namespace of documents supporting upsert and
// nearest-neighbor query.
type Collection interface {
	// AddDocuments upserts documents by ID.
	AddDocuments(ctx context.Context, docs []Document) error
	// Query returns up to topK nearest documents by embedding distance.
	Query(ctx context.Context, embedding []float32, topK int) (QueryResult, error)
}

// Store owns collections and the underlying persistence.
type Store interface {
	// GetOrCreateCollection returns the named collection, creating it with
	// the given similarity space if it does not exist.
	GetOrCreateCollection(ctx context.Context, name string, space SimilaritySpace) (Collection, error)
	// Close releases backend resources.
	Close() error
}

var collectionNameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,128}$`)

// validateCollectionName rejects names that cannot be used safely across
// backends (the sqlite backend derives table names from them).
func validateCollectionName(name string) error {
	if !collectionNameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// New creates a store for the configured backend. The provider set is
// closed; config validation guarantees the name is one of the variants.
func New(cfg config.DatabaseConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Provider {
	case config.StoreChromem:
		return NewChromemStore(cfg.PersistDirectory, logger)
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.PersistDirectory, logger)
	default:
		return nil, fmt.Errorf("%w: database provider %q", config.ErrUnsupportedProvider, cfg.Provider)
	}
}
