package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"
)

// ChromemStore implements Store using chromem-go, an embeddable pure-Go
// vector database with gob-file persistence. It is the default backend: no
// external service and no CGO.
//
// chromem computes cosine similarity only, so the similarity space argument
// is ignored (cosine is what the summarizer index wants anyway). Documents
// added under an existing ID replace the stored record.
type ChromemStore struct {
	db     *chromem.DB
	logger *zap.Logger
}

// NewChromemStore opens (or creates) a persistent chromem DB under dir.
func NewChromemStore(dir string, logger *zap.Logger) (*ChromemStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	path := filepath.Join(dir, "chromem")
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create store directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, false)
	if err != nil {
		return nil, fmt.Errorf("%w: open chromem db: %v", ErrStore, err)
	}

	logger.Debug("chromem store opened", zap.String("path", path))
	return &ChromemStore{db: db, logger: logger}, nil
}

// embeddings are always precomputed by the caller; chromem must never fall
// back to its own embedding function.
func precomputedOnly(ctx context.Context, text string) ([]float32, error) {
	return nil, fmt.Errorf("%w: no embedding provided for document", ErrStore)
}

// GetOrCreateCollection returns the named collection, creating it if needed.
func (s *ChromemStore) GetOrCreateCollection(ctx context.Context, name string, space SimilaritySpace) (Collection, error) {
	if err := validateCollectionName(name); err != nil {
		return nil, err
	}
	col, err := s.db.GetOrCreateCollection(name, nil, precomputedOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: get or create collection %s: %v", ErrStore, name, err)
	}
	return &chromemCollection{col: col, logger: s.logger.With(zap.String("collection", name))}, nil
}

// Close is a no-op: chromem persists synchronously on write.
func (s *ChromemStore) Close() error { return nil }

type chromemCollection struct {
	col    *chromem.Collection
	logger *zap.Logger
}

func (c *chromemCollection) AddDocuments(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	converted := make([]chromem.Document, len(docs))
	for i, d := range docs {
		converted[i] = chromem.Document{
			ID:        d.ID,
			Content:   d.Content,
			Embedding: d.Embedding,
			Metadata:  d.Metadata,
		}
	}
	if err := c.col.AddDocuments(ctx, converted, 1); err != nil {
		return fmt.Errorf("%w: add documents: %v", ErrStore, err)
	}
	return nil
}

func (c *chromemCollection) Query(ctx context.Context, embedding []float32, topK int) (QueryResult, error) {
	// chromem rejects nResults greater than the collection size.
	count := c.col.Count()
	if count == 0 {
		return QueryResult{}, nil
	}
	if topK > count {
		topK = count
	}

	results, err := c.col.QueryEmbedding(ctx, embedding, topK, nil, nil)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: query: %v", ErrStore, err)
	}

	out := QueryResult{
		Documents: make([]string, len(results)),
		Metadatas: make([]map[string]string, len(results)),
		IDs:       make([]string, len(results)),
		Distances: make([]float32, len(results)),
	}
	for i, r := range results {
		out.Documents[i] = r.Content
		out.Metadatas[i] = r.Metadata
		out.IDs[i] = r.ID
		// chromem reports cosine similarity; callers get distance.
		out.Distances[i] = 1 - r.Similarity
	}
	return out, nil
}
