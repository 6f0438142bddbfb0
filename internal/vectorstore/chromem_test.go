package vectorstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"lore/internal/config"
	"lore/internal/vectorstore"
)

// unit returns a unit vector of dimension 4 pointing along the given axis,
// nudged so no two axes are orthogonal enough to tie.
func unit(axis int) []float32 {
	v := make([]float32, 4)
	v[axis] = 1
	return v
}

func newTestCollection(t *testing.T) vectorstore.Collection {
	t.Helper()
	store, err := vectorstore.NewChromemStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	col, err := store.GetOrCreateCollection(context.Background(), "code_chunks", vectorstore.SpaceCosine)
	require.NoError(t, err)
	return col
}

func TestChromemAddAndQuery(t *testing.T) {
	ctx := context.Background()
	col := newTestCollection(t)

	err := col.AddDocuments(ctx, []vectorstore.Document{
		{ID: "a.go:1-10", Content: "parses configuration", Embedding: unit(0), Metadata: map[string]string{"file_path": "a.go"}},
		{ID: "b.go:5-20", Content: "walks the filesystem", Embedding: unit(1), Metadata: map[string]string{"file_path": "b.go"}},
	})
	require.NoError(t, err)

	res, err := col.Query(ctx, unit(0), 1)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, "a.go:1-10", res.IDs[0])
	assert.Equal(t, "parses configuration", res.Documents[0])
	assert.Equal(t, "a.go", res.Metadatas[0]["file_path"])
	assert.InDelta(t, 0.0, res.Distances[0], 1e-5)
}

func TestChromemUpsertByID(t *testing.T) {
	ctx := context.Background()
	col := newTestCollection(t)

	doc := vectorstore.Document{
		ID:        "a.go:1-10",
		Content:   "first summary",
		Embedding: unit(0),
		Metadata:  map[string]string{"file_path": "a.go"},
	}
	require.NoError(t, col.AddDocuments(ctx, []vectorstore.Document{doc}))

	doc.Content = "second summary"
	require.NoError(t, col.AddDocuments(ctx, []vectorstore.Document{doc}))

	res, err := col.Query(ctx, unit(0), 10)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len(), "re-adding the same id must overwrite, not duplicate")
	assert.Equal(t, "second summary", res.Documents[0])
}

func TestChromemQueryEmptyCollection(t *testing.T) {
	col := newTestCollection(t)

	res, err := col.Query(context.Background(), unit(0), 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Len())
}

func TestChromemTopKClampedToCount(t *testing.T) {
	ctx := context.Background()
	col := newTestCollection(t)

	require.NoError(t, col.AddDocuments(ctx, []vectorstore.Document{
		{ID: "a.go:1-10", Content: "one", Embedding: unit(0)},
	}))

	res, err := col.Query(ctx, unit(0), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Len())
}

func TestInvalidCollectionName(t *testing.T) {
	store, err := vectorstore.NewChromemStore(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetOrCreateCollection(context.Background(), "bad name!", vectorstore.SpaceCosine)
	assert.ErrorIs(t, err, vectorstore.ErrInvalidCollectionName)
}

func TestNewDispatchesOnProvider(t *testing.T) {
	store, err := vectorstore.New(config.DatabaseConfig{
		Provider:         config.StoreChromem,
		PersistDirectory: t.TempDir(),
	}, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Close())
}
