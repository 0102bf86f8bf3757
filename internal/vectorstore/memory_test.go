package vectorstore

import (
	"context"
	"regexp"
	"testing"

	"github.com/aihub/ragpdf-go/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uuidFormat = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func TestPointID_Deterministic(t *testing.T) {
	id1 := PointID("report.pdf", 0)
	id2 := PointID("report.pdf", 0)
	assert.Equal(t, id1, id2)

	// 不同文件或不同序号产生不同ID
	assert.NotEqual(t, id1, PointID("report.pdf", 1))
	assert.NotEqual(t, id1, PointID("other.pdf", 0))
}

func TestPointID_UUIDFormat(t *testing.T) {
	id := PointID("report.pdf", 42)
	assert.Regexp(t, uuidFormat, id)
}

func TestMemoryStore_UpsertAndSearch(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	points := []Point{
		{ID: PointID("a.pdf", 0), Vector: []float32{1, 0, 0}, Text: "first chunk", Source: "a.pdf", ChunkIndex: 0},
		{ID: PointID("a.pdf", 1), Vector: []float32{0, 1, 0}, Text: "second chunk", Source: "a.pdf", ChunkIndex: 1},
		{ID: PointID("b.pdf", 0), Vector: []float32{0.9, 0.1, 0}, Text: "other doc", Source: "b.pdf", ChunkIndex: 0},
	}
	require.NoError(t, store.Upsert(ctx, points))

	matches, err := store.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "first chunk", matches[0].Text)
	assert.Equal(t, "other doc", matches[1].Text)
	assert.Greater(t, matches[0].Score, matches[1].Score)
}

func TestMemoryStore_UpsertOverwritesSameID(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	id := PointID("a.pdf", 0)
	require.NoError(t, store.Upsert(ctx, []Point{{ID: id, Vector: []float32{1, 0}, Text: "old", Source: "a.pdf"}}))
	require.NoError(t, store.Upsert(ctx, []Point{{ID: id, Vector: []float32{1, 0}, Text: "new", Source: "a.pdf"}}))

	matches, err := store.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "new", matches[0].Text)
}

func TestMemoryStore_ExistsForSource(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	exists, err := store.ExistsForSource(ctx, "a.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.Upsert(ctx, []Point{{ID: "x", Vector: []float32{1}, Source: "a.pdf"}}))

	exists, err = store.ExistsForSource(ctx, "a.pdf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStore_DeleteBySource(t *testing.T) {
	store := NewMemoryVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, []Point{
		{ID: "x", Vector: []float32{1}, Source: "a.pdf"},
		{ID: "y", Vector: []float32{1}, Source: "b.pdf"},
	}))
	require.NoError(t, store.DeleteBySource(ctx, "a.pdf"))

	exists, err := store.ExistsForSource(ctx, "a.pdf")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = store.ExistsForSource(ctx, "b.pdf")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMemoryStore_SearchEmptyVector(t *testing.T) {
	store := NewMemoryVectorStore()

	matches, err := store.Search(context.Background(), nil, 5)
	require.NoError(t, err)
	assert.Nil(t, matches)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{1, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestNewVectorStore_Providers(t *testing.T) {
	_, err := NewVectorStore(config.VectorStoreConfig{Provider: "bogus"})
	assert.Error(t, err)

	store, err := NewVectorStore(config.VectorStoreConfig{Provider: "memory"})
	require.NoError(t, err)
	assert.True(t, store.Ready())
}
