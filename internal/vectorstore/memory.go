package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"
)

// memoryVectorStore 内存向量存储，用于测试和无外部依赖的本地运行
type memoryVectorStore struct {
	mu     sync.RWMutex
	points map[string]Point
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore() VectorStore {
	return &memoryVectorStore{
		points: make(map[string]Point),
	}
}

func (s *memoryVectorStore) EnsureCollection(ctx context.Context) error {
	return nil
}

func (s *memoryVectorStore) ExistsForSource(ctx context.Context, source string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.points {
		if p.Source == source {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryVectorStore) Upsert(ctx context.Context, points []Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		s.points[p.ID] = p
	}
	return nil
}

func (s *memoryVectorStore) DeleteBySource(ctx context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.points {
		if p.Source == source {
			delete(s.points, id)
		}
	}
	return nil
}

func (s *memoryVectorStore) Search(ctx context.Context, vector []float32, limit int) ([]SearchMatch, error) {
	if len(vector) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]SearchMatch, 0, len(s.points))
	for _, p := range s.points {
		matches = append(matches, SearchMatch{
			ID:         p.ID,
			Score:      cosineSimilarity(vector, p.Vector),
			Text:       p.Text,
			Source:     p.Source,
			ChunkIndex: p.ChunkIndex,
			Metadata:   make(map[string]interface{}),
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *memoryVectorStore) Ready() bool {
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, normA, normB float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
