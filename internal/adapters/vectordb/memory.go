package vectordb

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
)

// InMemoryStore is a process-local ports.VectorStore with no persistence,
// useful for development and for tests that should not touch disk or a
// network service.
type InMemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]memoryPoint
}

type memoryPoint struct {
	text     string
	metadata map[string]string
	vector   []float32
}

// NewInMemoryStore creates a new in-memory vector store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{collections: make(map[string][]memoryPoint)}
}

func (s *InMemoryStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *InMemoryStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, name)
	return nil
}

func (s *InMemoryStore) CreateIndex(ctx context.Context, collection string, docs []ports.IndexDocument, embed ports.EmbeddingService) (ports.Index, error) {
	points := make([]memoryPoint, len(docs))
	for i, d := range docs {
		vec, err := embed.Embed(ctx, d.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %s: %w", d.ID, err)
		}
		points[i] = memoryPoint{text: d.Text, metadata: d.Metadata, vector: vec}
	}

	s.mu.Lock()
	s.collections[collection] = points
	s.mu.Unlock()

	return &memoryIndex{store: s, collection: collection, embedder: embed}, nil
}

func (s *InMemoryStore) OpenIndex(ctx context.Context, collection string, embed ports.EmbeddingService) (ports.Index, error) {
	s.mu.RLock()
	_, ok := s.collections[collection]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	return &memoryIndex{store: s, collection: collection, embedder: embed}, nil
}

type memoryIndex struct {
	store      *InMemoryStore
	collection string
	embedder   ports.EmbeddingService
}

func (idx *memoryIndex) Query(ctx context.Context, text string, topK int) ([]entities.RetrievalResult, error) {
	queryVec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	idx.store.mu.RLock()
	points := idx.store.collections[idx.collection]
	idx.store.mu.RUnlock()

	type scored struct {
		result entities.RetrievalResult
		score  float64
	}
	scoredPoints := make([]scored, len(points))
	for i, p := range points {
		score := cosineSimilarity(queryVec, p.vector)
		scoredPoints[i] = scored{result: entities.RetrievalResult{Text: p.text, Score: score, Metadata: p.metadata}, score: score}
	}

	sort.Slice(scoredPoints, func(i, j int) bool { return scoredPoints[i].score > scoredPoints[j].score })
	if topK > 0 && len(scoredPoints) > topK {
		scoredPoints = scoredPoints[:topK]
	}

	out := make([]entities.RetrievalResult, len(scoredPoints))
	for i, s := range scoredPoints {
		out[i] = s.result
	}
	return out, nil
}
