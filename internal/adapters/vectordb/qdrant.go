package vectordb

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore is the primary vector store (D3): every collection is named
// kb_<kb_id> and carries a single unnamed dense vector per point, matching
// the delete-then-recreate rebuild contract of the Index Builder.
type QdrantStore struct {
	client     *qdrant.Client
	vectorSize uint64
	distance   qdrant.Distance
}

// NewQdrantStore dials a Qdrant instance. vectorSize must match the
// embedding model's output dimensionality.
func NewQdrantStore(host string, port int, vectorSize uint64) (*QdrantStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant: %w", err)
	}
	return &QdrantStore{client: client, vectorSize: vectorSize, distance: qdrant.Distance_Cosine}, nil
}

// CollectionExists reports whether the named collection is present.
func (s *QdrantStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	return s.client.CollectionExists(ctx, name)
}

// DeleteCollection drops a collection outright.
func (s *QdrantStore) DeleteCollection(ctx context.Context, name string) error {
	return s.client.DeleteCollection(ctx, name)
}

// CreateIndex creates a fresh collection, embeds and upserts every doc, and
// returns a handle that can query it. The caller is responsible for having
// already deleted any prior collection with this name.
func (s *QdrantStore) CreateIndex(ctx context.Context, collection string, docs []ports.IndexDocument, embed ports.EmbeddingService) (ports.Index, error) {
	err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     s.vectorSize,
			Distance: s.distance,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	if len(docs) > 0 {
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Text
		}
		vectors, err := embed.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding batch: %w", err)
		}

		points := make([]*qdrant.PointStruct, len(docs))
		for i, d := range docs {
			payload := map[string]*qdrant.Value{
				"chunk_id": qdrant.NewValueString(d.ID),
				"text":     qdrant.NewValueString(d.Text),
			}
			for k, v := range d.Metadata {
				payload[k] = qdrant.NewValueString(v)
			}
			points[i] = &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(chunkPointID(d.ID)),
				Vectors: qdrant.NewVectors(vectors[i]...),
				Payload: payload,
			}
		}

		_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Points:         points,
		})
		if err != nil {
			return nil, fmt.Errorf("upserting points: %w", err)
		}
	}

	return &qdrantIndex{client: s.client, collection: collection, embedder: embed}, nil
}

// OpenIndex returns a handle to an already-built collection.
func (s *QdrantStore) OpenIndex(ctx context.Context, collection string, embed ports.EmbeddingService) (ports.Index, error) {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	return &qdrantIndex{client: s.client, collection: collection, embedder: embed}, nil
}

// chunkPointID maps a chunk's stable hash id to a deterministic UUID, since
// Qdrant point ids must be either an integer or a UUID.
func chunkPointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

type qdrantIndex struct {
	client     *qdrant.Client
	collection string
	embedder   ports.EmbeddingService
}

// Query embeds text and runs a nearest-neighbor search, returning the topK
// hits ordered by descending score.
func (idx *qdrantIndex) Query(ctx context.Context, text string, topK int) ([]entities.RetrievalResult, error) {
	vec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	limit := uint64(topK)
	if limit == 0 {
		limit = 10
	}

	points, err := idx.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQuery(vec...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}

	results := make([]entities.RetrievalResult, 0, len(points))
	for _, p := range points {
		meta := map[string]string{}
		text := ""
		for k, v := range p.Payload {
			if k == "text" {
				text = v.GetStringValue()
				continue
			}
			meta[k] = v.GetStringValue()
		}
		results = append(results, entities.RetrievalResult{
			Text:     text,
			Score:    float64(p.GetScore()),
			Metadata: meta,
		})
	}
	return results, nil
}
