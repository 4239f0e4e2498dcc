package kb

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kberrors"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
)

const (
	chunkSize    = 1000
	chunkOverlap = 200
)

// collectionName derives the vector store collection name kb_<kb_id> for a
// given KB.
func collectionName(kbID string) string {
	return "kb_" + kbID
}

// indexBuilder rebuilds a KB's vector collection from scratch (C4). The
// contract is delete-then-recreate, never incremental: rerunning it twice
// in a row on unchanged documents produces a collection with the same
// chunk ids and text (P2 idempotence).
type indexBuilder struct {
	store    ports.VectorStore
	embedder ports.EmbeddingService
}

func newIndexBuilder(store ports.VectorStore, embedder ports.EmbeddingService) *indexBuilder {
	return &indexBuilder{store: store, embedder: embedder}
}

// rebuild chunks every document, deletes any existing collection for kbID,
// and creates a fresh one from the chunks. It returns the opened index so
// the retriever can query it immediately without a second open round trip.
func (b *indexBuilder) rebuild(ctx context.Context, kbID string, docs []entities.Document) (ports.Index, error) {
	const op = "indexBuilder.rebuild"

	name := collectionName(kbID)
	exists, err := b.store.CollectionExists(ctx, name)
	if err != nil {
		return nil, kberrors.New(kberrors.VectorStoreError, op, err)
	}
	if exists {
		if err := b.store.DeleteCollection(ctx, name); err != nil {
			return nil, kberrors.New(kberrors.VectorStoreError, op, err)
		}
	}

	var chunks []ports.IndexDocument
	for _, doc := range docs {
		chunks = append(chunks, chunkDocument(doc)...)
	}

	index, err := b.store.CreateIndex(ctx, name, chunks, b.embedder)
	if err != nil {
		return nil, kberrors.New(kberrors.IndexBuildFailed, op, err)
	}
	return index, nil
}

// chunkDocument splits a document's body into overlapping, word-boundary
// snapped windows of chunkSize runes with chunkOverlap runes shared between
// consecutive chunks.
func chunkDocument(doc entities.Document) []ports.IndexDocument {
	text := doc.Original
	if text == "" {
		return nil
	}

	var chunks []ports.IndexDocument
	runes := []rune(text)
	start := 0
	index := 0

	for start < len(runes) {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			snapped := end
			for snapped > start && runes[snapped] != ' ' && runes[snapped] != '\n' {
				snapped--
			}
			if snapped > start {
				end = snapped
			}
		}

		content := string(runes[start:end])
		chunks = append(chunks, ports.IndexDocument{
			ID:       chunkID(doc.ID, index),
			Text:     content,
			Metadata: doc.Metadata(),
		})

		if end >= len(runes) {
			break
		}
		next := end - chunkOverlap
		if next <= start {
			next = end
		}
		start = next
		index++
	}

	return chunks
}

// chunkID derives a stable id from the owning document and chunk position
// so rebuilding from unchanged source text reproduces identical ids.
func chunkID(docID string, index int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", docID, index)))
	return hex.EncodeToString(sum[:])[:16]
}
