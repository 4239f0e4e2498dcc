package kb

import (
	"context"
	"sort"
	"sync"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kberrors"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
	"go.uber.org/zap"
)

// retriever fans a single query out across one or more KBs and merges the
// results by descending score (C5). Knowledge bases are independent: one
// KB's failure to open does not prevent results from the others (P3).
type retriever struct {
	statusStore ports.StatusStore
	vectorStore ports.VectorStore
	embedder    ports.EmbeddingService
	builder     *indexBuilder
	logger      *zap.Logger

	mu      sync.Mutex
	indexes map[string]ports.Index
}

func newRetriever(statusStore ports.StatusStore, vectorStore ports.VectorStore, embedder ports.EmbeddingService, builder *indexBuilder, logger *zap.Logger) *retriever {
	return &retriever{
		statusStore: statusStore,
		vectorStore: vectorStore,
		embedder:    embedder,
		builder:     builder,
		logger:      logger,
		indexes:     map[string]ports.Index{},
	}
}

// openIndex returns a cached index handle for kbID, opening it against the
// vector store on first use. Index handles are cheap to keep around: they
// hold no per-query state.
func (r *retriever) openIndex(ctx context.Context, kbID string) (ports.Index, error) {
	r.mu.Lock()
	if idx, ok := r.indexes[kbID]; ok {
		r.mu.Unlock()
		return idx, nil
	}
	r.mu.Unlock()

	idx, err := r.vectorStore.OpenIndex(ctx, collectionName(kbID), r.embedder)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.indexes[kbID] = idx
	r.mu.Unlock()
	return idx, nil
}

// invalidate drops a cached index, called by the Manager when a KB is
// re-enabled or deleted, so the next query reopens against the vector store
// instead of reusing a handle pinned to an older or deleted collection.
func (r *retriever) invalidate(kbID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, kbID)
}

// setIndex seeds the cache directly with an index the caller just built,
// avoiding a redundant OpenIndex round trip right after rebuild.
func (r *retriever) setIndex(kbID string, idx ports.Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes[kbID] = idx
}

// ensureIndex resolves a queryable index for kbID. If the KB's index has
// already been built it opens it directly; if not but documents were
// already loaded for it, it rebuilds the index on demand before querying;
// if neither an index nor documents exist yet, it reports ok=false so the
// caller skips the KB instead of treating it as a query failure.
func (r *retriever) ensureIndex(ctx context.Context, workspace, kbID string) (idx ports.Index, ok bool, err error) {
	created, err := r.statusStore.IndexCreated(ctx, kbID)
	if err != nil {
		return nil, false, err
	}
	if created {
		idx, err = r.openIndex(ctx, kbID)
		if err != nil {
			return nil, false, err
		}
		return idx, true, nil
	}

	docs, err := r.statusStore.GetDocs(ctx, workspace, kbID)
	if err != nil {
		return nil, false, err
	}
	if len(docs) == 0 {
		return nil, false, nil
	}

	idx, err = r.builder.rebuild(ctx, kbID, docs)
	if err != nil {
		return nil, false, err
	}
	r.setIndex(kbID, idx)
	if err := r.statusStore.SetIndexCreated(ctx, kbID); err != nil {
		r.logger.Warn("retrieve: failed to record on-demand index build", zap.String("kb", kbID), zap.Error(err))
	}
	return idx, true, nil
}

// retrieve queries every kbID in parallel and returns the merged top-k
// results across all of them, highest score first. A KB that is not in
// entities.StatusRunning is skipped rather than erroring the whole call.
// An empty kbIDs selects every running KB in the workspace instead.
func (r *retriever) retrieve(ctx context.Context, workspace string, kbIDs []string, query string, topK int) ([]entities.RetrievalResult, error) {
	const op = "retriever.retrieve"

	if len(kbIDs) == 0 {
		entries, err := r.statusStore.ScanStatuses(ctx, workspace)
		if err != nil {
			return nil, kberrors.New(kberrors.StoreUnavailable, op, err)
		}
		for _, e := range entries {
			if e.Status == entities.StatusRunning {
				kbIDs = append(kbIDs, e.KB)
			}
		}
	}

	type kbResult struct {
		results []entities.RetrievalResult
		err     error
	}

	out := make(chan kbResult, len(kbIDs))
	var wg sync.WaitGroup

	for _, kbID := range kbIDs {
		wg.Add(1)
		go func(kbID string) {
			defer wg.Done()

			status, err := r.statusStore.GetStatus(ctx, workspace, kbID)
			if err != nil {
				r.logger.Warn("retrieve: status lookup failed", zap.String("kb", kbID), zap.Error(err))
				out <- kbResult{err: err}
				return
			}
			if status != entities.StatusRunning {
				out <- kbResult{}
				return
			}

			idx, ok, err := r.ensureIndex(ctx, workspace, kbID)
			if err != nil {
				r.logger.Warn("retrieve: ensure index failed", zap.String("kb", kbID), zap.Error(err))
				out <- kbResult{err: err}
				return
			}
			if !ok {
				out <- kbResult{}
				return
			}

			results, err := idx.Query(ctx, query, topK)
			if err != nil {
				r.logger.Warn("retrieve: query failed", zap.String("kb", kbID), zap.Error(err))
				out <- kbResult{err: err}
				return
			}
			for i := range results {
				results[i].KBID = kbID
			}
			out <- kbResult{results: results}
		}(kbID)
	}

	wg.Wait()
	close(out)

	var merged []entities.RetrievalResult
	var lastErr error
	for kr := range out {
		if kr.err != nil {
			lastErr = kr.err
			continue
		}
		merged = append(merged, kr.results...)
	}

	if len(merged) == 0 && lastErr != nil {
		return nil, kberrors.New(kberrors.VectorStoreError, op, lastErr)
	}

	sort.Slice(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	if topK > 0 && len(merged) > topK {
		merged = merged[:topK]
	}
	return merged, nil
}
