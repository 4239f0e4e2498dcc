package kb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
)

// fakeEmbedder returns a fixed-length vector derived from text length, just
// enough for the fake vector store's scoring to be deterministic in tests.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{float32(len(text))}, nil
}

func (f fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, _ := f.Embed(ctx, t)
		out[i] = v
	}
	return out, nil
}

// fakeIndex scores by substring containment: a query word found in a
// chunk's text scores higher than one that is not, which is enough to
// exercise ordering and top-k truncation without a real vector math stack.
type fakeIndex struct {
	docs []ports.IndexDocument
}

func (idx *fakeIndex) Query(ctx context.Context, text string, topK int) ([]entities.RetrievalResult, error) {
	var results []entities.RetrievalResult
	for _, d := range idx.docs {
		score := 0.1
		if strings.Contains(strings.ToLower(d.Text), strings.ToLower(text)) {
			score = 1.0
		}
		results = append(results, entities.RetrievalResult{Text: d.Text, Score: score, Metadata: d.Metadata})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

type fakeVectorStore struct {
	mu          sync.Mutex
	collections map[string]*fakeIndex
	failOpen    bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{collections: map[string]*fakeIndex{}}
}

func (f *fakeVectorStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.collections[name]
	return ok, nil
}

func (f *fakeVectorStore) DeleteCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.collections, name)
	return nil
}

func (f *fakeVectorStore) CreateIndex(ctx context.Context, collection string, docs []ports.IndexDocument, embed ports.EmbeddingService) (ports.Index, error) {
	idx := &fakeIndex{docs: docs}
	f.mu.Lock()
	f.collections[collection] = idx
	f.mu.Unlock()
	return idx, nil
}

func (f *fakeVectorStore) OpenIndex(ctx context.Context, collection string, embed ports.EmbeddingService) (ports.Index, error) {
	if f.failOpen {
		return nil, fmt.Errorf("open failed")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx, ok := f.collections[collection]
	if !ok {
		return nil, fmt.Errorf("collection %s not found", collection)
	}
	return idx, nil
}

// fakeStatusStore is an in-memory ports.StatusStore good enough to drive
// the pipeline and retriever in tests without a real Redis.
type fakeStatusStore struct {
	mu        sync.Mutex
	status    map[string]entities.KBStatus
	folders   map[string][]*entities.Folder
	docs      map[string][]entities.Document
	created   map[string]bool
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{
		status:  map[string]entities.KBStatus{},
		folders: map[string][]*entities.Folder{},
		docs:    map[string][]entities.Document{},
		created: map[string]bool{},
	}
}

func key(workspace, kb string) string { return workspace + "/" + kb }

func (s *fakeStatusStore) SetStatus(ctx context.Context, workspace, kb string, status entities.KBStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[key(workspace, kb)] = status
	return nil
}

func (s *fakeStatusStore) GetStatus(ctx context.Context, workspace, kb string) (entities.KBStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.status[key(workspace, kb)]
	if !ok {
		return entities.StatusNotFound, nil
	}
	return st, nil
}

func (s *fakeStatusStore) SetFolderStructure(ctx context.Context, workspace, kb string, folders []*entities.Folder) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.folders[key(workspace, kb)] = folders
	return nil
}

func (s *fakeStatusStore) GetFolderStructure(ctx context.Context, workspace, kb string) ([]*entities.Folder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folders[key(workspace, kb)], nil
}

func (s *fakeStatusStore) SetDocs(ctx context.Context, workspace, kb string, docs []entities.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key(workspace, kb)] = docs
	return nil
}

func (s *fakeStatusStore) GetDocs(ctx context.Context, workspace, kb string) ([]entities.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[key(workspace, kb)], nil
}

func (s *fakeStatusStore) SetIndexCreated(ctx context.Context, kb string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created[kb] = true
	return nil
}

func (s *fakeStatusStore) IndexCreated(ctx context.Context, kb string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.created[kb], nil
}

func (s *fakeStatusStore) DeleteKB(ctx context.Context, workspace, kb string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(workspace, kb)
	delete(s.status, k)
	delete(s.folders, k)
	delete(s.docs, k)
	delete(s.created, kb)
	return nil
}

func (s *fakeStatusStore) ScanStatuses(ctx context.Context, workspace string) ([]ports.KBStatusEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.KBStatusEntry
	for k, st := range s.status {
		parts := strings.SplitN(k, "/", 2)
		if workspace != "" && parts[0] != workspace {
			continue
		}
		out = append(out, ports.KBStatusEntry{Workspace: parts[0], KB: parts[1], Status: st})
	}
	return out, nil
}

func (s *fakeStatusStore) ScanDocsKeys(ctx context.Context, kb string) ([]ports.WorkspaceKB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []ports.WorkspaceKB
	for k := range s.docs {
		parts := strings.SplitN(k, "/", 2)
		if parts[1] == kb {
			out = append(out, ports.WorkspaceKB{Workspace: parts[0], KB: kb})
		}
	}
	return out, nil
}

// fakeReader returns a fixed document set, regardless of configuration.
type fakeReader struct {
	docs []entities.Document
	err  error
}

func (r *fakeReader) Configure(options map[string]string) error { return nil }

func (r *fakeReader) LoadDocuments(ctx context.Context) ([]entities.Document, error) {
	return r.docs, r.err
}

type fakeReaderRegistry struct {
	factories map[string]ports.ReaderFactory
}

func (r *fakeReaderRegistry) Factory(sourceType string) (ports.ReaderFactory, bool) {
	f, ok := r.factories[sourceType]
	return f, ok
}

// fakeLLM completes deterministically and streams the same text word by
// word, honoring context cancellation between words.
type fakeLLM struct {
	response string
}

func (l *fakeLLM) Complete(ctx context.Context, prompt string) (string, error) {
	return l.response, nil
}

func (l *fakeLLM) StreamComplete(ctx context.Context, prompt string) (<-chan ports.Delta, error) {
	out := make(chan ports.Delta)
	words := strings.Fields(l.response)
	go func() {
		defer close(out)
		for i, w := range words {
			select {
			case <-ctx.Done():
				return
			case out <- ports.Delta{Kind: ports.DeltaText, Text: w + " ", Done: i == len(words)-1}:
			}
		}
	}()
	return out, nil
}
