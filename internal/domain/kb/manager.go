// Package kb implements the knowledge base orchestration core: lifecycle
// management, ingestion, retrieval, and RAG answer composition. It depends
// only on the ports package; concrete storage, vector, embedding, and LLM
// adapters are wired in by the caller.
package kb

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kberrors"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
	"go.uber.org/zap"
)

// janitorInterval and staleInitializing resolve the "orphaned
// initializing" open question: a periodic sweep, not a state machine
// change, demotes any KB stuck in initializing past the staleness window
// back to error so a caller can retry registration.
const (
	janitorInterval   = 5 * time.Minute
	staleInitializing = 10 * time.Minute
)

// Manager is the facade over the whole knowledge base subsystem (C8): it is
// the only type HTTP handlers or a CLI need to hold a reference to.
type Manager struct {
	statusStore ports.StatusStore
	readers     ReaderRegistry
	builder     *indexBuilder
	retriever   *retriever
	answerer    *answerer
	pipeline    *pipeline
	sessions    *sessionRegistry
	logger      *zap.Logger

	kbNamesMu sync.RWMutex
	kbNames   map[string]string // kb id -> display name, populated at Register time

	initializingSince   map[string]time.Time
	initializingSinceMu sync.Mutex
}

// NewManager wires the core subsystem from its adapter dependencies. Call
// Run to start the background ingestion worker and janitor before serving
// traffic.
func NewManager(statusStore ports.StatusStore, vectorStore ports.VectorStore, embedder ports.EmbeddingService, llm ports.LLMService, readers ReaderRegistry, logger *zap.Logger) *Manager {
	builder := newIndexBuilder(vectorStore, embedder)
	retr := newRetriever(statusStore, vectorStore, embedder, builder, logger)
	return &Manager{
		statusStore:       statusStore,
		readers:           readers,
		builder:           builder,
		retriever:         retr,
		answerer:          newAnswerer(llm),
		pipeline:          newPipeline(statusStore, readers, builder, retr, logger),
		sessions:          newSessionRegistry(),
		logger:            logger,
		kbNames:           map[string]string{},
		initializingSince: map[string]time.Time{},
	}
}

// Run starts the ingestion worker and the janitor sweep; it blocks until
// ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	go m.pipeline.run(ctx)
	m.runJanitor(ctx)
}

// Register enqueues a new or updated KB for ingestion. The registration is
// accepted immediately: it always seeds the KB as disabled and hands it to
// the pipeline worker, which alone drives disabled -> initializing ->
// running|error. Enabled only governs UpdateStatus later; it is not a gate
// on whether ingestion runs.
func (m *Manager) Register(ctx context.Context, reg entities.KnowledgeBaseRegistration) error {
	const op = "Manager.Register"

	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	if _, ok := m.readers.Factory(reg.SourceType); !ok {
		return kberrors.New(kberrors.InvalidSource, op, nil)
	}

	m.kbNamesMu.Lock()
	m.kbNames[reg.ID] = reg.Name
	m.kbNamesMu.Unlock()

	if err := m.statusStore.SetStatus(ctx, reg.WorkspaceID, reg.ID, entities.StatusDisabled); err != nil {
		return kberrors.New(kberrors.StoreUnavailable, op, err)
	}

	m.pipeline.enqueue(reg)
	return nil
}

// Status returns a KB's current lifecycle state.
func (m *Manager) Status(ctx context.Context, workspace, kbID string) (entities.KBStatus, error) {
	return m.statusStore.GetStatus(ctx, workspace, kbID)
}

// FolderStructure returns the folder tree last computed for a KB.
func (m *Manager) FolderStructure(ctx context.Context, workspace, kbID string) ([]*entities.Folder, error) {
	return m.statusStore.GetFolderStructure(ctx, workspace, kbID)
}

// Documents returns the document list last loaded for a KB.
func (m *Manager) Documents(ctx context.Context, workspace, kbID string) ([]entities.Document, error) {
	return m.statusStore.GetDocs(ctx, workspace, kbID)
}

// ListSources returns every running KB in a workspace as a display
// projection, used by the /api/view endpoint.
func (m *Manager) ListSources(ctx context.Context, workspace string) ([]entities.DataSource, error) {
	entries, err := m.statusStore.ScanStatuses(ctx, workspace)
	if err != nil {
		return nil, kberrors.New(kberrors.StoreUnavailable, "Manager.ListSources", err)
	}

	var sources []entities.DataSource
	for _, e := range entries {
		if e.Status != entities.StatusRunning {
			continue
		}
		docs, err := m.statusStore.GetDocs(ctx, e.Workspace, e.KB)
		if err != nil {
			m.logger.Warn("ListSources: docs lookup failed", zap.String("kb", e.KB), zap.Error(err))
		}
		sources = append(sources, entities.DataSource{
			ID:    e.KB,
			Name:  m.displayName(e.KB),
			Count: len(docs),
		})
	}
	return sources, nil
}

// GetSource returns the display projection for a single KB.
func (m *Manager) GetSource(ctx context.Context, workspace, kbID string) (entities.DataSource, error) {
	docs, err := m.statusStore.GetDocs(ctx, workspace, kbID)
	if err != nil {
		return entities.DataSource{}, kberrors.New(kberrors.StoreUnavailable, "Manager.GetSource", err)
	}
	return entities.DataSource{ID: kbID, Name: m.displayName(kbID), Count: len(docs)}, nil
}

// displayName resolves a KB id to a human name: prefer the name recorded
// at Register time, otherwise fall back to title-casing the hyphen-split
// id.
func (m *Manager) displayName(kbID string) string {
	m.kbNamesMu.RLock()
	name, ok := m.kbNames[kbID]
	m.kbNamesMu.RUnlock()
	if ok && name != "" {
		return name
	}
	parts := strings.Split(kbID, "-")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// UpdateStatus transitions a KB between disabled and running without
// re-ingesting: disabling stops it from being queried, re-enabling a KB
// whose index was already built skips straight back to running.
func (m *Manager) UpdateStatus(ctx context.Context, workspace, kbID string, enabled bool) error {
	const op = "Manager.UpdateStatus"

	if !enabled {
		return m.statusStore.SetStatus(ctx, workspace, kbID, entities.StatusDisabled)
	}

	created, err := m.statusStore.IndexCreated(ctx, kbID)
	if err != nil {
		return kberrors.New(kberrors.StoreUnavailable, op, err)
	}
	if created {
		m.retriever.invalidate(kbID)
		return m.statusStore.SetStatus(ctx, workspace, kbID, entities.StatusRunning)
	}
	return kberrors.New(kberrors.NotFound, op, nil)
}

// Delete removes a KB's status keys, folder structure, documents, and
// vector collection. Deletion is retried by the caller on partial failure
// (invariant: delete is not required to be atomic).
func (m *Manager) Delete(ctx context.Context, workspace, kbID string) error {
	const op = "Manager.Delete"

	if err := m.statusStore.DeleteKB(ctx, workspace, kbID); err != nil {
		return kberrors.New(kberrors.StoreUnavailable, op, err)
	}
	if err := m.builder.store.DeleteCollection(ctx, collectionName(kbID)); err != nil {
		return kberrors.New(kberrors.VectorStoreError, op, err)
	}
	m.retriever.invalidate(kbID)

	m.kbNamesMu.Lock()
	delete(m.kbNames, kbID)
	m.kbNamesMu.Unlock()

	return nil
}

// Retrieve runs the retriever across the requested KBs and returns the
// merged top-k context, without composing an answer.
func (m *Manager) Retrieve(ctx context.Context, req entities.QueryRequest) ([]entities.RetrievalResult, error) {
	return m.retriever.retrieve(ctx, req.WorkspaceID, req.KnowledgeBases, req.EffectiveQuery(), req.TopK)
}

// Answer retrieves context and returns a single blocking, grounded answer.
func (m *Manager) Answer(ctx context.Context, req entities.QueryRequest) (entities.ChatResponse, error) {
	results, err := m.Retrieve(ctx, req)
	if err != nil {
		return entities.ChatResponse{}, err
	}
	return m.answerer.answer(ctx, req, results)
}

// StreamAnswer retrieves context, opens a streaming session, and returns
// both the session id and the token channel the HTTP layer frames as SSE.
// ctx cancellation (e.g. client disconnect) stops the underlying LLM
// stream.
func (m *Manager) StreamAnswer(ctx context.Context, req entities.QueryRequest) (sessionID string, deltas <-chan ports.Delta, err error) {
	results, err := m.Retrieve(ctx, req)
	if err != nil {
		return "", nil, err
	}

	raw, err := m.answerer.streamAnswer(ctx, req, results)
	if err != nil {
		return "", nil, err
	}

	sessionID = req.MessageID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	now := time.Now()
	m.sessions.create(sessionID, req, now)

	out := make(chan ports.Delta)
	go func() {
		defer close(out)
		for d := range raw {
			m.sessions.appendToken(sessionID, d.AsText())
			select {
			case out <- d:
			case <-ctx.Done():
				m.sessions.complete(sessionID, ctx.Err(), time.Now())
				return
			}
			if d.Done {
				m.sessions.complete(sessionID, d.Err, time.Now())
				continue
			}
			time.Sleep(10 * time.Millisecond) // yield between tokens
		}
	}()

	return sessionID, out, nil
}

// SessionContent returns a streaming session's accumulated text, used by
// clients that reconnect mid-stream or poll after completion.
func (m *Manager) SessionContent(sessionID string) (entities.StreamingSession, bool) {
	return m.sessions.get(sessionID, time.Now())
}

// RemoveSession tears down a session explicitly, e.g. on client-initiated
// stream cancellation.
func (m *Manager) RemoveSession(sessionID string) {
	m.sessions.remove(sessionID)
}

// runJanitor periodically sweeps expired streaming sessions and demotes KBs
// stuck in initializing past staleInitializing back to error, so a crashed
// worker does not leave a KB permanently unqueryable and unretry-able.
func (m *Manager) runJanitor(ctx context.Context) {
	ticker := time.NewTicker(janitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			m.sessions.sweepExpired(now)
			m.sweepStaleInitializing(ctx, now)
		}
	}
}

func (m *Manager) sweepStaleInitializing(ctx context.Context, now time.Time) {
	entries, err := m.statusStore.ScanStatuses(ctx, "")
	if err != nil {
		m.logger.Warn("janitor: scan failed", zap.Error(err))
		return
	}

	m.initializingSinceMu.Lock()
	defer m.initializingSinceMu.Unlock()

	seen := map[string]bool{}
	for _, e := range entries {
		key := e.Workspace + "/" + e.KB
		if e.Status != entities.StatusInitializing {
			delete(m.initializingSince, key)
			continue
		}
		seen[key] = true
		since, tracked := m.initializingSince[key]
		if !tracked {
			m.initializingSince[key] = now
			continue
		}
		if now.Sub(since) > staleInitializing {
			m.logger.Warn("janitor: demoting stale initializing kb", zap.String("workspace", e.Workspace), zap.String("kb", e.KB))
			if err := m.statusStore.SetStatus(ctx, e.Workspace, e.KB, entities.StatusError); err != nil {
				m.logger.Warn("janitor: failed to demote kb", zap.Error(err))
				continue
			}
			delete(m.initializingSince, key)
		}
	}
	for key := range m.initializingSince {
		if !seen[key] {
			delete(m.initializingSince, key)
		}
	}
}
