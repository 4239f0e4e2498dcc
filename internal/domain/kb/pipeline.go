package kb

import (
	"context"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kberrors"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
	"go.uber.org/zap"
)

// queueCapacity bounds the registration queue. An unbounded queue has no
// direct Go channel equivalent; a full queue falls back to a blocking send
// with a logged warning instead of dropping the registration.
const queueCapacity = 1024

// ReaderRegistry resolves a KB registration's source_type to a Reader
// factory (C2). Implemented by the adapters/reader package.
type ReaderRegistry interface {
	Factory(sourceType string) (ports.ReaderFactory, bool)
}

// pipeline is the single-worker serial ingestion queue (C3): registrations
// are processed one at a time in submission order.
type pipeline struct {
	statusStore ports.StatusStore
	readers     ReaderRegistry
	builder     *indexBuilder
	retriever   *retriever
	logger      *zap.Logger

	jobs chan entities.KnowledgeBaseRegistration
	done chan struct{}
}

func newPipeline(statusStore ports.StatusStore, readers ReaderRegistry, builder *indexBuilder, retriever *retriever, logger *zap.Logger) *pipeline {
	return &pipeline{
		statusStore: statusStore,
		readers:     readers,
		builder:     builder,
		retriever:   retriever,
		logger:      logger,
		jobs:        make(chan entities.KnowledgeBaseRegistration, queueCapacity),
		done:        make(chan struct{}),
	}
}

// run drains the job queue on a single goroutine until ctx is cancelled.
// Call it once, from the manager's startup.
func (p *pipeline) run(ctx context.Context) {
	defer close(p.done)
	for {
		select {
		case <-ctx.Done():
			return
		case reg, ok := <-p.jobs:
			if !ok {
				return
			}
			p.process(ctx, reg)
		}
	}
}

// enqueue submits a registration for ingestion. It prefers a non-blocking
// send; if the queue is saturated it falls back to a blocking send so no
// registration is silently dropped, logging the backpressure.
func (p *pipeline) enqueue(reg entities.KnowledgeBaseRegistration) {
	select {
	case p.jobs <- reg:
		return
	default:
	}
	p.logger.Warn("ingestion queue full, blocking", zap.String("kb", reg.ID))
	p.jobs <- reg
}

// process runs one registration through disabled -> initializing ->
// running|error (the lifecycle invariant P1/P4): it loads documents via the
// registered Reader, builds the folder structure, rebuilds the vector
// index, and marks the KB running, or error on any failure.
func (p *pipeline) process(ctx context.Context, reg entities.KnowledgeBaseRegistration) {
	const op = "pipeline.process"
	log := p.logger.With(zap.String("workspace", reg.WorkspaceID), zap.String("kb", reg.ID))

	if err := p.statusStore.SetStatus(ctx, reg.WorkspaceID, reg.ID, entities.StatusInitializing); err != nil {
		log.Error("failed to mark initializing", zap.Error(err))
		return
	}

	factory, ok := p.readers.Factory(reg.SourceType)
	if !ok {
		p.fail(ctx, reg, kberrors.New(kberrors.InvalidSource, op, nil), log)
		return
	}

	reader := factory()
	if err := reader.Configure(map[string]string{"url": reg.URL}); err != nil {
		p.fail(ctx, reg, kberrors.New(kberrors.InvalidSource, op, err), log)
		return
	}

	docs, err := reader.LoadDocuments(ctx)
	if err != nil {
		p.fail(ctx, reg, kberrors.New(kberrors.ReaderFailed, op, err), log)
		return
	}

	folders := buildFolderStructure(docs)
	if err := p.statusStore.SetDocs(ctx, reg.WorkspaceID, reg.ID, docs); err != nil {
		p.fail(ctx, reg, kberrors.New(kberrors.StoreUnavailable, op, err), log)
		return
	}
	if err := p.statusStore.SetFolderStructure(ctx, reg.WorkspaceID, reg.ID, folders); err != nil {
		p.fail(ctx, reg, kberrors.New(kberrors.StoreUnavailable, op, err), log)
		return
	}

	index, err := p.builder.rebuild(ctx, reg.ID, docs)
	if err != nil {
		p.fail(ctx, reg, err, log)
		return
	}
	p.retriever.setIndex(reg.ID, index)

	if owners, err := p.statusStore.ScanDocsKeys(ctx, reg.ID); err == nil {
		for _, o := range owners {
			if o.Workspace != reg.WorkspaceID {
				log.Warn("index_created flag is workspace-agnostic; another workspace already owns this kb id", zap.String("other_workspace", o.Workspace))
				break
			}
		}
	}
	if err := p.statusStore.SetIndexCreated(ctx, reg.ID); err != nil {
		log.Warn("failed to set index_created flag", zap.Error(err))
	}

	if err := p.statusStore.SetStatus(ctx, reg.WorkspaceID, reg.ID, entities.StatusRunning); err != nil {
		log.Error("failed to mark running", zap.Error(err))
		return
	}
	log.Info("kb ingestion complete", zap.Int("documents", len(docs)))
}

func (p *pipeline) fail(ctx context.Context, reg entities.KnowledgeBaseRegistration, cause error, log *zap.Logger) {
	log.Error("kb ingestion failed", zap.Error(cause))
	if err := p.statusStore.SetStatus(ctx, reg.WorkspaceID, reg.ID, entities.StatusError); err != nil {
		log.Error("failed to mark error status", zap.Error(err))
	}
}
