// Package ports defines the interfaces between the knowledge base core and
// its external collaborators. Clean Architecture: the kb package depends
// only on these abstractions; adapters implement them.
package ports

import (
	"context"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
)

// StatusStore is the shared key-value store wrapper (C1). Implementations
// must fail with kberrors.StoreUnavailable on connectivity loss rather than
// returning a cached or zero value.
type StatusStore interface {
	SetStatus(ctx context.Context, workspace, kb string, status entities.KBStatus) error
	GetStatus(ctx context.Context, workspace, kb string) (entities.KBStatus, error)

	SetFolderStructure(ctx context.Context, workspace, kb string, folders []*entities.Folder) error
	GetFolderStructure(ctx context.Context, workspace, kb string) ([]*entities.Folder, error)

	SetDocs(ctx context.Context, workspace, kb string, docs []entities.Document) error
	GetDocs(ctx context.Context, workspace, kb string) ([]entities.Document, error)

	SetIndexCreated(ctx context.Context, kb string) error
	IndexCreated(ctx context.Context, kb string) (bool, error)

	// DeleteKB removes the four KV keys associated with (workspace, kb):
	// status, folder_structure, docs and the workspace-agnostic
	// index_created flag. The fifth piece of KB state, the vector
	// collection, is removed by the caller via VectorStore. Deleting is not required to be atomic (invariant 3 is a
	// caller-level retry contract, not a transactional one).
	DeleteKB(ctx context.Context, workspace, kb string) error

	// ScanStatuses yields every (workspace, kb, status) under the given
	// workspace, or every workspace's when workspace == "".
	ScanStatuses(ctx context.Context, workspace string) ([]KBStatusEntry, error)

	// ScanDocsKeys yields every (workspace, kb) that has a docs key matching
	// the given kb id, used to resolve kb_id -> workspace_id when the
	// caller only has the kb_id.
	ScanDocsKeys(ctx context.Context, kb string) ([]WorkspaceKB, error)
}

// KBStatusEntry is one row of a status scan.
type KBStatusEntry struct {
	Workspace string
	KB        string
	Status    entities.KBStatus
}

// WorkspaceKB identifies a KB within a workspace.
type WorkspaceKB struct {
	Workspace string
	KB        string
}

// Reader loads documents from one configured source (C2).
type Reader interface {
	Configure(options map[string]string) error
	LoadDocuments(ctx context.Context) ([]entities.Document, error)
}

// ReaderFactory produces a fresh, unconfigured Reader instance.
type ReaderFactory func() Reader

// IndexDocument is a single unit the Index Builder sends to the vector
// store: stable id, embeddable text, and flattened metadata.
type IndexDocument struct {
	ID       string
	Text     string
	Metadata map[string]string
}

// Index is a handle to an opened or newly created collection, able to
// answer similarity queries (C4/C5).
type Index interface {
	Query(ctx context.Context, text string, topK int) ([]entities.RetrievalResult, error)
}

// VectorStore is the contract consumed by the Index Builder and Retriever.
type VectorStore interface {
	CollectionExists(ctx context.Context, name string) (bool, error)
	DeleteCollection(ctx context.Context, name string) error
	CreateIndex(ctx context.Context, collection string, docs []IndexDocument, embed EmbeddingService) (Index, error)
	OpenIndex(ctx context.Context, collection string, embed EmbeddingService) (Index, error)
}

// EmbeddingService turns text into vectors (C4/C5/C6 collaborator).
type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// DeltaKind tags the shape of one streamed LLM token, per the design note
// on modeling the dynamic delta shape as a tagged variant.
type DeltaKind int

const (
	DeltaText DeltaKind = iota
	DeltaStruct
	DeltaRaw
)

// Delta is one item of a streaming completion.
type Delta struct {
	Kind DeltaKind
	Text string
	Raw  any
	Done bool
	Err  error
}

// AsText normalizes any Delta shape to plain text, the way the streaming
// consumer is required to.
func (d Delta) AsText() string {
	if d.Text != "" || d.Kind != DeltaRaw {
		return d.Text
	}
	if s, ok := d.Raw.(string); ok {
		return s
	}
	if stringer, ok := d.Raw.(interface{ String() string }); ok {
		return stringer.String()
	}
	return ""
}

// LLMService generates text responses from a language model (C6).
type LLMService interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// StreamComplete returns a channel of Deltas. ctx controls
	// cancellation: once ctx is done, the adapter stops issuing reads and
	// closes the channel.
	StreamComplete(ctx context.Context, prompt string) (<-chan Delta, error)
}

// FileWatcher monitors a directory for changes (D5). Nothing in this
// repository connects its events to the ingestion or sync path.
type FileWatcher interface {
	Watch(ctx context.Context, dir string) (<-chan FileEvent, error)
	Stop() error
}

// FileEvent represents a file system change.
type FileEvent struct {
	Path      string
	Operation FileOperation
}

// FileOperation is the type of file change.
type FileOperation int

const (
	FileCreated FileOperation = iota
	FileModified
	FileDeleted
)
