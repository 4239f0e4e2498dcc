// Package entities contains the core business entities of the knowledge
// base orchestrator. Clean Architecture: these are pure domain objects with
// no storage, transport, or vendor knowledge.
package entities

import "time"

// KBStatus is the lifecycle state of a knowledge base.
type KBStatus string

const (
	StatusDisabled     KBStatus = "disabled"
	StatusInitializing KBStatus = "initializing"
	StatusRunning      KBStatus = "running"
	StatusError        KBStatus = "error"
	StatusNotFound     KBStatus = "not_found"
)

// KnowledgeBaseRegistration is the input to Register. ID and WorkspaceID
// together identify the KB; SourceType/URL are resolved by the Reader
// Registry. EmbeddingEngine is accepted as a tag but is not read by the
// core or by any adapter.
type KnowledgeBaseRegistration struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	WorkspaceID     string `json:"workspace_id"`
	Description     string `json:"description,omitempty"`
	SourceType      string `json:"source_type"`
	URL             string `json:"url"`
	Enabled         bool   `json:"enabled"`
	EmbeddingEngine string `json:"embedding_engine,omitempty"`
}

// Document is one item loaded from a KB's source.
type Document struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Date        string   `json:"date"`
	Tags        []string `json:"tags,omitempty"`
	Source      string   `json:"source"`
	Description string   `json:"description,omitempty"`
	URL         string   `json:"url"`
	FolderID    string   `json:"folder_id"`
	// Original is the untruncated body, retained so the index can be
	// rebuilt without re-reading the source.
	Original string `json:"original,omitempty"`
}

// Metadata flattens a Document into the string-keyed bag the vector store
// contract expects alongside embedded text.
func (d Document) Metadata() map[string]string {
	return map[string]string{
		"id":       d.ID,
		"title":    d.Title,
		"type":     d.Type,
		"date":     d.Date,
		"source":   d.Source,
		"url":      d.URL,
		"folderId": d.FolderID,
	}
}

// Folder is a node in the tree derived from documents' FolderID paths.
type Folder struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Folders []*Folder `json:"folders,omitempty"`
	Files   []string  `json:"files,omitempty"`
	IsOpen  bool      `json:"is_open"`
}

// RetrievalResult is one hit returned by the Retriever.
type RetrievalResult struct {
	KBID     string            `json:"kb_id"`
	Text     string            `json:"text"`
	Score    float64           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// ChatMessage is a single conversation turn, used to build history text.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// QueryRequest is the input to Retrieve/Answer/StreamAnswer.
type QueryRequest struct {
	WorkspaceID         string   `json:"workspace_id"`
	KnowledgeBases      []string `json:"knowledge_bases"`
	Query               []string `json:"query"` // last element is the effective query text
	ConversationHistory string   `json:"conversation_history,omitempty"`
	TopK                int      `json:"top_k"`
	PreferredLanguage   string   `json:"preferred_language,omitempty"`
	MessageID           string   `json:"message_id,omitempty"`
}

// EffectiveQuery returns the last element of Query, or "" if empty.
func (q QueryRequest) EffectiveQuery() string {
	if len(q.Query) == 0 {
		return ""
	}
	return q.Query[len(q.Query)-1]
}

// ChatResponse is a blocking answer together with the context it was
// grounded on.
type ChatResponse struct {
	Answer  string            `json:"answer"`
	Sources []RetrievalResult `json:"sources,omitempty"`
}

// StreamingSession is the in-process record of a single in-flight streaming
// answer (C7). Owned exclusively by the handler that created it.
type StreamingSession struct {
	SessionID      string       `json:"session_id"`
	Query          QueryRequest `json:"query"`
	CurrentContent string       `json:"current_content"`
	IsComplete     bool         `json:"is_complete"`
	CreatedAt      time.Time    `json:"created_at"`
	ExpiresAt      time.Time    `json:"expires_at"`
	Err            error        `json:"-"`
}

// DataSource is the display projection of a running KB, as returned by
// list_sources/get_source.
type DataSource struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon,omitempty"`
	Count int    `json:"count"`
}
