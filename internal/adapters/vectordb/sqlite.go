// Package vectordb provides vector store adapters implementing
// ports.VectorStore.
package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore is the embedded fallback vector store (D4): one SQLite
// database file per process, brute-force cosine similarity over all rows
// in a collection's table. It exists for single-node deployments and tests
// that should not require a running Qdrant instance; Qdrant remains the
// primary store for anything beyond a handful of KBs.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	dataPath string
	embedder ports.EmbeddingService
}

// NewSQLiteStore opens (creating if needed) the embedded vector database
// under dataPath.
func NewSQLiteStore(dataPath string) (*SQLiteStore, error) {
	if dataPath == "" {
		dataPath = "./data"
	}

	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataPath, "vectors.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	store := &SQLiteStore{db: db, dataPath: dataPath}
	return store, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func tableName(collection string) string {
	// collection names are already kb_<kb_id>; reuse directly as the table
	// name. Queries wrap it in double quotes; the name is not escaped, and
	// nothing upstream restricts the characters of a kb id.
	return collection
}

// CollectionExists reports whether a table for this collection exists.
func (s *SQLiteStore) CollectionExists(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n string
	err := s.db.QueryRowContext(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name=?", tableName(name),
	).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteCollection drops the table backing a collection.
func (s *SQLiteStore) DeleteCollection(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, tableName(name)))
	return err
}

// CreateIndex creates a fresh table for collection, embeds and inserts
// every doc, and returns a handle that can query it. Per the vector
// store's rebuild contract, the caller is expected to have already deleted
// any prior table for this collection.
func (s *SQLiteStore) CreateIndex(ctx context.Context, collection string, docs []ports.IndexDocument, embed ports.EmbeddingService) (ports.Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	schema := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS "%s" (
		id TEXT PRIMARY KEY,
		text TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL
	)`, tableName(collection))
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("creating table: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR REPLACE INTO "%s" (id, text, metadata, embedding) VALUES (?, ?, ?, ?)`,
		tableName(collection),
	))
	if err != nil {
		return nil, fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		vec, err := embed.Embed(ctx, doc.Text)
		if err != nil {
			return nil, fmt.Errorf("embedding chunk %s: %w", doc.ID, err)
		}
		vecJSON, err := json.Marshal(vec)
		if err != nil {
			return nil, fmt.Errorf("encoding embedding: %w", err)
		}
		metaJSON, err := json.Marshal(doc.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, doc.ID, doc.Text, metaJSON, vecJSON); err != nil {
			return nil, fmt.Errorf("inserting chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing index: %w", err)
	}

	return &sqliteIndex{db: s.db, collection: collection, embedder: embed}, nil
}

// OpenIndex returns a handle to an already-built collection.
func (s *SQLiteStore) OpenIndex(ctx context.Context, collection string, embed ports.EmbeddingService) (ports.Index, error) {
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("collection %s does not exist", collection)
	}
	return &sqliteIndex{db: s.db, collection: collection, embedder: embed}, nil
}

// sqliteIndex is a query-only handle over one collection's table.
type sqliteIndex struct {
	db         *sql.DB
	collection string
	embedder   ports.EmbeddingService
}

// Query embeds text and returns the topK rows by cosine similarity,
// highest score first. Brute force: acceptable at the scale a single
// embedded SQLite file is meant for.
func (idx *sqliteIndex) Query(ctx context.Context, text string, topK int) ([]entities.RetrievalResult, error) {
	queryVec, err := idx.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf(`SELECT id, text, metadata, embedding FROM "%s"`, tableName(idx.collection)))
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	defer rows.Close()

	type scored struct {
		result entities.RetrievalResult
		score  float64
	}
	var all []scored

	for rows.Next() {
		var id, text, metaJSON string
		var vecJSON []byte
		if err := rows.Scan(&id, &text, &metaJSON, &vecJSON); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal(vecJSON, &vec); err != nil {
			continue
		}
		var meta map[string]string
		if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
			meta = nil
		}
		score := cosineSimilarity(queryVec, vec)
		all = append(all, scored{result: entities.RetrievalResult{Text: text, Score: score, Metadata: meta}, score: score})
	}

	sort.Slice(all, func(i, j int) bool { return all[i].score > all[j].score })
	if topK > 0 && len(all) > topK {
		all = all[:topK]
	}

	out := make([]entities.RetrievalResult, len(all))
	for i, s := range all {
		out[i] = s.result
	}
	return out, nil
}

// cosineSimilarity calculates cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
