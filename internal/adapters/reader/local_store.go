package reader

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
)

// textExtensions lists the file types LocalStoreReader loads. PDF support
// is intentionally absent: it depended on an external parsing service this
// orchestrator does not run.
var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// LocalStoreReader walks a directory tree and loads every supported text
// file as a Document, using the directory path relative to the root as the
// document's FolderID so the folder tree mirrors the filesystem layout.
type LocalStoreReader struct {
	root string
}

// NewLocalStoreReader creates an unconfigured reader; call Configure
// before LoadDocuments.
func NewLocalStoreReader() *LocalStoreReader {
	return &LocalStoreReader{}
}

// Configure sets the root directory from options["url"].
func (r *LocalStoreReader) Configure(options map[string]string) error {
	root := options["url"]
	if root == "" {
		return fmt.Errorf("local_store: url option is required")
	}
	r.root = root
	return nil
}

// LoadDocuments walks r.root and returns one Document per supported file.
func (r *LocalStoreReader) LoadDocuments(ctx context.Context) ([]entities.Document, error) {
	var docs []entities.Document

	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !textExtensions[ext] {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		rel, err := filepath.Rel(r.root, filepath.Dir(path))
		if err != nil {
			rel = ""
		}
		if rel == "." {
			rel = ""
		}

		docs = append(docs, entities.Document{
			ID:       generateDocID(path),
			Title:    strings.TrimSuffix(filepath.Base(path), ext),
			Type:     strings.TrimPrefix(ext, "."),
			Date:     info.ModTime().UTC().Format(time.RFC3339),
			Source:   "local_store",
			URL:      path,
			FolderID: filepath.ToSlash(rel),
			Original: string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

// generateDocID derives a stable document ID from its path so repeated
// syncs produce the same ID for the same file.
func generateDocID(path string) string {
	hash := sha256.Sum256([]byte(path))
	return hex.EncodeToString(hash[:8])
}
