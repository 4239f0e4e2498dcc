package kb

import (
	"path"
	"strings"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
)

// buildFolderStructure derives the folder tree from documents' FolderID
// paths. Grounded on kb_manager.py's _build_folder_structure: each
// slash-separated path segment becomes (or reuses) a Folder node; a
// document is filed under the full FolderID it names. Rebuilding from the
// same document list always yields a structurally equal tree (P6) because
// the algorithm is a pure function of that list. Paths are not sorted:
// roots, child folders and files appear in the order the documents first
// name them.
func buildFolderStructure(docs []entities.Document) []*entities.Folder {
	byPath := map[string]*entities.Folder{}
	var roots []*entities.Folder

	for _, doc := range docs {
		if doc.FolderID == "" {
			continue
		}
		parts := strings.Split(doc.FolderID, "/")
		current := ""
		for _, part := range parts {
			if part == "" {
				continue
			}
			parent := current
			if current == "" {
				current = part
			} else {
				current = path.Join(current, part)
			}
			if _, exists := byPath[current]; exists {
				continue
			}
			folder := &entities.Folder{ID: current, Name: part}
			byPath[current] = folder
			if parent == "" {
				roots = append(roots, folder)
			} else if p, ok := byPath[parent]; ok {
				p.Folders = append(p.Folders, folder)
			}
		}
	}

	for _, doc := range docs {
		if f, ok := byPath[doc.FolderID]; ok {
			f.Files = append(f.Files, doc.ID)
		}
	}

	return roots
}
