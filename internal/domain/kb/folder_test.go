package kb

import (
	"testing"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
)

func TestBuildFolderStructure_NestedPaths(t *testing.T) {
	docs := []entities.Document{
		{ID: "d1", FolderID: "a/b"},
		{ID: "d2", FolderID: "a"},
		{ID: "d3", FolderID: "a/b"},
	}

	roots := buildFolderStructure(docs)
	if len(roots) != 1 || roots[0].Name != "a" {
		t.Fatalf("expected single root 'a', got %+v", roots)
	}
	root := roots[0]
	if len(root.Files) != 1 || root.Files[0] != "d2" {
		t.Errorf("expected d2 filed under root a, got %v", root.Files)
	}
	if len(root.Folders) != 1 || root.Folders[0].Name != "b" {
		t.Fatalf("expected child folder b, got %+v", root.Folders)
	}
	b := root.Folders[0]
	if len(b.Files) != 2 {
		t.Errorf("expected two files under a/b, got %v", b.Files)
	}
}

func TestBuildFolderStructure_DeterministicShape(t *testing.T) {
	docs := []entities.Document{
		{ID: "d1", FolderID: "x/y/z"},
		{ID: "d2", FolderID: "x/y"},
	}

	first := buildFolderStructure(docs)
	second := buildFolderStructure(docs)

	if len(first) != len(second) || first[0].Name != second[0].Name {
		t.Fatalf("rebuild produced differing shapes: %+v vs %+v", first, second)
	}
}

func TestBuildFolderStructure_IgnoresDocsWithoutFolder(t *testing.T) {
	docs := []entities.Document{{ID: "d1"}}
	roots := buildFolderStructure(docs)
	if len(roots) != 0 {
		t.Errorf("expected no folders for unfiled documents, got %+v", roots)
	}
}
