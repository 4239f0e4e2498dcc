package statusstore

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client)
}

func TestRedisStore_StatusRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if st, err := s.GetStatus(ctx, "ws", "kb1"); err != nil || st != entities.StatusNotFound {
		t.Fatalf("expected not_found before any write, got %v err=%v", st, err)
	}

	if err := s.SetStatus(ctx, "ws", "kb1", entities.StatusRunning); err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	st, err := s.GetStatus(ctx, "ws", "kb1")
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if st != entities.StatusRunning {
		t.Errorf("expected running, got %s", st)
	}
}

func TestRedisStore_DocsAndFolderStructureRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	docs := []entities.Document{{ID: "d1", Title: "Doc", FolderID: "a"}}
	if err := s.SetDocs(ctx, "ws", "kb1", docs); err != nil {
		t.Fatalf("SetDocs: %v", err)
	}
	got, err := s.GetDocs(ctx, "ws", "kb1")
	if err != nil {
		t.Fatalf("GetDocs: %v", err)
	}
	if len(got) != 1 || got[0].ID != "d1" {
		t.Errorf("unexpected docs: %+v", got)
	}

	folders := []*entities.Folder{{ID: "a", Name: "a", Files: []string{"d1"}}}
	if err := s.SetFolderStructure(ctx, "ws", "kb1", folders); err != nil {
		t.Fatalf("SetFolderStructure: %v", err)
	}
	gotFolders, err := s.GetFolderStructure(ctx, "ws", "kb1")
	if err != nil {
		t.Fatalf("GetFolderStructure: %v", err)
	}
	if len(gotFolders) != 1 || gotFolders[0].Name != "a" {
		t.Errorf("unexpected folders: %+v", gotFolders)
	}
}

func TestRedisStore_IndexCreatedIsWorkspaceAgnostic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.IndexCreated(ctx, "kb1")
	if err != nil || created {
		t.Fatalf("expected false before creation, got %v err=%v", created, err)
	}

	if err := s.SetIndexCreated(ctx, "kb1"); err != nil {
		t.Fatalf("SetIndexCreated: %v", err)
	}
	created, err = s.IndexCreated(ctx, "kb1")
	if err != nil || !created {
		t.Fatalf("expected true after creation, got %v err=%v", created, err)
	}
}

func TestRedisStore_DeleteKBRemovesAllKeys(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SetStatus(ctx, "ws", "kb1", entities.StatusRunning)
	s.SetDocs(ctx, "ws", "kb1", []entities.Document{{ID: "d1"}})
	s.SetFolderStructure(ctx, "ws", "kb1", nil)
	s.SetIndexCreated(ctx, "kb1")

	if err := s.DeleteKB(ctx, "ws", "kb1"); err != nil {
		t.Fatalf("DeleteKB: %v", err)
	}

	st, _ := s.GetStatus(ctx, "ws", "kb1")
	if st != entities.StatusNotFound {
		t.Errorf("expected status gone, got %s", st)
	}
	created, _ := s.IndexCreated(ctx, "kb1")
	if created {
		t.Error("expected index_created to be cleared")
	}
}

func TestRedisStore_ScanStatusesFiltersByWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.SetStatus(ctx, "ws1", "kb1", entities.StatusRunning)
	s.SetStatus(ctx, "ws2", "kb2", entities.StatusDisabled)

	entries, err := s.ScanStatuses(ctx, "ws1")
	if err != nil {
		t.Fatalf("ScanStatuses: %v", err)
	}
	if len(entries) != 1 || entries[0].KB != "kb1" {
		t.Errorf("expected only ws1/kb1, got %+v", entries)
	}

	all, err := s.ScanStatuses(ctx, "")
	if err != nil {
		t.Fatalf("ScanStatuses all: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("expected both entries, got %+v", all)
	}
}

func TestRedisStore_ScanDocsKeysResolvesWorkspace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	s.SetDocs(ctx, "ws1", "kbshared", []entities.Document{{ID: "d1"}})

	matches, err := s.ScanDocsKeys(ctx, "kbshared")
	if err != nil {
		t.Fatalf("ScanDocsKeys: %v", err)
	}
	if len(matches) != 1 || matches[0].Workspace != "ws1" {
		t.Errorf("unexpected matches: %+v", matches)
	}
}
