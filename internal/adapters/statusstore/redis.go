// Package statusstore implements ports.StatusStore against Redis (D1), the
// shared key-value store the orchestrator's per-KB state is keyed around.
package statusstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/onlysaid/kb-orchestrator/internal/domain/entities"
	"github.com/onlysaid/kb-orchestrator/internal/domain/kberrors"
	"github.com/onlysaid/kb-orchestrator/internal/domain/ports"
	"github.com/redis/go-redis/v9"
)

// RedisStore implements ports.StatusStore with the exact key schema the
// original Python manager used: kb:<workspace>:<kb>:status|folder_structure|docs,
// plus the workspace-agnostic kb:<kb>:index_created.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an already-configured client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func statusKey(workspace, kb string) string          { return fmt.Sprintf("kb:%s:%s:status", workspace, kb) }
func folderKey(workspace, kb string) string           { return fmt.Sprintf("kb:%s:%s:folder_structure", workspace, kb) }
func docsKey(workspace, kb string) string             { return fmt.Sprintf("kb:%s:%s:docs", workspace, kb) }
func indexCreatedKey(kb string) string                { return fmt.Sprintf("kb:%s:index_created", kb) }

func (s *RedisStore) SetStatus(ctx context.Context, workspace, kb string, status entities.KBStatus) error {
	if err := s.client.Set(ctx, statusKey(workspace, kb), string(status), 0).Err(); err != nil {
		return kberrors.New(kberrors.StoreUnavailable, "RedisStore.SetStatus", err)
	}
	return nil
}

func (s *RedisStore) GetStatus(ctx context.Context, workspace, kb string) (entities.KBStatus, error) {
	val, err := s.client.Get(ctx, statusKey(workspace, kb)).Result()
	if err == redis.Nil {
		return entities.StatusNotFound, nil
	}
	if err != nil {
		return "", kberrors.New(kberrors.StoreUnavailable, "RedisStore.GetStatus", err)
	}
	return entities.KBStatus(val), nil
}

func (s *RedisStore) SetFolderStructure(ctx context.Context, workspace, kb string, folders []*entities.Folder) error {
	data, err := json.Marshal(folders)
	if err != nil {
		return kberrors.New(kberrors.StoreUnavailable, "RedisStore.SetFolderStructure", err)
	}
	if err := s.client.Set(ctx, folderKey(workspace, kb), data, 0).Err(); err != nil {
		return kberrors.New(kberrors.StoreUnavailable, "RedisStore.SetFolderStructure", err)
	}
	return nil
}

func (s *RedisStore) GetFolderStructure(ctx context.Context, workspace, kb string) ([]*entities.Folder, error) {
	val, err := s.client.Get(ctx, folderKey(workspace, kb)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, kberrors.New(kberrors.StoreUnavailable, "RedisStore.GetFolderStructure", err)
	}
	var folders []*entities.Folder
	if err := json.Unmarshal(val, &folders); err != nil {
		return nil, kberrors.New(kberrors.StoreUnavailable, "RedisStore.GetFolderStructure", err)
	}
	return folders, nil
}

func (s *RedisStore) SetDocs(ctx context.Context, workspace, kb string, docs []entities.Document) error {
	data, err := json.Marshal(docs)
	if err != nil {
		return kberrors.New(kberrors.StoreUnavailable, "RedisStore.SetDocs", err)
	}
	if err := s.client.Set(ctx, docsKey(workspace, kb), data, 0).Err(); err != nil {
		return kberrors.New(kberrors.StoreUnavailable, "RedisStore.SetDocs", err)
	}
	return nil
}

func (s *RedisStore) GetDocs(ctx context.Context, workspace, kb string) ([]entities.Document, error) {
	val, err := s.client.Get(ctx, docsKey(workspace, kb)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, kberrors.New(kberrors.StoreUnavailable, "RedisStore.GetDocs", err)
	}
	var docs []entities.Document
	if err := json.Unmarshal(val, &docs); err != nil {
		return nil, kberrors.New(kberrors.StoreUnavailable, "RedisStore.GetDocs", err)
	}
	return docs, nil
}

func (s *RedisStore) SetIndexCreated(ctx context.Context, kb string) error {
	if err := s.client.Set(ctx, indexCreatedKey(kb), "1", 0).Err(); err != nil {
		return kberrors.New(kberrors.StoreUnavailable, "RedisStore.SetIndexCreated", err)
	}
	return nil
}

func (s *RedisStore) IndexCreated(ctx context.Context, kb string) (bool, error) {
	exists, err := s.client.Exists(ctx, indexCreatedKey(kb)).Result()
	if err != nil {
		return false, kberrors.New(kberrors.StoreUnavailable, "RedisStore.IndexCreated", err)
	}
	return exists > 0, nil
}

// DeleteKB removes the three workspace-scoped keys and the workspace-
// agnostic index_created flag. Not transactional: a caller that observes a
// partial failure is expected to retry the whole delete.
func (s *RedisStore) DeleteKB(ctx context.Context, workspace, kb string) error {
	keys := []string{statusKey(workspace, kb), folderKey(workspace, kb), docsKey(workspace, kb), indexCreatedKey(kb)}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return kberrors.New(kberrors.StoreUnavailable, "RedisStore.DeleteKB", err)
	}
	return nil
}

// ScanStatuses iterates every kb:*:status key, optionally scoped to one
// workspace, using Redis SCAN to avoid blocking on KEYS.
func (s *RedisStore) ScanStatuses(ctx context.Context, workspace string) ([]ports.KBStatusEntry, error) {
	pattern := "kb:*:*:status"
	if workspace != "" {
		pattern = fmt.Sprintf("kb:%s:*:status", workspace)
	}

	var entries []ports.KBStatusEntry
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		parts := strings.Split(key, ":")
		if len(parts) != 4 {
			continue
		}
		ws, kb := parts[1], parts[2]
		status, err := s.client.Get(ctx, key).Result()
		if err != nil {
			continue
		}
		entries = append(entries, ports.KBStatusEntry{Workspace: ws, KB: kb, Status: entities.KBStatus(status)})
	}
	if err := iter.Err(); err != nil {
		return nil, kberrors.New(kberrors.StoreUnavailable, "RedisStore.ScanStatuses", err)
	}
	return entries, nil
}

// ScanDocsKeys finds every (workspace, kb) pair whose docs key matches kb,
// used to resolve a bare kb_id back to its owning workspace.
func (s *RedisStore) ScanDocsKeys(ctx context.Context, kb string) ([]ports.WorkspaceKB, error) {
	pattern := fmt.Sprintf("kb:*:%s:docs", kb)
	var out []ports.WorkspaceKB
	iter := s.client.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		parts := strings.Split(iter.Val(), ":")
		if len(parts) != 4 {
			continue
		}
		out = append(out, ports.WorkspaceKB{Workspace: parts[1], KB: parts[2]})
	}
	if err := iter.Err(); err != nil {
		return nil, kberrors.New(kberrors.StoreUnavailable, "RedisStore.ScanDocsKeys", err)
	}
	return out, nil
}
