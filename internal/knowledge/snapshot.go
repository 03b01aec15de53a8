package knowledge

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/raphaelgruber/rafeeq/internal/kv"
	"github.com/raphaelgruber/rafeeq/internal/models"
	"github.com/raphaelgruber/rafeeq/internal/repair"
)

const snapshotVersion = 1

// ErrNoRemote is returned by Sync when no mirror is configured.
var ErrNoRemote = errors.New("knowledge: no remote store configured")

func loadSnapshot(ctx context.Context, store kv.Store, key string) (models.KnowledgeSnapshot, error) {
	data, err := store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return models.KnowledgeSnapshot{Version: snapshotVersion}, nil
	}
	if err != nil {
		return models.KnowledgeSnapshot{Version: snapshotVersion}, fmt.Errorf("get snapshot: %w", err)
	}

	var snap models.KnowledgeSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return models.KnowledgeSnapshot{Version: snapshotVersion}, fmt.Errorf("decode snapshot: %w", err)
	}
	snap.Entries = sanitize(snap.Entries)
	return snap, nil
}

func saveSnapshot(ctx context.Context, store kv.Store, key string, snap models.KnowledgeSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return store.Set(ctx, key, data)
}

// sanitize repairs entries read from storage written by older or foreign clients.
func sanitize(entries []models.KnowledgeEntry) []models.KnowledgeEntry {
	out := make([]models.KnowledgeEntry, 0, len(entries))
	for _, e := range entries {
		if e.InputSummary == "" {
			continue
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if err := repair.Validate(e.Data); err != nil {
			e.Data = repair.Repair(e.Data)
		}
		if e.Tags == nil {
			e.Tags = []string{}
		}
		out = append(out, e)
	}
	return out
}

func sortEntries(entries []models.KnowledgeEntry) []models.KnowledgeEntry {
	slices.SortStableFunc(entries, func(a, b models.KnowledgeEntry) int {
		return cmp.Compare(b.Timestamp.UnixNano(), a.Timestamp.UnixNano())
	})
	return entries
}

// Sync merges the remote snapshot into the local one by entry id,
// re-applies ordering and the cap, and writes the result to both sides.
func (s *Store) Sync(ctx context.Context) error {
	if s.remote == nil {
		return ErrNoRemote
	}
	key := kv.KnowledgeKey(s.userID)

	remote, err := loadSnapshot(ctx, s.remote, key)
	if err != nil {
		return fmt.Errorf("load remote: %w", err)
	}

	s.mu.Lock()
	merged := cloneEntries(s.entries)
	known := make(map[string]bool, len(merged))
	for _, e := range merged {
		known[e.ID] = true
	}
	added := 0
	for _, e := range remote.Entries {
		if !known[e.ID] {
			merged = append(merged, e)
			known[e.ID] = true
			added++
		}
	}
	s.entries = capEntries(sortEntries(merged), s.cap)
	s.lastSync = s.now().UTC()
	snap, seq := s.snapshotLocked()
	s.mu.Unlock()

	snap, seq = s.save(ctx, snap, seq)
	if err := s.pushRemote(ctx, snap, seq); err != nil {
		return fmt.Errorf("push remote: %w", err)
	}

	slog.Info("knowledge synced", "user", s.userID, "pulled", added, "entries", len(snap.Entries))
	return nil
}
