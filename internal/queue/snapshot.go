package queue

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sievefin/tradesift/internal/model"
)

// snapshotVersion guards against reading snapshots written by incompatible
// builds.
const snapshotVersion = 1

// snapshot is the serialized queue state.
type snapshot struct {
	Items   []model.ReviewQueueItem `json:"items"`
	Version int                     `json:"version"`
}

// WriteSnapshot serializes the full queue state. The write observes a
// consistent view of the queue.
func (q *ReviewQueue) WriteSnapshot(w io.Writer) error {
	q.mu.RLock()
	snap := snapshot{Version: snapshotVersion, Items: make([]model.ReviewQueueItem, 0, len(q.items))}
	for _, item := range q.items {
		snap.Items = append(snap.Items, *item)
	}
	q.mu.RUnlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to encode queue snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot replaces the queue contents with a previously written
// snapshot. Items beyond capacity are dropped oldest-first.
func (q *ReviewQueue) ReadSnapshot(r io.Reader) error {
	var snap snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("failed to decode queue snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported snapshot version %d", snap.Version)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = make(map[string]*model.ReviewQueueItem, len(snap.Items))
	for i := range snap.Items {
		item := snap.Items[i]
		if item.ID == "" {
			continue
		}
		q.items[item.ID] = &item
	}
	for len(q.items) > q.config.Capacity {
		q.evictLocked()
	}
	return nil
}
