package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/babelhq/babel/internal/debug"
)

// QueueItem is one extraction input waiting for a provider.
type QueueItem struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	SourceID string    `json:"source_id"`
	Context  string    `json:"context,omitempty"`
	QueuedAt time.Time `json:"queued_at"`
}

// queueFile is the on-disk shape.
type queueFile struct {
	Items []QueueItem `json:"items"`
}

// Queue holds extraction inputs across runs. The file is mutable working
// state, not history: drained items are removed, and losing the file only
// loses pending work, never recorded events.
type Queue struct {
	path string

	mu    sync.Mutex
	items []QueueItem
}

// OpenQueue loads the queue at path, treating a missing file as empty.
func OpenQueue(path string) (*Queue, error) {
	q := &Queue{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return q, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read extract queue: %w", err)
	}

	var f queueFile
	if err := json.Unmarshal(data, &f); err != nil {
		// A corrupt queue is pending work, not history. Start fresh
		// rather than refusing to run.
		debug.Logf("extract: queue %s corrupt, starting empty: %v", path, err)
		return q, nil
	}
	q.items = f.Items
	return q, nil
}

// Enqueue appends an input and persists immediately.
func (q *Queue) Enqueue(text, sourceID, artifactContext string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, QueueItem{
		ID:       ulid.Make().String(),
		Text:     text,
		SourceID: sourceID,
		Context:  artifactContext,
		QueuedAt: time.Now().UTC(),
	})
	return q.save()
}

// Len reports how many inputs are waiting.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a copy of the pending inputs, oldest first.
func (q *Queue) Items() []QueueItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueueItem, len(q.items))
	copy(out, q.items)
	return out
}

// Drain runs the extractor over every pending input, oldest first. Items are
// removed as they succeed; on the first failure the failed item and everything
// behind it stay queued, and the proposals gathered so far are returned with
// the error.
func (q *Queue) Drain(ctx context.Context, ex Extractor) ([]Proposal, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var proposals []Proposal
	for len(q.items) > 0 {
		if err := ctx.Err(); err != nil {
			_ = q.save()
			return proposals, err
		}
		item := q.items[0]
		ps, err := ex.Extract(ctx, item.Text, item.SourceID, item.Context)
		if err != nil {
			if saveErr := q.save(); saveErr != nil {
				debug.Logf("extract: persisting queue after failure: %v", saveErr)
			}
			return proposals, fmt.Errorf("drain %s: %w", item.ID, err)
		}
		proposals = append(proposals, ps...)
		q.items = q.items[1:]
	}
	if err := q.save(); err != nil {
		return proposals, err
	}
	return proposals, nil
}

// save writes the queue atomically. Callers hold q.mu.
func (q *Queue) save() error {
	if err := os.MkdirAll(filepath.Dir(q.path), 0755); err != nil {
		return fmt.Errorf("create queue dir: %w", err)
	}
	data, err := json.MarshalIndent(queueFile{Items: q.items}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal extract queue: %w", err)
	}
	tmp := q.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write extract queue: %w", err)
	}
	if err := os.Rename(tmp, q.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename extract queue: %w", err)
	}
	return nil
}
