// Package memo stores per-user display preferences: pinned topics, muted
// nodes, and free-form key/value settings commands consult when rendering.
//
// The store is mutable working state, deliberately outside the event log.
// Preferences are not reasoning history; editing or losing memos.json never
// touches an event, and nothing here is replayed.
package memo

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileName is the store's file under .babel/.
const FileName = "memos.json"

// prefs is the serialized form.
type prefs struct {
	Pinned []string          `json:"pinned_topics,omitempty"`
	Muted  []string          `json:"muted_nodes,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// Store persists preferences across runs. Safe for concurrent use within one
// process; every mutation saves immediately.
type Store struct {
	path string

	mu sync.RWMutex
	p  prefs
}

// Open loads the store at path, treating a missing or unreadable file as
// empty. Preferences are reconstructible by the user, so a corrupt file
// starts fresh instead of blocking the command.
func Open(path string) *Store {
	s := &Store{path: path, p: prefs{Values: make(map[string]string)}}

	data, err := os.ReadFile(path)
	if err != nil {
		return s
	}
	var p prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return s
	}
	if p.Values == nil {
		p.Values = make(map[string]string)
	}
	s.p = p
	return s
}

// Get returns the value for key, with ok reporting presence.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.p.Values[key]
	return v, ok
}

// Set stores a value and persists.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Values[key] = value
	return s.save()
}

// Delete removes a key and persists. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.p.Values[key]; !ok {
		return nil
	}
	delete(s.p.Values, key)
	return s.save()
}

// All returns every key/value pair, keys sorted.
func (s *Store) All() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.p.Values))
	for k, v := range s.p.Values {
		out[k] = v
	}
	return out
}

// Keys returns the stored keys, sorted.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.p.Values))
	for k := range s.p.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Pin adds a topic to the pinned list. Pinned topics float to the top of
// status output. Idempotent.
func (s *Store) Pin(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.p.Pinned {
		if t == topic {
			return nil
		}
	}
	s.p.Pinned = append(s.p.Pinned, topic)
	sort.Strings(s.p.Pinned)
	return s.save()
}

// Unpin removes a topic from the pinned list. Idempotent.
func (s *Store) Unpin(topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.p.Pinned[:0]
	removed := false
	for _, t := range s.p.Pinned {
		if t == topic {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	if !removed {
		return nil
	}
	s.p.Pinned = kept
	return s.save()
}

// Pinned returns the pinned topics, sorted.
func (s *Store) Pinned() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.p.Pinned...)
}

// Mute hides a node id from default listings. Muting affects display only;
// the node and its events are untouched.
func (s *Store) Mute(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.p.Muted {
		if id == nodeID {
			return nil
		}
	}
	s.p.Muted = append(s.p.Muted, nodeID)
	sort.Strings(s.p.Muted)
	return s.save()
}

// Unmute restores a node id to default listings.
func (s *Store) Unmute(nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.p.Muted[:0]
	removed := false
	for _, id := range s.p.Muted {
		if id == nodeID {
			removed = true
			continue
		}
		kept = append(kept, id)
	}
	if !removed {
		return nil
	}
	s.p.Muted = kept
	return s.save()
}

// IsMuted reports whether a node is hidden from default listings.
func (s *Store) IsMuted(nodeID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.p.Muted {
		if id == nodeID {
			return true
		}
	}
	return false
}

// save writes the file atomically via tmp+rename. Callers hold s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("memo: create dir: %w", err)
	}
	data, err := json.MarshalIndent(s.p, "", "  ")
	if err != nil {
		return fmt.Errorf("memo: marshal: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("memo: write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			return fmt.Errorf("memo: rename: %w (tmp cleanup: %v)", err, rmErr)
		}
		return fmt.Errorf("memo: rename: %w", err)
	}
	return nil
}
