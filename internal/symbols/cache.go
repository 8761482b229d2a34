package symbols

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/babelhq/babel/internal/types"
)

const cacheVersion = 1

// fileEntry is one indexed file: the content hash it was extracted at and
// what came out.
type fileEntry struct {
	Hash    string         `json:"hash"`
	Symbols []types.Symbol `json:"symbols"`
}

type cacheFile struct {
	Version int                  `json:"version"`
	Files   map[string]fileEntry `json:"files"`
}

// diskCache persists the index between runs so a warm start only re-extracts
// files whose hash moved.
type diskCache struct {
	path string
}

// load returns the cached file map, or an empty map when the cache is
// missing or from an older version. Corruption is not an error either; the
// index just rebuilds.
func (c *diskCache) load() map[string]fileEntry {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return map[string]fileEntry{}
	}
	var cf cacheFile
	if err := json.Unmarshal(data, &cf); err != nil || cf.Version != cacheVersion {
		return map[string]fileEntry{}
	}
	if cf.Files == nil {
		cf.Files = map[string]fileEntry{}
	}
	return cf.Files
}

// save writes the cache atomically (temp file + rename).
func (c *diskCache) save(files map[string]fileEntry) error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create cache directory: %w", err)
	}
	data, err := json.MarshalIndent(cacheFile{Version: cacheVersion, Files: files}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal symbol cache: %w", err)
	}
	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// HashFunc fingerprints file content for cache keying. The default hashes
// content directly; callers inside a git work tree can swap in a blob-hash
// variant so the fingerprint matches what git already computed.
type HashFunc func(path string, content []byte) string

// ContentHash is the default HashFunc.
func ContentHash(_ string, content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
