// Package dirty tracks content hashes of extraction inputs so that only
// changed sources and model files are re-extracted.
package dirty

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// DefaultFile is the default filename for the tracker state, stored next
// to the model store.
const DefaultFile = "inputs.json"

// fileState is the recorded state of one input.
type fileState struct {
	Key      string `json:"key"`
	Hash     string `json:"hash"`
	LastSeen int64  `json:"last_seen"` // Unix timestamp
}

// trackerData is the on-disk JSON structure.
type trackerData struct {
	Version int         `json:"version"`
	Files   []fileState `json:"files"`
}

// Tracker remembers the content hash of every input seen by the last
// successful extraction.
type Tracker struct {
	mu    sync.RWMutex
	files map[string]fileState
	dir   string
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithDir sets the state directory.
func WithDir(dir string) Option {
	return func(t *Tracker) {
		t.dir = dir
	}
}

// New creates an empty Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{
		files: make(map[string]fileState),
		dir:   ".",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open creates a Tracker in dir and loads its saved state, if any.
func Open(dir string) (*Tracker, error) {
	t := New(WithDir(dir))
	if err := t.Load(); err != nil {
		return nil, err
	}
	return t, nil
}

// computeHash computes SHA256 hash of file contents.
func computeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ChangeSet is the difference between the tracked state and the inputs on
// disk. It is applied with Tracker.Apply once the extraction succeeded.
type ChangeSet struct {
	// Changed lists new or modified keys, sorted.
	Changed []string
	// Removed lists tracked keys that are no longer present, sorted.
	Removed []string

	hashes map[string]string
	scope  string
}

// Empty reports whether nothing changed.
func (c *ChangeSet) Empty() bool {
	return len(c.Changed) == 0 && len(c.Removed) == 0
}

// Check hashes path and reports whether it differs from what is recorded
// under key. The tracker is not modified.
func (t *Tracker) Check(key, path string) (bool, string, error) {
	hash, err := computeHash(path)
	if err != nil {
		return false, "", err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	existing, ok := t.files[key]
	return !ok || existing.Hash != hash, hash, nil
}

// Changes compares the source files paths (relative to root) with the
// tracked state. Only keys below scope take part in removal detection, so
// sources and model files can share one tracker.
func (t *Tracker) Changes(root, scope string, paths []string) (*ChangeSet, error) {
	cs := &ChangeSet{hashes: make(map[string]string, len(paths)), scope: scope}
	present := make(map[string]struct{}, len(paths))

	for _, p := range paths {
		key := scope + filepath.ToSlash(p)
		present[key] = struct{}{}
		changed, hash, err := t.Check(key, filepath.Join(root, p))
		if err != nil {
			return nil, err
		}
		if changed {
			cs.Changed = append(cs.Changed, filepath.ToSlash(p))
			cs.hashes[key] = hash
		}
	}

	t.mu.RLock()
	for key := range t.files {
		if len(key) < len(scope) || key[:len(scope)] != scope {
			continue
		}
		if _, ok := present[key]; !ok {
			cs.Removed = append(cs.Removed, key[len(scope):])
		}
	}
	t.mu.RUnlock()

	sort.Strings(cs.Changed)
	sort.Strings(cs.Removed)
	return cs, nil
}

// Apply records the hashes of cs and forgets its removed keys.
func (t *Tracker) Apply(cs *ChangeSet) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now().Unix()
	for key, hash := range cs.hashes {
		t.files[key] = fileState{Key: key, Hash: hash, LastSeen: now}
	}
	for _, p := range cs.Removed {
		delete(t.files, cs.scope+p)
	}
}

// Record stores hash under key.
func (t *Tracker) Record(key, hash string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files[key] = fileState{Key: key, Hash: hash, LastSeen: time.Now().Unix()}
}

// Len returns the number of tracked inputs.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.files)
}

// Clear forgets every input, forcing a full re-extraction.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = make(map[string]fileState)
}

func (t *Tracker) statePath() string {
	return filepath.Join(t.dir, DefaultFile)
}

// Save persists the state.
func (t *Tracker) Save() error {
	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	f, err := os.Create(t.statePath())
	if err != nil {
		return fmt.Errorf("failed to create state file: %w", err)
	}
	defer f.Close()

	return t.SaveTo(f)
}

// Load restores the state. A missing file leaves the tracker empty.
func (t *Tracker) Load() error {
	f, err := os.Open(t.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open state file: %w", err)
	}
	defer f.Close()

	return t.LoadFrom(f)
}

// SaveTo writes the state to w, sorted by key.
func (t *Tracker) SaveTo(w io.Writer) error {
	t.mu.RLock()
	files := make([]fileState, 0, len(t.files))
	for _, state := range t.files {
		files = append(files, state)
	}
	t.mu.RUnlock()
	sort.Slice(files, func(i, j int) bool { return files[i].Key < files[j].Key })

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(trackerData{Version: 1, Files: files}); err != nil {
		return fmt.Errorf("failed to encode tracker state: %w", err)
	}
	return nil
}

// LoadFrom reads the state from r.
func (t *Tracker) LoadFrom(r io.Reader) error {
	var data trackerData
	if err := json.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode tracker state: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.files = make(map[string]fileState, len(data.Files))
	for _, state := range data.Files {
		t.files[state.Key] = state
	}
	return nil
}
