// Package store persists generator snapshots and a hash-chained journal of
// pool mutations to a single JSON file.
//
// The file holds raw pool contents. Anyone who can read it can predict every
// future output of the stored generators, so it is written with mode 0600.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"hashprng/prng"
)

var (
	ErrNotFound = errors.New("pool not found")
	ErrCorrupt  = errors.New("store file is corrupt")
)

// PoolConfig is the fixed configuration a generator was built with.
type PoolConfig struct {
	Name        string `json:"name"`
	Hash        string `json:"hash"`
	CounterBits int    `json:"counter_bits"`
	PoolBytes   int    `json:"pool_bytes"`
}

// Snapshot is a persisted generator.
type Snapshot struct {
	Config  PoolConfig `json:"config"`
	State   prng.State `json:"state"`
	SavedAt time.Time  `json:"saved_at"`
}

type file struct {
	Pools   map[string]Snapshot `json:"pools"`
	Journal []Entry             `json:"journal"`
}

// Store keeps snapshots and the journal in memory and writes them to path.
// An empty path keeps everything in memory.
type Store struct {
	path string
	now  func() time.Time

	mu      sync.RWMutex
	pools   map[string]Snapshot
	journal []Entry

	// saveMu serializes writes of the file and journal appends.
	saveMu sync.Mutex
}

// Open loads the store at path. A missing file yields an empty store. A file
// that does not parse is moved aside to path.corrupt-<timestamp> and
// ErrCorrupt is returned; opening the same path again starts empty.
func Open(path string) (*Store, error) {
	s := &Store{path: path, now: time.Now, pools: map[string]Snapshot{}}
	if path == "" {
		return s, nil
	}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read store: %w", err)
	}
	var f file
	if err := json.Unmarshal(b, &f); err != nil {
		bad := path + ".corrupt-" + time.Now().Format("20060102-150405")
		if err2 := os.Rename(path, bad); err2 != nil {
			return nil, fmt.Errorf("%w: %v (moving it aside failed: %v)", ErrCorrupt, err, err2)
		}
		return nil, fmt.Errorf("%w: moved to %s: %v", ErrCorrupt, bad, err)
	}
	if f.Pools != nil {
		s.pools = f.Pools
	}
	s.journal = f.Journal
	return s, nil
}

// Path returns the backing file path, empty for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Get returns the snapshot of the named pool.
func (s *Store) Get(name string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.pools[name]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return snap, nil
}

// List returns all snapshots ordered by pool name.
func (s *Store) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Snapshot, 0, len(s.pools))
	for _, snap := range s.pools {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Config.Name < out[j].Config.Name })
	return out
}

// Record stores snap, appends a journal entry for op over data and writes
// the file. Only the SHA-256 of data enters the journal. If the write fails
// the snapshot and the entry are rolled back.
func (s *Store) Record(snap Snapshot, op string, data []byte) (Entry, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	prev, existed := s.pools[snap.Config.Name]
	snap.SavedAt = s.now().UTC()
	s.pools[snap.Config.Name] = snap
	e := s.appendLocked(snap.Config.Name, op, data)
	s.mu.Unlock()

	if err := s.saveLocked(); err != nil {
		s.mu.Lock()
		s.journal = s.journal[:e.Index]
		if existed {
			s.pools[snap.Config.Name] = prev
		} else {
			delete(s.pools, snap.Config.Name)
		}
		s.mu.Unlock()
		return Entry{}, err
	}
	return e, nil
}

// Update stores snap without a journal entry, for state that moves on every
// draw such as the counter.
func (s *Store) Update(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.SavedAt = s.now().UTC()
	s.pools[snap.Config.Name] = snap
}

// Save writes the store atomically through a temporary file in the same
// directory.
func (s *Store) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}
	s.mu.RLock()
	data, err := json.MarshalIndent(file{Pools: s.pools, Journal: s.journal}, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}
