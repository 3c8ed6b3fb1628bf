package store

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Journal operations.
const (
	OpCreate  = "create"
	OpSeed    = "seed"
	OpEntropy = "entropy"
	OpRestore = "restore"
)

// ErrBrokenChain is returned by Verify when an entry does not match its hash
// or its predecessor.
var ErrBrokenChain = errors.New("journal chain is broken")

// Entry is one pool mutation. DataHash is the SHA-256 of the mutation input,
// so the journal proves what was applied without revealing it.
type Entry struct {
	Index     int    `json:"index"`
	Timestamp int64  `json:"timestamp"`
	Pool      string `json:"pool"`
	Op        string `json:"op"`
	DataHash  string `json:"data_hash"`
	PrevHash  string `json:"prev_hash"`
	Hash      string `json:"hash"`
}

func (s *Store) appendLocked(pool, op string, data []byte) Entry {
	prev := ""
	if len(s.journal) > 0 {
		prev = s.journal[len(s.journal)-1].Hash
	}
	dh := sha256.Sum256(data)
	e := Entry{
		Index:     len(s.journal),
		Timestamp: s.now().Unix(),
		Pool:      pool,
		Op:        op,
		DataHash:  hex.EncodeToString(dh[:]),
		PrevHash:  prev,
	}
	e.Hash = entryHash(e)
	s.journal = append(s.journal, e)
	return e
}

func entryHash(e Entry) string {
	s := fmt.Sprintf("%d:%d:%s:%s:%s:%s", e.Index, e.Timestamp, e.Pool, e.Op, e.DataHash, e.PrevHash)
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Journal returns a copy of the journal, optionally filtered to one pool.
func (s *Store) Journal(pool string) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, len(s.journal))
	for _, e := range s.journal {
		if pool == "" || e.Pool == pool {
			out = append(out, e)
		}
	}
	return out
}

// Verify checks every entry's hash, index and link to its predecessor.
func (s *Store) Verify() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i, e := range s.journal {
		if e.Index != i || entryHash(e) != e.Hash {
			return fmt.Errorf("%w: entry %d", ErrBrokenChain, i)
		}
		if i > 0 && e.PrevHash != s.journal[i-1].Hash {
			return fmt.Errorf("%w: entry %d does not link to %d", ErrBrokenChain, i, i-1)
		}
	}
	return nil
}
