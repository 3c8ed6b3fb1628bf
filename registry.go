package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"hashprng/internal/store"
	"hashprng/prng"
	"hashprng/prng/hashes"
)

var (
	errPoolExists = errors.New("pool already exists")
	errPoolName   = errors.New("pool name must match [A-Za-z0-9_.-]{1,64}")
	errCounterMax = errors.New("counter does not fit the pool's counter width")
)

var poolNameRE = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// pool is a named generator. The generator is only reached through the
// Locked wrapper.
type pool struct {
	cfg store.PoolConfig
	src *prng.Locked
}

func (p *pool) snapshot(st prng.State) store.Snapshot {
	return store.Snapshot{Config: p.cfg, State: st}
}

// registry owns the named pools and mirrors their state into the store.
type registry struct {
	store *store.Store

	mu    sync.RWMutex
	pools map[string]*pool
}

func newRegistry(st *store.Store) *registry {
	return &registry{store: st, pools: map[string]*pool{}}
}

func build(cfg store.PoolConfig) (*pool, error) {
	if !poolNameRE.MatchString(cfg.Name) {
		return nil, fmt.Errorf("%w: %q", errPoolName, cfg.Name)
	}
	src, err := hashes.NewSource(cfg.Hash, cfg.CounterBits, cfg.PoolBytes)
	if err != nil {
		return nil, err
	}
	return &pool{cfg: cfg, src: prng.NewLocked(src)}, nil
}

// load rebuilds every pool saved in the store.
func (r *registry) load() (int, error) {
	snaps := r.store.List()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range snaps {
		p, err := build(snap.Config)
		if err != nil {
			return 0, fmt.Errorf("rebuild pool %q: %w", snap.Config.Name, err)
		}
		if err := p.src.Restore(snap.State); err != nil {
			return 0, fmt.Errorf("restore pool %q: %w", snap.Config.Name, err)
		}
		r.pools[snap.Config.Name] = p
	}
	return len(snaps), nil
}

func (r *registry) create(cfg store.PoolConfig) (*pool, error) {
	p, err := build(cfg)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	if _, ok := r.pools[cfg.Name]; ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", errPoolExists, cfg.Name)
	}
	r.pools[cfg.Name] = p
	r.mu.Unlock()

	if _, err := r.store.Record(p.snapshot(p.src.State()), store.OpCreate, nil); err != nil {
		r.mu.Lock()
		delete(r.pools, cfg.Name)
		r.mu.Unlock()
		return nil, fmt.Errorf("persist pool: %w", err)
	}
	return p, nil
}

func (r *registry) get(name string) (*pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", store.ErrNotFound, name)
	}
	return p, nil
}

func (r *registry) list() []*pool {
	r.mu.RLock()
	out := make([]*pool, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].cfg.Name < out[j].cfg.Name })
	return out
}

// mutate runs fn under the pool lock and journals the result as op over data.
// The generator is put back to its previous state when the journal entry
// cannot be written.
func (r *registry) mutate(p *pool, op string, data []byte, fn func(s prng.Source) error) (store.Entry, error) {
	var e store.Entry
	err := p.src.Do(func(s prng.Source) error {
		prev := s.State()
		if err := fn(s); err != nil {
			return err
		}
		var err error
		e, err = r.store.Record(p.snapshot(s.State()), op, data)
		if err != nil {
			_ = s.Restore(prev)
			return fmt.Errorf("persist pool: %w", err)
		}
		return nil
	})
	return e, err
}

// restore replaces the pool contents and counter of p with st.
func (r *registry) restore(p *pool, st prng.State) (store.Entry, error) {
	if p.cfg.CounterBits < 64 && st.Counter>>uint(p.cfg.CounterBits) != 0 {
		return store.Entry{}, fmt.Errorf("%w: %d needs more than %d bits", errCounterMax, st.Counter, p.cfg.CounterBits)
	}
	data, err := json.Marshal(st)
	if err != nil {
		return store.Entry{}, fmt.Errorf("encode state: %w", err)
	}
	return r.mutate(p, store.OpRestore, data, func(s prng.Source) error {
		return s.Restore(st)
	})
}

// draw runs fn under the pool lock and saves the advanced counter.
func (r *registry) draw(p *pool, fn func(s prng.Source)) (uint64, error) {
	var counter uint64
	err := p.src.Do(func(s prng.Source) error {
		fn(s)
		st := s.State()
		counter = st.Counter
		r.store.Update(p.snapshot(st))
		return r.store.Save()
	})
	if err != nil {
		return counter, fmt.Errorf("persist pool: %w", err)
	}
	return counter, nil
}
