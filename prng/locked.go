package prng

import "sync"

// Locked wraps a Source and serializes every call with a mutex. It is the
// shared-access variant of a generator; the wrapped Source must not be used
// directly while the Locked value is in use.
type Locked struct {
	mu sync.Mutex
	s  Source
}

var _ Source = (*Locked)(nil)

// NewLocked returns a Source that is safe for concurrent use.
// If s is already a *Locked, it is returned as-is.
func NewLocked(s Source) *Locked {
	if l, ok := s.(*Locked); ok {
		return l
	}
	return &Locked{s: s}
}

func (l *Locked) Seed(v []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.s.Seed(v)
}

func (l *Locked) AddEntropy(v []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.AddEntropy(v)
}

func (l *Locked) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Read(p)
}

func (l *Locked) PoolSize() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.PoolSize()
}

func (l *Locked) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.State()
}

func (l *Locked) Restore(st State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.s.Restore(st)
}

// Do runs fn with exclusive access to the wrapped Source, for sequences of
// calls that must not interleave with other callers.
func (l *Locked) Do(fn func(s Source) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn(l.s)
}
