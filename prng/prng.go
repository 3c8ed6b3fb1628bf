// Package prng implements a deterministic pseudo-random number generator for
// environments without a trustworthy OS random source.
//
// A Generator keeps a fixed-size entropy pool and a wrapping counter. Every
// output is produced by hashing the pool followed by the counter's bytes,
// incrementing the counter once per hash evaluation. Outputs wider than one
// digest are filled by independent evaluations over successive counter
// values, never by re-hashing a previous digest.
//
// The generator is NOT cryptographically secure by itself: its output is as
// unpredictable as the entropy fed into the pool and the hash engine chosen,
// and no better. Entropy acquisition, reseeding and persistence are the
// caller's job.
package prng

import (
	"errors"
	"fmt"
	"math/bits"
)

// ErrEntropyLength is returned when AddEntropy receives a block whose length
// differs from the pool length.
var ErrEntropyLength = errors.New("entropy block length must equal pool size")

// ErrStateLength is returned when Restore receives a pool of the wrong length.
var ErrStateLength = errors.New("state pool length must equal pool size")

// Hash is a one-way hash engine fed one byte at a time.
//
// The zero value must be ready for use after Init. Size reports the digest
// width in bytes and must not depend on the receiver's state. Byte(i) is only
// valid after Final, for 0 <= i < Size().
type Hash interface {
	Init()
	Update(b byte)
	Final()
	Size() int
	Byte(i int) byte
}

// HashPtr constrains PH to be a pointer to H that implements Hash, so the
// generator can instantiate a fresh engine as a zero-valued H.
type HashPtr[H any] interface {
	*H
	Hash
}

// Counter is the set of unsigned integer types usable as the generator
// counter. Its width fixes the period of the output sequence.
type Counter interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Source is the runtime view of a generator, independent of its hash and
// counter type parameters.
type Source interface {
	Seed(v []byte)
	AddEntropy(v []byte) error
	Read(p []byte) (int, error)
	PoolSize() int
	State() State
	Restore(st State) error
}

// State is a snapshot of the generator's pool and counter.
type State struct {
	Pool    []byte `json:"pool"`
	Counter uint64 `json:"counter"`
}

// Generator is a pool/counter/hash generator. C is the counter type, H the
// hash engine and PH is inferred as *H.
//
// A Generator is not safe for concurrent use; every output request mutates
// the counter. Wrap it with NewLocked to share it.
type Generator[C Counter, H any, PH HashPtr[H]] struct {
	pool    []byte
	counter C
}

// New returns a generator with a zeroed pool of poolBytes bytes and a counter
// starting at 0. It panics if poolBytes is not positive.
func New[C Counter, H any, PH HashPtr[H]](poolBytes int) *Generator[C, H, PH] {
	if poolBytes <= 0 {
		panic(fmt.Sprintf("prng: pool size must be positive, got %d", poolBytes))
	}
	return &Generator[C, H, PH]{pool: make([]byte, poolBytes)}
}

// PoolSize returns the pool length in bytes.
func (g *Generator[C, H, PH]) PoolSize() int {
	return len(g.pool)
}

// Counter returns the value the next hash evaluation will consume.
func (g *Generator[C, H, PH]) Counter() C {
	return g.counter
}

// Pool returns a copy of the pool contents.
func (g *Generator[C, H, PH]) Pool() []byte {
	out := make([]byte, len(g.pool))
	copy(out, g.pool)
	return out
}

// Seed overwrites the pool with v. Bytes beyond the pool length are dropped
// and a short v leaves the remaining pool bytes zero. All previous entropy is
// lost. The counter is not touched.
func (g *Generator[C, H, PH]) Seed(v []byte) {
	n := copy(g.pool, v)
	clear(g.pool[n:])
}

// AddEntropy XORs v into the pool. Applying the same block twice restores the
// previous pool. v must be exactly PoolSize bytes long.
func (g *Generator[C, H, PH]) AddEntropy(v []byte) error {
	if len(v) != len(g.pool) {
		return fmt.Errorf("%w: got %d bytes, pool holds %d", ErrEntropyLength, len(v), len(g.pool))
	}
	for i := range g.pool {
		g.pool[i] ^= v[i]
	}
	return nil
}

// Read fills p with one extraction of len(p) bytes and always returns
// len(p), nil. Each call starts a fresh evaluation: digest bytes left over
// from the previous call are never carried into the next one, so two reads of
// 2 bytes do not equal one read of 4. An empty p consumes no counter value.
func (g *Generator[C, H, PH]) Read(p []byte) (int, error) {
	filled := 0
	for filled < len(p) {
		filled += g.evaluate(p[filled:])
	}
	return len(p), nil
}

// evaluate runs one hash evaluation over (pool, counter), advances the counter
// and copies as much of the digest as fits into dst.
func (g *Generator[C, H, PH]) evaluate(dst []byte) int {
	var engine H
	h := PH(&engine)
	h.Init()
	for _, b := range g.pool {
		h.Update(b)
	}

	c := g.counter
	g.counter++
	v := uint64(c)
	for i := 0; i < counterWidth[C](); i++ {
		h.Update(byte(v >> (8 * i)))
	}
	h.Final()

	n := min(h.Size(), len(dst))
	for i := 0; i < n; i++ {
		dst[i] = h.Byte(i)
	}
	return n
}

// State returns a snapshot of the pool and counter.
func (g *Generator[C, H, PH]) State() State {
	return State{Pool: g.Pool(), Counter: uint64(g.counter)}
}

// Restore replaces the pool and counter with st. The counter is truncated to
// the generator's counter width.
func (g *Generator[C, H, PH]) Restore(st State) error {
	if len(st.Pool) != len(g.pool) {
		return fmt.Errorf("%w: got %d bytes, pool holds %d", ErrStateLength, len(st.Pool), len(g.pool))
	}
	copy(g.pool, st.Pool)
	g.counter = C(st.Counter)
	return nil
}

// counterWidth returns the width of C in bytes.
func counterWidth[C Counter]() int {
	var c C
	c--
	return bits.Len64(uint64(c)) / 8
}
