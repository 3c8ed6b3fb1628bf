// Package hashes provides hash engines for prng generators and a registry to
// build generators from runtime names.
//
// The CRC and fast non-cryptographic engines exist for small targets and for
// tests; they make the generator predictable to anyone who observes a few
// outputs. Use one of the cryptographic engines when unpredictability
// matters, and even then the output is only as good as the pool entropy.
package hashes

import (
	"errors"
	"fmt"
	"hash"
	"sort"

	"hashprng/prng"
)

var (
	// ErrUnknownHash is returned for an engine name missing from the registry.
	ErrUnknownHash = errors.New("unknown hash engine")
	// ErrCounterWidth is returned for a counter width other than 8, 16, 32 or 64 bits.
	ErrCounterWidth = errors.New("counter width must be 8, 16, 32 or 64 bits")
	// ErrPoolSize is returned for a non-positive pool size.
	ErrPoolSize = errors.New("pool size must be positive")
)

// Info describes a registered engine.
type Info struct {
	Name          string `json:"name"`
	Size          int    `json:"size"`
	Cryptographic bool   `json:"cryptographic"`
}

type engine struct {
	info  Info
	build func(counterBits, poolBytes int) (prng.Source, error)
}

var engines = map[string]engine{}

func register[H any, PH prng.HashPtr[H]](name string, cryptographic bool) {
	var h H
	engines[name] = engine{
		info:  Info{Name: name, Size: PH(&h).Size(), Cryptographic: cryptographic},
		build: build[H, PH],
	}
}

func init() {
	register[CRC16, *CRC16]("crc16", false)
	register[CRC32, *CRC32]("crc32", false)
	register[FNV64a, *FNV64a]("fnv64a", false)
	register[XXH64, *XXH64]("xxh64", false)
	register[Highway64, *Highway64]("highway64", false)
	register[SHA256, *SHA256]("sha256", true)
	register[SHA256SIMD, *SHA256SIMD]("sha256simd", true)
	register[SHA3, *SHA3]("sha3-256", true)
	register[BLAKE2s, *BLAKE2s]("blake2s", true)
	register[BLAKE3, *BLAKE3]("blake3", true)
}

// Names returns the registered engine names in sorted order.
func Names() []string {
	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the description of the named engine.
func Lookup(name string) (Info, error) {
	e, ok := engines[name]
	if !ok {
		return Info{}, fmt.Errorf("%w: %q", ErrUnknownHash, name)
	}
	return e.info, nil
}

// NewSource builds a generator for a configuration chosen at runtime. The
// result goes through the prng.Source interface rather than a concrete
// Generator instantiation.
func NewSource(name string, counterBits, poolBytes int) (prng.Source, error) {
	e, ok := engines[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHash, name)
	}
	if poolBytes <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrPoolSize, poolBytes)
	}
	return e.build(counterBits, poolBytes)
}

func build[H any, PH prng.HashPtr[H]](counterBits, poolBytes int) (prng.Source, error) {
	switch counterBits {
	case 8:
		return prng.New[uint8, H, PH](poolBytes), nil
	case 16:
		return prng.New[uint16, H, PH](poolBytes), nil
	case 32:
		return prng.New[uint32, H, PH](poolBytes), nil
	case 64:
		return prng.New[uint64, H, PH](poolBytes), nil
	default:
		return nil, fmt.Errorf("%w: got %d", ErrCounterWidth, counterBits)
	}
}

// stream adapts a hash.Hash to the byte-at-a-time engine contract.
type stream struct {
	h   hash.Hash
	one [1]byte
	sum []byte
}

func (s *stream) start(h hash.Hash) {
	s.h = h
	s.sum = s.sum[:0]
}

func (s *stream) Update(b byte) {
	s.one[0] = b
	_, _ = s.h.Write(s.one[:])
}

func (s *stream) Final() {
	s.sum = s.h.Sum(s.sum[:0])
}

func (s *stream) Byte(i int) byte {
	return s.sum[i]
}
