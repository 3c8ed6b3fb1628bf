package prng

import "encoding/binary"

// Value is the set of fixed-width integer types Rand and SeedValue accept.
type Value interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~int8 | ~int16 | ~int32 | ~int64
}

// Rand draws one value of type T from s. It performs a single extraction of
// exactly the width of T and decodes the bytes little-endian, so the first
// extracted byte is the least significant byte of the result.
//
// Drawing a uint16 and a uint32 right after the same seed is not expected to
// give one as a prefix of the other.
func Rand[T Value](s Source) T {
	var zero T
	buf := make([]byte, binary.Size(zero))
	_, _ = s.Read(buf)
	var v uint64
	for i, b := range buf {
		v |= uint64(b) << (8 * i)
	}
	return T(v)
}

// SeedValue seeds s with the little-endian bytes of v.
func SeedValue[T Value](s Source, v T) {
	n := binary.Size(v)
	u := uint64(v)
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(u >> (8 * i))
	}
	s.Seed(buf)
}
