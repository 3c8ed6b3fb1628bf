package hashes

import (
	"crypto/sha256"
	"hash/fnv"
	"testing"

	"github.com/cespare/xxhash/v2"
	"github.com/minio/highwayhash"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"

	"hashprng/prng"
)

var check = []byte("123456789")

func digest(h prng.Hash, data []byte) []byte {
	h.Init()
	for _, b := range data {
		h.Update(b)
	}
	h.Final()
	out := make([]byte, h.Size())
	for i := range out {
		out[i] = h.Byte(i)
	}
	return out
}

func TestCRCCheckValues(t *testing.T) {
	require.Equal(t, []byte{0x29, 0xb1}, digest(&CRC16{}, check))
	require.Equal(t, []byte{0xcb, 0xf4, 0x39, 0x26}, digest(&CRC32{}, check))
}

func TestEnginesMatchLibraries(t *testing.T) {
	msg := []byte("the quick brown fox jumps over the lazy dog")

	sha := sha256.Sum256(msg)
	s3 := sha3.Sum256(msg)
	b2 := blake2s.Sum256(msg)
	b3 := blake3.Sum256(msg)
	f := fnv.New64a()
	f.Write(msg)
	xx := xxhash.New()
	xx.Write(msg)
	hw, err := highwayhash.New64(highwayKey[:])
	require.NoError(t, err)
	hw.Write(msg)

	tcs := []struct {
		name string
		h    prng.Hash
		want []byte
	}{
		{"sha256", &SHA256{}, sha[:]},
		{"sha256simd", &SHA256SIMD{}, sha[:]},
		{"sha3-256", &SHA3{}, s3[:]},
		{"blake2s", &BLAKE2s{}, b2[:]},
		{"blake3", &BLAKE3{}, b3[:]},
		{"fnv64a", &FNV64a{}, f.Sum(nil)},
		{"xxh64", &XXH64{}, xx.Sum(nil)},
		{"highway64", &Highway64{}, hw.Sum(nil)},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, digest(tc.h, msg))
		})
	}
}

func TestEngineReinitDropsState(t *testing.T) {
	h := &SHA256{}
	first := digest(h, []byte("abc"))
	require.Equal(t, first, digest(h, []byte("abc")))

	c := &CRC32{}
	require.Equal(t, digest(&CRC32{}, check), digest(c, check))
	require.Equal(t, digest(&CRC32{}, check), digest(c, check))
}

func TestNames(t *testing.T) {
	require.Equal(t, []string{
		"blake2s", "blake3", "crc16", "crc32", "fnv64a",
		"highway64", "sha256", "sha256simd", "sha3-256", "xxh64",
	}, Names())

	info, err := Lookup("crc16")
	require.NoError(t, err)
	require.Equal(t, Info{Name: "crc16", Size: 2}, info)

	info, err = Lookup("blake3")
	require.NoError(t, err)
	require.True(t, info.Cryptographic)
	require.Equal(t, 32, info.Size)

	_, err = Lookup("md5")
	require.ErrorIs(t, err, ErrUnknownHash)
}

func TestNewSourceMatchesDirectGenerator(t *testing.T) {
	src, err := NewSource("sha256", 16, 8)
	require.NoError(t, err)
	require.Equal(t, 8, src.PoolSize())

	direct := prng.New[uint16, SHA256](8)
	seed := []byte("runtime!")
	src.Seed(seed)
	direct.Seed(seed)
	require.Equal(t, prng.Rand[uint64](direct), prng.Rand[uint64](src))

	// second draw hashes pool || counter 1 as two little-endian bytes
	want := sha256.Sum256(append(append([]byte{}, seed...), 0x01, 0x00))
	var got [8]byte
	_, _ = src.Read(got[:])
	require.Equal(t, want[:8], got[:])
}

func TestNewSourceCounterWidths(t *testing.T) {
	for _, bits := range []int{8, 16, 32, 64} {
		src, err := NewSource("crc32", bits, 4)
		require.NoError(t, err)
		require.NoError(t, src.Restore(prng.State{Pool: make([]byte, 4), Counter: 1<<bits - 1}))
		_ = prng.Rand[uint32](src)
		require.Zero(t, src.State().Counter, "counter %d bits should wrap", bits)
	}
}

func TestNewSourceErrors(t *testing.T) {
	_, err := NewSource("nope", 16, 8)
	require.ErrorIs(t, err, ErrUnknownHash)

	_, err = NewSource("sha256", 12, 8)
	require.ErrorIs(t, err, ErrCounterWidth)

	_, err = NewSource("sha256", 16, 0)
	require.ErrorIs(t, err, ErrPoolSize)
}
