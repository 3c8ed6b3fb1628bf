package hashes

import (
	"crypto/sha256"

	simd "github.com/minio/sha256-simd"
	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2s"
	"golang.org/x/crypto/sha3"
)

// SHA256 is SHA-256 from the standard library.
type SHA256 struct{ stream }

func (h *SHA256) Init()   { h.start(sha256.New()) }
func (*SHA256) Size() int { return sha256.Size }

// SHA256SIMD is SHA-256 using SIMD extensions where the CPU has them. Its
// digests are identical to SHA256.
type SHA256SIMD struct{ stream }

func (h *SHA256SIMD) Init()   { h.start(simd.New()) }
func (*SHA256SIMD) Size() int { return simd.Size }

// SHA3 is SHA3-256.
type SHA3 struct{ stream }

func (h *SHA3) Init()   { h.start(sha3.New256()) }
func (*SHA3) Size() int { return 32 }

// BLAKE2s is unkeyed BLAKE2s-256.
type BLAKE2s struct{ stream }

func (h *BLAKE2s) Init() {
	b, err := blake2s.New256(nil)
	if err != nil {
		panic(err)
	}
	h.start(b)
}

func (*BLAKE2s) Size() int { return blake2s.Size }

// BLAKE3 is BLAKE3 with its default 32-byte output.
type BLAKE3 struct{ stream }

func (h *BLAKE3) Init()   { h.start(blake3.New()) }
func (*BLAKE3) Size() int { return 32 }
