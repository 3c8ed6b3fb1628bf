package hashes

import (
	"hash/fnv"

	"github.com/cespare/xxhash/v2"
	"github.com/minio/highwayhash"
)

// FNV64a is 64-bit FNV-1a.
type FNV64a struct{ stream }

func (h *FNV64a) Init()   { h.start(fnv.New64a()) }
func (*FNV64a) Size() int { return 8 }

// XXH64 is xxHash64 with a zero seed.
type XXH64 struct{ stream }

func (h *XXH64) Init()   { h.start(xxhash.New()) }
func (*XXH64) Size() int { return 8 }

// highwayKey is public. HighwayHash is used here as a fast keyed mixer, not
// as a MAC, so a fixed key keeps outputs reproducible across processes.
var highwayKey = [highwayhash.Size]byte{
	0x68, 0x61, 0x73, 0x68, 0x70, 0x72, 0x6e, 0x67,
	0x2d, 0x68, 0x69, 0x67, 0x68, 0x77, 0x61, 0x79,
	0x2d, 0x36, 0x34, 0x2d, 0x6b, 0x65, 0x79, 0x2d,
	0x76, 0x31, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
}

// Highway64 is HighwayHash-64 under a fixed public key.
type Highway64 struct{ stream }

func (h *Highway64) Init() {
	hh, err := highwayhash.New64(highwayKey[:])
	if err != nil {
		panic(err)
	}
	h.start(hh)
}

func (*Highway64) Size() int { return highwayhash.Size64 }
