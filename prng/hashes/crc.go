package hashes

import (
	"encoding/binary"
	"hash/crc32"
)

// CRC16 is CRC-16/CCITT-FALSE (poly 0x1021, init 0xffff, no reflection).
// The digest is the CRC in big-endian order.
type CRC16 struct {
	crc uint16
}

var crc16Table = func() (t [256]uint16) {
	for i := range t {
		c := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if c&0x8000 != 0 {
				c = c<<1 ^ 0x1021
			} else {
				c <<= 1
			}
		}
		t[i] = c
	}
	return t
}()

func (h *CRC16) Init()   { h.crc = 0xffff }
func (h *CRC16) Final()  {}
func (*CRC16) Size() int { return 2 }

func (h *CRC16) Update(b byte) {
	h.crc = h.crc<<8 ^ crc16Table[byte(h.crc>>8)^b]
}

func (h *CRC16) Byte(i int) byte {
	return byte(h.crc >> (8 * (1 - i)))
}

// CRC32 is CRC-32/IEEE. The digest is the CRC in big-endian order, matching
// hash/crc32's Sum.
type CRC32 struct {
	crc uint32
	one [1]byte
	sum [4]byte
}

func (h *CRC32) Init()           { h.crc = 0 }
func (*CRC32) Size() int         { return crc32.Size }
func (h *CRC32) Byte(i int) byte { return h.sum[i] }

func (h *CRC32) Update(b byte) {
	h.one[0] = b
	h.crc = crc32.Update(h.crc, crc32.IEEETable, h.one[:])
}

func (h *CRC32) Final() {
	binary.BigEndian.PutUint32(h.sum[:], h.crc)
}
