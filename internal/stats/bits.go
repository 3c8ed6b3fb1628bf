package stats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// Bits is a bit sequence, one element per bit, each 0 or 1.
type Bits []uint8

// Mode selects how a binary upload is turned into bits.
type Mode int

const (
	ModeAuto      Mode = iota
	ModeText           // '0'/'1' characters, whitespace ignored
	ModeBytes01        // every byte is 0x00 or 0x01
	ModePackedMSB      // packed bytes, most significant bit first
)

var (
	ErrNoBits  = errors.New("no bits found")
	ErrBadMode = errors.New("unknown bit mode")
)

// ParseMode maps a query value to a Mode. The empty string is ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return ModeAuto, nil
	case "txt", "text":
		return ModeText, nil
	case "bin01", "bytes01":
		return ModeBytes01, nil
	case "binpacked", "packed", "bin":
		return ModePackedMSB, nil
	default:
		return ModeAuto, fmt.Errorf("%w: %q", ErrBadMode, s)
	}
}

// ParseText collects '0' and '1' characters, skipping whitespace and any
// other character.
func ParseText(s string) (Bits, error) {
	out := make(Bits, 0, len(s))
	for _, r := range s {
		switch r {
		case '0':
			out = append(out, 0)
		case '1':
			out = append(out, 1)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoBits
	}
	return out, nil
}

// ParseBytes01 treats every byte as one bit.
func ParseBytes01(b []byte) (Bits, error) {
	out := make(Bits, 0, len(b))
	for i, by := range b {
		if by > 1 {
			return nil, fmt.Errorf("byte #%d=0x%02X is not 0x00/0x01", i, by)
		}
		out = append(out, by)
	}
	if len(out) == 0 {
		return nil, ErrNoBits
	}
	return out, nil
}

// Unpack expands packed bytes MSB-first and keeps the first n bits. A
// negative n keeps all of them.
func Unpack(b []byte, n int) Bits {
	if n < 0 || n > len(b)*8 {
		n = len(b) * 8
	}
	out := make(Bits, 0, n)
	for _, by := range b {
		for bit := 7; bit >= 0 && len(out) < n; bit-- {
			out = append(out, (by>>uint(bit))&1)
		}
	}
	return out
}

// Parse decodes an upload according to mode. ModeAuto picks text when the
// body only holds bit characters and whitespace, bytes01 when every byte is
// 0 or 1, and packed bytes otherwise.
func Parse(body []byte, mode Mode) (Bits, error) {
	if mode == ModeAuto {
		mode = guess(body)
	}
	switch mode {
	case ModeText:
		return ParseText(string(body))
	case ModeBytes01:
		return ParseBytes01(body)
	case ModePackedMSB:
		if len(body) == 0 {
			return nil, ErrNoBits
		}
		return Unpack(body, -1), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrBadMode, mode)
	}
}

// ModeForFile picks a mode from an uploaded file name. ".txt" is text,
// ".bin", ".dat" and ".raw" are binary with the byte layout guessed from
// data, and any other name is ModeAuto.
func ModeForFile(name string, data []byte) Mode {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return ModeText
	case ".bin", ".dat", ".raw":
		return binaryMode(data)
	default:
		return ModeAuto
	}
}

func guess(b []byte) Mode {
	if looksLikeText(b) {
		return ModeText
	}
	return binaryMode(b)
}

func binaryMode(b []byte) Mode {
	if len(b) == 0 {
		return ModePackedMSB
	}
	for _, by := range b {
		if by > 1 {
			return ModePackedMSB
		}
	}
	return ModeBytes01
}

func looksLikeText(b []byte) bool {
	seen := false
	for _, r := range string(b) {
		switch {
		case r == '0' || r == '1':
			seen = true
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return seen
}
