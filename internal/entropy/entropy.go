// Package entropy gathers entropy blocks sized for a generator pool.
//
// Every block returned by Collect has exactly the requested length, so it is
// always a valid AddEntropy argument. Non-OS material is condensed and
// stretched with the BLAKE3 XOF under a per-source label.
package entropy

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Source names accepted by Collect.
const (
	SourceOS     = "os"
	SourceJitter = "jitter"
	SourceHTTP   = "http"
	SourceMix    = "mix"
)

var (
	ErrUnknownSource = errors.New("unknown entropy source")
	ErrNoEntropy     = errors.New("entropy source produced no material")
)

// maxBody bounds how much of a remote response is read.
const maxBody = 64 << 10

// Collector gathers entropy from the configured sources.
type Collector struct {
	// URLs are polled by the http source, in order.
	URLs []string
	// Client is used for the http source; nil means a client with Timeout.
	Client *http.Client
	// Timeout bounds each remote request.
	Timeout time.Duration
	// JitterRounds is the number of timing samples taken by the jitter source.
	JitterRounds int
}

// Sources lists the source names Collect accepts.
func Sources() []string {
	return []string{SourceOS, SourceJitter, SourceHTTP, SourceMix}
}

// Collect returns size bytes of entropy from source.
func (c *Collector) Collect(ctx context.Context, source string, size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("entropy block size must be positive, got %d", size)
	}
	switch strings.ToLower(source) {
	case SourceOS:
		return fromOS(size)
	case SourceJitter:
		return stretch(SourceJitter, size, c.jitter()), nil
	case SourceHTTP:
		raw, err := c.remote(ctx)
		if err != nil {
			return nil, err
		}
		return stretch(SourceHTTP, size, raw...), nil
	case SourceMix:
		osb, err := fromOS(size)
		if err != nil {
			return nil, err
		}
		parts := [][]byte{osb, c.jitter()}
		if len(c.URLs) > 0 {
			// remote failures only weaken the mix, they do not break it
			if raw, err := c.remote(ctx); err == nil {
				parts = append(parts, raw...)
			}
		}
		return stretch(SourceMix, size, parts...), nil
	default:
		return nil, fmt.Errorf("%w: %q, want one of %s", ErrUnknownSource, source, strings.Join(Sources(), ", "))
	}
}

func fromOS(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("read os entropy: %w", err)
	}
	return b, nil
}

// stretch condenses parts and expands them to size bytes. Each part is
// length-prefixed so part boundaries cannot be shifted.
func stretch(label string, size int, parts ...[]byte) []byte {
	h := blake3.New()
	_, _ = h.Write([]byte("hashprng-entropy-v1:" + label))
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		_, _ = h.Write(n[:])
		_, _ = h.Write(p)
	}
	out := make([]byte, size)
	_, _ = h.Digest().Read(out)
	return out
}

// jitter samples scheduling and timer noise.
func (c *Collector) jitter() []byte {
	rounds := c.JitterRounds
	if rounds <= 0 {
		rounds = 64
	}
	out := make([]byte, 0, rounds*16)
	var tmp [8]byte
	for i := 0; i < rounds; i++ {
		t0 := time.Now()
		spin := 100 + i%17
		for k := 0; k < spin; k++ { // busy work
		}
		time.Sleep(0)
		binary.LittleEndian.PutUint64(tmp[:], uint64(time.Since(t0).Nanoseconds()))
		out = append(out, tmp[:]...)
		binary.LittleEndian.PutUint64(tmp[:], uint64(time.Now().UnixNano()))
		out = append(out, tmp[:]...)
	}
	return out
}

// remote fetches every configured URL. A body of 64 hex characters is used
// decoded, a decimal integer as its 8 little-endian bytes, anything else as
// the trimmed text. It fails only if no URL produced material.
func (c *Collector) remote(ctx context.Context) ([][]byte, error) {
	if len(c.URLs) == 0 {
		return nil, fmt.Errorf("%w: no http sources configured", ErrNoEntropy)
	}
	client := c.Client
	if client == nil {
		client = &http.Client{Timeout: c.timeout()}
	}
	var out [][]byte
	var lastErr error
	for _, u := range c.URLs {
		if strings.TrimSpace(u) == "" {
			continue
		}
		b, err := c.fetch(ctx, client, u)
		if err != nil {
			lastErr = err
			continue
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		if lastErr == nil {
			lastErr = errors.New("empty responses")
		}
		return nil, fmt.Errorf("%w: %v", ErrNoEntropy, lastErr)
	}
	return out, nil
}

func (c *Collector) fetch(ctx context.Context, client *http.Client, u string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", u, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %s", u, resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return decodeBody(strings.TrimSpace(string(body)))
}

func decodeBody(s string) ([]byte, error) {
	if s == "" {
		return nil, errors.New("empty body")
	}
	if len(s) == 64 {
		if b, err := hex.DecodeString(s); err == nil {
			return b, nil
		}
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], uint64(v))
		return b[:], nil
	}
	return []byte(s), nil
}

func (c *Collector) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 3 * time.Second
	}
	return c.Timeout
}
