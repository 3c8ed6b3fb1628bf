package main

import (
	"encoding/hex"
	"time"

	"hashprng/internal/stats"
	"hashprng/internal/store"
)

type poolSummary struct {
	Name        string `json:"name"`
	Hash        string `json:"hash"`
	CounterBits int    `json:"counter_bits"`
	PoolBytes   int    `json:"pool_bytes"`
	Counter     uint64 `json:"counter"`
}

type stateResponse struct {
	poolSummary
	// Pool is the hex-encoded pool contents. Exposing it makes every future
	// output of the pool predictable.
	Pool    string    `json:"pool"`
	SavedAt time.Time `json:"saved_at"`
}

type restoreRequest struct {
	Pool    string `json:"pool"`
	Counter uint64 `json:"counter"`
}

type entropyResponse struct {
	Pool   string `json:"pool"`
	Source string `json:"source"`
	Bytes  int    `json:"bytes"`
	Entry  int    `json:"journal_index"`
}

type randResponse struct {
	Pool    string `json:"pool"`
	Width   int    `json:"width"`
	Value   uint64 `json:"value"`
	Hex     string `json:"hex"`
	Counter uint64 `json:"counter"`
}

type statsResponse struct {
	Pool   string      `json:"pool,omitempty"`
	N      int         `json:"n"`
	Passed bool        `json:"passed"`
	Report []stats.Row `json:"report"`
}

type verifyResponse struct {
	Valid   bool   `json:"valid"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

func summarize(cfg store.PoolConfig, counter uint64) poolSummary {
	return poolSummary{
		Name:        cfg.Name,
		Hash:        cfg.Hash,
		CounterBits: cfg.CounterBits,
		PoolBytes:   cfg.PoolBytes,
		Counter:     counter,
	}
}

// leHex renders v as its first width little-endian bytes, the order in
// which the generator produced them.
func leHex(v uint64, width int) string {
	b := make([]byte, width)
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	return hex.EncodeToString(b)
}
