package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSampleCommand(t *testing.T) {
	out, err := run(t, "sample", "--hash", "sha256", "--counter", "8", "--pool", "4", "--seed-hex", "01020304", "--n", "4")
	require.NoError(t, err)
	sum := sha256.Sum256([]byte{1, 2, 3, 4, 0})
	require.Equal(t, hex.EncodeToString(sum[:4]), strings.TrimSpace(out))

	out, err = run(t, "sample", "--hash", "crc16", "--counter", "16", "--pool", "2", "--n", "3", "--format", "bin")
	require.NoError(t, err)
	require.Len(t, strings.TrimSpace(out), 24)
}

func TestSampleCommandErrors(t *testing.T) {
	_, err := run(t, "sample", "--hash", "md5")
	require.Error(t, err)
	_, err = run(t, "sample", "--seed-hex", "xyz")
	require.Error(t, err)
	_, err = run(t, "sample", "--format", "yaml")
	require.Error(t, err)
	_, err = run(t, "stats", "--bits", "0")
	require.Error(t, err)
}

func TestStatsCommandPrintsEveryTest(t *testing.T) {
	out, _ := run(t, "stats", "--hash", "blake3", "--seed-hex", "00ff", "--bits", "20000")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 7)
	require.Contains(t, lines[0], "Frequency (Monobit)")
	require.Regexp(t, `p=[0-9]\.[0-9]{6}$`, lines[0])
	require.NotContains(t, out, "map[")

	out, _ = run(t, "stats", "--hash", "blake3", "--seed-hex", "00ff", "--bits", "20000", "--full")
	lines = strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 15)
	require.Contains(t, lines[14], "Random Excursions Variant")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)
	log.Info().Msg("hidden")
	log.Warn().Str("pool", "p").Msg("shown")
	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"pool":"p"`)

	_, err = newLogger(&buf, "loud", "json")
	require.Error(t, err)
	_, err = newLogger(&buf, "info", "xml")
	require.Error(t, err)
}
