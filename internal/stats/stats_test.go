package stats

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

// First bits of the binary expansion of pi, the SP 800-22 worked example.
const piBits = "1100100100001111110110101010001000100001011010001100001000110100" +
	"1100010011000110011000101000101110000000110111000001110011010001"

func piSeq(t *testing.T, n int) Bits {
	t.Helper()
	seq, err := ParseText(piBits[:n])
	require.NoError(t, err)
	require.Len(t, seq, n)
	return seq
}

func TestKnownPValues(t *testing.T) {
	seq := piSeq(t, 100)

	res, err := Frequency(seq)
	require.NoError(t, err)
	require.InDelta(t, 0.109599, res.P["p"], 1e-6)

	res, err = BlockFrequency(seq, 10)
	require.NoError(t, err)
	require.InDelta(t, 0.706438, res.P["p"], 1e-6)

	res, err = Runs(seq)
	require.NoError(t, err)
	require.InDelta(t, 0.500798, res.P["p"], 1e-6)

	res, err = CumulativeSums(seq)
	require.NoError(t, err)
	require.InDelta(t, 0.219194, res.P["forward"], 1e-6)
	require.InDelta(t, 0.114866, res.P["reverse"], 1e-6)

	res, err = ApproximateEntropy(seq, 2)
	require.NoError(t, err)
	require.InDelta(t, 0.235301, res.P["p"], 1e-6)

	res, err = Serial(seq, 2)
	require.NoError(t, err)
	require.InDelta(t, 0.256661, res.P["p1"], 1e-6)
	require.InDelta(t, 0.689157, res.P["p2"], 1e-6)
}

func TestLongestRunSmallBlocks(t *testing.T) {
	res, err := LongestRun(piSeq(t, 128))
	require.NoError(t, err)
	require.InDelta(t, 0.167646, res.P["p"], 1e-6)
	require.Equal(t, float64(8), res.Stats["m"])
}

func TestTooShort(t *testing.T) {
	seq := piSeq(t, 64)
	for _, tf := range suite {
		_, err := tf.run(seq)
		require.ErrorIs(t, err, ErrTooShort, tf.name)
	}
}

func TestConstantSequenceFails(t *testing.T) {
	seq := make(Bits, 1024)
	rows := Report(seq)
	require.Len(t, rows, len(suite))
	require.False(t, AllPassed(rows))

	freq, err := Frequency(seq)
	require.NoError(t, err)
	require.False(t, freq.Passed())

	runs, err := Runs(seq)
	require.NoError(t, err)
	require.Zero(t, runs.P["p"])
}

func TestReportSkipsUnrunnableTests(t *testing.T) {
	rows := Report(piSeq(t, 100))
	byName := map[string]Row{}
	for _, r := range rows {
		byName[r.Name] = r
	}
	require.Equal(t, StatusError, byName["Longest Run of Ones in a Block"].Status)
	require.Equal(t, StatusPassed, byName["Frequency (Monobit)"].Status)
}

func TestRowJSONDropsNaN(t *testing.T) {
	row := Row{
		Name:   "x",
		Status: StatusFailed,
		Result: Result{P: map[string]float64{"p": math.NaN(), "q": 0.5}},
	}
	b, err := json.Marshal(row)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"x","status":"Failed","p":{"p":null,"q":0.5}}`, string(b))
}

func TestParse(t *testing.T) {
	bits, err := Parse([]byte("10 1\n1"), ModeAuto)
	require.NoError(t, err)
	require.Equal(t, Bits{1, 0, 1, 1}, bits)

	bits, err = Parse([]byte{0, 1, 1}, ModeAuto)
	require.NoError(t, err)
	require.Equal(t, Bits{0, 1, 1}, bits)

	bits, err = Parse([]byte{0xa0}, ModeAuto)
	require.NoError(t, err)
	require.Equal(t, Bits{1, 0, 1, 0, 0, 0, 0, 0}, bits)

	_, err = Parse([]byte{2}, ModeBytes01)
	require.Error(t, err)

	_, err = Parse(nil, ModeAuto)
	require.ErrorIs(t, err, ErrNoBits)

	_, err = ParseText("abc")
	require.ErrorIs(t, err, ErrNoBits)
}

func TestUnpackTruncates(t *testing.T) {
	require.Equal(t, Bits{1, 1, 1}, Unpack([]byte{0xff, 0xff}, 3))
	require.Len(t, Unpack([]byte{0xff, 0xff}, -1), 16)
	require.Len(t, Unpack([]byte{0xff}, 100), 8)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("binpacked")
	require.NoError(t, err)
	require.Equal(t, ModePackedMSB, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	require.Equal(t, ModeAuto, m)

	_, err = ParseMode("morse")
	require.ErrorIs(t, err, ErrBadMode)
}

func TestModeForFile(t *testing.T) {
	require.Equal(t, ModeText, ModeForFile("seq.TXT", []byte{0xff}))
	require.Equal(t, ModeBytes01, ModeForFile("seq.bin", []byte{0, 1, 1}))
	require.Equal(t, ModePackedMSB, ModeForFile("seq.raw", []byte{0, 7}))
	require.Equal(t, ModePackedMSB, ModeForFile("seq.dat", nil))
	require.Equal(t, ModeAuto, ModeForFile("seq", []byte("0101")))

	// "0101" as a .bin file is packed ASCII, not text
	b, err := Parse([]byte("01"), ModeForFile("x.bin", []byte("01")))
	require.NoError(t, err)
	require.Len(t, b, 16)
}
