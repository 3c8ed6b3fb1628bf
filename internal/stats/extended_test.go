package stats

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func bits(t *testing.T, s string) Bits {
	t.Helper()
	seq, err := ParseText(s)
	require.NoError(t, err)
	return seq
}

// hashStream is n bits of SHA-256 over a little-endian uint32 counter,
// MSB-first.
func hashStream(n int) Bits {
	buf := make([]byte, 0, n/8+sha256.Size)
	var ctr [4]byte
	for i := uint32(0); len(buf)*8 < n; i++ {
		binary.LittleEndian.PutUint32(ctr[:], i)
		sum := sha256.Sum256(ctr[:])
		buf = append(buf, sum[:]...)
	}
	return Unpack(buf, n)
}

func TestRankProbabilities(t *testing.T) {
	require.InDelta(t, 0.288788, rankProb(32, 32, 32), 1e-6)
	require.InDelta(t, 0.577576, rankProb(31, 32, 32), 1e-6)
}

func TestRankGF2(t *testing.T) {
	require.Equal(t, 3, rankGF2([]uint64{0b100, 0b010, 0b001}, 3))
	require.Equal(t, 2, rankGF2([]uint64{0b110, 0b011, 0b101}, 3))
	require.Equal(t, 0, rankGF2([]uint64{0, 0}, 2))
}

func TestBinaryMatrixRankSmall(t *testing.T) {
	// two 3x3 matrices of rank 2 and 3
	res, err := BinaryMatrixRank(bits(t, "01011001001010101101"), 3)
	require.NoError(t, err)
	require.Equal(t, float64(1), res.Stats["full_rank"])
	require.Equal(t, float64(1), res.Stats["full_rank_minus_1"])
	require.InDelta(t, 0.820962, res.P["p"], 1e-6)

	_, err = BinaryMatrixRank(bits(t, "0101"), 3)
	require.ErrorIs(t, err, ErrTooShort)
	_, err = BinaryMatrixRank(bits(t, "0101"), 65)
	require.Error(t, err)
}

func TestNonOverlappingTemplateSmall(t *testing.T) {
	res, err := NonOverlappingTemplate(bits(t, "10100100101110010110"), bits(t, "001"), 2)
	require.NoError(t, err)
	require.InDelta(t, 0.344154, res.P["p"], 1e-6)
}

func TestOverlappingTemplateSmall(t *testing.T) {
	seq := bits(t, "10111011110010110100011100101110111110000101101001")
	res, err := OverlappingTemplate(seq, bits(t, "11"), 10)
	require.NoError(t, err)
	// occurrences per block: 5, 1, 3, 4, 1
	require.Equal(t, float64(2), res.Stats["nu1"])
	require.Equal(t, float64(0), res.Stats["nu2"])
	require.Equal(t, float64(1), res.Stats["nu5"])
	require.InDelta(t, 0.409635, res.P["p"], 1e-6)

	_, err = OverlappingTemplate(seq, bits(t, "11"), 2)
	require.Error(t, err)
}

func TestOverlapProbabilities(t *testing.T) {
	// m=9, M=1032 gives eta=1
	want := []float64{0.367879, 0.183940, 0.137955, 0.099634, 0.069935}
	for u, w := range want {
		require.InDelta(t, w, overlapProb(u, 1), 1e-6, "u=%d", u)
	}
}

func TestUniversalSmall(t *testing.T) {
	res, err := UniversalBlocks(bits(t, "01011010011101010111"), 2, 4)
	require.NoError(t, err)
	require.InDelta(t, 1.1949875, res.Stats["fn"], 1e-7)
	require.InDelta(t, 0.063454, res.P["p"], 1e-6)

	_, err = Universal(hashStream(1000))
	require.ErrorIs(t, err, ErrTooShort)
}

func TestLinearComplexityBerlekampMassey(t *testing.T) {
	require.Equal(t, 4, linearComplexity(bits(t, "1101011110001")))
	require.Equal(t, 0, linearComplexity(make(Bits, 16)))
	require.Equal(t, 1, linearComplexity(bits(t, "1111111")))
	require.Equal(t, 8, linearComplexity(bits(t, "0000000100000000")))
}

func TestLinearComplexityConstantFails(t *testing.T) {
	res, err := LinearComplexity(make(Bits, 5000), 500)
	require.NoError(t, err)
	require.False(t, res.Passed())
	require.Less(t, res.P["p"], 1e-100)
}

func TestRandomExcursionsSmall(t *testing.T) {
	seq := bits(t, "0110110101")
	res, err := randomExcursions(seq, 0)
	require.NoError(t, err)
	require.Equal(t, float64(3), res.Stats["cycles"])
	require.InDelta(t, 0.502488, res.P["+1"], 1e-6)
	require.Len(t, res.P, 8)

	res, err = randomExcursionsVariant(seq, 0)
	require.NoError(t, err)
	require.InDelta(t, 0.683091, res.P["+1"], 1e-6)
	require.Len(t, res.P, 18)

	_, err = RandomExcursions(seq)
	require.ErrorIs(t, err, ErrTooFewCycles)
	_, err = RandomExcursionsVariant(seq)
	require.ErrorIs(t, err, ErrTooFewCycles)
}

func TestExtendedOnHashStream(t *testing.T) {
	if testing.Short() {
		t.Skip("long sequence")
	}
	seq := hashStream(1_000_000)

	check := func(name string, res Result, err error, key string, want float64) {
		t.Helper()
		require.NoError(t, err, name)
		require.InDelta(t, want, res.P[key], 1e-6, name)
	}
	res, err := BinaryMatrixRank(seq, 32)
	check("rank", res, err, "p", 0.589607)
	res, err = NonOverlappingTemplate(seq, aperiodicTemplate, 8)
	check("non-overlapping", res, err, "p", 0.093077)
	res, err = OverlappingTemplate(seq, onesTemplate, 1032)
	check("overlapping", res, err, "p", 0.560055)
	res, err = Universal(seq)
	check("universal", res, err, "p", 0.740849)
	require.Equal(t, float64(7), res.Stats["L"])
	res, err = LinearComplexity(seq, 500)
	check("linear complexity", res, err, "p", 0.121355)
	res, err = Serial(seq, 16)
	check("serial p1", res, err, "p1", 0.708796)
	check("serial p2", res, err, "p2", 0.935673)

	res, err = randomExcursions(seq, 0)
	check("excursions", res, err, "-4", 0.290199)
	require.Equal(t, float64(206), res.Stats["cycles"])
	res, err = randomExcursionsVariant(seq, 0)
	check("excursions variant", res, err, "+2", 0.243532)

	rows := FullReport(seq)
	require.Len(t, rows, len(suite)+len(extended))
	byName := map[string]Row{}
	for _, r := range rows {
		byName[r.Name] = r
	}
	require.Equal(t, StatusPassed, byName["Maurer's Universal"].Status)
	require.Equal(t, StatusPassed, byName["Binary Matrix Rank (32x32)"].Status)
	// 206 cycles is below the 500 the excursion tests need
	require.Equal(t, StatusError, byName["Random Excursions"].Status)
	require.Contains(t, byName["Random Excursions"].Err, "too few cycles")
}

func TestFullReportShortSequence(t *testing.T) {
	rows := FullReport(piSeq(t, 128))
	require.Len(t, rows, len(suite)+len(extended))
	for _, r := range rows[len(suite):] {
		require.Equal(t, StatusError, r.Status, r.Name)
	}
}

func TestPValues(t *testing.T) {
	r := Result{P: map[string]float64{"reverse": 0.25, "forward": 0.5}}
	require.Equal(t, "forward=0.500000 reverse=0.250000", r.PValues())
	require.Empty(t, Result{}.PValues())
}
