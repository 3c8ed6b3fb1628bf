// Package stats runs a subset of the NIST SP 800-22 statistical tests over
// generator output.
package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrTooShort is returned when a sequence is below a test's minimum length.
var ErrTooShort = errors.New("sequence too short")

// Alpha is the significance level used for pass/fail.
const Alpha = 0.01

// Result holds a test's p-values and any intermediate statistics.
type Result struct {
	P     map[string]float64 `json:"p"`
	Stats map[string]float64 `json:"stats,omitempty"`
}

// Passed reports whether every p-value is at least Alpha.
func (r Result) Passed() bool {
	if len(r.P) == 0 {
		return false
	}
	for _, p := range r.P {
		if !(p >= Alpha) {
			return false
		}
	}
	return true
}

func tooShort(n, need int) error {
	return fmt.Errorf("%w: %d bits, need %d", ErrTooShort, n, need)
}

// Frequency is the monobit test.
func Frequency(seq Bits) (Result, error) {
	n := len(seq)
	if n < 100 {
		return Result{}, tooShort(n, 100)
	}
	sum := 0
	for _, b := range seq {
		sum += 2*int(b) - 1
	}
	sObs := math.Abs(float64(sum)) / math.Sqrt(float64(n))
	return Result{
		P:     map[string]float64{"p": math.Erfc(sObs / math.Sqrt2)},
		Stats: map[string]float64{"sum": float64(sum), "s_obs": sObs},
	}, nil
}

// BlockFrequency is the frequency test within m-bit blocks.
func BlockFrequency(seq Bits, m int) (Result, error) {
	n := len(seq)
	if n < 100 || m <= 0 || n/m == 0 {
		return Result{}, tooShort(n, max(100, m))
	}
	blocks := n / m
	chi := 0.0
	for i := 0; i < blocks; i++ {
		ones := 0
		for _, b := range seq[i*m : (i+1)*m] {
			ones += int(b)
		}
		d := float64(ones)/float64(m) - 0.5
		chi += d * d
	}
	chi *= 4.0 * float64(m)
	return Result{
		P:     map[string]float64{"p": igamc(float64(blocks)/2.0, chi/2.0)},
		Stats: map[string]float64{"m": float64(m), "blocks": float64(blocks), "chi2": chi},
	}, nil
}

// Runs counts uninterrupted runs of identical bits. A sequence failing the
// frequency prerequisite gets a p-value of 0.
func Runs(seq Bits) (Result, error) {
	n := len(seq)
	if n < 100 {
		return Result{}, tooShort(n, 100)
	}
	ones := 0
	for _, b := range seq {
		ones += int(b)
	}
	pi := float64(ones) / float64(n)
	tau := 2.0 / math.Sqrt(float64(n))
	if math.Abs(pi-0.5) >= tau {
		return Result{
			P:     map[string]float64{"p": 0},
			Stats: map[string]float64{"pi": pi, "tau": tau},
		}, nil
	}
	v := 1
	for i := 1; i < n; i++ {
		if seq[i] != seq[i-1] {
			v++
		}
	}
	num := math.Abs(float64(v) - 2.0*float64(n)*pi*(1.0-pi))
	den := 2.0 * math.Sqrt(2.0*float64(n)) * pi * (1.0 - pi)
	return Result{
		P:     map[string]float64{"p": math.Erfc(num / den)},
		Stats: map[string]float64{"v_obs": float64(v), "pi": pi},
	}, nil
}

// LongestRun is the longest-run-of-ones-in-a-block test. Block size and
// class probabilities follow the sequence length as in SP 800-22 table 2.4.
func LongestRun(seq Bits) (Result, error) {
	n := len(seq)
	if n < 128 {
		return Result{}, tooShort(n, 128)
	}
	var k, m int
	var probs []float64
	var lo int
	switch {
	case n < 6272:
		k, m, lo = 3, 8, 1
		probs = []float64{0.2148, 0.3672, 0.2305, 0.1875}
	case n < 750000:
		k, m, lo = 5, 128, 4
		probs = []float64{0.1174, 0.2430, 0.2493, 0.1752, 0.1027, 0.1124}
	default:
		k, m, lo = 6, 10000, 10
		probs = []float64{0.0882, 0.2092, 0.2483, 0.1933, 0.1208, 0.0675, 0.0727}
	}
	blocks := n / m
	nu := make([]int, k+1)
	for i := 0; i < blocks; i++ {
		longest, run := 0, 0
		for _, b := range seq[i*m : (i+1)*m] {
			if b == 1 {
				run++
				longest = max(longest, run)
			} else {
				run = 0
			}
		}
		// class 0 collects runs <= lo, class k collects runs >= lo+k
		c := min(max(longest-lo, 0), k)
		nu[c]++
	}
	chi := 0.0
	for i, p := range probs {
		exp := float64(blocks) * p
		d := float64(nu[i]) - exp
		chi += d * d / exp
	}
	return Result{
		P:     map[string]float64{"p": igamc(float64(k)/2.0, chi/2.0)},
		Stats: map[string]float64{"m": float64(m), "blocks": float64(blocks), "chi2": chi},
	}, nil
}

// counts returns the frequency of every overlapping m-bit pattern, wrapping
// around the end of seq.
func counts(seq Bits, m int) []int {
	n := len(seq)
	c := make([]int, 1<<m)
	for i := 0; i < n; i++ {
		idx := 0
		for j := 0; j < m; j++ {
			idx = idx<<1 | int(seq[(i+j)%n])
		}
		c[idx]++
	}
	return c
}

// Serial is the serial test with pattern length m, yielding two p-values.
func Serial(seq Bits, m int) (Result, error) {
	n := len(seq)
	if n < 100 || m < 2 {
		return Result{}, tooShort(n, 100)
	}
	psi := func(mm int) float64 {
		if mm <= 0 {
			return 0
		}
		sum := 0.0
		for _, c := range counts(seq, mm) {
			sum += float64(c) * float64(c)
		}
		return sum*float64(int(1)<<mm)/float64(n) - float64(n)
	}
	p0, p1, p2 := psi(m), psi(m-1), psi(m-2)
	del1 := p0 - p1
	del2 := p0 - 2.0*p1 + p2
	return Result{
		P: map[string]float64{
			"p1": igamc(float64(int(1)<<(m-1))/2.0, del1/2.0),
			"p2": igamc(float64(int(1)<<(m-2))/2.0, del2/2.0),
		},
		Stats: map[string]float64{"m": float64(m), "del1": del1, "del2": del2},
	}, nil
}

// ApproximateEntropy compares overlapping m and m+1 bit pattern frequencies.
func ApproximateEntropy(seq Bits, m int) (Result, error) {
	n := len(seq)
	if n < 100 || m < 1 {
		return Result{}, tooShort(n, 100)
	}
	phi := func(mm int) float64 {
		sum := 0.0
		for _, c := range counts(seq, mm) {
			if c > 0 {
				sum += float64(c) * math.Log(float64(c)/float64(n))
			}
		}
		return sum / float64(n)
	}
	apen := phi(m) - phi(m+1)
	chi := 2.0 * float64(n) * (math.Ln2 - apen)
	return Result{
		P:     map[string]float64{"p": igamc(float64(int(1)<<(m-1)), chi/2.0)},
		Stats: map[string]float64{"m": float64(m), "apen": apen, "chi2": chi},
	}, nil
}

// CumulativeSums runs the cusum test forward and in reverse.
func CumulativeSums(seq Bits) (Result, error) {
	n := len(seq)
	if n < 100 {
		return Result{}, tooShort(n, 100)
	}
	fwd := cusum(seq, false)
	rev := cusum(seq, true)
	return Result{P: map[string]float64{"forward": fwd, "reverse": rev}}, nil
}

func cusum(seq Bits, reverse bool) float64 {
	n := len(seq)
	s, z := 0, 0
	for i := range seq {
		b := seq[i]
		if reverse {
			b = seq[n-1-i]
		}
		s += 2*int(b) - 1
		if s > z {
			z = s
		} else if -s > z {
			z = -s
		}
	}
	if z == 0 {
		return 1
	}
	fn, fz := float64(n), float64(z)
	sq := math.Sqrt(fn)
	sum1 := 0.0
	for k := int((-fn/fz + 1) / 4); k <= int((fn/fz-1)/4); k++ {
		sum1 += normalCDF((4*float64(k)+1)*fz/sq) - normalCDF((4*float64(k)-1)*fz/sq)
	}
	sum2 := 0.0
	for k := int((-fn/fz - 3) / 4); k <= int((fn/fz-1)/4); k++ {
		sum2 += normalCDF((4*float64(k)+3)*fz/sq) - normalCDF((4*float64(k)+1)*fz/sq)
	}
	return 1.0 - sum1 + sum2
}
