package stats

import (
	"errors"
	"fmt"
	"math"
)

// ErrTooFewCycles is returned by the random excursion tests when the walk
// returns to zero too rarely for the chi-square approximation.
var ErrTooFewCycles = errors.New("too few cycles in random walk")

func sq(x float64) float64 { return x * x }

// BinaryMatrixRank ranks disjoint size x size matrices over GF(2), each
// filled row by row from consecutive bits. SP 800-22 uses size 32.
func BinaryMatrixRank(seq Bits, size int) (Result, error) {
	if size < 2 || size > 64 {
		return Result{}, fmt.Errorf("matrix size %d out of range [2, 64]", size)
	}
	n := len(seq)
	per := size * size
	count := n / per
	if count == 0 {
		return Result{}, tooShort(n, per)
	}
	full, sub := 0, 0
	rows := make([]uint64, size)
	for k := 0; k < count; k++ {
		block := seq[k*per : (k+1)*per]
		for i := range rows {
			var v uint64
			for _, b := range block[i*size : (i+1)*size] {
				v = v<<1 | uint64(b)
			}
			rows[i] = v
		}
		switch rankGF2(rows, size) {
		case size:
			full++
		case size - 1:
			sub++
		}
	}
	pFull := rankProb(size, size, size)
	pSub := rankProb(size-1, size, size)
	pRest := 1 - pFull - pSub
	N := float64(count)
	rest := count - full - sub
	chi := sq(float64(full)-N*pFull)/(N*pFull) +
		sq(float64(sub)-N*pSub)/(N*pSub) +
		sq(float64(rest)-N*pRest)/(N*pRest)
	return Result{
		P: map[string]float64{"p": math.Exp(-chi / 2)},
		Stats: map[string]float64{
			"matrices": N, "full_rank": float64(full), "full_rank_minus_1": float64(sub), "chi2": chi,
		},
	}, nil
}

// rankGF2 reduces rows in place and returns their rank. Bit size-1 of each
// row is the first column.
func rankGF2(rows []uint64, size int) int {
	rank := 0
	for col := size - 1; col >= 0 && rank < len(rows); col-- {
		mask := uint64(1) << uint(col)
		pivot := -1
		for r := rank; r < len(rows); r++ {
			if rows[r]&mask != 0 {
				pivot = r
				break
			}
		}
		if pivot < 0 {
			continue
		}
		rows[rank], rows[pivot] = rows[pivot], rows[rank]
		for r := range rows {
			if r != rank && rows[r]&mask != 0 {
				rows[r] ^= rows[rank]
			}
		}
		rank++
	}
	return rank
}

// rankProb is the probability that a random m x q binary matrix has rank r.
func rankProb(r, m, q int) float64 {
	prod := 1.0
	for i := 0; i < r; i++ {
		fi := float64(i)
		prod *= (1 - math.Pow(2, fi-float64(q))) * (1 - math.Pow(2, fi-float64(m))) / (1 - math.Pow(2, fi-float64(r)))
	}
	return math.Pow(2, float64(r*(q+m-r)-m*q)) * prod
}

func matchAt(seq Bits, at int, tpl Bits) bool {
	for k, b := range tpl {
		if seq[at+k] != b {
			return false
		}
	}
	return true
}

// NonOverlappingTemplate counts non-overlapping occurrences of tpl in each
// of blocks equal blocks. The search skips past every match.
func NonOverlappingTemplate(seq Bits, tpl Bits, blocks int) (Result, error) {
	m := len(tpl)
	if m == 0 || blocks <= 0 {
		return Result{}, fmt.Errorf("template length %d and block count %d must be positive", m, blocks)
	}
	n := len(seq)
	M := n / blocks
	if M < m {
		return Result{}, tooShort(n, blocks*m)
	}
	pm := math.Pow(2, float64(m))
	lambda := float64(M-m+1) / pm
	variance := float64(M) * (1/pm - float64(2*m-1)/(pm*pm))
	chi := 0.0
	for i := 0; i < blocks; i++ {
		block := seq[i*M : (i+1)*M]
		w := 0
		for j := 0; j <= M-m; {
			if matchAt(block, j, tpl) {
				w++
				j += m
			} else {
				j++
			}
		}
		chi += sq(float64(w)-lambda) / variance
	}
	return Result{
		P:     map[string]float64{"p": igamc(float64(blocks)/2, chi/2)},
		Stats: map[string]float64{"m": float64(m), "block_len": float64(M), "lambda": lambda, "chi2": chi},
	}, nil
}

// overlappingClasses is the number of occurrence classes beyond zero.
const overlappingClasses = 5

// OverlappingTemplate counts overlapping occurrences of tpl in blocks of
// blockLen bits, binned into 0..4 and 5 or more.
func OverlappingTemplate(seq Bits, tpl Bits, blockLen int) (Result, error) {
	m := len(tpl)
	if m == 0 || blockLen <= m {
		return Result{}, fmt.Errorf("block length %d must exceed template length %d", blockLen, m)
	}
	n := len(seq)
	N := n / blockLen
	if N == 0 {
		return Result{}, tooShort(n, blockLen)
	}
	const K = overlappingClasses
	lambda := float64(blockLen-m+1) / math.Pow(2, float64(m))
	eta := lambda / 2
	pi := make([]float64, K+1)
	rest := 1.0
	for u := 0; u < K; u++ {
		pi[u] = overlapProb(u, eta)
		rest -= pi[u]
	}
	pi[K] = rest

	nu := make([]int, K+1)
	for i := 0; i < N; i++ {
		block := seq[i*blockLen : (i+1)*blockLen]
		w := 0
		for j := 0; j <= blockLen-m; j++ {
			if matchAt(block, j, tpl) {
				w++
			}
		}
		nu[min(w, K)]++
	}
	chi := 0.0
	st := map[string]float64{"m": float64(m), "blocks": float64(N), "eta": eta}
	for i, p := range pi {
		exp := float64(N) * p
		chi += sq(float64(nu[i])-exp) / exp
		st[fmt.Sprintf("nu%d", i)] = float64(nu[i])
	}
	st["chi2"] = chi
	return Result{P: map[string]float64{"p": igamc(K/2.0, chi/2)}, Stats: st}, nil
}

// overlapProb is the probability of exactly u overlapping matches.
func overlapProb(u int, eta float64) float64 {
	if u == 0 {
		return math.Exp(-eta)
	}
	lg := func(x float64) float64 { v, _ := math.Lgamma(x); return v }
	sum := 0.0
	fu := float64(u)
	for l := 1; l <= u; l++ {
		fl := float64(l)
		sum += math.Exp(-eta - fu*math.Ln2 + fl*math.Log(eta) - lg(fl+1) + lg(fu) - lg(fl) - lg(fu-fl+1))
	}
	return sum
}

// Expected value and variance of the universal statistic per block length L.
var (
	universalMean = [...]float64{0, 0.7326495, 1.5374383, 2.4016068, 3.3112247, 4.2534266,
		5.2177052, 6.1962507, 7.1836656, 8.1764248, 9.1723243, 10.170032, 11.168765,
		12.168070, 13.167693, 14.167488, 15.167379}
	universalVar = [...]float64{0, 0.690, 1.338, 1.901, 2.358, 2.705, 2.954, 3.125,
		3.238, 3.311, 3.356, 3.384, 3.401, 3.410, 3.416, 3.419, 3.421}
)

// universalMinBits are the sequence lengths from which each L is used,
// starting at L=6.
var universalMinBits = [...]int{387840, 904960, 2068480, 4654080, 10342400,
	22753280, 49643520, 107560960, 231669760, 496435200, 1059061760}

// Universal is Maurer's universal statistical test with L picked from the
// sequence length and Q = 10 * 2^L initialization blocks.
func Universal(seq Bits) (Result, error) {
	n := len(seq)
	if n < universalMinBits[0] {
		return Result{}, tooShort(n, universalMinBits[0])
	}
	L := 6
	for i, need := range universalMinBits {
		if n >= need {
			L = 6 + i
		}
	}
	return UniversalBlocks(seq, L, 10*(1<<L))
}

// UniversalBlocks is Maurer's test with explicit block length L and Q
// initialization blocks.
func UniversalBlocks(seq Bits, L, Q int) (Result, error) {
	if L < 1 || L >= len(universalMean) || Q <= 0 {
		return Result{}, fmt.Errorf("block length %d or init blocks %d out of range", L, Q)
	}
	n := len(seq)
	K := n/L - Q
	if K <= 0 {
		return Result{}, tooShort(n, (Q+1)*L)
	}
	block := func(i int) int {
		v := 0
		for _, b := range seq[i*L : (i+1)*L] {
			v = v<<1 | int(b)
		}
		return v
	}
	last := make([]int, 1<<L)
	for i := 0; i < Q; i++ {
		last[block(i)] = i + 1
	}
	sum := 0.0
	for i := Q; i < Q+K; i++ {
		b := block(i)
		sum += math.Log2(float64(i + 1 - last[b]))
		last[b] = i + 1
	}
	fn := sum / float64(K)
	fL, fK := float64(L), float64(K)
	c := 0.7 - 0.8/fL + (4+32/fL)*math.Pow(fK, -3/fL)/15
	sigma := c * math.Sqrt(universalVar[L]/fK)
	p := math.Erfc(math.Abs(fn-universalMean[L]) / (math.Sqrt2 * sigma))
	return Result{
		P:     map[string]float64{"p": p},
		Stats: map[string]float64{"L": fL, "Q": float64(Q), "K": fK, "fn": fn, "sigma": sigma},
	}, nil
}

// Class probabilities of the linear complexity statistic T.
var linearPi = [...]float64{0.010417, 0.03125, 0.125, 0.5, 0.25, 0.0625, 0.020833}

// LinearComplexity computes the Berlekamp-Massey linear complexity of each
// M-bit block and compares the deviations from the expected value.
func LinearComplexity(seq Bits, M int) (Result, error) {
	if M <= 0 {
		return Result{}, fmt.Errorf("block length %d must be positive", M)
	}
	n := len(seq)
	N := n / M
	if N == 0 {
		return Result{}, tooShort(n, M)
	}
	fM := float64(M)
	// (-1)^(M+1) and (-1)^M
	signNext, sign := 1.0, -1.0
	if M%2 == 0 {
		signNext, sign = -1.0, 1.0
	}
	mean := fM/2 + (9+signNext)/36 - (fM/3+2.0/9.0)/math.Pow(2, fM)

	nu := make([]int, len(linearPi))
	for i := 0; i < N; i++ {
		t := sign*(float64(linearComplexity(seq[i*M:(i+1)*M]))-mean) + 2.0/9.0
		switch {
		case t <= -2.5:
			nu[0]++
		case t <= -1.5:
			nu[1]++
		case t <= -0.5:
			nu[2]++
		case t <= 0.5:
			nu[3]++
		case t <= 1.5:
			nu[4]++
		case t <= 2.5:
			nu[5]++
		default:
			nu[6]++
		}
	}
	chi := 0.0
	for i, p := range linearPi {
		exp := float64(N) * p
		chi += sq(float64(nu[i])-exp) / exp
	}
	return Result{
		P:     map[string]float64{"p": igamc(float64(len(linearPi)-1)/2, chi/2)},
		Stats: map[string]float64{"M": fM, "blocks": float64(N), "mean": mean, "chi2": chi},
	}, nil
}

// linearComplexity is the Berlekamp-Massey algorithm over GF(2).
func linearComplexity(s Bits) int {
	n := len(s)
	c := make([]uint8, n)
	b := make([]uint8, n)
	t := make([]uint8, n)
	c[0], b[0] = 1, 1
	L, m := 0, -1
	for N := 0; N < n; N++ {
		d := s[N]
		for i := 1; i <= L; i++ {
			d ^= c[i] & s[N-i]
		}
		if d == 0 {
			continue
		}
		copy(t, c)
		shift := N - m
		for j := 0; j+shift < n; j++ {
			c[j+shift] ^= b[j]
		}
		if L <= N/2 {
			L = N + 1 - L
			m = N
			b, t = t, b
		}
	}
	return L
}

// walk returns the partial sums of the +/-1 random walk over seq and the
// number of cycles, a cycle ending at every return to zero and at the end.
func walk(seq Bits) ([]int, int) {
	sums := make([]int, len(seq))
	s, cycles := 0, 0
	for i, b := range seq {
		s += 2*int(b) - 1
		sums[i] = s
		if s == 0 {
			cycles++
		}
	}
	if s != 0 {
		cycles++
	}
	return sums, cycles
}

func minCycles(n int) int {
	return int(math.Max(0.005*math.Sqrt(float64(n)), 500))
}

// Probabilities that a cycle visits state |x| exactly k times, k = 0..4,
// and 5 or more.
var excursionPi = [5][6]float64{
	{},
	{0.5, 0.25, 0.125, 0.0625, 0.03125, 0.03125},
	{0.75, 0.0625, 0.046875, 0.03515625, 0.0263671875, 0.0791015625},
	{0.8333333333, 0.02777777778, 0.02314814815, 0.01929012346, 0.01607510288, 0.0803755143},
	{0.875, 0.015625, 0.013671875, 0.01196289063, 0.0104675293, 0.0732727051},
}

// RandomExcursions checks how often each cycle of the random walk visits
// the states -4..-1 and 1..4. It yields one p-value per state.
func RandomExcursions(seq Bits) (Result, error) {
	return randomExcursions(seq, minCycles(len(seq)))
}

func randomExcursions(seq Bits, need int) (Result, error) {
	if len(seq) < 2 {
		return Result{}, tooShort(len(seq), 2)
	}
	sums, J := walk(seq)
	if J < need {
		return Result{}, fmt.Errorf("%w: %d, need %d", ErrTooFewCycles, J, need)
	}
	// visits[x+4] counts visits to x in the current cycle
	var visits [9]int
	var nu [9][6]int
	closeCycle := func() {
		for i, v := range visits {
			nu[i][min(v, 5)]++
			visits[i] = 0
		}
	}
	for _, s := range sums {
		if s == 0 {
			closeCycle()
			continue
		}
		if s >= -4 && s <= 4 {
			visits[s+4]++
		}
	}
	if sums[len(sums)-1] != 0 {
		closeCycle()
	}

	p := make(map[string]float64, 8)
	for x := -4; x <= 4; x++ {
		if x == 0 {
			continue
		}
		ax := x
		if ax < 0 {
			ax = -ax
		}
		chi := 0.0
		for k := 0; k < 6; k++ {
			exp := float64(J) * excursionPi[ax][k]
			chi += sq(float64(nu[x+4][k])-exp) / exp
		}
		p[fmt.Sprintf("%+d", x)] = igamc(2.5, chi/2)
	}
	return Result{P: p, Stats: map[string]float64{"cycles": float64(J)}}, nil
}

// RandomExcursionsVariant compares the total visits to each state -9..-1
// and 1..9 with the number of cycles.
func RandomExcursionsVariant(seq Bits) (Result, error) {
	return randomExcursionsVariant(seq, minCycles(len(seq)))
}

func randomExcursionsVariant(seq Bits, need int) (Result, error) {
	if len(seq) < 2 {
		return Result{}, tooShort(len(seq), 2)
	}
	sums, J := walk(seq)
	if J < need {
		return Result{}, fmt.Errorf("%w: %d, need %d", ErrTooFewCycles, J, need)
	}
	var visits [19]int
	for _, s := range sums {
		if s >= -9 && s <= 9 {
			visits[s+9]++
		}
	}
	p := make(map[string]float64, 18)
	for x := -9; x <= 9; x++ {
		if x == 0 {
			continue
		}
		ax := math.Abs(float64(x))
		d := math.Abs(float64(visits[x+9] - J))
		p[fmt.Sprintf("%+d", x)] = math.Erfc(d / math.Sqrt(2*float64(J)*(4*ax-2)))
	}
	return Result{P: p, Stats: map[string]float64{"cycles": float64(J)}}, nil
}
