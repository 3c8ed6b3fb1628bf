package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Row status values.
const (
	StatusPassed = "Passed"
	StatusFailed = "Failed"
	StatusError  = "Error"
)

// Row is one line of a quality report.
type Row struct {
	Name   string
	Result Result
	Status string
	Err    string
}

type testFunc struct {
	name string
	run  func(Bits) (Result, error)
}

var suite = []testFunc{
	{"Frequency (Monobit)", Frequency},
	{"Frequency within a Block (M=128)", func(s Bits) (Result, error) { return BlockFrequency(s, 128) }},
	{"Runs", Runs},
	{"Longest Run of Ones in a Block", LongestRun},
	{"Serial (m=2)", func(s Bits) (Result, error) { return Serial(s, 2) }},
	{"Approximate Entropy (m=2)", func(s Bits) (Result, error) { return ApproximateEntropy(s, 2) }},
	{"Cumulative Sums", CumulativeSums},
}

// Templates used by the template matching tests.
var (
	aperiodicTemplate = Bits{0, 0, 0, 0, 0, 0, 0, 0, 1}
	onesTemplate      = Bits{1, 1, 1, 1, 1, 1, 1, 1, 1}
)

// atLeast guards a test with the sequence length SP 800-22 recommends for it.
func atLeast(need int, run func(Bits) (Result, error)) func(Bits) (Result, error) {
	return func(s Bits) (Result, error) {
		if len(s) < need {
			return Result{}, tooShort(len(s), need)
		}
		return run(s)
	}
}

// extended holds the tests that need long sequences, mostly 10^6 bits.
var extended = []testFunc{
	{"Binary Matrix Rank (32x32)", atLeast(38*32*32, func(s Bits) (Result, error) { return BinaryMatrixRank(s, 32) })},
	{"Non-overlapping Template (m=9)", atLeast(1_000_000, func(s Bits) (Result, error) {
		return NonOverlappingTemplate(s, aperiodicTemplate, 8)
	})},
	{"Overlapping Template (m=9)", atLeast(1_000_000, func(s Bits) (Result, error) {
		return OverlappingTemplate(s, onesTemplate, 1032)
	})},
	{"Maurer's Universal", Universal},
	{"Linear Complexity (M=500)", atLeast(1_000_000, func(s Bits) (Result, error) { return LinearComplexity(s, 500) })},
	{"Serial (m=16)", atLeast(1_000_000, func(s Bits) (Result, error) { return Serial(s, 16) })},
	{"Random Excursions", atLeast(1_000_000, RandomExcursions)},
	{"Random Excursions Variant", atLeast(1_000_000, RandomExcursionsVariant)},
}

// Report runs the core suite over seq. A test that cannot run on seq is
// reported with StatusError instead of aborting the report.
func Report(seq Bits) []Row {
	return run(suite, seq)
}

// FullReport runs the core suite followed by the long-sequence tests.
func FullReport(seq Bits) []Row {
	all := make([]testFunc, 0, len(suite)+len(extended))
	return run(append(append(all, suite...), extended...), seq)
}

func run(tests []testFunc, seq Bits) []Row {
	rows := make([]Row, 0, len(tests))
	for _, tf := range tests {
		row := Row{Name: tf.name}
		res, err := tf.run(seq)
		switch {
		case err != nil:
			row.Status = StatusError
			row.Err = err.Error()
		case res.Passed():
			row.Status = StatusPassed
		default:
			row.Status = StatusFailed
		}
		row.Result = res
		rows = append(rows, row)
	}
	return rows
}

// PValues formats the p-values as "key=value" pairs sorted by key.
func (r Result) PValues() string {
	keys := make([]string, 0, len(r.P))
	for k := range r.P {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%.6f", k, r.P[k])
	}
	return strings.Join(parts, " ")
}

// AllPassed reports whether every row passed.
func AllPassed(rows []Row) bool {
	for _, r := range rows {
		if r.Status != StatusPassed {
			return false
		}
	}
	return len(rows) > 0
}

// MarshalJSON writes NaN and infinite values as null, which encoding/json
// rejects otherwise.
func (r Row) MarshalJSON() ([]byte, error) {
	out := struct {
		Name   string              `json:"name"`
		Status string              `json:"status"`
		P      map[string]*float64 `json:"p,omitempty"`
		Stats  map[string]*float64 `json:"stats,omitempty"`
		Err    string              `json:"error,omitempty"`
	}{
		Name:   r.Name,
		Status: r.Status,
		P:      finite(r.Result.P),
		Stats:  finite(r.Result.Stats),
		Err:    r.Err,
	}
	return json.Marshal(out)
}

func finite(m map[string]float64) map[string]*float64 {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]*float64, len(m))
	for k, v := range m {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[k] = nil
			continue
		}
		v := v
		out[k] = &v
	}
	return out
}
