// Package assess performs the post-run analysis of a test's p-value log:
// a proportion-of-passes check against a three-sigma band and a chi-square
// goodness-of-fit check of p-value uniformity. Each partition of the log is
// assessed independently and classified along both axes.
package assess

import "math"

// Outcome classifies one partition of a test run along the proportion and
// uniformity axes.
type Outcome int

const (
	PassedBoth Outcome = iota
	FailedProportion
	FailedUniformity
	FailedBoth
)

// String returns a short identifier for the outcome, suitable for logs and
// metric labels.
func (o Outcome) String() string {
	switch o {
	case PassedBoth:
		return "passed"
	case FailedProportion:
		return "failed_proportion"
	case FailedUniformity:
		return "failed_uniformity"
	case FailedBoth:
		return "failed_both"
	default:
		return "unknown"
	}
}

// Tally accumulates the per-partition statistics needed for assessment:
// the number of valid p-values, how many fell below alpha, and a histogram
// over [0,1]. Tests that use a p-value of exactly 0 as a "not applicable"
// marker set SkipZero so those entries stay out of the assessment.
type Tally struct {
	SampleCount int64
	TooLow      int64
	FreqPerBin  []int64
	SkipZero    bool
}

// NewTally returns an empty tally with the given number of uniformity bins.
func NewTally(bins int) *Tally {
	if bins <= 0 {
		bins = 1
	}
	return &Tally{FreqPerBin: make([]int64, bins)}
}

// Add records one valid p-value. Callers are responsible for filtering
// non-computable sentinel values before tallying. A p-value of exactly 1.0
// lands in the top bin; out-of-range values are clamped into the edge bins
// so that the histogram always sums to SampleCount.
func (t *Tally) Add(p, alpha float64) {
	if t.SkipZero && p == 0.0 {
		return
	}
	t.SampleCount++
	if p < alpha {
		t.TooLow++
	}

	bins := len(t.FreqPerBin)
	switch {
	case p >= 1.0:
		t.FreqPerBin[bins-1]++
	case p >= 0.0:
		t.FreqPerBin[int(math.Floor(p*float64(bins)))]++
	default:
		t.FreqPerBin[0]++
	}
}

// Verdict carries the detailed result of assessing one partition.
type Verdict struct {
	Outcome          Outcome
	SampleCount      int64
	PassCount        int64
	ProportionMin    float64
	ProportionMax    float64
	ProportionPassed bool
	Chi2             float64
	Uniformity       float64
	UniformityPassed bool
}

// Evaluate runs the proportion and uniformity checks over a tallied
// partition. alpha is the per-iteration significance level and
// uniformityLevel the minimum acceptable uniformity p-value. An empty
// partition fails both checks.
func Evaluate(t *Tally, alpha, uniformityLevel float64) Verdict {
	v := Verdict{SampleCount: t.SampleCount}

	if t.SampleCount > 0 && t.SampleCount >= t.TooLow {
		v.PassCount = t.SampleCount - t.TooLow
	}

	// Proportion check: passCount must sit inside the three-sigma band
	// around (1-alpha) * sampleCount.
	pHat := 1.0 - alpha
	sample := float64(t.SampleCount)
	band := 3.0 * math.Sqrt((pHat*alpha)/sample)
	v.ProportionMin = (pHat - band) * sample
	v.ProportionMax = (pHat + band) * sample
	v.ProportionPassed = t.SampleCount > 0 &&
		float64(v.PassCount) >= v.ProportionMin &&
		float64(v.PassCount) <= v.ProportionMax

	// Uniformity check: chi-square of the histogram against a flat
	// expectation, converted to a p-value via the incomplete gamma
	// function.
	bins := len(t.FreqPerBin)
	expCount := sample / float64(bins)
	if expCount <= 0.0 {
		v.Uniformity = 0.0
		v.UniformityPassed = false
	} else {
		for _, observed := range t.FreqPerBin {
			diff := float64(observed) - expCount
			v.Chi2 += diff * diff / expCount
		}
		v.Uniformity = Igamc((float64(bins)-1.0)/2.0, v.Chi2/2.0)
		v.UniformityPassed = v.Uniformity >= uniformityLevel
	}

	switch {
	case !v.ProportionPassed && !v.UniformityPassed:
		v.Outcome = FailedBoth
	case !v.ProportionPassed:
		v.Outcome = FailedProportion
	case !v.UniformityPassed:
		v.Outcome = FailedUniformity
	default:
		v.Outcome = PassedBoth
	}

	return v
}
