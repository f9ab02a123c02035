// internal/transcluster/model.go
package transcluster

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// HardCapK bounds the posterior support regardless of the requested MaxK.
const HardCapK = 100

// ErrInvalidRate is returned for non-positive clock or transmission rates.
var ErrInvalidRate = errors.New("invalid rate")

// Params holds the transmission model parameters. Rates are per year;
// elapsed times are in years.
type Params struct {
	ClockRate float64 // substitutions per genome per year (lambda)
	TransRate float64 // transmission events per year (beta)
	MaxK      int     // truncation cap; clamped to HardCapK, <=0 means HardCapK
	Precision float64 // tail mass below which further K values are ignored
}

// Estimate is the posterior over the number of intermediate hosts K.
// Posterior holds the truncated probability mass, indexed by k.
type Estimate struct {
	MostLikelyK int
	ExpectedK   float64
	Posterior   []float64
}

// EstimateK computes the posterior over the number of intermediate hosts
// separating two samples with SNP distance d and sampling interval elapsed.
//
// Substitutions and transmissions are modeled as independent Poisson
// processes at rates lambda and beta along the transmission chain. The
// chain time h is unobserved, bounded below by the sampling interval, and
// marginalized out, which gives
//
//	P(k | d, t) ∝ (beta^k / k!) * Γ(d+k+1, (lambda+beta)t) / (lambda+beta)^(d+k+1)
//
// with Γ(s, x) the upper incomplete gamma function. For integer s the
// incomplete gamma reduces to a finite series, which is evaluated entirely
// in the log domain so large d or t cannot underflow.
func EstimateK(d int, elapsed float64, p Params) (Estimate, error) {
	if p.ClockRate <= 0 {
		return Estimate{}, fmt.Errorf("%w: clock rate %v", ErrInvalidRate, p.ClockRate)
	}
	if p.TransRate <= 0 {
		return Estimate{}, fmt.Errorf("%w: transmission rate %v", ErrInvalidRate, p.TransRate)
	}
	if d < 0 {
		return Estimate{}, fmt.Errorf("snp distance must be >= 0, got %d", d)
	}
	if elapsed < 0 {
		elapsed = -elapsed
	}
	maxK := p.MaxK
	if maxK <= 0 || maxK > HardCapK {
		maxK = HardCapK
	}
	eps := p.Precision
	if eps <= 0 || eps >= 1 {
		eps = 0.01
	}

	lambda, beta := p.ClockRate, p.TransRate
	total := lambda + beta
	lnBeta := math.Log(beta)
	lnTotal := math.Log(total)
	x := total * elapsed
	var lnX float64
	if x > 0 {
		lnX = math.Log(x)
	}

	// Log of the partial exponential series sum_{i<s} x^i/i!, extended
	// incrementally as the support grows. Constant factors in k (e^-x and
	// the lambda^d/d! term) are dropped; normalization removes them.
	lseries := 0.0 // s = 1 term: i = 0
	nTerms := 1
	extendTo := func(s int) {
		for nTerms < s {
			i := nTerms
			if x > 0 {
				lseries = logAdd(lseries, float64(i)*lnX-lgamma(i+1))
			}
			nTerms++
		}
	}
	extendTo(d + 1)

	lp := make([]float64, maxK+1)
	for k := 0; k <= maxK; k++ {
		s := d + k + 1
		extendTo(s)
		lp[k] = float64(k)*lnBeta - lgamma(k+1) + lgamma(s) - float64(s)*lnTotal + lseries
	}

	norm := floats.LogSumExp(lp)
	probs := make([]float64, len(lp))
	for k := range lp {
		probs[k] = math.Exp(lp[k] - norm)
	}

	// Truncate the support once the remaining tail mass drops below eps.
	cum := 0.0
	used := len(probs) - 1
	for k, pk := range probs {
		cum += pk
		if cum >= 1-eps {
			used = k
			break
		}
	}
	probs = probs[:used+1]

	est := Estimate{Posterior: probs, MostLikelyK: argmax(probs)}
	for k, pk := range probs {
		est.ExpectedK += float64(k) * pk
	}
	return est, nil
}

// argmax returns the index of the maximum value, ties resolved to the
// smallest index.
func argmax(probs []float64) int {
	best, bestK := math.Inf(-1), 0
	for k, pk := range probs {
		if pk > best {
			best = pk
			bestK = k
		}
	}
	return bestK
}

func lgamma(n int) float64 {
	v, _ := math.Lgamma(float64(n))
	return v
}

// logAdd returns log(e^a + e^b) without leaving the log domain.
func logAdd(a, b float64) float64 {
	if a < b {
		a, b = b, a
	}
	if math.IsInf(b, -1) {
		return a
	}
	return a + math.Log1p(math.Exp(b-a))
}
