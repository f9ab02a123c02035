// internal/transcluster/model_test.go
package transcluster

import (
	"errors"
	"math"
	"testing"
)

func defaults() Params {
	return Params{ClockRate: 1e-3 * 29903, TransRate: 73, Precision: 0.01}
}

func TestPosteriorMassWithinPrecision(t *testing.T) {
	cases := []struct {
		d       int
		elapsed float64
	}{
		{0, 0}, {0, 0.5}, {1, 0.1}, {5, 1}, {20, 2}, {100, 10},
	}
	for _, c := range cases {
		est, err := EstimateK(c.d, c.elapsed, defaults())
		if err != nil {
			t.Fatalf("d=%d t=%v: %v", c.d, c.elapsed, err)
		}
		sum := 0.0
		for _, p := range est.Posterior {
			if p < 0 || p > 1 || math.IsNaN(p) {
				t.Fatalf("d=%d t=%v: bad mass %v", c.d, c.elapsed, p)
			}
			sum += p
		}
		if sum < 1-0.01 || sum > 1+1e-9 {
			t.Errorf("d=%d t=%v: truncated mass = %v", c.d, c.elapsed, sum)
		}
		if est.ExpectedK < 0 || est.ExpectedK > float64(len(est.Posterior)-1) {
			t.Errorf("d=%d t=%v: E[K]=%v outside truncated support [0,%d]",
				c.d, c.elapsed, est.ExpectedK, len(est.Posterior)-1)
		}
		if est.MostLikelyK < 0 || est.MostLikelyK >= len(est.Posterior) {
			t.Errorf("d=%d t=%v: K*=%d outside support", c.d, c.elapsed, est.MostLikelyK)
		}
	}
}

func TestExpectedKMonotoneInDistance(t *testing.T) {
	prev := -1.0
	for _, d := range []int{0, 1, 2, 5, 10, 20, 50} {
		est, err := EstimateK(d, 0.1, defaults())
		if err != nil {
			t.Fatal(err)
		}
		if est.ExpectedK < prev-1e-9 {
			t.Errorf("E[K] decreased at d=%d: %v -> %v", d, prev, est.ExpectedK)
		}
		prev = est.ExpectedK
	}
}

func TestZeroDistanceFastClock(t *testing.T) {
	// When substitutions accrue much faster than transmissions, identical
	// genomes imply a direct link.
	p := Params{ClockRate: 29.903, TransRate: 0.5, Precision: 0.01}
	est, err := EstimateK(0, 0.003, p)
	if err != nil {
		t.Fatal(err)
	}
	if est.MostLikelyK != 0 {
		t.Errorf("K* = %d, want 0", est.MostLikelyK)
	}
	if est.ExpectedK > 0.05 {
		t.Errorf("E[K] = %v, want ~0", est.ExpectedK)
	}
}

func TestMoreDistantPairsInferMoreHosts(t *testing.T) {
	near, err := EstimateK(0, 0.01, defaults())
	if err != nil {
		t.Fatal(err)
	}
	far, err := EstimateK(40, 0.01, defaults())
	if err != nil {
		t.Fatal(err)
	}
	if far.MostLikelyK <= near.MostLikelyK && far.ExpectedK <= near.ExpectedK {
		t.Errorf("40 SNPs should infer more hosts than 0: near K*=%d E=%v, far K*=%d E=%v",
			near.MostLikelyK, near.ExpectedK, far.MostLikelyK, far.ExpectedK)
	}
}

func TestInvalidRates(t *testing.T) {
	if _, err := EstimateK(1, 1, Params{ClockRate: 0, TransRate: 73}); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("zero clock rate: err = %v", err)
	}
	if _, err := EstimateK(1, 1, Params{ClockRate: 29, TransRate: -1}); !errors.Is(err, ErrInvalidRate) {
		t.Errorf("negative transmission rate: err = %v", err)
	}
}

func TestElapsedSignIgnored(t *testing.T) {
	a, err := EstimateK(3, 0.5, defaults())
	if err != nil {
		t.Fatal(err)
	}
	b, err := EstimateK(3, -0.5, defaults())
	if err != nil {
		t.Fatal(err)
	}
	if a.ExpectedK != b.ExpectedK || a.MostLikelyK != b.MostLikelyK {
		t.Errorf("sign of elapsed time changed the estimate: %+v vs %+v", a, b)
	}
}

func TestLargeInputsStayFinite(t *testing.T) {
	est, err := EstimateK(5000, 30, defaults())
	if err != nil {
		t.Fatal(err)
	}
	sum := 0.0
	for _, p := range est.Posterior {
		if math.IsNaN(p) || math.IsInf(p, 0) {
			t.Fatalf("non-finite mass: %v", p)
		}
		sum += p
	}
	if sum < 1-0.01 || sum > 1+1e-9 {
		t.Errorf("mass = %v", sum)
	}
}

func TestMaxKClamped(t *testing.T) {
	p := defaults()
	p.MaxK = 100000
	p.Precision = 1e-9 // force a wide support
	est, err := EstimateK(50, 10, p)
	if err != nil {
		t.Fatal(err)
	}
	if len(est.Posterior) > HardCapK+1 {
		t.Errorf("support %d exceeds hard cap", len(est.Posterior))
	}
}

func TestPrecisionTruncatesSupport(t *testing.T) {
	loose := defaults()
	loose.Precision = 0.5
	tight := defaults()
	tight.Precision = 1e-6

	a, err := EstimateK(5, 0.5, loose)
	if err != nil {
		t.Fatal(err)
	}
	b, err := EstimateK(5, 0.5, tight)
	if err != nil {
		t.Fatal(err)
	}
	if len(a.Posterior) >= len(b.Posterior) {
		t.Errorf("loose precision support %d should be shorter than tight %d",
			len(a.Posterior), len(b.Posterior))
	}
}

func TestArgmaxTiesToSmallestK(t *testing.T) {
	if got := argmax([]float64{0.2, 0.3, 0.3, 0.2}); got != 1 {
		t.Errorf("argmax = %d, want 1", got)
	}
	if got := argmax([]float64{0.5, 0.25, 0.25}); got != 0 {
		t.Errorf("argmax = %d, want 0", got)
	}
}
