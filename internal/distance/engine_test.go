// internal/distance/engine_test.go
package distance

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/gtonkinhill/tracm/internal/align"
)

func matrix(names []string, seqs ...string) *align.Matrix {
	m := &align.Matrix{Names: names, Width: len(seqs[0]), NPrimary: len(seqs)}
	for _, s := range seqs {
		m.Seqs = append(m.Seqs, []byte(s))
	}
	return m
}

func TestKnownDistance(t *testing.T) {
	// Two sequences of length 10 differing at positions 2 and 7 only.
	m := matrix([]string{"s1", "s2"},
		"ACGTACGTAC",
		"ACTTACGAAC",
	)
	recs, err := Run(context.Background(), m, Config{Threshold: Unbounded, Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	r := recs[0]
	if r.I != 0 || r.J != 1 || r.Raw != 2 || r.Filtered != 2 || r.Sites != 10 {
		t.Errorf("record = %+v, want raw=2 filtered=2 sites=10", r)
	}
}

func TestScanSymmetricAndSelfZero(t *testing.T) {
	a := []byte("ACGTNCGT-C")
	b := []byte("ACTTACGAAC")
	d1, r1, _, _ := scanPair(a, b, Unbounded, false)
	d2, r2, _, _ := scanPair(b, a, Unbounded, false)
	if d1 != d2 || r1 != r2 {
		t.Errorf("asymmetric scan: (%d,%d) vs (%d,%d)", d1, r1, d2, r2)
	}
	if d, _, _, _ := scanPair(a, a, Unbounded, false); d != 0 {
		t.Errorf("self distance = %d, want 0", d)
	}
}

func TestAmbiguousSitesSkipped(t *testing.T) {
	// Positions with N or a gap in either row are not compared.
	m := matrix([]string{"s1", "s2"},
		"ACGTNAC-GT",
		"ACTT-ACCGA",
	)
	recs, err := Run(context.Background(), m, Config{Threshold: Unbounded, Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	r := recs[0]
	// Columns 4 (N/-), 7 (-/C) are unresolved; mismatches at 2 and 9.
	if r.Raw != 2 || r.Sites != 8 {
		t.Errorf("raw=%d sites=%d, want raw=2 sites=8", r.Raw, r.Sites)
	}
}

func TestThresholdOmitsDistantPairs(t *testing.T) {
	m := matrix([]string{"s1", "s2"},
		"ACGTACGTAC",
		"ACTTACGAAC", // distance 2
	)
	recs, err := Run(context.Background(), m, Config{Threshold: 1, Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 0 {
		t.Fatalf("pair with distance 2 survived threshold 1: %+v", recs)
	}

	recs, err = Run(context.Background(), m, Config{Threshold: 2, Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 || recs[0].Raw != 2 {
		t.Fatalf("pair at the threshold should be kept: %+v", recs)
	}
}

func TestEarlyExitSentinel(t *testing.T) {
	a := []byte("AAAAAAAAAA")
	b := []byte("CCCCCCCCCC")
	raw, _, _, exceeded := scanPair(a, b, 3, false)
	if !exceeded || raw != 4 {
		t.Errorf("raw=%d exceeded=%v, want sentinel 4 (D+1)", raw, exceeded)
	}
}

func TestInvalidThreshold(t *testing.T) {
	m := matrix([]string{"s1", "s2"}, "ACGT", "ACGT")
	if _, err := Run(context.Background(), m, Config{Threshold: -1}); !errors.Is(err, ErrInvalidThreshold) {
		t.Fatalf("err = %v, want ErrInvalidThreshold", err)
	}
}

func TestEnumerateOrder(t *testing.T) {
	m := matrix([]string{"a", "b", "c", "d"}, "ACGT", "ACGT", "ACGT", "ACGT")
	want := []pair{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}
	if got := enumerate(m); !reflect.DeepEqual(got, want) {
		t.Errorf("enumerate = %v, want %v", got, want)
	}
}

func TestCrossSetPairsOnly(t *testing.T) {
	m := matrix([]string{"p1", "p2", "d1", "d2"}, "ACGT", "ACGA", "TCGT", "ACTT")
	m.NPrimary = 2

	if NumPairs(m) != 4 {
		t.Fatalf("NumPairs = %d, want 4", NumPairs(m))
	}
	recs, err := Run(context.Background(), m, Config{Threshold: Unbounded, Threads: 2})
	if err != nil {
		t.Fatal(err)
	}
	want := []pair{{0, 2}, {0, 3}, {1, 2}, {1, 3}}
	if len(recs) != len(want) {
		t.Fatalf("got %d records, want %d", len(recs), len(want))
	}
	for i, r := range recs {
		if r.I != want[i].i || r.J != want[i].j {
			t.Errorf("record %d = (%d,%d), want %v", i, r.I, r.J, want[i])
		}
	}
}

func randomMatrix(n, width int, seed int64) *align.Matrix {
	rng := rand.New(rand.NewSource(seed))
	alphabet := []byte("ACGTN-")
	names := make([]string, n)
	seqs := make([]string, n)
	for i := range seqs {
		names[i] = string(rune('a' + i))
		row := make([]byte, width)
		for p := range row {
			row[p] = alphabet[rng.Intn(len(alphabet))]
		}
		seqs[i] = string(row)
	}
	return matrix(names, seqs...)
}

func TestDeterministicAcrossThreads(t *testing.T) {
	m := randomMatrix(8, 500, 1)
	base, err := Run(context.Background(), m, Config{Threshold: Unbounded, Threads: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, threads := range []int{2, 4, 13} {
		got, err := Run(context.Background(), m, Config{Threshold: Unbounded, Threads: threads})
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(got, base) {
			t.Errorf("threads=%d changed results", threads)
		}
	}
}

func TestFilterModeInvariants(t *testing.T) {
	m := randomMatrix(4, 2000, 2)
	recs, err := Run(context.Background(), m, Config{Threshold: Unbounded, Threads: 2, Filter: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) == 0 {
		t.Fatal("expected records")
	}
	for _, r := range recs {
		if r.Filtered > r.Raw {
			t.Errorf("filtered %d > raw %d", r.Filtered, r.Raw)
		}
		if r.Sites > m.Width {
			t.Errorf("sites %d > width %d", r.Sites, m.Width)
		}
	}
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := randomMatrix(8, 100, 3)
	if _, err := Run(ctx, m, Config{Threshold: Unbounded, Threads: 2}); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
