// internal/distance/engine.go
package distance

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gtonkinhill/tracm/internal/align"
	"github.com/gtonkinhill/tracm/internal/recomb"
)

// Unbounded disables the SNP-distance cutoff. It matches the upstream
// default sentinel (max int32).
const Unbounded = 1<<31 - 1

// ErrInvalidThreshold is returned for a negative distance cutoff.
var ErrInvalidThreshold = errors.New("invalid SNP threshold")

// Config holds the pairwise scan parameters.
type Config struct {
	Threshold int  // pairs with raw distance > Threshold are omitted; Unbounded keeps all
	Threads   int  // worker goroutines; values < 1 degrade to sequential
	Filter    bool // recombination-window filtering
	FilterCfg recomb.Config

	// Progress, when non-nil, is called once per scanned pair. It must be
	// safe for concurrent use.
	Progress func()
}

// Record is the per-pair result. I and J index into the matrix name table,
// with I < J for within-set pairs and I in the primary set for cross-set
// pairs. Filtered equals Raw when filtering is off.
type Record struct {
	I, J     int
	Raw      int
	Filtered int
	Sites    int // resolved sites considered after filtering
}

type pair struct{ i, j int }

// enumerate lists the pair scope in the deterministic output order:
// lexicographic (i, j) with i < j within one set, or primary-major order
// across sets.
func enumerate(m *align.Matrix) []pair {
	var out []pair
	if m.CrossSet() {
		n, total := m.NPrimary, m.NumSeqs()
		out = make([]pair, 0, n*(total-n))
		for i := 0; i < n; i++ {
			for j := n; j < total; j++ {
				out = append(out, pair{i, j})
			}
		}
		return out
	}
	n := m.NumSeqs()
	out = make([]pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			out = append(out, pair{i, j})
		}
	}
	return out
}

// NumPairs reports how many pairs Run will scan for m.
func NumPairs(m *align.Matrix) int {
	if m.CrossSet() {
		return m.NPrimary * (m.NumSeqs() - m.NPrimary)
	}
	n := m.NumSeqs()
	return n * (n - 1) / 2
}

// Run computes a Record for every pair in scope. Work is split into
// contiguous static ranges across cfg.Threads workers; each worker writes
// disjoint slots of the result slice, so record order is independent of the
// thread count. Pairs whose raw distance exceeds the cutoff are omitted.
func Run(ctx context.Context, m *align.Matrix, cfg Config) ([]Record, error) {
	if cfg.Threshold < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidThreshold, cfg.Threshold)
	}
	threads := cfg.Threads
	if threads < 1 {
		threads = 1
	}
	fcfg := cfg.FilterCfg
	if cfg.Filter && fcfg.Window == 0 {
		fcfg = recomb.Default()
	}

	pairs := enumerate(m)
	recs := make([]Record, len(pairs))
	keep := make([]bool, len(pairs))

	if threads > len(pairs) && len(pairs) > 0 {
		threads = len(pairs)
	}
	chunk := (len(pairs) + threads - 1) / threads

	var wg sync.WaitGroup
	for w := 0; w < threads; w++ {
		lo := w * chunk
		if lo >= len(pairs) {
			break
		}
		hi := lo + chunk
		if hi > len(pairs) {
			hi = len(pairs)
		}
		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for idx := lo; idx < hi; idx++ {
				if idx%1024 == 0 && ctx.Err() != nil {
					return
				}
				p := pairs[idx]
				a, b := m.Seqs[p.i], m.Seqs[p.j]
				raw, res, pos, exceeded := scanPair(a, b, cfg.Threshold, cfg.Filter)
				if cfg.Progress != nil {
					cfg.Progress()
				}
				if exceeded {
					continue
				}
				rec := Record{I: p.i, J: p.j, Raw: raw, Filtered: raw, Sites: res}
				if cfg.Filter {
					rec.Filtered, rec.Sites = fcfg.Apply(a, b, pos, res)
				}
				recs[idx] = rec
				keep[idx] = true
			}
		}(lo, hi)
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(pairs))
	for idx := range recs {
		if keep[idx] {
			out = append(out, recs[idx])
		}
	}
	return out, nil
}

// scanPair accumulates the mismatch count over resolved columns, bailing out
// with exceeded=true as soon as the running count passes limit. The bound
// makes distant pairs sub-linear in practice while keeping worst case O(L).
func scanPair(a, b []byte, limit int, wantPos bool) (raw, resolvedN int, pos []int, exceeded bool) {
	for p := 0; p < len(a); p++ {
		x, y := a[p], b[p]
		if !align.Resolved(x) || !align.Resolved(y) {
			continue
		}
		resolvedN++
		if x != y {
			raw++
			if raw > limit {
				return raw, resolvedN, nil, true
			}
			if wantPos {
				pos = append(pos, p)
			}
		}
	}
	return raw, resolvedN, pos, false
}
