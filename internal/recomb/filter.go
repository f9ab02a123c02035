// internal/recomb/filter.go
package recomb

import (
	"github.com/gtonkinhill/tracm/internal/align"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config controls the per-pair recombination window scan.
type Config struct {
	Window  int     // physical window size in alignment columns
	Alpha   float64 // per-scan false positive budget, Bonferroni-split across candidate windows
	MinSNPs int     // minimum mismatches in a window before it can be flagged
}

// Default mirrors the windowed density filter applied by the upstream
// pairsnp --filter mode: 1 kb windows with a conservative 5% budget.
func Default() Config { return Config{Window: 1000, Alpha: 0.05, MinSNPs: 3} }

type interval struct{ start, end int }

// Apply flags windows whose local mismatch density is inconsistent with the
// pair's genome-wide rate and returns the mismatch count and resolved-site
// count outside the flagged windows. pos holds the sorted mismatch columns
// for the pair (a, b) and resolved the pair's total resolved-site count.
//
// Windows are anchored at each mismatch column, so a clustered run of
// substitutions is always covered by at least one candidate window. A window
// is flagged when the Poisson tail probability of its observed count, at the
// genome-wide expected count per window, falls below Alpha/len(pos).
func (c Config) Apply(a, b []byte, pos []int, resolved int) (filtered, sites int) {
	filtered = len(pos)
	sites = resolved
	if len(pos) < c.MinSNPs || resolved == 0 || c.Window <= 0 {
		return filtered, sites
	}

	rate := float64(len(pos)) / float64(resolved)
	pois := distuv.Poisson{Lambda: rate * float64(c.Window)}
	alpha := c.Alpha / float64(len(pos))

	var flagged []interval
	j := 0
	for i := range pos {
		end := pos[i] + c.Window
		if j < i {
			j = i
		}
		for j < len(pos) && pos[j] < end {
			j++
		}
		count := j - i
		if count < c.MinSNPs {
			continue
		}
		// P(X >= count) under the genome-wide rate.
		if pois.Survival(float64(count-1)) >= alpha {
			continue
		}
		if end > len(a) {
			end = len(a)
		}
		flagged = append(flagged, interval{start: pos[i], end: end})
	}
	if len(flagged) == 0 {
		return filtered, sites
	}

	merged := flagged[:1]
	for _, iv := range flagged[1:] {
		last := &merged[len(merged)-1]
		if iv.start <= last.end {
			if iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}

	for _, iv := range merged {
		for p := iv.start; p < iv.end; p++ {
			if align.Resolved(a[p]) && align.Resolved(b[p]) {
				sites--
				if a[p] != b[p] {
					filtered--
				}
			}
		}
	}
	return filtered, sites
}
