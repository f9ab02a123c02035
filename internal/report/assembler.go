// internal/report/assembler.go
package report

import (
	"path/filepath"
	"strings"

	"github.com/gtonkinhill/tracm/internal/distance"
	"github.com/gtonkinhill/tracm/internal/metadata"
	"github.com/gtonkinhill/tracm/internal/transcluster"
)

// daysPerYear converts metadata date differences to the per-year rate units
// of the transmission model.
const daysPerYear = 365.0

// Params controls the join of distance records with transmission estimates.
type Params struct {
	Model transcluster.Params

	// TransThreshold drops records whose most likely intermediate-host
	// count exceeds it. Negative means unset.
	TransThreshold int

	// MSALabel is written to the last output column.
	MSALabel string
}

// OutputRecord is one joined row of the final report. When HasDates is
// false the three transmission fields are not computable and are written as
// NA markers downstream.
type OutputRecord struct {
	SampleA, SampleB string
	HasDates         bool
	DateDiffDays     int
	SNPDistance      int
	MostLikelyK      int
	ExpectedK        float64
	FilteredDistance int
	Sites            int
	MSA              string
}

// Assemble joins the engine's records with sample dates and transmission
// estimates, preserving the engine's pair order. Pairs without dates are
// kept with null markers; they are never silently dropped.
func Assemble(recs []distance.Record, names []string, dates metadata.Dates, p Params) ([]OutputRecord, error) {
	out := make([]OutputRecord, 0, len(recs))
	for _, rec := range recs {
		row := OutputRecord{
			SampleA:          names[rec.I],
			SampleB:          names[rec.J],
			SNPDistance:      rec.Raw,
			FilteredDistance: rec.Filtered,
			Sites:            rec.Sites,
			MSA:              p.MSALabel,
		}
		if dates != nil {
			if days, ok := dates.DiffDays(row.SampleA, row.SampleB); ok {
				est, err := transcluster.EstimateK(rec.Filtered, float64(days)/daysPerYear, p.Model)
				if err != nil {
					return nil, err
				}
				row.HasDates = true
				row.DateDiffDays = days
				row.MostLikelyK = est.MostLikelyK
				row.ExpectedK = est.ExpectedK
				if p.TransThreshold >= 0 && est.MostLikelyK > p.TransThreshold {
					continue
				}
			}
		}
		out = append(out, row)
	}
	return out, nil
}

// MSALabel derives the report label for an alignment path: the base name up
// to the first dot, with any _combined marker removed.
func MSALabel(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	return strings.ReplaceAll(base, "_combined", "")
}
