// internal/metadata/metadata.go
package metadata

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

// ErrDateParse is returned for malformed metadata rows or dates.
var ErrDateParse = errors.New("bad metadata date")

const dateLayout = "2006-01-02"

// Dates maps a sample name to its collection date. Samples missing from the
// map simply have no transmission estimate; that is not an error.
type Dates map[string]time.Time

// Load reads sample dates from a CSV file: header row ignored, column 1 the
// sample name matching the alignment headers, column 2 an ISO-8601 date.
func Load(path string) (Dates, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = fh.Close() }()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	dates := make(Dates)
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		line++
		if line == 1 {
			continue // header
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("%s:%d: %w: need at least 2 columns, got %d", path, line, ErrDateParse, len(rec))
		}
		t, err := time.Parse(dateLayout, rec[1])
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w: %q", path, line, ErrDateParse, rec[1])
		}
		dates[rec[0]] = t
	}
	return dates, nil
}

// DiffDays returns the absolute whole-day difference between the dates of a
// and b, and whether both samples have a known date.
func (d Dates) DiffDays(a, b string) (int, bool) {
	ta, okA := d[a]
	tb, okB := d[b]
	if !okA || !okB {
		return 0, false
	}
	days := int(ta.Sub(tb).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days, true
}
