// internal/writers/csv.go
package writers

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/gtonkinhill/tracm/internal/report"
)

// Header is the distance report header row. The column set and order are
// relied on by downstream tooling and must not change.
const Header = "sampleA,sampleB,date difference,SNP distance,transmission distance,expected K,filtered SNP distance,sites considered,MSA file"

// NA marks fields that are not computable for a row.
const NA = "NA"

// CSV streams distance report rows. It is not safe for concurrent use; the
// caller owns row ordering.
type CSV struct {
	w *bufio.Writer
}

func NewCSV(w io.Writer) *CSV {
	return &CSV{w: bufio.NewWriter(w)}
}

func (c *CSV) WriteHeader() error {
	_, err := c.w.WriteString(Header + "\n")
	return err
}

func (c *CSV) WriteRecord(r report.OutputRecord) error {
	dateDiff, transDist, expK := NA, NA, NA
	if r.HasDates {
		dateDiff = strconv.Itoa(r.DateDiffDays)
		transDist = strconv.Itoa(r.MostLikelyK)
		expK = strconv.FormatFloat(r.ExpectedK, 'g', -1, 64)
	}
	row := strings.Join([]string{
		r.SampleA,
		r.SampleB,
		dateDiff,
		strconv.Itoa(r.SNPDistance),
		transDist,
		expK,
		strconv.Itoa(r.FilteredDistance),
		strconv.Itoa(r.Sites),
		r.MSA,
	}, ",")
	_, err := c.w.WriteString(row + "\n")
	return err
}

func (c *CSV) Flush() error { return c.w.Flush() }
