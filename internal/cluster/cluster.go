// internal/cluster/cluster.go
package cluster

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Column offsets in the distance report (see writers.Header).
const (
	colSampleA   = 0
	colSampleB   = 1
	colSNPDist   = 3
	colTransDist = 4
	numColumns   = 9
)

// Assignment pairs a sample with its cluster id. Ids are assigned by first
// appearance in the report, so output is deterministic for a given input.
type Assignment struct {
	Sample  string
	Cluster int
}

// FromReport single-linkage clusters the samples of a distance report.
// Two samples are linked when their SNP distance is <= snpThreshold or
// their most likely intermediate-host count is <= transThreshold; a
// negative threshold disables that criterion. Rows with NA transmission
// fields never satisfy the transmission criterion.
func FromReport(r io.Reader, snpThreshold, transThreshold int) ([]Assignment, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var order []string
	index := make(map[string]int)
	var parent []int

	find := func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}
	sampleID := func(name string) int {
		if id, ok := index[name]; ok {
			return id
		}
		id := len(order)
		index[name] = id
		order = append(order, name)
		parent = append(parent, id)
		return id
	}

	line := 0
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if line == 1 && strings.EqualFold(rec[colSampleA], "sampleA") {
			continue
		}
		if len(rec) < numColumns {
			return nil, fmt.Errorf("line %d: expected %d columns, got %d", line, numColumns, len(rec))
		}
		a := sampleID(rec[colSampleA])
		b := sampleID(rec[colSampleB])

		linked := false
		if snpThreshold >= 0 {
			d, err := strconv.Atoi(rec[colSNPDist])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad SNP distance %q", line, rec[colSNPDist])
			}
			linked = d <= snpThreshold
		}
		if !linked && transThreshold >= 0 && rec[colTransDist] != "NA" {
			k, err := strconv.Atoi(rec[colTransDist])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad transmission distance %q", line, rec[colTransDist])
			}
			linked = k <= transThreshold
		}
		if linked {
			union(a, b)
		}
	}

	clusterOf := make(map[int]int)
	out := make([]Assignment, len(order))
	next := 1
	for id, name := range order {
		root := find(id)
		c, ok := clusterOf[root]
		if !ok {
			c = next
			next++
			clusterOf[root] = c
		}
		out[id] = Assignment{Sample: name, Cluster: c}
	}
	return out, nil
}

// Write emits assignments as a sample,cluster CSV.
func Write(w io.Writer, list []Assignment) error {
	if _, err := io.WriteString(w, "sample,cluster\n"); err != nil {
		return err
	}
	for _, a := range list {
		if _, err := fmt.Fprintf(w, "%s,%d\n", a.Sample, a.Cluster); err != nil {
			return err
		}
	}
	return nil
}
