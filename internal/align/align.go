// internal/align/align.go
package align

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
)

// Error taxonomy for alignment ingestion. Callers match with errors.Is.
var (
	ErrFormat     = errors.New("malformed alignment")
	ErrEmptyInput = errors.New("empty alignment")
)

// resolved marks the four unambiguous nucleotide symbols. Everything else
// (IUPAC ambiguity codes, N, gaps) is excluded from pairwise comparison.
var resolved [256]bool

func init() {
	for _, b := range []byte("ACGT") {
		resolved[b] = true
	}
}

// Resolved reports whether b is one of A, C, G or T (upper case).
func Resolved(b byte) bool { return resolved[b] }

// Matrix is an immutable set of aligned sequences, one row per sample.
// All rows share the same width. When a database alignment has been merged
// in, rows [0,NPrimary) come from the primary alignment and the remainder
// from the database; otherwise NPrimary == len(Seqs).
type Matrix struct {
	Names    []string
	Seqs     [][]byte
	Width    int
	NPrimary int
}

// NumSeqs returns the total number of rows.
func (m *Matrix) NumSeqs() int { return len(m.Seqs) }

// CrossSet reports whether the matrix holds a primary plus a database set,
// in which case only primary x database pairs are compared.
func (m *Matrix) CrossSet() bool { return m.NPrimary < len(m.Seqs) }

// Load reads a multi-FASTA alignment from path. Sequences are upper-cased.
// It fails with ErrFormat if rows differ in length and with ErrEmptyInput
// if fewer than two sequences are present.
func Load(path string) (*Matrix, error) {
	m, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	if len(m.Seqs) < 2 {
		return nil, fmt.Errorf("%s: %w: need at least 2 aligned sequences, got %d", path, ErrEmptyInput, len(m.Seqs))
	}
	m.NPrimary = len(m.Seqs)
	return m, nil
}

// LoadWithDB reads a primary alignment plus a database alignment and merges
// them into one matrix with NPrimary marking the boundary. Both alignments
// must share the same width.
func LoadWithDB(primary, db string) (*Matrix, error) {
	m, err := loadFile(primary)
	if err != nil {
		return nil, err
	}
	if len(m.Seqs) == 0 {
		return nil, fmt.Errorf("%s: %w: no sequences", primary, ErrEmptyInput)
	}
	m.NPrimary = len(m.Seqs)

	d, err := loadFile(db)
	if err != nil {
		return nil, err
	}
	if len(d.Seqs) == 0 {
		return nil, fmt.Errorf("%s: %w: no sequences", db, ErrEmptyInput)
	}
	if d.Width != m.Width {
		return nil, fmt.Errorf("%s: %w: database width %d does not match alignment width %d",
			db, ErrFormat, d.Width, m.Width)
	}
	m.Names = append(m.Names, d.Names...)
	m.Seqs = append(m.Seqs, d.Seqs...)
	return m, nil
}

func loadFile(path string) (*Matrix, error) {
	rc, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()

	m, err := parse(rc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// parse scans multi-FASTA from r. The width of the first sequence fixes the
// alignment width; any later row of a different length is a format error.
func parse(r io.Reader) (*Matrix, error) {
	sc := bufio.NewScanner(r)
	const maxLine = 64 * 1024 * 1024
	sc.Buffer(make([]byte, 64*1024), maxLine)

	m := &Matrix{}
	var cur []byte
	haveRecord := false

	flush := func() error {
		if !haveRecord {
			return nil
		}
		if m.Width == 0 && len(m.Seqs) == 0 {
			m.Width = len(cur)
		}
		if len(cur) != m.Width {
			return fmt.Errorf("%w: sequence %q length %d differs from alignment width %d",
				ErrFormat, m.Names[len(m.Seqs)], len(cur), m.Width)
		}
		m.Seqs = append(m.Seqs, cur)
		cur = nil
		return nil
	}

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' {
			if err := flush(); err != nil {
				return nil, err
			}
			name := string(bytes.TrimSpace(line[1:]))
			if name == "" {
				return nil, fmt.Errorf("%w: empty FASTA header", ErrFormat)
			}
			m.Names = append(m.Names, name)
			haveRecord = true
			continue
		}
		if !haveRecord {
			return nil, fmt.Errorf("%w: sequence data before first FASTA header", ErrFormat)
		}
		cur = append(cur, bytes.ToUpper(line)...)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return m, nil
}
