// internal/cli/options.go
package cli

import (
	"errors"
	"fmt"

	"github.com/gtonkinhill/tracm/internal/distance"
)

// DistanceOptions holds all flags of the distance command.
type DistanceOptions struct {
	// Input/output
	MSAFiles   []string
	MSADB      string
	Metadata   string
	OutputFile string

	// SNP distance
	SNPThreshold int
	Filter       bool

	// Transmission distance
	ClockRate      float64
	TransRate      float64
	TransThreshold int // -1 = unset
	Precision      float64

	// Other
	Threads  int
	Quiet    bool
	FailFast bool
	Config   string
}

// Defaults mirrors the upstream tool's argparse defaults: unbounded SNP
// cutoff, SARS-CoV-2-scale clock rate (1e-3 substitutions/site/year over a
// 29903 nt genome) and 73 transmissions/year.
func Defaults() DistanceOptions {
	return DistanceOptions{
		SNPThreshold:   distance.Unbounded,
		ClockRate:      1e-3 * 29903,
		TransRate:      73,
		TransThreshold: -1,
		Precision:      0.01,
		Threads:        1,
	}
}

// Validate rejects parameter combinations the engine and model would refuse,
// so errors surface before any file is read.
func (o *DistanceOptions) Validate() error {
	if len(o.MSAFiles) == 0 {
		return errors.New("at least one --msa file is required")
	}
	if o.SNPThreshold < 0 {
		return fmt.Errorf("--snp-threshold must be >= 0, got %d", o.SNPThreshold)
	}
	if o.ClockRate <= 0 {
		return fmt.Errorf("--clock-rate must be > 0, got %v", o.ClockRate)
	}
	if o.TransRate <= 0 {
		return fmt.Errorf("--trans-rate must be > 0, got %v", o.TransRate)
	}
	if o.Precision <= 0 || o.Precision >= 1 {
		return fmt.Errorf("--precision must be in (0,1), got %v", o.Precision)
	}
	if o.Threads < 1 {
		return fmt.Errorf("--threads must be >= 1, got %d", o.Threads)
	}
	return nil
}

// ClusterOptions holds all flags of the cluster command.
type ClusterOptions struct {
	InputFile      string
	OutputFile     string
	SNPThreshold   int // -1 = unset
	TransThreshold int // -1 = unset
}

func (o *ClusterOptions) Validate() error {
	if o.InputFile == "" {
		return errors.New("--distances file is required")
	}
	if o.SNPThreshold < 0 && o.TransThreshold < 0 {
		return errors.New("provide --snp-threshold or --trans-threshold")
	}
	return nil
}
