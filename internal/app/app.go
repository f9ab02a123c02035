// internal/app/app.go
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/cheggaaa/pb/v3"
	"github.com/spf13/cobra"

	"github.com/gtonkinhill/tracm/internal/align"
	"github.com/gtonkinhill/tracm/internal/cli"
	"github.com/gtonkinhill/tracm/internal/cluster"
	"github.com/gtonkinhill/tracm/internal/config"
	"github.com/gtonkinhill/tracm/internal/distance"
	"github.com/gtonkinhill/tracm/internal/metadata"
	"github.com/gtonkinhill/tracm/internal/report"
	"github.com/gtonkinhill/tracm/internal/transcluster"
	"github.com/gtonkinhill/tracm/internal/version"
	"github.com/gtonkinhill/tracm/internal/writers"
)

// usageError marks errors caused by bad invocations rather than bad inputs.
type usageError struct{ err error }

func (u usageError) Error() string { return u.err.Error() }
func (u usageError) Unwrap() error { return u.err }

// Run executes the CLI and returns the process exit code: 0 on success,
// 1 for run errors, 2 for usage errors.
func Run(argv []string, stdout, stderr io.Writer) int {
	return RunContext(context.Background(), argv, stdout, stderr)
}

func RunContext(ctx context.Context, argv []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(argv)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "tracm: %v\n", err)
		var ue usageError
		if errors.As(err, &ue) {
			return 2
		}
		return 1
	}
	return 0
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "tracm",
		Short:         "pairwise SNP and transmission distances from whole genome alignments",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newDistanceCmd(stdout, stderr))
	root.AddCommand(newClusterCmd(stdout))
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(stdout, "tracm version %s\n", version.Version)
		},
	})
	return root
}

func newDistanceCmd(stdout, stderr io.Writer) *cobra.Command {
	opts := cli.Defaults()

	cmd := &cobra.Command{
		Use:   "distance",
		Short: "estimate pairwise SNP and transmission distances between aligned samples",
		Long: `Estimates pairwise SNP and transmission distances between each pair of
samples aligned to the same reference genome.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Config != "" {
				if err := applyConfig(cmd, &opts); err != nil {
					return usageError{err}
				}
			}
			if err := opts.Validate(); err != nil {
				return usageError{err}
			}
			return runDistance(cmd.Context(), opts, stdout, stderr)
		},
	}

	fs := cmd.Flags()
	fs.StringArrayVar(&opts.MSAFiles, "msa", nil, "input alignment fasta file (repeatable)")
	fs.StringVar(&opts.MSADB, "msa-db", "", "database alignment to compare each sequence against (disables within-alignment pairs)")
	fs.StringVar(&opts.Metadata, "meta", "", "metadata csv: column 1 sample name, column 2 collection date (YYYY-MM-DD)")
	fs.StringVarP(&opts.OutputFile, "output", "o", "-", "output file for the pairwise distance estimates ('-' = stdout)")
	fs.IntVarP(&opts.SNPThreshold, "snp-threshold", "D", opts.SNPThreshold, "only output pairs with a SNP distance <= D")
	fs.BoolVar(&opts.Filter, "filter", false, "filter out regions with unusually high SNP density, often caused by HGT")
	fs.Float64Var(&opts.ClockRate, "clock-rate", opts.ClockRate, "clock rate (substitutions/genome/year)")
	fs.Float64Var(&opts.TransRate, "trans-rate", opts.TransRate, "transmission rate (transmissions/year)")
	fs.IntVarP(&opts.TransThreshold, "trans-threshold", "K", opts.TransThreshold, "only output pairs whose most likely intermediate host count is <= K (-1 = off)")
	fs.Float64Var(&opts.Precision, "precision", opts.Precision, "tail probability mass ignored when computing E(K)")
	fs.IntVarP(&opts.Threads, "threads", "t", opts.Threads, "number of threads for the pairwise scan")
	fs.BoolVar(&opts.Quiet, "quiet", false, "turn off console output")
	fs.BoolVar(&opts.FailFast, "fail-fast", false, "stop at the first failing alignment instead of skipping it")
	fs.StringVar(&opts.Config, "config", "", "TOML file supplying parameter defaults")

	return cmd
}

// applyConfig fills options from the TOML file for every flag the user did
// not set explicitly; explicit flags win.
func applyConfig(cmd *cobra.Command, opts *cli.DistanceOptions) error {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return err
	}
	d := cfg.Distance
	set := cmd.Flags().Changed
	if d.SNPThreshold != nil && !set("snp-threshold") {
		opts.SNPThreshold = *d.SNPThreshold
	}
	if d.Filter != nil && !set("filter") {
		opts.Filter = *d.Filter
	}
	if d.ClockRate != nil && !set("clock-rate") {
		opts.ClockRate = *d.ClockRate
	}
	if d.TransRate != nil && !set("trans-rate") {
		opts.TransRate = *d.TransRate
	}
	if d.TransThreshold != nil && !set("trans-threshold") {
		opts.TransThreshold = *d.TransThreshold
	}
	if d.Precision != nil && !set("precision") {
		opts.Precision = *d.Precision
	}
	if d.Threads != nil && !set("threads") {
		opts.Threads = *d.Threads
	}
	return nil
}

func runDistance(ctx context.Context, opts cli.DistanceOptions, stdout, stderr io.Writer) error {
	out := stdout
	if opts.OutputFile != "" && opts.OutputFile != "-" {
		fh, err := os.Create(opts.OutputFile)
		if err != nil {
			return err
		}
		defer func() { _ = fh.Close() }()
		out = fh
	}

	var dates metadata.Dates
	if opts.Metadata != "" {
		statusf(stderr, opts.Quiet, "Loading metadata from %s", opts.Metadata)
		var err error
		dates, err = metadata.Load(opts.Metadata)
		if err != nil {
			return err
		}
	}

	w := writers.NewCSV(out)
	if err := w.WriteHeader(); err != nil {
		return err
	}

	failed := 0
	for _, msa := range opts.MSAFiles {
		if err := processMSA(ctx, msa, opts, dates, w, stderr); err != nil {
			if writers.IsBrokenPipe(err) {
				return nil
			}
			if opts.FailFast {
				return fmt.Errorf("%s: %w", msa, err)
			}
			_, _ = fmt.Fprintf(stderr, "tracm: %s: %v\n", msa, err)
			failed++
		}
	}

	if err := w.Flush(); err != nil && !writers.IsBrokenPipe(err) {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d alignments failed", failed, len(opts.MSAFiles))
	}
	return nil
}

func processMSA(ctx context.Context, msa string, opts cli.DistanceOptions, dates metadata.Dates, w *writers.CSV, stderr io.Writer) error {
	var (
		m   *align.Matrix
		err error
	)
	if opts.MSADB != "" {
		m, err = align.LoadWithDB(msa, opts.MSADB)
	} else {
		m, err = align.Load(msa)
	}
	if err != nil {
		return err
	}

	statusf(stderr, opts.Quiet, "Calculating pairwise snp distances for %s", msa)
	cfg := distance.Config{
		Threshold: opts.SNPThreshold,
		Threads:   opts.Threads,
		Filter:    opts.Filter,
	}
	var bar *pb.ProgressBar
	if !opts.Quiet {
		bar = pb.New(distance.NumPairs(m)).SetWriter(stderr).Start()
		cfg.Progress = func() { bar.Increment() }
	}
	recs, err := distance.Run(ctx, m, cfg)
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return err
	}

	if dates != nil {
		statusf(stderr, opts.Quiet, "Inferring transmission probabilities for %s", msa)
	}
	rows, err := report.Assemble(recs, m.Names, dates, report.Params{
		Model: transcluster.Params{
			ClockRate: opts.ClockRate,
			TransRate: opts.TransRate,
			Precision: opts.Precision,
		},
		TransThreshold: opts.TransThreshold,
		MSALabel:       report.MSALabel(msa),
	})
	if err != nil {
		return err
	}

	statusf(stderr, opts.Quiet, "Saving distances for %s", msa)
	for _, row := range rows {
		if err := w.WriteRecord(row); err != nil {
			return err
		}
	}
	return nil
}

func newClusterCmd(stdout io.Writer) *cobra.Command {
	var opts cli.ClusterOptions

	cmd := &cobra.Command{
		Use:   "cluster",
		Short: "single-linkage cluster samples from a distance report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.Validate(); err != nil {
				return usageError{err}
			}
			return runCluster(opts, stdout)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&opts.InputFile, "distances", "", "distance csv produced by the distance command")
	fs.StringVarP(&opts.OutputFile, "output", "o", "-", "output file for cluster assignments ('-' = stdout)")
	fs.IntVarP(&opts.SNPThreshold, "snp-threshold", "D", -1, "link pairs with SNP distance <= D (-1 = off)")
	fs.IntVarP(&opts.TransThreshold, "trans-threshold", "K", -1, "link pairs with transmission distance <= K (-1 = off)")

	return cmd
}

func runCluster(opts cli.ClusterOptions, stdout io.Writer) error {
	fh, err := os.Open(opts.InputFile)
	if err != nil {
		return err
	}
	defer func() { _ = fh.Close() }()

	list, err := cluster.FromReport(fh, opts.SNPThreshold, opts.TransThreshold)
	if err != nil {
		return fmt.Errorf("%s: %w", opts.InputFile, err)
	}

	out := stdout
	if opts.OutputFile != "" && opts.OutputFile != "-" {
		ofh, err := os.Create(opts.OutputFile)
		if err != nil {
			return err
		}
		defer func() { _ = ofh.Close() }()
		out = ofh
	}
	return cluster.Write(out, list)
}

func statusf(dst io.Writer, quiet bool, format string, a ...any) {
	if quiet {
		return
	}
	_, _ = fmt.Fprintf(dst, format+"\n", a...)
}
