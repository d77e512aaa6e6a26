package main

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nishad/mgtk/internal/cli"
	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/jsonapi"
	"github.com/nishad/mgtk/internal/mgnify"
	"github.com/nishad/mgtk/internal/seqsearch"
	"github.com/nishad/mgtk/internal/ui"
)

type searchOptions struct {
	files     []string
	database  string
	output    string
	outputDir string
}

func newSequenceSearchCmd(g *globalOptions) *cobra.Command {
	o := &searchOptions{}

	cmd := &cobra.Command{
		Use:   "sequence_search",
		Short: "Search non-redundant protein database using HMMER",
		Long: `Search every sequence of the given FASTA files against the MGnify protein
database with phmmer, and write the hits enriched with sample metadata.

Without a threshold subcommand the service defaults apply.`,
		Example: `  mgtk sequence_search -seq query.fasta
  mgtk sequence_search -seq a.fasta b.fasta -db all -out hits.csv evalue -incE 0.02
  mgtk sequence_search -seq query.fasta bitscore -incT 30`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequenceSearch(cmd, g, o, seqsearch.Thresholds{})
		},
	}

	cmd.PersistentFlags().StringSliceVar(&o.files, "sequence", nil, "Path to a FASTA file (several may be given)")
	cmd.PersistentFlags().StringVar(&o.output, "output", "", "Write all results to this CSV file (default: {job_uuid}_sequence_search.csv per query)")
	cmd.PersistentFlags().StringVar(&o.database, "database", "full", "Peptide database (full|all|partial)")
	cmd.PersistentFlags().StringVar(&o.outputDir, "output-dir", "", "Directory for per-query result files (default: download.output_dir)")
	_ = cmd.MarkPersistentFlagRequired("sequence")

	cmd.AddCommand(newThresholdCmd(g, o, seqsearch.DefaultEValue(), "E-value"))
	cmd.AddCommand(newThresholdCmd(g, o, seqsearch.DefaultBitScore(), "bit score"))

	groups := []cli.FlagGroup{
		{Title: "INPUT/OUTPUT", Names: []string{"sequence", "database", "output", "output-dir"}},
	}
	cli.SetupGroupedHelp(cmd, groups...)
	return cmd
}

func newThresholdCmd(g *globalOptions, o *searchOptions, t seqsearch.Thresholds, label string) *cobra.Command {
	mode := t.Mode
	cmd := &cobra.Command{
		Use:   mode,
		Short: fmt.Sprintf("Search with %s thresholds", label),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSequenceSearch(cmd, g, o, t)
		},
	}

	accepted := "Accepted values x > 0"
	if mode == seqsearch.ModeEValue {
		accepted = "Accepted values 0 < x <= 10"
	}
	kind := mode
	cmd.Flags().Float64Var(&t.Seq, "seq-"+kind+"-threshold", t.Seq, fmt.Sprintf("Sequence %s threshold. %s", label, accepted))
	cmd.Flags().Float64Var(&t.Hit, "hit-"+kind+"-threshold", t.Hit, fmt.Sprintf("Hit %s threshold. %s", label, accepted))
	cmd.Flags().Float64Var(&t.ReportSeq, "report-seq-"+kind+"-threshold", t.ReportSeq, fmt.Sprintf("Sequence %s threshold (reporting). %s", label, accepted))
	cmd.Flags().Float64Var(&t.ReportHit, "report-hit-"+kind+"-threshold", t.ReportHit, fmt.Sprintf("Hit %s threshold (reporting). %s", label, accepted))

	cli.SetupGroupedHelp(cmd,
		cli.FlagGroup{Title: "THRESHOLDS", Names: []string{
			"seq-" + kind + "-threshold", "hit-" + kind + "-threshold",
			"report-seq-" + kind + "-threshold", "report-hit-" + kind + "-threshold",
		}},
		cli.FlagGroup{Title: "INPUT/OUTPUT", Names: []string{"sequence", "database", "output", "output-dir"}},
	)
	return cmd
}

func runSequenceSearch(cmd *cobra.Command, g *globalOptions, o *searchOptions, t seqsearch.Thresholds) error {
	if !slices.Contains(seqsearch.Databases, o.database) {
		return fmt.Errorf("invalid database %q (choose from %s)", o.database, strings.Join(seqsearch.Databases, ", "))
	}
	for _, f := range o.files {
		info, err := os.Stat(f)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%s is not a file", f)
		}
	}
	if t.Mode != "" {
		if err := t.Validate(); err != nil {
			return err
		}
	}

	a, err := newApp(cmd, g)
	if err != nil {
		return err
	}
	defer a.log.Sync()

	outputDir := o.outputDir
	if outputDir == "" {
		outputDir = a.cfg.Download.OutputDir
	}

	lookup := mgnify.New(jsonapi.NewFetcher(a.http, a.log), a.cfg.Endpoints.APIBase, a.log)
	tool := seqsearch.NewTool(
		seqsearch.NewSearcher(a.http, a.cfg.Endpoints.SequenceSearch, a.log),
		seqsearch.NewFlattener(lookup, a.log),
		afero.NewOsFs(),
		a.log,
	)

	var spinner *ui.Spinner
	if !g.quiet {
		spinner = ui.NewSpinner(cmd.ErrOrStderr(), "Searching sequences")
		tool.OnQuery = func(file, id string) {
			spinner.Update(fmt.Sprintf("Searching %s (%s)", id, filepath.Base(file)))
		}
		spinner.Start()
	}

	summary, err := tool.Run(cmd.Context(), seqsearch.Options{
		Files:      o.files,
		Database:   o.database,
		Thresholds: t,
		Output:     o.output,
		OutputDir:  outputDir,
	})
	if spinner != nil {
		spinner.Stop("")
	}
	if cmd.Context().Err() != nil {
		return cmd.Context().Err()
	}
	var failedQueries *multierror.Error
	if err != nil && !errors.As(err, &failedQueries) {
		return err
	}

	for _, f := range summary.Files {
		a.p.success("results written to %s", f)
	}
	a.p.info("%d queries searched, %d result rows", summary.Queries, summary.Rows)
	if summary.LookupFailures > 0 {
		a.p.warning("metadata of %d accessions could not be retrieved", summary.LookupFailures)
	}
	if failedQueries != nil {
		a.p.warning("%d queries failed", len(failedQueries.Errors))
	}
	return nil
}
