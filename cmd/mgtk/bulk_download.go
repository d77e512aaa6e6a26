package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nishad/mgtk/internal/bulkdownload"
	"github.com/nishad/mgtk/internal/catalog"
	"github.com/nishad/mgtk/internal/cli"
	"github.com/nishad/mgtk/internal/jsonapi"
	"github.com/nishad/mgtk/internal/mgnify"
)

func newBulkDownloadCmd(g *globalOptions) *cobra.Command {
	var (
		accessions []string
		opts       bulkdownload.Options
	)

	cmd := &cobra.Command{
		Use:   "bulk_download",
		Short: "Download result files in bulks for an entire study.",
		Long: `Download every result file of an MGnify study.

Files are stored as {output}/{accession}/{pipeline version}/{result group}/{file}
and listed in {output}/{accession}/{accession}_metadata.tsv. Files already
present are skipped, so an interrupted download can simply be started again.

Result groups:
  statistics
  sequence_data (all versions)
  functional_analysis (all versions)
  taxonomic_analysis (1.0-3.0)
  taxonomic_analysis_ssu_rrna (>=4.0)
  taxonomic_analysis_lsu_rrna (>=4.0)
  non-coding_rnas (>=4.0)
  taxonomic_analysis_itsonedb (>= 5.0)
  taxonomic_analysis_unite (>= 5.0)
  taxonomic_analysis_motu (>= 5.0)
  pathways_and_systems (>= 5.0)

Other group names are matched as given against the lowercased group type.`,
		Example: `  mgtk bulk_download -a ERP001736
  mgtk bulk_download -a ERP001736 -o results -p 4.1 -g taxonomic_analysis_ssu_rrna`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(accessions) != 1 {
				return fmt.Errorf("exactly one study accession is required, got %d", len(accessions))
			}
			opts.Project = accessions[0]
			if err := opts.Validate(); err != nil {
				return err
			}

			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			if opts.OutputRoot == "" {
				opts.OutputRoot = a.cfg.Download.OutputDir
			}

			source := mgnify.New(jsonapi.NewFetcher(a.http, a.log), a.cfg.Endpoints.APIBase, a.log)
			walker := bulkdownload.NewWalker(source, a.http, afero.NewOsFs(), a.cfg.Download.PageSize, a.log)

			if a.cfg.Catalog.Enabled {
				cat, err := catalog.Open(a.cfg.Catalog.Path)
				if err != nil {
					return err
				}
				defer cat.Close()
				walker.Recorder = cat
				a.p.info("Recording files in %s (run %s)", cat.Path(), cat.RunID())
			}

			a.p.info("Downloading results of %s into %s", opts.Project, opts.OutputRoot)
			start := time.Now()
			stats, err := walker.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}

			a.p.success("%d downloaded, %d already present (%d analyses, %d entries processed)",
				stats.Downloaded, stats.Existing, stats.Analyses, stats.Processed)
			a.p.info("%s in %s", formatSize(stats.Bytes), formatDuration(time.Since(start)))
			if stats.Excluded > 0 || stats.Filtered > 0 {
				a.p.info("%d entries excluded, %d outside the selected result group", stats.Excluded, stats.Filtered)
			}
			if stats.Failed > 0 || stats.SkippedAnalyses > 0 {
				a.p.warning("%d files failed and %d analyses were skipped; run the command again to retry",
					stats.Failed, stats.SkippedAnalyses)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&accessions, "accession", "a", nil, "Study/project accession, e.g. ERP001736 or SRP000319")
	cmd.Flags().StringVarP(&opts.OutputRoot, "output_path", "o", "", "Output directory (default: download.output_dir, the working directory)")
	cmd.Flags().StringVarP(&opts.PipelineVersion, "pipeline", "p", "",
		"Only download results of this pipeline version ("+strings.Join(bulkdownload.PipelineVersions, "|")+")")
	cmd.Flags().StringVarP(&opts.ResultGroup, "result_group", "g", "", "Only download this result group (default: all groups)")
	_ = cmd.MarkFlagRequired("accession")

	cli.SetupGroupedHelp(cmd,
		cli.FlagGroup{Title: "STUDY", Names: []string{"accession"}},
		cli.FlagGroup{Title: "FILTERS", Names: []string{"pipeline", "result_group"}},
		cli.FlagGroup{Title: "OUTPUT OPTIONS", Names: []string{"output_path"}},
	)
	return cmd
}
