package main

import (
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/nishad/mgtk/internal/ena"
	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/metadata"
)

func newOriginalMetadataCmd(g *globalOptions) *cobra.Command {
	var (
		accessions []string
		outputDir  string
	)

	cmd := &cobra.Command{
		Use:   "original_metadata",
		Short: "Download original metadata.",
		Long: `Download the original sample metadata of ENA studies.

Every run of a study becomes one row of {accession}.csv, with one column per
sample attribute followed by the sample accession and the read depth.`,
		Example: `  mgtk original_metadata -a ERP001736
  mgtk original_metadata -a PRJEB1787 ERP001736 --output-dir metadata`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, g)
			if err != nil {
				return err
			}
			defer a.log.Sync()

			if outputDir == "" {
				outputDir = a.cfg.Download.OutputDir
			}
			client := ena.New(a.http, a.cfg.Endpoints.ENAPortalSearch, a.cfg.Endpoints.ENABrowserXML, a.log)
			exporter := metadata.NewExporter(client, afero.NewOsFs(), outputDir, a.log)

			results, err := exporter.ExportAll(cmd.Context(), accessions)
			for _, r := range results {
				a.p.success("%s: %d runs written to %s", r.Accession, r.Runs, r.Path)
				if r.Skipped > 0 {
					a.p.warning("%s: metadata of %d samples could not be retrieved", r.Accession, r.Skipped)
				}
			}
			if cmd.Context().Err() != nil {
				return cmd.Context().Err()
			}
			var failed *multierror.Error
			if errors.As(err, &failed) {
				for _, e := range failed.Errors {
					a.p.errorf("%v", e)
				}
				a.p.warning("%d of %d accessions were skipped", len(failed.Errors), len(accessions))
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&accessions, "accession", "a", nil, "Study accession, e.g. PRJEB1787 or ERP001736 (several may be given)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "", "Directory for the {accession}.csv files (default: download.output_dir)")
	_ = cmd.MarkFlagRequired("accession")

	return cmd
}
