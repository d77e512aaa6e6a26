package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nishad/mgtk/internal/cli"
)

// Version info
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// globalOptions are the root persistent flags.
type globalOptions struct {
	noColor     bool
	quiet       bool
	verbose     bool
	debug       bool
	configPath  string
	catalogPath string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "mgtk",
		Short: "Metagenomics toolkit",
		Long: `mgtk retrieves data from the MGnify metagenomics resource and the
European Nucleotide Archive.

It exports the original sample metadata of ENA studies, searches protein
sequences against the MGnify peptide database and downloads every result
file of an MGnify study into a browsable directory tree.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		Example: `  # Export sample metadata of two studies
  mgtk original_metadata -a ERP001736 PRJEB1787

  # Search sequences with custom E-value thresholds
  mgtk sequence_search -seq query.fasta -out hits.csv evalue -incE 0.02

  # Download the statistics of a study analysed with pipeline 4.1
  mgtk bulk_download -a ERP001736 -o results -p 4.1 -g statistics`,
	}

	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "Suppress non-error output")
	rootCmd.PersistentFlags().BoolVarP(&g.debug, "debug", "d", false, "Print debugging information")
	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "Configuration file (default: $MGTK_CONFIG, ./mgtk.yaml or ~/.config/mgtk/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&g.catalogPath, "catalog", "", "Record stored files in this SQLite catalog")

	rootCmd.AddCommand(newOriginalMetadataCmd(g))
	rootCmd.AddCommand(newSequenceSearchCmd(g))
	rootCmd.AddCommand(newBulkDownloadCmd(g))
	rootCmd.AddCommand(newCatalogCmd(g))
	rootCmd.AddCommand(newConfigCmd(g))

	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	rootCmd.SetArgs(cli.RewriteLegacyArgs(os.Args[1:]))
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
