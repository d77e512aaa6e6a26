package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nishad/mgtk/internal/catalog"
	"github.com/nishad/mgtk/internal/tabular"
)

func newCatalogCmd(g *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Inspect the catalog of downloaded files",
		Long: `The catalog is an optional SQLite record of every file bulk_download
stored or found already present. Enable it with --catalog, MGTK_CATALOG_PATH
or catalog.enabled in the configuration.`,
	}

	var project, format string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "table" && format != "tsv" {
				return fmt.Errorf("invalid format %q (table|tsv)", format)
			}
			cfg, _, err := loadConfig(g)
			if err != nil {
				return err
			}
			p := newPrinter(cmd, g)

			if _, err := os.Stat(cfg.Catalog.Path); os.IsNotExist(err) {
				p.warning("No catalog found at %s", cfg.Catalog.Path)
				return nil
			}
			cat, err := catalog.Open(cfg.Catalog.Path)
			if err != nil {
				return err
			}
			defer cat.Close()

			entries, err := cat.List(cmd.Context(), project)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				p.info("No files recorded")
				return nil
			}

			if format == "tsv" {
				return entriesTable(entries).WriteTSV(cmd.OutOrStdout())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PROJECT\tANALYSIS\tVERSION\tGROUP\tSTATUS\tSIZE\tRECORDED\tPATH")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					e.Project, e.AnalysisID, e.PipelineVersion, e.ResultGroup, e.Status, e.Size,
					e.RecordedAt.Local().Format("2006-01-02 15:04"), e.Path)
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&project, "project", "", "Only list files of this study")
	listCmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|tsv)")

	cmd.AddCommand(listCmd)
	return cmd
}

func entriesTable(entries []catalog.Entry) *tabular.Table {
	table := tabular.NewTable("", "run_id", "project", "analysis_id", "alias", "result_group",
		"pipeline_version", "path", "size", "md5", "url", "status", "recorded_at")
	for i, e := range entries {
		table.Put(strconv.Itoa(i)).
			Set("run_id", e.RunID).
			Set("project", e.Project).
			Set("analysis_id", e.AnalysisID).
			Set("alias", e.Alias).
			Set("result_group", e.ResultGroup).
			Set("pipeline_version", e.PipelineVersion).
			Set("path", e.Path).
			Set("size", strconv.FormatInt(e.Size, 10)).
			Set("md5", e.MD5).
			Set("url", e.URL).
			Set("status", e.Status).
			Set("recorded_at", e.RecordedAt.UTC().Format(time.RFC3339))
	}
	return table
}
