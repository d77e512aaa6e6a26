// Package metadata exports the submitter-supplied sample attributes of
// every run in an ENA study to a CSV file.
package metadata

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/ena"
	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/tabular"
)

const (
	IndexColumn  = "Run"
	SampleColumn = "Sample"
	DepthColumn  = "Read depth"
)

// Source is the ENA access the exporter needs.
type Source interface {
	RunsForStudy(ctx context.Context, accession string) ([]ena.Run, error)
	SampleAttributes(ctx context.Context, sampleAccession string) ([]ena.Attribute, error)
}

// Exporter writes {accession}.csv files into OutputDir.
type Exporter struct {
	source    Source
	fs        afero.Fs
	outputDir string
	log       *zap.Logger
}

// NewExporter creates an exporter writing through fs.
func NewExporter(source Source, fs afero.Fs, outputDir string, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	if outputDir == "" {
		outputDir = "."
	}
	return &Exporter{source: source, fs: fs, outputDir: outputDir, log: log}
}

// Result describes one exported study.
type Result struct {
	Accession string
	Path      string
	Runs      int
	Skipped   int
}

// Table builds the metadata table of a study: one row per run, one column
// per attribute tag in first-seen order, then Sample and Read depth.
// Consecutive runs of the same sample share one lookup. A failed lookup
// leaves the run with only its Sample and Read depth.
func (e *Exporter) Table(ctx context.Context, accession string) (*tabular.Table, *errors.SkipCounter, error) {
	runs, err := e.source.RunsForStudy(ctx, accession)
	if err != nil {
		return nil, nil, err
	}

	table := tabular.NewTable(IndexColumn)
	skips := errors.NewSkipCounter("original_metadata " + accession)

	var (
		lastSample string
		lastAttrs  []ena.Attribute
		lastErr    error
	)
	for i, run := range runs {
		sample := run.SecondarySampleAccession
		if i == 0 || sample != lastSample {
			lastAttrs, lastErr = e.source.SampleAttributes(ctx, sample)
			lastSample = sample
			if lastErr != nil {
				e.log.Warn("sample lookup failed",
					zap.String("run", run.RunAccession),
					zap.String("sample", sample),
					zap.Error(lastErr))
			}
		}

		row := table.Put(run.RunAccession)
		if lastErr != nil {
			skips.Skip(lastErr, run.RunAccession)
		}
		for _, a := range lastAttrs {
			row.Set(a.Tag, a.Value)
		}
		row.Set(SampleColumn, sample)
		row.Set(DepthColumn, run.Depth.String())
	}

	return table, skips, nil
}

// Export writes the metadata table of one study.
func (e *Exporter) Export(ctx context.Context, accession string) (*Result, error) {
	const op errors.Op = "metadata.export"

	table, skips, err := e.Table(ctx, accession)
	if err != nil {
		return nil, errors.Wrap(op, err)
	}
	if table.Len() == 0 {
		e.log.Warn("no runs found", zap.String("accession", accession))
	}
	skips.Report(e.log)

	if err := e.fs.MkdirAll(e.outputDir, 0755); err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	path := filepath.Join(e.outputDir, accession+".csv")
	f, err := e.fs.Create(path)
	if err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}
	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return nil, errors.E(op, errors.KindIO, err, "failed to write "+path)
	}
	if err := f.Close(); err != nil {
		return nil, errors.E(op, errors.KindIO, err)
	}

	e.log.Info("metadata written", zap.String("path", path), zap.Int("runs", table.Len()))
	return &Result{Accession: accession, Path: path, Runs: table.Len(), Skipped: skips.Count}, nil
}

// ExportAll exports every accession. Invalid accessions are logged and
// skipped; their errors are returned together once all are attempted.
func (e *Exporter) ExportAll(ctx context.Context, accessions []string) ([]*Result, error) {
	var (
		results []*Result
		merr    *multierror.Error
	)
	for _, acc := range accessions {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := e.Export(ctx, acc)
		if err != nil {
			e.log.Error("skipping accession", zap.String("accession", acc), zap.Error(err))
			merr = multierror.Append(merr, err)
			continue
		}
		results = append(results, res)
	}
	return results, merr.ErrorOrNil()
}
