package seqsearch

import (
	"context"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/fasta"
	"github.com/nishad/mgtk/internal/tabular"
)

// Options configure one sequence_search invocation.
type Options struct {
	Files      []string
	Database   string
	Thresholds Thresholds
	// Output collects every query into one file when set. Otherwise each
	// query is written to {job_uuid}_sequence_search.csv in OutputDir.
	Output    string
	OutputDir string
}

// Tool runs searches for every sequence of the given FASTA files.
type Tool struct {
	searcher  *Searcher
	flattener *Flattener
	fs        afero.Fs
	log       *zap.Logger

	// OnQuery, when set, is called before each query is submitted.
	OnQuery func(file, id string)
}

// NewTool wires a searcher and flattener writing through fs.
func NewTool(searcher *Searcher, flattener *Flattener, fs afero.Fs, log *zap.Logger) *Tool {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tool{searcher: searcher, flattener: flattener, fs: fs, log: log}
}

// Summary reports what a run produced.
type Summary struct {
	Queries        int
	Rows           int
	Files          []string
	LookupFailures int
}

// Run searches every query. Unreadable input files are fatal; a failed
// search is logged and the remaining queries still run. The returned error
// then aggregates the failed queries.
func (t *Tool) Run(ctx context.Context, opts Options) (*Summary, error) {
	const op errors.Op = "seqsearch.run"

	type query struct {
		file string
		rec  fasta.Record
	}
	var queries []query
	for _, f := range opts.Files {
		records, err := fasta.ParseFile(f)
		if err != nil {
			return nil, errors.WrapMsg(op, "cannot read "+f, err)
		}
		if len(records) == 0 {
			t.log.Warn("no sequences in file", zap.String("file", f))
		}
		for _, r := range records {
			queries = append(queries, query{file: f, rec: r})
		}
	}

	summary := &Summary{}
	var (
		merr     *multierror.Error
		combined *tabular.Table
	)
	if opts.Output != "" {
		combined = tabular.NewTable("", Columns...)
		combined.HeaderFunc = tabular.SanitizeHeader
	}

	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if t.OnQuery != nil {
			t.OnQuery(q.file, q.rec.ID)
		}

		resp, err := t.searcher.Search(ctx, q.rec.Sequence, opts.Database, opts.Thresholds)
		if err != nil {
			t.log.Error("search failed", zap.String("query", q.rec.ID), zap.Error(err))
			merr = multierror.Append(merr, errors.WrapMsg(op, "query "+q.rec.ID, err))
			continue
		}
		summary.Queries++
		t.log.Debug("job", zap.String("uuid", resp.Results.UUID), zap.String("query", q.rec.ID))

		table := t.flattener.Flatten(ctx, q.rec.ID, resp)
		summary.Rows += table.Len()

		if combined != nil {
			combined.Append(q.rec.ID, table)
			continue
		}
		name := resp.Results.UUID
		if name == "" {
			name = q.rec.ID
		}
		path := filepath.Join(opts.OutputDir, name+"_sequence_search.csv")
		if err := t.write(path, table); err != nil {
			return summary, errors.Wrap(op, err)
		}
		summary.Files = append(summary.Files, path)
	}

	if combined != nil {
		if err := t.write(opts.Output, combined); err != nil {
			return summary, errors.Wrap(op, err)
		}
		summary.Files = append(summary.Files, opts.Output)
	}
	summary.LookupFailures = t.flattener.Failures()
	return summary, merr.ErrorOrNil()
}

func (t *Tool) write(path string, table *tabular.Table) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := t.fs.MkdirAll(dir, 0755); err != nil {
			return errors.E(errors.KindIO, err)
		}
	}
	f, err := t.fs.Create(path)
	if err != nil {
		return errors.E(errors.KindIO, err)
	}
	if err := table.WriteCSV(f); err != nil {
		f.Close()
		return errors.E(errors.KindIO, err, "failed to write "+path)
	}
	if err := f.Close(); err != nil {
		return errors.E(errors.KindIO, err)
	}
	t.log.Info("results written", zap.String("path", path), zap.Int("rows", table.Len()))
	return nil
}
