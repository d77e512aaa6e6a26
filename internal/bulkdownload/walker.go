// Package bulkdownload stores every result file of an MGnify study in a
// project/pipeline-version/result-group tree and keeps a manifest of what
// was stored.
package bulkdownload

import (
	"context"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"slices"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/catalog"
	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/jsonapi"
	"github.com/nishad/mgtk/internal/mgnify"
)

// Source lists analyses and their downloads.
type Source interface {
	Analyses(ctx context.Context, study, pipelineVersion string, pageSize int) iter.Seq2[*jsonapi.Document, error]
	Downloads(ctx context.Context, analysisID string) iter.Seq2[*jsonapi.Document, error]
}

// Downloader streams a URL into w.
type Downloader interface {
	Download(ctx context.Context, rawURL string, w io.Writer) (int64, error)
}

// Recorder stores catalog entries for stored files.
type Recorder interface {
	Record(ctx context.Context, e catalog.Entry) error
}

// Options select what a walk downloads and where to.
type Options struct {
	Project         string
	OutputRoot      string
	PipelineVersion string
	ResultGroup     string
}

// Stats summarizes a walk. Processed counts every download entry seen,
// whether it was stored, skipped or failed.
type Stats struct {
	Analyses        int
	SkippedAnalyses int
	Processed       int
	Downloaded      int
	Existing        int
	Excluded        int
	Filtered        int
	Failed          int
	Bytes           int64

	// Expected is the sum of the servers' download counts. It is only
	// meaningful when ExpectedKnown is set.
	Expected      int
	ExpectedKnown bool

	Warnings []string
}

// Walker downloads the results of a study.
type Walker struct {
	source     Source
	downloader Downloader
	fs         afero.Fs
	pageSize   int
	log        *zap.Logger

	// Recorder, when set, receives every stored or already present file.
	Recorder Recorder
}

// NewWalker creates a walker writing through fs.
func NewWalker(source Source, downloader Downloader, fs afero.Fs, pageSize int, log *zap.Logger) *Walker {
	if log == nil {
		log = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Walker{source: source, downloader: downloader, fs: fs, pageSize: pageSize, log: log}
}

// Run walks every analysis of opts.Project. A failed analyses page ends the
// walk with an error; failures of single analyses or files are logged,
// counted and skipped.
//
// Files already on disk are not fetched again but still get a manifest row,
// so every run appends one row per stored file.
func (w *Walker) Run(ctx context.Context, opts Options) (*Stats, error) {
	const op errors.Op = "bulkdownload.run"

	if err := opts.Validate(); err != nil {
		return nil, errors.Wrap(op, err)
	}
	if opts.OutputRoot == "" {
		opts.OutputRoot = "."
	}
	if opts.ResultGroup != "" && !slices.Contains(KnownResultGroups, opts.ResultGroup) {
		w.log.Warn("result group not among the known groups, filtering anyway",
			zap.String("result_group", opts.ResultGroup),
			zap.Strings("known", KnownResultGroups))
	}

	w.log.Info("starting bulk download",
		zap.String("project", opts.Project),
		zap.String("pipeline_version", orUnset(opts.PipelineVersion)),
		zap.String("result_group", orUnset(opts.ResultGroup)),
		zap.String("output", opts.OutputRoot))

	stats := &Stats{ExpectedKnown: true}
	manifest := NewManifest(w.fs, ManifestPath(opts.OutputRoot, opts.Project))
	failures := errors.NewSkipCounter("bulk download " + opts.Project)

	for doc, err := range w.source.Analyses(ctx, opts.Project, opts.PipelineVersion, w.pageSize) {
		if err != nil {
			return stats, errors.WrapMsg(op, "failed to fetch analyses of "+opts.Project, err)
		}
		for i := range doc.Data.Resources {
			analysis := mgnify.AnalysisFromResource(&doc.Data.Resources[i])
			stats.Analyses++
			if err := w.analysis(ctx, opts, analysis, manifest, stats, failures); err != nil {
				return stats, errors.Wrap(op, err)
			}
		}
	}

	w.summarize(opts, stats, failures)
	return stats, nil
}

func (w *Walker) analysis(ctx context.Context, opts Options, a mgnify.Analysis, manifest *Manifest, stats *Stats, failures *errors.SkipCounter) error {
	w.log.Info("analysis",
		zap.String("id", a.ID),
		zap.String("pipeline_version", a.PipelineVersion),
		zap.String("run", a.Run),
		zap.String("experiment_type", a.ExperimentType))

	first := true
	for doc, err := range w.source.Downloads(ctx, a.ID) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.log.Error("failed to fetch downloads, skipping analysis", zap.String("analysis", a.ID), zap.Error(err))
			stats.SkippedAnalyses++
			failures.Skip(err, a.ID)
			return nil
		}
		if first {
			if n, ok := doc.Count(); ok {
				stats.Expected += n
			} else {
				stats.ExpectedKnown = false
			}
			first = false
		}

		for i := range doc.Data.Resources {
			if err := ctx.Err(); err != nil {
				return err
			}
			d := mgnify.DownloadFromResource(&doc.Data.Resources[i])
			stats.Processed++
			w.entry(ctx, opts, a, d, manifest, stats, failures)
		}
	}
	return nil
}

func (w *Walker) entry(ctx context.Context, opts Options, a mgnify.Analysis, d mgnify.Download, manifest *Manifest, stats *Stats, failures *errors.SkipCounter) {
	group := ResultGroup(d.GroupType)
	log := w.log.With(zap.String("analysis", a.ID), zap.String("alias", d.Alias))

	if excluded, reason := Excluded(a.ExperimentType, a.PipelineVersion, d.Description); excluded {
		log.Debug("excluded", zap.String("description", d.Description), zap.String("reason", reason))
		stats.Excluded++
		return
	}
	if opts.ResultGroup != "" && group != opts.ResultGroup {
		stats.Filtered++
		return
	}

	dir := filepath.Join(opts.OutputRoot, opts.Project, a.PipelineVersion, group)
	if err := w.fs.MkdirAll(dir, 0755); err != nil {
		log.Error("failed to create directory", zap.String("dir", dir), zap.Error(err))
		stats.Failed++
		failures.Skip(err, d.Alias)
		return
	}

	entry := catalog.Entry{
		Project:         opts.Project,
		AnalysisID:      a.ID,
		Alias:           d.Alias,
		ResultGroup:     group,
		PipelineVersion: a.PipelineVersion,
		Path:            filepath.Join(dir, filepath.Base(d.Alias)),
		URL:             d.URL,
	}

	if info, err := w.fs.Stat(entry.Path); err == nil {
		log.Info("already exists, skipping", zap.String("path", entry.Path))
		stats.Existing++
		entry.Size = info.Size()
		entry.Status = catalog.StatusExists
	} else {
		size, sum, err := w.store(ctx, d.URL, dir, entry.Path)
		if err != nil {
			log.Error("download failed", zap.String("url", d.URL), zap.Error(err))
			stats.Failed++
			failures.Skip(err, d.Alias)
			return
		}
		log.Info("downloaded", zap.String("path", entry.Path), zap.Int64("bytes", size))
		stats.Downloaded++
		stats.Bytes += size
		entry.Size, entry.MD5 = size, sum
		entry.Status = catalog.StatusDownloaded
	}

	if err := manifest.Append(ManifestRow{
		AnalysisID:      a.ID,
		Name:            d.Alias,
		GroupType:       d.GroupType,
		Description:     d.Description,
		DownloadURL:     d.URL,
		PipelineVersion: a.PipelineVersion,
		ExperimentType:  a.ExperimentType,
	}); err != nil {
		log.Error("failed to update manifest", zap.String("manifest", manifest.Path()), zap.Error(err))
	}

	if w.Recorder != nil {
		if err := w.Recorder.Record(ctx, entry); err != nil {
			log.Warn("failed to record file in catalog", zap.Error(err))
		}
	}
}

func (w *Walker) summarize(opts Options, stats *Stats, failures *errors.SkipCounter) {
	warn := func(msg string, fields ...zap.Field) {
		stats.Warnings = append(stats.Warnings, msg)
		w.log.Warn(msg, fields...)
	}

	if stats.Processed == 0 {
		warn("could not retrieve any results for the given parameters",
			zap.String("project", opts.Project),
			zap.String("pipeline_version", orUnset(opts.PipelineVersion)),
			zap.String("result_group", orUnset(opts.ResultGroup)))
	} else if stats.ExpectedKnown && stats.Processed != stats.Expected {
		warn(fmt.Sprintf("processed %d download entries but the server reported %d", stats.Processed, stats.Expected),
			zap.String("project", opts.Project))
	}

	if failures.Count > 0 {
		warn(fmt.Sprintf("%d items were skipped", failures.Count),
			zap.String("project", opts.Project),
			zap.String("last", failures.LastDetail),
			zap.Error(failures.LastErr))
	}
}

func orUnset(s string) string {
	if s == "" {
		return "not specified"
	}
	return s
}
