package bulkdownload

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nishad/mgtk/internal/catalog"
	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/httpclient"
	"github.com/nishad/mgtk/internal/jsonapi"
	"github.com/nishad/mgtk/internal/mgnify"
	"github.com/nishad/mgtk/internal/testutil"
)

const study = "ERP001736"

func newTestWalker(t *testing.T, srv *testutil.Server, fs afero.Fs) *Walker {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := testutil.Config(srv)
	http := httpclient.New(cfg.HTTP, log)
	source := mgnify.New(jsonapi.NewFetcher(http, log), cfg.Endpoints.APIBase, log)
	return NewWalker(source, http, fs, 5, log)
}

func manifestLines(t *testing.T, fs afero.Fs) []string {
	t.Helper()
	data, err := afero.ReadFile(fs, ManifestPath("out", study))
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestRunDownloadsEveryPage(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study(study, 8)...)
	fs := afero.NewMemMapFs()

	stats, err := newTestWalker(t, srv, fs).Run(context.Background(), Options{Project: study, OutputRoot: "out"})
	require.NoError(t, err)

	assert.Equal(t, 2, srv.Hits("/api/analyses"))
	assert.Equal(t, 8, stats.Analyses)
	assert.Equal(t, 8, stats.Processed)
	assert.Equal(t, 8, stats.Downloaded)
	assert.True(t, stats.ExpectedKnown)
	assert.Equal(t, 8, stats.Expected)
	assert.Empty(t, stats.Warnings)

	for i, group := range testutil.Groups {
		path := filepath.Join("out", study, "4.1", ResultGroup(group),
			fmt.Sprintf("ERR%06d_MERGED_FASTQ_summary.tsv", i+1))
		data, err := afero.ReadFile(fs, path)
		require.NoError(t, err, path)
		assert.Equal(t, fmt.Sprintf("file %d\n", i+1), string(data))

		// no temporary files left behind
		entries, err := afero.ReadDir(fs, filepath.Dir(path))
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	}

	lines := manifestLines(t, fs)
	require.Len(t, lines, 9)
	assert.Equal(t, strings.Join(ManifestHeader, "\t"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "MGYA00000001\tERR000001_MERGED_FASTQ_summary.tsv\tStatistics\tSummary\t"))
	assert.True(t, strings.HasSuffix(lines[1], "\t4.1\tmetagenomic"))
}

func TestRunIsIdempotent(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study(study, 8)...)
	fs := afero.NewMemMapFs()
	w := newTestWalker(t, srv, fs)
	opts := Options{Project: study, OutputRoot: "out"}

	_, err := w.Run(context.Background(), opts)
	require.NoError(t, err)
	stats, err := w.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Downloaded)
	assert.Equal(t, 8, stats.Existing)
	assert.Empty(t, stats.Warnings)
	assert.Equal(t, 1, srv.Hits("/files/MGYA00000001/ERR000001_MERGED_FASTQ_summary.tsv"))

	lines := manifestLines(t, fs)
	assert.Len(t, lines, 17)
	headers := 0
	for _, l := range lines {
		if strings.HasPrefix(l, "analysis_id\t") {
			headers++
		}
	}
	assert.Equal(t, 1, headers)
}

func TestRunFiltersResultGroup(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study(study, 8)...)
	fs := afero.NewMemMapFs()

	stats, err := newTestWalker(t, srv, fs).Run(context.Background(),
		Options{Project: study, OutputRoot: "out", ResultGroup: "statistics"})
	require.NoError(t, err)

	assert.Equal(t, 8, stats.Processed)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 7, stats.Filtered)
	assert.Empty(t, stats.Warnings)

	exists, _ := afero.DirExists(fs, filepath.Join("out", study, "4.1", "sequence_data"))
	assert.False(t, exists)
}

func TestRunFiltersUnlistedResultGroup(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Analysis{ID: "MGYA1", Study: study, PipelineVersion: "4.1", ExperimentType: "metagenomic",
		Downloads: []testutil.Download{
			{Alias: "run_stats.tsv", GroupType: "Stats", Description: "Summary", Content: "stats\n"},
			{Alias: "otu.tsv", GroupType: "Taxonomic analysis", Description: "OTUs", Content: "otu\n"},
		}})
	fs := afero.NewMemMapFs()

	stats, err := newTestWalker(t, srv, fs).Run(context.Background(),
		Options{Project: study, OutputRoot: "out", ResultGroup: "stats"})
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Processed)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Equal(t, 1, stats.Filtered)
	assert.Empty(t, stats.Warnings)

	data, err := afero.ReadFile(fs, filepath.Join("out", study, "4.1", "stats", "run_stats.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "stats\n", string(data))
	assert.Zero(t, srv.Hits("/files/MGYA1/otu.tsv"))
}

// racingFs simulates another writer creating the destination just before
// each of the first fails renames, which then fail.
type racingFs struct {
	afero.Fs
	fails int
}

func (r *racingFs) Rename(oldname, newname string) error {
	if r.fails > 0 {
		r.fails--
		if err := afero.WriteFile(r.Fs, newname, []byte("stale\n"), 0644); err != nil {
			return err
		}
		return &os.LinkError{Op: "rename", Old: oldname, New: newname, Err: os.ErrExist}
	}
	return r.Fs.Rename(oldname, newname)
}

func tmpFiles(t *testing.T, fs afero.Fs, dir string) []string {
	t.Helper()
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	var tmp []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			tmp = append(tmp, e.Name())
		}
	}
	return tmp
}

func TestRunReplacesDestinationCreatedDuringDownload(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study(study, 1)...)
	fs := &racingFs{Fs: afero.NewMemMapFs(), fails: 1}

	stats, err := newTestWalker(t, srv, fs).Run(context.Background(), Options{Project: study, OutputRoot: "out"})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Downloaded)
	assert.Zero(t, stats.Failed)
	assert.Zero(t, fs.fails)

	dir := filepath.Join("out", study, "4.1", "statistics")
	data, err := afero.ReadFile(fs, filepath.Join(dir, "ERR000001_MERGED_FASTQ_summary.tsv"))
	require.NoError(t, err)
	assert.Equal(t, "file 1\n", string(data))
	assert.Empty(t, tmpFiles(t, fs, dir))
}

func TestRunCountsRenameRetryFailure(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study(study, 1)...)
	fs := &racingFs{Fs: afero.NewMemMapFs(), fails: 2}

	stats, err := newTestWalker(t, srv, fs).Run(context.Background(), Options{Project: study, OutputRoot: "out"})
	require.NoError(t, err)

	assert.Zero(t, stats.Downloaded)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0], "1 items were skipped")

	dir := filepath.Join("out", study, "4.1", "statistics")
	assert.Empty(t, tmpFiles(t, fs, dir))
	// failed entries get no manifest row
	exists, err := afero.Exists(fs, ManifestPath("out", study))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunNeverDownloadsExcludedFiles(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(
		testutil.Analysis{ID: "MGYA1", Study: study, PipelineVersion: "4.1", ExperimentType: "amplicon",
			Downloads: []testutil.Download{
				{Alias: "cds.faa.gz", GroupType: "Sequence data", Description: "Predicted CDS with annotation", Content: "x"},
				{Alias: "summary.tsv", GroupType: "Statistics", Description: "Summary", Content: "y"},
			}},
		testutil.Analysis{ID: "MGYA2", Study: study, PipelineVersion: "2.0", ExperimentType: "metagenomic",
			Downloads: []testutil.Download{
				{Alias: "tree.nwk", GroupType: "Taxonomic analysis", Description: "Phylogenetic tree", Content: "z"},
			}},
	)
	fs := afero.NewMemMapFs()

	stats, err := newTestWalker(t, srv, fs).Run(context.Background(), Options{Project: study, OutputRoot: "out"})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Excluded)
	assert.Equal(t, 1, stats.Downloaded)
	assert.Empty(t, stats.Warnings)
	assert.Zero(t, srv.Hits("/files/MGYA1/cds.faa.gz"))
	assert.Zero(t, srv.Hits("/files/MGYA2/tree.nwk"))
	assert.Len(t, manifestLines(t, fs), 2)
}

func TestRunSkipsAnalysisWhenDownloadsFail(t *testing.T) {
	srv := testutil.NewServer(t)
	analyses := testutil.Study(study, 3)
	analyses[1].DownloadsStatus = 404
	srv.AddAnalyses(analyses...)
	fs := afero.NewMemMapFs()

	stats, err := newTestWalker(t, srv, fs).Run(context.Background(), Options{Project: study, OutputRoot: "out"})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Analyses)
	assert.Equal(t, 1, stats.SkippedAnalyses)
	assert.Equal(t, 2, stats.Downloaded)
	assert.Equal(t, 2, stats.Expected)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0], "1 items were skipped")
}

func TestRunCountsFailedFiles(t *testing.T) {
	srv := testutil.NewServer(t)
	analyses := testutil.Study(study, 3)
	analyses[1].Downloads[0].Status = 404
	srv.AddAnalyses(analyses...)
	fs := afero.NewMemMapFs()

	stats, err := newTestWalker(t, srv, fs).Run(context.Background(), Options{Project: study, OutputRoot: "out"})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 2, stats.Downloaded)
	assert.Equal(t, 1, stats.Failed)
	require.Len(t, stats.Warnings, 1)

	dir := filepath.Join("out", study, "4.1", ResultGroup(testutil.Groups[1]))
	entries, err := afero.ReadDir(fs, dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "partial download must be removed")
	assert.Len(t, manifestLines(t, fs), 3)
}

func TestRunWarnsOnCountMismatch(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study(study, 4)...)
	count := 2
	srv.CountOverride = &count

	stats, err := newTestWalker(t, srv, afero.NewMemMapFs()).Run(context.Background(), Options{Project: study, OutputRoot: "out"})
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Processed)
	assert.Equal(t, 8, stats.Expected)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0], "server reported 8")
}

func TestRunWarnsWhenNothingMatches(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study(study, 2)...)

	stats, err := newTestWalker(t, srv, afero.NewMemMapFs()).Run(context.Background(),
		Options{Project: study, OutputRoot: "out", PipelineVersion: "5.0"})
	require.NoError(t, err)

	assert.Zero(t, stats.Processed)
	require.Len(t, stats.Warnings, 1)
	assert.Contains(t, stats.Warnings[0], "could not retrieve any results")
}

func TestRunFailsWhenAnalysesUnavailable(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AnalysesStatus = 404

	_, err := newTestWalker(t, srv, afero.NewMemMapFs()).Run(context.Background(), Options{Project: study, OutputRoot: "out"})
	require.Error(t, err)
	ff, ok := errors.AsFetchFailure(err)
	require.True(t, ok)
	assert.Equal(t, 404, ff.StatusCode)
	assert.Contains(t, err.Error(), "failed to fetch analyses of "+study)
}

func TestRunRejectsInvalidOptions(t *testing.T) {
	srv := testutil.NewServer(t)

	_, err := newTestWalker(t, srv, afero.NewMemMapFs()).Run(context.Background(),
		Options{Project: study, PipelineVersion: "9"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindValidation))
	assert.Zero(t, srv.Hits("/api/analyses"))
}

func TestRunRecordsCatalogEntries(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study(study, 2)...)

	cat, err := catalog.Open(filepath.Join(t.TempDir(), "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { cat.Close() })

	w := newTestWalker(t, srv, afero.NewMemMapFs())
	w.Recorder = cat
	opts := Options{Project: study, OutputRoot: "out"}
	_, err = w.Run(context.Background(), opts)
	require.NoError(t, err)
	_, err = w.Run(context.Background(), opts)
	require.NoError(t, err)

	entries, err := cat.List(context.Background(), study)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	sum := md5.Sum([]byte("file 1\n"))
	first := entries[0]
	assert.Equal(t, catalog.StatusDownloaded, first.Status)
	assert.Equal(t, "MGYA00000001", first.AnalysisID)
	assert.Equal(t, "statistics", first.ResultGroup)
	assert.Equal(t, hex.EncodeToString(sum[:]), first.MD5)
	assert.Equal(t, int64(7), first.Size)
	assert.Equal(t, srv.FileURL("MGYA00000001", "ERR000001_MERGED_FASTQ_summary.tsv"), first.URL)

	assert.Equal(t, catalog.StatusExists, entries[2].Status)
	assert.Equal(t, int64(7), entries[2].Size)
}
