package seqsearch

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nishad/mgtk/internal/httpclient"
	"github.com/nishad/mgtk/internal/jsonapi"
	"github.com/nishad/mgtk/internal/mgnify"
	"github.com/nishad/mgtk/internal/testutil"
)

func newTool(t *testing.T, srv *testutil.Server, fs afero.Fs) *Tool {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := testutil.Config(srv)
	client := httpclient.New(cfg.HTTP, log)
	lookup := mgnify.New(jsonapi.NewFetcher(client, log), cfg.Endpoints.APIBase, log)
	return NewTool(
		NewSearcher(client, cfg.Endpoints.SequenceSearch, log),
		NewFlattener(lookup, log),
		fs, log)
}

func TestRunWritesOneFilePerJob(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddSample(testutil.SoilSample("ERS000001"))
	srv.AddRun("ERR000009", testutil.SoilSample("ERS000009"))

	input := testutil.TempFile(t, "query.fasta", ">q1\nMSTH\nPIRV\n")
	fs := afero.NewMemMapFs()
	tool := newTool(t, srv, fs)

	var seen []string
	tool.OnQuery = func(_, id string) { seen = append(seen, id) }

	summary, err := tool.Run(context.Background(), Options{
		Files:      []string{input},
		Database:   "full",
		Thresholds: DefaultEValue(),
		OutputDir:  "results",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"q1"}, seen)
	assert.Equal(t, 1, summary.Queries)
	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 1, summary.LookupFailures, "ERS000002 is unknown")
	assert.Equal(t, []string{filepath.Join("results", "5A1C5B52-0001_sequence_search.csv")}, summary.Files)

	assert.Equal(t, "MSTHPIRV", srv.SearchForms[0].Get("seq"))

	data, err := afero.ReadFile(fs, summary.Files[0])
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0],
		"query_id,subject_id,accession,taxid,desc,pvalue,species,score,evalue,nreported,uniprot,kg,temperature,geographic_location_latitude"),
		lines[0])
	assert.Contains(t, lines[1], "q1,MGYP000001,ERS000001,1234")
	assert.Contains(t, lines[1], "12.5 °C")
	assert.Contains(t, lines[3], "q1,MGYP000002,ERR000009,562")
}

func TestRunCombinedOutput(t *testing.T) {
	srv := testutil.NewServer(t)
	input := testutil.TempFile(t, "query.fasta", ">q1\nMSTH\n>q2\nPIRV\n")
	fs := afero.NewMemMapFs()

	summary, err := newTool(t, srv, fs).Run(context.Background(), Options{
		Files:  []string{input},
		Output: "all.csv",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Queries)
	assert.Equal(t, []string{"all.csv"}, summary.Files)
	require.Len(t, srv.SearchForms, 2)

	data, err := afero.ReadFile(fs, "all.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	// header plus three rows for each query
	assert.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[1], "q1,"))
	assert.True(t, strings.HasPrefix(lines[4], "q2,"))
}

func TestRunMissingInput(t *testing.T) {
	srv := testutil.NewServer(t)
	_, err := newTool(t, srv, afero.NewMemMapFs()).Run(context.Background(), Options{
		Files: []string{filepath.Join(t.TempDir(), "nope.fasta")},
	})
	assert.ErrorContains(t, err, "cannot read")
}

func TestRunContinuesAfterFailedSearch(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.SearchResponse = "not json"
	input := testutil.TempFile(t, "query.fasta", ">q1\nMSTH\n>q2\nPIRV\n")

	summary, err := newTool(t, srv, afero.NewMemMapFs()).Run(context.Background(), Options{Files: []string{input}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query q1")
	assert.Contains(t, err.Error(), "query q2")
	assert.Zero(t, summary.Queries)
	assert.Len(t, srv.SearchForms, 2)
}
