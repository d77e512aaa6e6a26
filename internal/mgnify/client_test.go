package mgnify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nishad/mgtk/internal/httpclient"
	"github.com/nishad/mgtk/internal/jsonapi"
	"github.com/nishad/mgtk/internal/testutil"
)

func newClient(t *testing.T, srv *testutil.Server) *Client {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := testutil.Config(srv)
	fetcher := jsonapi.NewFetcher(httpclient.New(cfg.HTTP, log), log)
	return New(fetcher, cfg.Endpoints.APIBase, log)
}

func TestAnalysesAndDownloads(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study("MGYS1", 3)...)
	srv.PageSize = 2
	client := newClient(t, srv)
	ctx := context.Background()

	var analyses []Analysis
	for doc, err := range client.Analyses(ctx, "MGYS1", "", 2) {
		require.NoError(t, err)
		for i := range doc.Data.Resources {
			analyses = append(analyses, AnalysisFromResource(&doc.Data.Resources[i]))
		}
	}
	require.Len(t, analyses, 3)
	assert.Equal(t, Analysis{
		ID:              "MGYA00000001",
		PipelineVersion: "4.1",
		ExperimentType:  "metagenomic",
		Study:           "MGYS1",
		Run:             "ERR000001",
		Sample:          "ERS000001",
	}, analyses[0])

	var downloads []Download
	for doc, err := range client.Downloads(ctx, analyses[0].ID) {
		require.NoError(t, err)
		for i := range doc.Data.Resources {
			downloads = append(downloads, DownloadFromResource(&doc.Data.Resources[i]))
		}
	}
	require.Len(t, downloads, 1)
	assert.Equal(t, Download{
		Alias:       "ERR000001_MERGED_FASTQ_summary.tsv",
		GroupType:   "Statistics",
		Description: "Summary",
		URL:         srv.FileURL("MGYA00000001", "ERR000001_MERGED_FASTQ_summary.tsv"),
		Format:      "TSV",
	}, downloads[0])
}

func TestAnalysesPipelineFilter(t *testing.T) {
	srv := testutil.NewServer(t)
	old := testutil.Study("MGYS1", 2)
	old[0].PipelineVersion = "2.0"
	srv.AddAnalyses(old...)

	n := 0
	for doc, err := range newClient(t, srv).Analyses(context.Background(), "MGYS1", "2.0", 25) {
		require.NoError(t, err)
		n += len(doc.Data.Resources)
	}
	assert.Equal(t, 1, n)
}

func TestSampleMetadataFromSample(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddSample(testutil.SoilSample("ERS1"))

	meta, err := newClient(t, srv).SampleMetadata(context.Background(), "ERS1")
	require.NoError(t, err)

	assert.Equal(t, Metadata{
		{Key: "temperature", Value: "12.5 °C"},
		{Key: "geographic_location_(latitude)", Value: "51.5 DD"},
		{Key: "environment_(biome)", Value: "soil "},
		{Key: "biome", Value: "Soil"},
		{Key: "lineage", Value: "root:Environmental:Terrestrial:Soil"},
	}, meta)
	assert.Equal(t, 0, srv.Hits("/api/runs/ERS1"))
}

func TestSampleMetadataFallsBackToRun(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddRun("ERR9", testutil.Sample{
		Accession: "ERS9",
		Metadata:  []testutil.MetadataEntry{{Key: "host", Value: "human", Unit: ""}},
	})

	client := newClient(t, srv)
	doc, found, err := client.SampleOrRun(context.Background(), "ERR9")
	require.NoError(t, err)
	require.True(t, found)
	p, _ := doc.Primary()
	assert.Equal(t, "runs", p.Type)

	meta, err := client.SampleMetadata(context.Background(), "ERR9")
	require.NoError(t, err)
	assert.Equal(t, Metadata{{Key: "host", Value: "human "}}, meta)

	_, ok := meta.Get("biome")
	assert.False(t, ok, "absent biome is omitted")
	assert.Equal(t, 2, srv.Hits("/api/samples/ERR9"))
	assert.Equal(t, 2, srv.Hits("/api/runs/ERR9"))
}

func TestSampleMetadataUnknownAccession(t *testing.T) {
	srv := testutil.NewServer(t)
	client := newClient(t, srv)

	_, found, err := client.SampleOrRun(context.Background(), "NOPE")
	require.NoError(t, err)
	assert.False(t, found)

	_, err = client.SampleMetadata(context.Background(), "NOPE")
	assert.ErrorContains(t, err, "NOPE")
}

func TestBiome(t *testing.T) {
	doc := &jsonapi.Document{}
	_, _, ok := Biome(doc)
	assert.False(t, ok)
}
