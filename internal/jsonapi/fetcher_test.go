package jsonapi

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/httpclient"
	"github.com/nishad/mgtk/internal/testutil"
)

func newFetcher(t *testing.T, srv *testutil.Server) *Fetcher {
	t.Helper()
	log := zaptest.NewLogger(t)
	return NewFetcher(httpclient.New(testutil.Config(srv).HTTP, log), log)
}

func studyQuery(study string) url.Values {
	return url.Values{"study_accession": {study}, "page_size": {"5"}}
}

func TestPagesFollowsNextLinks(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study("MGYS1", 8)...)
	srv.AddAnalyses(testutil.Study("MGYS2", 3)...)

	var sizes []int
	for doc, err := range newFetcher(t, srv).Pages(context.Background(), srv.URL+"/api/analyses", studyQuery("MGYS1")) {
		require.NoError(t, err)
		sizes = append(sizes, len(doc.Data.Resources))
		count, ok := doc.Count()
		require.True(t, ok)
		assert.Equal(t, 8, count)
	}
	assert.Equal(t, []int{5, 3}, sizes)
	assert.Equal(t, 2, srv.Hits("/api/analyses"))
}

func TestPagesStopsOnRepeatedNextLink(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study("MGYS1", 3)...)
	srv.LoopNext = true

	pages := 0
	for _, err := range newFetcher(t, srv).Pages(context.Background(), srv.URL+"/api/analyses", studyQuery("MGYS1")) {
		require.NoError(t, err)
		pages++
		require.Less(t, pages, 10, "walk must terminate")
	}
	assert.Equal(t, 2, pages)
}

func TestPagesYieldsFetchFailure(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AnalysesStatus = http.StatusNotFound

	var got []error
	for doc, err := range newFetcher(t, srv).Pages(context.Background(), srv.URL+"/api/analyses", studyQuery("MGYS1")) {
		assert.Nil(t, doc)
		got = append(got, err)
	}
	require.Len(t, got, 1)
	ff, ok := errors.AsFetchFailure(got[0])
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, ff.StatusCode)
	assert.Contains(t, ff.URL, "study_accession=MGYS1")
}

func TestPagesStopsWhenConsumerBreaks(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddAnalyses(testutil.Study("MGYS1", 8)...)

	for range newFetcher(t, srv).Pages(context.Background(), srv.URL+"/api/analyses", studyQuery("MGYS1")) {
		break
	}
	assert.Equal(t, 1, srv.Hits("/api/analyses"))
}

func TestFetchSingleDocument(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddSample(testutil.SoilSample("ERS1"))

	doc, err := newFetcher(t, srv).Fetch(context.Background(), srv.URL+"/api/samples/ERS1", nil)
	require.NoError(t, err)
	p, ok := doc.Primary()
	require.True(t, ok)
	assert.Equal(t, "ERS1", p.ID)
}
