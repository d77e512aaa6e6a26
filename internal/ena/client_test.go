package ena

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nishad/mgtk/internal/httpclient"
	"github.com/nishad/mgtk/internal/testutil"
)

func newClient(t *testing.T, srv *testutil.Server) *Client {
	t.Helper()
	log := zaptest.NewLogger(t)
	cfg := testutil.Config(srv)
	return New(httpclient.New(cfg.HTTP, log), cfg.Endpoints.ENAPortalSearch, cfg.Endpoints.ENABrowserXML, log)
}

func TestRunsForStudy(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddENAStudy("PRJEB1787",
		testutil.ENARun{Run: "ERR1", SecondarySample: "ERS1", Sample: "SAMEA1", Depth: "10"},
		testutil.ENARun{Run: "ERR2", SecondarySample: "ERS1", Sample: "SAMEA1", Depth: ""},
	)

	runs, err := newClient(t, srv).RunsForStudy(context.Background(), "PRJEB1787")
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "ERR1", runs[0].RunAccession)
	assert.Equal(t, "ERS1", runs[0].SecondarySampleAccession)
	assert.Equal(t, "10", runs[0].Depth.String())
}

func TestRunsForUnknownStudy(t *testing.T) {
	srv := testutil.NewServer(t)

	_, err := newClient(t, srv).RunsForStudy(context.Background(), "BOGUS")
	assert.ErrorContains(t, err, "BOGUS is not valid")
}

func TestSampleAttributes(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.AddENASample("ERS1",
		testutil.ENAAttribute{Tag: "temperature", Value: "20"},
		testutil.ENAAttribute{Value: "orphan"},
		testutil.ENAAttribute{Tag: "geo_loc_name", Value: "Norway"},
	)

	attrs, err := newClient(t, srv).SampleAttributes(context.Background(), "ERS1")
	require.NoError(t, err)
	assert.Equal(t, []Attribute{
		{Tag: "temperature", Value: "20"},
		{Tag: "geo_loc_name", Value: "Norway"},
	}, attrs)

	_, err = newClient(t, srv).SampleAttributes(context.Background(), "ERS404")
	assert.Error(t, err)
}

func TestParseSampleAttributesLegacyRoot(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<ROOT request="ERS1&amp;display=xml">
<SAMPLE accession="ERS1">
  <SAMPLE_ATTRIBUTES>
    <SAMPLE_ATTRIBUTE><TAG>ENA-CHECKLIST</TAG><VALUE>ERC000011</VALUE></SAMPLE_ATTRIBUTE>
    <SAMPLE_ATTRIBUTE><TAG>depth</TAG><VALUE>5</VALUE><UNITS>m</UNITS></SAMPLE_ATTRIBUTE>
    <SAMPLE_ATTRIBUTE><TAG>empty value</TAG></SAMPLE_ATTRIBUTE>
  </SAMPLE_ATTRIBUTES>
</SAMPLE>
</ROOT>`
	attrs, err := ParseSampleAttributes(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []Attribute{
		{Tag: "ENA-CHECKLIST", Value: "ERC000011"},
		{Tag: "depth", Value: "5", Units: "m"},
		{Tag: "empty value"},
	}, attrs)
}

func TestParseSampleAttributesWithoutSample(t *testing.T) {
	_, err := ParseSampleAttributes(strings.NewReader(`<ROOT>Entry: BOGUS display type is either not supported or entry is not found.</ROOT>`))
	assert.Error(t, err)
}

func TestStudyQuery(t *testing.T) {
	assert.Equal(t, "study_accession=ERP001736 OR secondary_study_accession=ERP001736", StudyQuery("ERP001736"))
}
