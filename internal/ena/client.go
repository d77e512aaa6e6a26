// Package ena queries the European Nucleotide Archive for the runs of a
// study and the attributes submitters attached to their samples.
package ena

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/httpclient"
	"github.com/nishad/mgtk/internal/tabular"
)

// RunFields are the read_run columns requested from the portal.
var RunFields = []string{"run_accession", "secondary_sample_accession", "sample_accession", "depth"}

// HTTPClient is the part of httpclient.Client used here.
type HTTPClient interface {
	Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error)
	GetJSON(ctx context.Context, rawURL string, query url.Values, accept string, v any) error
}

// Run is one read_run row of the portal search.
type Run struct {
	RunAccession             string       `json:"run_accession"`
	SecondarySampleAccession string       `json:"secondary_sample_accession"`
	SampleAccession          string       `json:"sample_accession"`
	Depth                    tabular.Cell `json:"depth"`
}

// Client reads the ENA portal search API and the browser XML view.
type Client struct {
	http      HTTPClient
	portalURL string
	xmlURL    string
	log       *zap.Logger
}

// New creates a client. portalURL is the portal search endpoint and xmlURL
// the browser XML view root.
func New(http HTTPClient, portalURL, xmlURL string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		http:      http,
		portalURL: portalURL,
		xmlURL:    strings.TrimRight(xmlURL, "/"),
		log:       log,
	}
}

// StudyQuery matches runs by primary or secondary study accession.
func StudyQuery(accession string) string {
	return fmt.Sprintf("study_accession=%s OR secondary_study_accession=%s", accession, accession)
}

// RunsForStudy lists the runs of a study. An accession the portal does not
// know yields an error rather than an empty list.
func (c *Client) RunsForStudy(ctx context.Context, accession string) ([]Run, error) {
	const op errors.Op = "ena.runs_for_study"

	query := url.Values{}
	query.Set("result", "read_run")
	query.Set("query", StudyQuery(accession))
	query.Set("fields", strings.Join(RunFields, ","))
	query.Set("format", "json")

	var runs []Run
	if err := c.http.GetJSON(ctx, c.portalURL, query, httpclient.AcceptJSON, &runs); err != nil {
		return nil, errors.WrapMsg(op, accession+" is not valid", err)
	}
	c.log.Debug("runs found", zap.String("accession", accession), zap.Int("count", len(runs)))
	return runs, nil
}

// SampleAttributes fetches the XML record of a sample and returns its
// attributes.
func (c *Client) SampleAttributes(ctx context.Context, sampleAccession string) ([]Attribute, error) {
	const op errors.Op = "ena.sample_attributes"

	body, err := c.http.Get(ctx, c.xmlURL+"/"+url.PathEscape(sampleAccession), nil, httpclient.AcceptXML)
	if err != nil {
		return nil, errors.Wrap(op, err)
	}
	attrs, err := ParseSampleAttributes(bytes.NewReader(body))
	if err != nil {
		return nil, errors.WrapMsg(op, "sample "+sampleAccession, err)
	}
	return attrs, nil
}
