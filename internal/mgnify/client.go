// Package mgnify reads analyses, result downloads and sample metadata from
// the MGnify API.
package mgnify

import (
	"context"
	"html"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/jsonapi"
	"github.com/nishad/mgtk/internal/tabular"
)

// Client talks to one MGnify API root.
type Client struct {
	fetcher *jsonapi.Fetcher
	base    string
	log     *zap.Logger
}

// New creates a client for the API rooted at apiBase.
func New(fetcher *jsonapi.Fetcher, apiBase string, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		fetcher: fetcher,
		base:    strings.TrimRight(apiBase, "/"),
		log:     log,
	}
}

// AnalysesURL returns the analyses collection URL.
func (c *Client) AnalysesURL() string {
	return c.base + "/analyses"
}

// DownloadsURL returns the downloads collection URL of an analysis.
func (c *Client) DownloadsURL(analysisID string) string {
	return c.base + "/analyses/" + url.PathEscape(analysisID) + "/downloads"
}

// Analyses walks the analyses of a study, optionally restricted to one
// pipeline version.
func (c *Client) Analyses(ctx context.Context, study, pipelineVersion string, pageSize int) iter.Seq2[*jsonapi.Document, error] {
	query := url.Values{}
	query.Set("study_accession", study)
	if pipelineVersion != "" {
		query.Set("pipeline_version", pipelineVersion)
	}
	if pageSize > 0 {
		query.Set("page_size", strconv.Itoa(pageSize))
	}
	return c.fetcher.Pages(ctx, c.AnalysesURL(), query)
}

// Downloads walks the downloads collection of an analysis.
func (c *Client) Downloads(ctx context.Context, analysisID string) iter.Seq2[*jsonapi.Document, error] {
	return c.fetcher.Pages(ctx, c.DownloadsURL(analysisID), nil)
}

// SampleOrRun fetches the sample resource for accession. When the sample
// endpoint answers with a non-success status the run resource is fetched
// instead, with its sample included. found is false when neither exists.
func (c *Client) SampleOrRun(ctx context.Context, accession string) (doc *jsonapi.Document, found bool, err error) {
	const op errors.Op = "mgnify.sample_or_run"

	doc, err = c.fetcher.Fetch(ctx, c.base+"/samples/"+url.PathEscape(accession), nil)
	if err == nil {
		return doc, true, nil
	}
	if _, ok := errors.AsFetchFailure(err); !ok {
		return nil, false, errors.Wrap(op, err)
	}
	c.log.Debug("sample lookup failed, trying run", zap.String("accession", accession), zap.Error(err))

	query := url.Values{"include": {"sample"}}
	doc, err = c.fetcher.Fetch(ctx, c.base+"/runs/"+url.PathEscape(accession), query)
	if err == nil {
		return doc, true, nil
	}
	if _, ok := errors.AsFetchFailure(err); ok {
		return nil, false, nil
	}
	return nil, false, errors.Wrap(op, err)
}

// SampleMetadata resolves accession as a sample or run and returns its
// metadata.
func (c *Client) SampleMetadata(ctx context.Context, accession string) (Metadata, error) {
	const op errors.Op = "mgnify.sample_metadata"

	doc, found, err := c.SampleOrRun(ctx, accession)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.E(op, errors.KindHTTP, "no sample or run with accession "+accession)
	}
	meta, err := ParseSampleMetadata(doc)
	if err != nil {
		return nil, errors.Wrap(op, err)
	}
	return meta, nil
}

type metadataEntry struct {
	Key   string       `json:"key"`
	Value tabular.Cell `json:"value"`
	Unit  tabular.Cell `json:"unit"`
}

// ParseSampleMetadata reads the sample-metadata attribute of the primary or
// first included resource. Keys have spaces replaced by underscores and
// values are rendered "{value} {unit}". The biome short name and lineage
// are appended when a biome relationship is present.
func ParseSampleMetadata(doc *jsonapi.Document) (Metadata, error) {
	var entries []metadataEntry
	if _, err := doc.Attribute("sample-metadata", &entries); err != nil {
		return nil, errors.E(errors.Op("mgnify.parse_sample_metadata"), errors.KindParse, err)
	}

	meta := make(Metadata, 0, len(entries)+2)
	for _, e := range entries {
		unit := html.UnescapeString(e.Unit.String())
		meta = append(meta, Field{
			Key:   strings.ReplaceAll(e.Key, " ", "_"),
			Value: e.Value.String() + " " + unit,
		})
	}

	if short, lineage, ok := Biome(doc); ok {
		meta = append(meta, Field{Key: "biome", Value: short}, Field{Key: "lineage", Value: lineage})
	}
	return meta, nil
}

// Biome returns the short biome name and the full lineage, e.g.
// "Soil" and "root:Environmental:Terrestrial:Soil".
func Biome(doc *jsonapi.Document) (short, lineage string, ok bool) {
	lineage, ok = doc.RelationshipID("biome")
	if !ok {
		return "", "", false
	}
	parts := strings.Split(lineage, ":")
	return parts[len(parts)-1], lineage, true
}
