// Package seqsearch submits protein sequences to the MGnify phmmer service
// and flattens the hits into per-accession rows enriched with sample
// metadata.
package seqsearch

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/httpclient"
	"github.com/nishad/mgtk/internal/tabular"
)

// Databases accepted by the search service.
var Databases = []string{"full", "all", "partial"}

// Threshold modes.
const (
	ModeEValue   = "evalue"
	ModeBitScore = "bitscore"
)

// Thresholds are the inclusion and reporting cut-offs of a search. Mode
// selects which form fields are sent; an empty mode sends none.
type Thresholds struct {
	Mode      string
	Seq       float64
	Hit       float64
	ReportSeq float64
	ReportHit float64
}

// DefaultEValue returns the service's default E-value thresholds.
func DefaultEValue() Thresholds {
	return Thresholds{Mode: ModeEValue, Seq: 0.01, Hit: 0.03, ReportSeq: 1, ReportHit: 1}
}

// DefaultBitScore returns the service's default bit score thresholds.
func DefaultBitScore() Thresholds {
	return Thresholds{Mode: ModeBitScore, Seq: 25, Hit: 23, ReportSeq: 7, ReportHit: 5}
}

// Validate checks the accepted ranges: 0 < x <= 10 for E-values and x > 0
// for bit scores.
func (t Thresholds) Validate() error {
	values := []struct {
		name string
		v    float64
	}{{"seq", t.Seq}, {"hit", t.Hit}, {"report-seq", t.ReportSeq}, {"report-hit", t.ReportHit}}
	for _, tv := range values {
		name, v := tv.name, tv.v
		switch t.Mode {
		case ModeEValue:
			if v <= 0 || v > 10 {
				return errors.E(errors.KindValidation, name+" E-value threshold must be in (0, 10], got "+format(v))
			}
		case ModeBitScore:
			if v <= 0 {
				return errors.E(errors.KindValidation, name+" bit score threshold must be > 0, got "+format(v))
			}
		}
	}
	return nil
}

func (t Thresholds) apply(form url.Values) {
	var keys [4]string
	switch t.Mode {
	case ModeEValue:
		keys = [4]string{"incE", "incdomE", "E", "domE"}
	case ModeBitScore:
		keys = [4]string{"incT", "incdomT", "T", "domT"}
	default:
		return
	}
	for i, v := range []float64{t.Seq, t.Hit, t.ReportSeq, t.ReportHit} {
		form.Set(keys[i], format(v))
	}
}

func format(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Response is the service answer to one query.
type Response struct {
	Results struct {
		UUID string `json:"uuid"`
		Hits []Hit  `json:"hits"`
	} `json:"results"`
}

// Hit is one matching protein.
type Hit struct {
	Name        tabular.Cell     `json:"name"`
	Desc        tabular.Cell     `json:"desc"`
	TaxID       tabular.Cell     `json:"taxid"`
	Species     tabular.Cell     `json:"species"`
	Kingdom     tabular.Cell     `json:"kg"`
	Score       tabular.Cell     `json:"score"`
	EValue      tabular.Cell     `json:"evalue"`
	PValue      tabular.Cell     `json:"pvalue"`
	NReported   tabular.Cell     `json:"nreported"`
	UniProtLink [][]tabular.Cell `json:"uniprot_link"`
	MGnify      *References      `json:"mgnify"`
	Acc2        string           `json:"acc2"`
}

// References lists the samples and runs a protein was found in, as
// [accession, label] pairs.
type References struct {
	Samples [][]tabular.Cell `json:"samples"`
	Runs    [][]tabular.Cell `json:"runs"`
}

// Accessions returns the sample accessions followed by the run
// accessions. Older responses only carry a comma-separated acc2 field,
// which is used when both lists are empty.
func (h *Hit) Accessions() []string {
	var out []string
	if h.MGnify != nil {
		for _, list := range [][][]tabular.Cell{h.MGnify.Samples, h.MGnify.Runs} {
			for _, pair := range list {
				if len(pair) > 0 && pair[0] != "" {
					out = append(out, pair[0].String())
				}
			}
		}
	}
	if len(out) > 0 || h.Acc2 == "" {
		return out
	}
	for _, acc := range strings.Split(h.Acc2, ",") {
		if acc = strings.Trim(strings.TrimSpace(acc), "."); acc != "" {
			out = append(out, acc)
		}
	}
	return out
}

// UniProt joins the first element of every UniProt link with commas.
func (h *Hit) UniProt() string {
	ids := make([]string, 0, len(h.UniProtLink))
	for _, link := range h.UniProtLink {
		if len(link) > 0 {
			ids = append(ids, link[0].String())
		}
	}
	return strings.Join(ids, ",")
}

// Poster is the part of httpclient.Client the searcher needs.
type Poster interface {
	PostForm(ctx context.Context, rawURL string, form url.Values, accept string) ([]byte, error)
}

// Searcher submits queries to the phmmer endpoint.
type Searcher struct {
	http Poster
	url  string
	log  *zap.Logger
}

// NewSearcher creates a searcher posting to endpoint.
func NewSearcher(http Poster, endpoint string, log *zap.Logger) *Searcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Searcher{http: http, url: endpoint, log: log}
}

// Form builds the request body of a search.
func Form(sequence, database string, t Thresholds) url.Values {
	if database == "" {
		database = "full"
	}
	form := url.Values{}
	form.Set("seqdb", database)
	form.Set("seq", sequence)
	t.apply(form)
	return form
}

// Search runs one query and decodes the response.
func (s *Searcher) Search(ctx context.Context, sequence, database string, t Thresholds) (*Response, error) {
	const op errors.Op = "seqsearch.search"

	body, err := s.http.PostForm(ctx, s.url, Form(sequence, database, t), httpclient.AcceptJSON)
	if err != nil {
		return nil, errors.Wrap(op, err)
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.E(op, errors.KindParse, err, "invalid search response")
	}
	s.log.Debug("search finished",
		zap.String("job", resp.Results.UUID),
		zap.Int("hits", len(resp.Results.Hits)))
	return &resp, nil
}
