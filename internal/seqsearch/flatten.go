package seqsearch

import (
	"context"

	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/mgnify"
	"github.com/nishad/mgtk/internal/tabular"
)

// Columns are the leading columns of a flattened search table. Metadata
// columns follow in first-seen order.
var Columns = []string{
	"query_id", "subject_id", "accession",
	"taxid", "desc", "pvalue", "species", "score", "evalue", "nreported", "uniprot", "kg",
}

// MetadataLookup resolves the metadata of a sample or run accession.
type MetadataLookup interface {
	SampleMetadata(ctx context.Context, accession string) (mgnify.Metadata, error)
}

// Flattener turns search responses into tables.
type Flattener struct {
	lookup   MetadataLookup
	log      *zap.Logger
	failures int
}

// NewFlattener creates a flattener enriching rows through lookup.
func NewFlattener(lookup MetadataLookup, log *zap.Logger) *Flattener {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flattener{lookup: lookup, log: log}
}

// Failures returns how many metadata lookups failed so far.
func (f *Flattener) Failures() int { return f.failures }

// Flatten produces one row per (hit, accession) keyed "{name} {accession}".
// A later row with the same key replaces the earlier one in its original
// position. A failed metadata lookup is logged and the row keeps its hit
// fields.
func (f *Flattener) Flatten(ctx context.Context, queryID string, resp *Response) *tabular.Table {
	table := tabular.NewTable("", Columns...)
	table.HeaderFunc = tabular.SanitizeHeader
	if resp == nil {
		return table
	}

	skips := errors.NewSkipCounter("metadata lookup for " + queryID)
	cache := make(map[string]mgnify.Metadata)

	for i := range resp.Results.Hits {
		hit := &resp.Results.Hits[i]
		name := hit.Name.String()

		for _, acc := range hit.Accessions() {
			row := table.Put(name + " " + acc)
			row.Set("query_id", queryID).
				Set("subject_id", name).
				Set("accession", acc).
				Set("taxid", hit.TaxID.String()).
				Set("desc", hit.Desc.String()).
				Set("pvalue", hit.PValue.String()).
				Set("species", hit.Species.String()).
				Set("score", hit.Score.String()).
				Set("evalue", hit.EValue.String()).
				Set("nreported", hit.NReported.String()).
				Set("uniprot", hit.UniProt()).
				Set("kg", hit.Kingdom.String())

			meta, ok := cache[acc]
			if !ok {
				var err error
				meta, err = f.lookup.SampleMetadata(ctx, acc)
				if err != nil {
					f.log.Warn("metadata lookup failed", zap.String("accession", acc), zap.Error(err))
					skips.Skip(err, acc)
					f.failures++
					continue
				}
				cache[acc] = meta
			}
			for _, field := range meta {
				row.Set(field.Key, field.Value)
			}
		}
	}

	skips.Report(f.log)
	return table
}
