package jsonapi

import (
	"context"
	"iter"
	"net/url"

	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/errors"
	"github.com/nishad/mgtk/internal/httpclient"
)

// Getter is the part of the HTTP client the fetcher needs.
type Getter interface {
	GetJSON(ctx context.Context, rawURL string, query url.Values, accept string, v any) error
}

// Fetcher retrieves JSON:API documents and walks paginated collections.
type Fetcher struct {
	client Getter
	log    *zap.Logger
}

// NewFetcher creates a fetcher on top of client.
func NewFetcher(client Getter, log *zap.Logger) *Fetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Fetcher{client: client, log: log}
}

// Fetch retrieves a single document.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, query url.Values) (*Document, error) {
	var doc Document
	if err := f.client.GetJSON(ctx, rawURL, query, httpclient.AcceptJSONAPI, &doc); err != nil {
		return nil, errors.Wrap("jsonapi.fetch", err)
	}
	return &doc, nil
}

// Pages lazily walks a collection. The first request carries query; every
// following request uses the server's links.next verbatim. The walk ends
// when the next link is absent or was already visited. A failed page is
// yielded as the error and ends the sequence.
func (f *Fetcher) Pages(ctx context.Context, baseURL string, query url.Values) iter.Seq2[*Document, error] {
	return func(yield func(*Document, error) bool) {
		doc, err := f.Fetch(ctx, baseURL, query)
		if err != nil {
			yield(nil, err)
			return
		}

		visited := make(map[string]bool)
		for {
			if !yield(doc, nil) {
				return
			}

			next := doc.Links.Next
			if next == "" {
				return
			}
			if visited[next] || next == doc.Links.Self {
				f.log.Warn("pagination link repeats, stopping", zap.String("next", next))
				return
			}
			visited[next] = true

			if doc, err = f.Fetch(ctx, next, nil); err != nil {
				yield(nil, err)
				return
			}
		}
	}
}
