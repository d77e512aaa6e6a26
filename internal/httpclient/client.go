// Package httpclient wraps resty with the fixed headers and bounded retry
// policy shared by every remote call mgtk makes.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/go-resty/resty/v2"
	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/nishad/mgtk/internal/config"
	"github.com/nishad/mgtk/internal/errors"
)

const (
	// AcceptJSONAPI is the media type the MGnify API answers with.
	AcceptJSONAPI = "application/vnd.api+json"
	AcceptJSON    = "application/json"
	AcceptXML     = "application/xml"
)

// retryable lists the transient server statuses worth another attempt.
var retryable = map[int]bool{
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Client issues GET and POST requests with automatic retry on transient
// server errors. Non-success answers surface as *errors.FetchFailure.
type Client struct {
	rc  *resty.Client
	log *zap.Logger
}

// New creates a client from the HTTP section of the configuration.
func New(cfg config.HTTPConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}

	rc := resty.New().
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(cfg.RetryWait).
		SetRetryMaxWaitTime(cfg.RetryMaxWait).
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r != nil && retryable[r.StatusCode()]
		}).
		AddRetryHook(func(r *resty.Response, err error) {
			fields := []zap.Field{zap.Error(err)}
			if r != nil {
				fields = append(fields, zap.String("url", requestURL(r)), zap.Int("status", r.StatusCode()))
				// streamed bodies of failed attempts are never read
				if r.RawResponse != nil && r.RawResponse.Body != nil {
					_ = r.RawResponse.Body.Close()
				}
			}
			log.Debug("retrying request", fields...)
		})

	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	rc.SetHeaders(cfg.Headers)

	return &Client{rc: rc, log: log}
}

// Get fetches rawURL with the given query and returns the response body.
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, accept string) ([]byte, error) {
	const op errors.Op = "httpclient.get"

	req := c.rc.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParamsFromValues(query)
	}
	if accept != "" {
		req.SetHeader("Accept", accept)
	}

	c.log.Debug("GET", zap.String("url", rawURL), zap.Any("query", query))
	resp, err := req.Get(rawURL)
	if err != nil {
		return nil, errors.E(op, errors.KindNetwork, err)
	}
	if !resp.IsSuccess() {
		return nil, &errors.FetchFailure{URL: requestURL(resp), StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// GetJSON fetches rawURL and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, accept string, v any) error {
	const op errors.Op = "httpclient.get_json"

	body, err := c.Get(ctx, rawURL, query, accept)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errors.E(op, errors.KindParse, err, "invalid JSON from "+rawURL)
	}
	return nil
}

// PostForm submits a form-encoded body and returns the response body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, accept string) ([]byte, error) {
	const op errors.Op = "httpclient.post_form"

	req := c.rc.R().
		SetContext(ctx).
		SetFormDataFromValues(form)
	if accept != "" {
		req.SetHeader("Accept", accept)
	}

	c.log.Debug("POST", zap.String("url", rawURL), zap.Strings("fields", formKeys(form)))
	resp, err := req.Post(rawURL)
	if err != nil {
		return nil, errors.E(op, errors.KindNetwork, err)
	}
	if !resp.IsSuccess() {
		return nil, &errors.FetchFailure{URL: requestURL(resp), StatusCode: resp.StatusCode()}
	}
	return resp.Body(), nil
}

// Download streams the body of rawURL into w and returns the bytes written.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	const op errors.Op = "httpclient.download"

	resp, err := c.rc.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(rawURL)
	if err != nil {
		return 0, errors.E(op, errors.KindNetwork, err)
	}
	body := resp.RawBody()
	defer func() {
		if body != nil {
			errors.IgnoreError(c.log, body.Close(), "closing download body")
		}
	}()

	if !resp.IsSuccess() {
		return 0, &errors.FetchFailure{URL: requestURL(resp), StatusCode: resp.StatusCode()}
	}
	if body == nil {
		return 0, nil
	}

	n, err := io.Copy(w, body)
	if err != nil {
		return n, errors.E(op, errors.KindIO, err, "failed to read "+rawURL)
	}
	return n, nil
}

func requestURL(r *resty.Response) string {
	if r.RawResponse != nil && r.RawResponse.Request != nil {
		return r.RawResponse.Request.URL.String()
	}
	if r.Request != nil {
		return r.Request.URL
	}
	return ""
}

func formKeys(form url.Values) []string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	return keys
}
