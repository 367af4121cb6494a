// Package dqaas is a client for the data-quality analysis service. Input
// files are staged into a directory the service reads from, then the
// analysis is triggered over HTTP.
package dqaas

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
)

// TimeColumn is the name of the staged timestamp column.
const TimeColumn = "time"

// DefaultQHDKey selects the hallmark profile on the service side.
const DefaultQHDKey = "interq_qhd"

// Client triggers an analysis of a staged file.
type Client interface {
	// Analyze runs the service against a staged file and returns the raw
	// data document it produces.
	Analyze(ctx context.Context, req AnalyzeRequest) (map[string]any, error)
}

// AnalyzeRequest names the staged file and the column to analyse.
type AnalyzeRequest struct {
	FileName    string
	ValueColumn string
	QHDKey      string
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for the service endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 5 * time.Minute},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Analyze(ctx context.Context, req AnalyzeRequest) (map[string]any, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "dqaas: parse endpoint")
	}
	key := req.QHDKey
	if key == "" {
		key = DefaultQHDKey
	}
	q := u.Query()
	q.Set("file_name", req.FileName)
	q.Set("ts_column", TimeColumn)
	q.Set("value_column_1", req.ValueColumn)
	q.Set("qhd_key", key)
	u.RawQuery = q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "dqaas: create request")
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "dqaas: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "dqaas: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("dqaas: unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, eris.Wrap(err, "dqaas: unmarshal response")
	}
	return out, nil
}
