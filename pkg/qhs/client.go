// Package qhs is a client for the quality hallmark service that stores
// published documents.
package qhs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultIDField = "_id"

// Outcome classifies a POST response.
type Outcome string

const (
	// Created means the response carried a document id.
	Created Outcome = "created"
	// Conflict means the service already holds the document.
	Conflict Outcome = "conflict"
	// Transient means the service reported a condition worth retrying.
	Transient Outcome = "transient"
)

// conflictMarkers are message fragments the service uses for duplicates.
var conflictMarkers = []string{"not unique", "already exists"}

// Client posts and queries quality hallmark documents.
type Client interface {
	// Post submits one document and classifies the response.
	Post(ctx context.Context, doc any) (*PostResult, error)
	// Query returns stored documents matching a subject.
	Query(ctx context.Context, subject string) ([]map[string]any, error)
}

// PostResult is the classified response to a POST.
type PostResult struct {
	Outcome    Outcome
	ID         string
	Message    string
	StatusCode int
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithIDField sets the response key whose presence marks success.
func WithIDField(field string) Option {
	return func(c *httpClient) {
		if field != "" {
			c.idField = field
		}
	}
}

// WithRateLimit throttles requests to rps per second. Zero disables it.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	endpoint string
	idField  string
	http     *http.Client
	limiter  *rate.Limiter
}

// NewClient creates a client for the given document endpoint.
func NewClient(endpoint string, opts ...Option) Client {
	c := &httpClient{
		endpoint: endpoint,
		idField:  defaultIDField,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *httpClient) Post(ctx context.Context, doc any) (*PostResult, error) {
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, eris.Wrap(err, "qhs: marshal document")
	}
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "qhs: rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "qhs: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "qhs: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "qhs: read response")
	}
	return c.classify(resp.StatusCode, raw), nil
}

// classify maps a response to an outcome. A body carrying the id field is
// a success regardless of status; a duplicate message is a conflict;
// everything else is retried.
func (c *httpClient) classify(status int, raw []byte) *PostResult {
	res := &PostResult{Outcome: Transient, StatusCode: status}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		res.Message = strings.TrimSpace(string(raw))
		return res
	}
	if msg, ok := payload["message"].(string); ok {
		res.Message = msg
	}
	if id, ok := payload[c.idField]; ok && id != nil {
		res.Outcome = Created
		res.ID = stringify(id)
		return res
	}
	lower := strings.ToLower(res.Message)
	for _, m := range conflictMarkers {
		if strings.Contains(lower, m) {
			res.Outcome = Conflict
			return res
		}
	}
	return res
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case map[string]any:
		// {"$oid": "..."}
		if oid, ok := x["$oid"].(string); ok {
			return oid
		}
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func (c *httpClient) Query(ctx context.Context, subject string) ([]map[string]any, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "qhs: rate limit")
	}
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, eris.Wrap(err, "qhs: parse endpoint")
	}
	q := u.Query()
	q.Set("subject", subject)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, eris.Wrap(err, "qhs: create request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "qhs: send request")
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "qhs: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("qhs: unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var docs []map[string]any
	if err := json.Unmarshal(raw, &docs); err != nil {
		var one map[string]any
		if err2 := json.Unmarshal(raw, &one); err2 != nil {
			return nil, eris.Wrap(err, "qhs: unmarshal response")
		}
		docs = []map[string]any{one}
	}
	return docs, nil
}
