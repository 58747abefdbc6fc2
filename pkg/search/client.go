// Package search is a small client for the Easysearch (Elasticsearch
// compatible) REST API, covering what it takes to snapshot indices to
// disk and restore them.
package search

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	transport "github.com/infinilabs/cococi/pkg/http"
	"github.com/infinilabs/cococi/pkg/http/httperror"
)

const (
	DefaultEndpoint = "https://localhost:9200"
	// DefaultKeepAlive is how long the server holds a scroll context
	// open between pages.
	DefaultKeepAlive = "1m"
	// BulkRetries is how many more times a bulk request the server
	// turned away with 429 is sent.
	BulkRetries = 3
)

// bulkRetryWait is the pause before resending a throttled bulk
// request when there is no rate limiter to pace it.
var bulkRetryWait = time.Second

type Client struct {
	client   *http.Client
	bulk     *http.Client
	limiter  *transport.RateLimiter
	creds    transport.Credentials
	router   *mux.Router
	endpoint string
}

// NewHTTPClient returns an http.Client for talking to a search
// cluster. Clusters brought up for CI use self-signed certificates,
// hence insecure.
func NewHTTPClient(insecure bool, timeout time.Duration) *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{Transport: tr, Timeout: timeout}
}

func New(c *http.Client, endpoint string, creds transport.Credentials) *Client {
	if c == nil {
		c = http.DefaultClient
	}
	if creds == nil {
		creds = transport.BasicAuth{}
	}
	return &Client{
		client:   c,
		bulk:     c,
		creds:    creds,
		router:   transport.NewSearchRouter(),
		endpoint: endpoint,
	}
}

// WithBulkLimit throttles bulk requests through l. Other requests
// are left alone.
func (c *Client) WithBulkLimit(l *transport.RateLimiter) *Client {
	if l == nil || l.RPS <= 0 {
		return c
	}
	bulk := *c.client
	bulk.Transport = l.RoundTripper(c.client.Transport)
	c.bulk = &bulk
	c.limiter = l
	return c
}

func (c *Client) Endpoint() string {
	return c.endpoint
}

// Health returns nil once the cluster answers its health endpoint
// with 200 OK, whatever colour it reports.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, c.client, "GET", transport.ClusterHealth, nil, "", []int{http.StatusOK})
	return err
}

// WaitHealthy polls Health up to attempts times, interval apart.
func (c *Client) WaitHealthy(ctx context.Context, attempts int, interval time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = c.Health(ctx); err == nil {
			return nil
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
	if err == nil {
		err = errors.New("no attempts made")
	}
	return errors.Wrapf(err, "cluster not healthy after %d attempts", attempts)
}

// Indices lists the names of indices matching pattern. A pattern that
// matches nothing gives an empty list.
func (c *Client) Indices(ctx context.Context, pattern string) ([]string, error) {
	respBytes, err := c.do(ctx, c.client, "GET", transport.CatIndices, nil, "", []int{http.StatusOK},
		"pattern", pattern, "format", "json", "h", "index")
	if err != nil {
		if IsMissing(err) {
			return nil, nil
		}
		return nil, err
	}
	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.Unmarshal(respBytes, &rows); err != nil {
		return nil, errors.Wrap(err, "decoding index list")
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Index)
	}
	return names, nil
}

// GetIndex returns the raw index description, keyed by index name,
// as the server sends it.
func (c *Client) GetIndex(ctx context.Context, index string) ([]byte, error) {
	return c.do(ctx, c.client, "GET", transport.GetIndex, nil, "", []int{http.StatusOK}, "index", index)
}

// CreateIndex creates index with body as its settings and mappings.
func (c *Client) CreateIndex(ctx context.Context, index string, body []byte) error {
	_, err := c.do(ctx, c.client, "PUT", transport.CreateIndex, bytes.NewReader(body), "application/json", []int{http.StatusOK, http.StatusCreated}, "index", index)
	return err
}

// DeleteIndex deletes every index matching pattern. Use IsMissing to
// tell when there was nothing to delete.
func (c *Client) DeleteIndex(ctx context.Context, pattern string) error {
	_, err := c.do(ctx, c.client, "DELETE", transport.DeleteIndex, nil, "", []int{http.StatusOK}, "index", pattern)
	return err
}

// Bulk sends an ndjson bulk body. A 429 reply gets the same body sent
// again, up to BulkRetries times; with a rate limiter in place the
// retries go out at its reduced rate.
func (c *Client) Bulk(ctx context.Context, body []byte) (BulkResponse, error) {
	var res BulkResponse
	var respBytes []byte
	var err error
	for attempt := 0; ; attempt++ {
		respBytes, err = c.do(ctx, c.bulk, "POST", transport.Bulk, bytes.NewReader(body), "application/x-ndjson", []int{http.StatusOK})
		if !IsThrottled(err) || attempt == BulkRetries {
			break
		}
		if c.limiter == nil {
			if err := wait(ctx, bulkRetryWait*time.Duration(attempt+1)); err != nil {
				return res, err
			}
		}
	}
	if err != nil {
		return res, err
	}
	if err := json.Unmarshal(respBytes, &res); err != nil {
		return res, errors.Wrap(err, "decoding bulk response")
	}
	if c.limiter != nil {
		c.limiter.Recover()
	}
	return res, nil
}

// IsThrottled reports whether err is the server answering 429.
func IsThrottled(err error) bool {
	apiErr, ok := errors.Cause(err).(*httperror.APIError)
	return ok && apiErr.StatusCode == http.StatusTooManyRequests
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsMissing reports whether err is the server answering 404.
func IsMissing(err error) bool {
	apiErr, ok := errors.Cause(err).(*httperror.APIError)
	return ok && apiErr.IsMissing()
}

func (c *Client) postJSON(ctx context.Context, method, route string, v interface{}, urlParams ...string) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encoding request body")
	}
	return c.do(ctx, c.client, method, route, bytes.NewReader(body), "application/json", []int{http.StatusOK}, urlParams...)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method, route string, body io.Reader, contentType string, accept []int, urlParams ...string) ([]byte, error) {
	u, err := transport.MakeURL(c.endpoint, c.router, route, urlParams...)
	if err != nil {
		return nil, errors.Wrap(err, "constructing URL")
	}

	req, err := http.NewRequest(method, u.String(), body)
	if err != nil {
		return nil, errors.Wrapf(err, "constructing request %s", u)
	}
	req = req.WithContext(ctx)

	c.creds.Set(req)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	for _, code := range accept {
		if resp.StatusCode == code {
			return respBytes, nil
		}
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, transport.ErrorUnauthorized
	}
	return nil, httperror.New(resp, respBytes)
}
