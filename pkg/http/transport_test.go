package http

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeURL(t *testing.T) {
	for _, v := range []struct {
		endpoint string
		router   string
		route    string
		params   []string
		expected string
	}{
		{"https://central.example.com/api/v1/publisher", "central", Upload, nil,
			"https://central.example.com/api/v1/publisher/upload"},
		{"https://central.example.com/api/v1/publisher/", "central", DropDeployment, []string{"id", "abc123"},
			"https://central.example.com/api/v1/publisher/deployment/abc123"},
		{"https://localhost:9200", "search", CatIndices, []string{"pattern", "coco", "format", "json", "h", "index"},
			"https://localhost:9200/_cat/indices/coco?format=json&h=index"},
		{"https://localhost:9200", "search", SearchScroll, []string{"index", "coco_docs", "scroll", "1m"},
			"https://localhost:9200/coco_docs/_search?scroll=1m"},
		{"https://localhost:9200", "search", Bulk, nil,
			"https://localhost:9200/_bulk"},
	} {
		router := NewCentralRouter()
		if v.router == "search" {
			router = NewSearchRouter()
		}
		u, err := MakeURL(v.endpoint, router, v.route, v.params...)
		require.NoError(t, err)
		assert.Equal(t, v.expected, u.String())
	}
}

func TestMakeURLUnknownRoute(t *testing.T) {
	_, err := MakeURL("http://localhost", NewCentralRouter(), "NoSuchRoute")
	assert.Error(t, err)
}

func TestCredentials(t *testing.T) {
	req, _ := http.NewRequest("GET", "http://localhost", nil)
	UserToken{Username: "user", Password: "pass"}.Set(req)
	assert.Equal(t, "UserToken dXNlcjpwYXNz", req.Header.Get("Authorization"))

	req, _ = http.NewRequest("GET", "http://localhost", nil)
	BasicAuth{Username: "elastic", Password: "changeme"}.Set(req)
	u, p, ok := req.BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "elastic", u)
	assert.Equal(t, "changeme", p)

	req, _ = http.NewRequest("GET", "http://localhost", nil)
	UserToken{}.Set(req)
	assert.Empty(t, req.Header.Get("Authorization"))
}

func TestRateLimiterBacksOffOn429(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer ts.Close()

	limiter := &RateLimiter{RPS: 100, Burst: 1}
	client := &http.Client{Transport: limiter.RoundTripper(nil)}

	resp, err := client.Get(ts.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.InDelta(t, 50.0, float64(limiter.get().Limit()), 0.001)

	limiter.Recover()
	assert.InDelta(t, 75.0, float64(limiter.get().Limit()), 0.001)
}

func TestRateLimiterDisabled(t *testing.T) {
	var limiter *RateLimiter
	assert.Equal(t, http.DefaultTransport, limiter.RoundTripper(http.DefaultTransport))
	assert.Equal(t, http.DefaultTransport, (&RateLimiter{}).RoundTripper(http.DefaultTransport))
}
