package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transport "github.com/infinilabs/cococi/pkg/http"
	"github.com/infinilabs/cococi/pkg/search/searchtest"
)

func docs(n int) []json.RawMessage {
	var out []json.RawMessage
	for i := 0; i < n; i++ {
		out = append(out, json.RawMessage(fmt.Sprintf(`{"n":%d}`, i)))
	}
	return out
}

func setup(t *testing.T) (*Client, *searchtest.Cluster) {
	cluster := searchtest.NewCluster()
	t.Cleanup(cluster.Close)
	return New(cluster.Client(), cluster.URL, transport.BasicAuth{Username: "elastic", Password: "changeme"}), cluster
}

func TestIndices(t *testing.T) {
	c, cluster := setup(t)
	cluster.Put("coco_document", &searchtest.Index{})
	cluster.Put("coco_datasource", &searchtest.Index{})
	cluster.Put("other", &searchtest.Index{})

	names, err := c.Indices(context.Background(), "coco*")
	require.NoError(t, err)
	assert.Equal(t, []string{"coco_datasource", "coco_document"}, names)

	reqs := cluster.Requests(transport.CatIndices)
	require.Len(t, reqs, 1)
	assert.Equal(t, "json", reqs[0].Query["format"][0])
	assert.Equal(t, "index", reqs[0].Query["h"][0])

	names, err = c.Indices(context.Background(), "nothing*")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestWaitHealthy(t *testing.T) {
	c, cluster := setup(t)
	cluster.Unhealthy = 2
	require.NoError(t, c.WaitHealthy(context.Background(), 5, time.Millisecond))
	assert.Len(t, cluster.Requests(transport.ClusterHealth), 3)

	cluster.Unhealthy = 10
	err := c.WaitHealthy(context.Background(), 3, time.Millisecond)
	assert.Error(t, err)
}

func TestCreateAndDeleteIndex(t *testing.T) {
	c, cluster := setup(t)
	ctx := context.Background()

	require.NoError(t, c.CreateIndex(ctx, "coco_a", []byte(`{"settings":{"index":{"number_of_shards":"1"}}}`)))
	assert.Error(t, c.CreateIndex(ctx, "coco_a", nil), "index already exists")

	raw, err := c.GetIndex(ctx, "coco_a")
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"number_of_shards":"1"`)

	require.NoError(t, c.DeleteIndex(ctx, "coco_*"))
	err = c.DeleteIndex(ctx, "coco_*")
	assert.True(t, IsMissing(err))
	assert.Empty(t, cluster.Names())
}

func TestScrollReadsEverythingAndClears(t *testing.T) {
	c, cluster := setup(t)
	cluster.Put("coco_document", &searchtest.Index{Docs: docs(7)})
	ctx := context.Background()

	s := c.Scroll("coco_document", 3, "")
	var got int
	for {
		hits, err := s.Next(ctx)
		require.NoError(t, err)
		if len(hits) == 0 {
			break
		}
		got += len(hits)
	}
	assert.Equal(t, 7, got)
	require.NoError(t, s.Close(ctx))
	assert.Equal(t, 0, cluster.OpenScrolls())

	first := cluster.Requests(transport.SearchScroll)
	require.Len(t, first, 1)
	assert.Equal(t, DefaultKeepAlive, first[0].Query["scroll"][0])
	// 3 + 3 + 1, then the empty page
	assert.Len(t, cluster.Requests(transport.ScrollNext), 3)
}

func TestBulk(t *testing.T) {
	c, cluster := setup(t)
	body := NewBulkBody("coco_document")
	body.Add([]byte(`{"title":"a"}`))
	body.Add([]byte(`{"title":"b"}`))
	assert.Equal(t, 2, body.Len())

	res, err := c.Bulk(context.Background(), body.Bytes())
	require.NoError(t, err)
	assert.False(t, res.Errors)
	assert.Equal(t, 0, res.Failed())
	idx, ok := cluster.Index("coco_document")
	require.True(t, ok)
	assert.Len(t, idx.Docs, 2)

	cluster.BulkErrors = true
	res, err = c.Bulk(context.Background(), body.Bytes())
	require.NoError(t, err)
	assert.True(t, res.Errors)
	assert.Equal(t, 1, res.Failed())
}

func shortRetryWait(t *testing.T) {
	old := bulkRetryWait
	bulkRetryWait = time.Millisecond
	t.Cleanup(func() { bulkRetryWait = old })
}

func TestBulkRetriesWhenThrottled(t *testing.T) {
	shortRetryWait(t)
	c, cluster := setup(t)
	cluster.Throttle = 2
	body := NewBulkBody("coco_document")
	body.Add([]byte(`{"title":"a"}`))

	_, err := c.Bulk(context.Background(), body.Bytes())
	require.NoError(t, err)
	assert.Len(t, cluster.Requests(transport.Bulk), 3)
	idx, ok := cluster.Index("coco_document")
	require.True(t, ok)
	assert.Len(t, idx.Docs, 1)
}

func TestBulkGivesUpWhenThrottled(t *testing.T) {
	shortRetryWait(t)
	c, cluster := setup(t)
	cluster.Throttle = 100
	body := NewBulkBody("coco_document")
	body.Add([]byte(`{"title":"a"}`))

	_, err := c.Bulk(context.Background(), body.Bytes())
	assert.True(t, IsThrottled(err), "expected a 429, got %v", err)
	assert.Len(t, cluster.Requests(transport.Bulk), BulkRetries+1)
}

func TestBulkLimitOnlyAppliesToBulk(t *testing.T) {
	c, _ := setup(t)
	plain := c.client
	c.WithBulkLimit(&transport.RateLimiter{RPS: 100, Burst: 1})
	assert.Equal(t, plain, c.client)
	assert.NotEqual(t, plain, c.bulk)

	c2, _ := setup(t)
	c2.WithBulkLimit(&transport.RateLimiter{})
	assert.Equal(t, c2.client, c2.bulk)
}

func TestUnauthorized(t *testing.T) {
	srv := searchtest.NewCluster()
	defer srv.Close()
	c := New(&http.Client{Transport: unauthorized{}}, srv.URL, nil)
	err := c.Health(context.Background())
	assert.Equal(t, transport.ErrorUnauthorized, err)
}

type unauthorized struct{}

func (unauthorized) RoundTrip(req *http.Request) (*http.Response, error) {
	return &http.Response{StatusCode: http.StatusUnauthorized, Status: "401 Unauthorized", Body: http.NoBody, Request: req, Header: http.Header{}}, nil
}
