package snapshot

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	transport "github.com/infinilabs/cococi/pkg/http"
	"github.com/infinilabs/cococi/pkg/search"
	"github.com/infinilabs/cococi/pkg/search/searchtest"
)

func newCluster(t *testing.T) (*searchtest.Cluster, *search.Client) {
	cluster := searchtest.NewCluster()
	t.Cleanup(cluster.Close)
	return cluster, search.New(cluster.Client(), cluster.URL, transport.BasicAuth{Username: "elastic", Password: "changeme"})
}

func documents(n int) []json.RawMessage {
	var out []json.RawMessage
	for i := 0; i < n; i++ {
		out = append(out, json.RawMessage(fmt.Sprintf(`{"id":%d,"title":"doc %d"}`, i, i)))
	}
	return out
}

func clusterSettings(name string) map[string]interface{} {
	return map[string]interface{}{
		"index": map[string]interface{}{
			"uuid":               "e1Xy3q",
			"creation_date":      "1700000000000",
			"provided_name":      name,
			"version":            map[string]interface{}{"created": "7100299"},
			"routing":            map[string]interface{}{"allocation": map[string]interface{}{"include": "x"}},
			"number_of_shards":   "1",
			"number_of_replicas": "1",
		},
	}
}

func lines(t *testing.T, path string) []string {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	require.NoError(t, sc.Err())
	return out
}

func TestExport(t *testing.T) {
	cluster, client := newCluster(t)
	cluster.Put("coco_document", &searchtest.Index{
		Settings: clusterSettings("coco_document"),
		Mappings: map[string]interface{}{"properties": map[string]interface{}{"title": map[string]interface{}{"type": "text"}}},
		Docs:     documents(7),
	})
	cluster.Put("coco_empty", &searchtest.Index{Settings: clusterSettings("coco_empty")})
	cluster.Put("unrelated", &searchtest.Index{Docs: documents(1)})

	dir := t.TempDir()
	e := NewExporter(client, ExportOptions{Dir: dir, ScrollSize: 3}, nil, ioutil.Discard)
	summaries, err := e.Export(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, IndexSummary{Index: "coco_document", Documents: 7, Schema: true}, summaries[0])
	assert.Equal(t, IndexSummary{Index: "coco_empty", Documents: 0, Schema: true}, summaries[1])

	raw, err := ioutil.ReadFile(filepath.Join(dir, "coco_document", SchemaFile))
	require.NoError(t, err)
	var schema struct {
		Settings struct {
			Index map[string]interface{} `json:"index"`
		} `json:"settings"`
		Mappings map[string]interface{} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))
	for _, key := range unportable {
		assert.NotContains(t, schema.Settings.Index, key)
	}
	assert.Equal(t, "1", schema.Settings.Index["number_of_shards"])
	assert.Contains(t, schema.Mappings, "properties")
	assert.Contains(t, string(raw), "\n  \"mappings\"", "schema is indented")

	docs := lines(t, filepath.Join(dir, "coco_document", DataFile))
	require.Len(t, docs, 7)
	assert.Equal(t, `{"id":0,"title":"doc 0"}`, docs[0])
	assert.Empty(t, lines(t, filepath.Join(dir, "coco_empty", DataFile)))

	_, err = os.Stat(filepath.Join(dir, "unrelated"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, 0, cluster.OpenScrolls())
	assert.Len(t, cluster.Cleared(), 2)
}

func TestExportNoIndices(t *testing.T) {
	_, client := newCluster(t)
	_, err := NewExporter(client, ExportOptions{Dir: t.TempDir()}, nil, nil).Export(context.Background())
	assert.Error(t, err)
}

func TestPortableSchemaNeedsEntry(t *testing.T) {
	_, err := portableSchema("coco_a", []byte(`{"coco_b":{"settings":{}}}`))
	assert.Error(t, err)

	out, err := portableSchema("coco_a", []byte(`{"coco_a":{}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"settings":{},"mappings":{}}`, string(out))
}
