package metrics

import (
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := ioutil.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: Namespace, Name: "test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	require.NoError(t, Push(ts.URL, "cococi", reg, log.NewNopLogger()))
	assert.Equal(t, "/metrics/job/cococi", gotPath)
	assert.True(t, strings.Contains(gotBody, "cococi_test_total"), "expected metric in pushed body")
}

func TestPushDisabled(t *testing.T) {
	assert.NoError(t, Push("", "cococi", prometheus.NewRegistry(), log.NewNopLogger()))
}

func TestPushFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	assert.Error(t, Push(ts.URL, "cococi", prometheus.NewRegistry(), log.NewNopLogger()))
}
