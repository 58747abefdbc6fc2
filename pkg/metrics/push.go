package metrics

import (
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Push sends everything g gathers to a Prometheus Pushgateway. CI
// jobs are gone before anything could scrape them, so this is how
// their metrics get out. An empty url is a no-op.
func Push(url, job string, g prometheus.Gatherer, logger log.Logger) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(g).Push(); err != nil {
		return errors.Wrapf(err, "pushing metrics to %s", url)
	}
	logger.Log("info", "pushed metrics", "url", url, "job", job)
	return nil
}
