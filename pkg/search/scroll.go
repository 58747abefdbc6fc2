package search

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"

	transport "github.com/infinilabs/cococi/pkg/http"
)

type Hit struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Source json.RawMessage `json:"_source"`
}

type ScrollPage struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Hits []Hit `json:"hits"`
	} `json:"hits"`
}

// Scroller pages through every document of one index, in index
// order. Close it to release the server-side context.
type Scroller struct {
	client    *Client
	index     string
	size      int
	keepAlive string

	scrollID string
	started  bool
	done     bool
}

func (c *Client) Scroll(index string, size int, keepAlive string) *Scroller {
	if keepAlive == "" {
		keepAlive = DefaultKeepAlive
	}
	return &Scroller{client: c, index: index, size: size, keepAlive: keepAlive}
}

// Next returns the next page of hits; an empty page means the index
// is exhausted.
func (s *Scroller) Next(ctx context.Context) ([]Hit, error) {
	if s.done {
		return nil, nil
	}
	var (
		respBytes []byte
		err       error
	)
	if !s.started {
		s.started = true
		query := map[string]interface{}{
			"size":  s.size,
			"query": map[string]interface{}{"match_all": map[string]interface{}{}},
			"sort":  []string{"_doc"},
		}
		respBytes, err = s.client.postJSON(ctx, "POST", transport.SearchScroll, query,
			"index", s.index, "scroll", s.keepAlive)
	} else {
		respBytes, err = s.client.postJSON(ctx, "POST", transport.ScrollNext, map[string]string{
			"scroll":    s.keepAlive,
			"scroll_id": s.scrollID,
		})
	}
	if err != nil {
		return nil, err
	}

	var page ScrollPage
	if err := json.Unmarshal(respBytes, &page); err != nil {
		return nil, errors.Wrap(err, "decoding search response")
	}
	if page.ScrollID != "" {
		s.scrollID = page.ScrollID
	}
	if len(page.Hits.Hits) == 0 {
		s.done = true
	}
	return page.Hits.Hits, nil
}

// Close clears the scroll context, if one was opened.
func (s *Scroller) Close(ctx context.Context) error {
	s.done = true
	if s.scrollID == "" {
		return nil
	}
	_, err := s.client.postJSON(ctx, "DELETE", transport.ClearScroll, map[string]string{"scroll_id": s.scrollID})
	s.scrollID = ""
	return err
}
