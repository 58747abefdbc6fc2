// Package searchtest runs an in-memory search cluster behind an
// httptest.Server, answering the routes pkg/search uses.
package searchtest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"

	"github.com/gorilla/mux"
	"github.com/ryanuber/go-glob"

	transport "github.com/infinilabs/cococi/pkg/http"
)

type Index struct {
	Settings map[string]interface{}
	Mappings map[string]interface{}
	Docs     []json.RawMessage
}

// Request records a request the cluster has seen.
type Request struct {
	Route string
	Vars  map[string]string
	Query map[string][]string
	Body  []byte
}

type scroll struct {
	index string
	size  int
	pos   int
}

type Cluster struct {
	*httptest.Server

	mu sync.Mutex
	// Unhealthy is the number of health checks to fail before
	// answering 200.
	Unhealthy int
	// RejectCreate names indices whose creation fails.
	RejectCreate map[string]bool
	// BulkErrors makes every bulk reply report a failed item.
	BulkErrors bool
	// Throttle is the number of bulk requests to turn away with 429
	// before accepting any.
	Throttle int

	indices  map[string]*Index
	scrolls  map[string]*scroll
	cleared  []string
	requests []Request
	nextID   int
}

func NewCluster() *Cluster {
	c := &Cluster{
		RejectCreate: map[string]bool{},
		indices:      map[string]*Index{},
		scrolls:      map[string]*scroll{},
	}
	c.Server = httptest.NewServer(c.handler())
	return c
}

// Put stores an index directly, bypassing the API.
func (c *Cluster) Put(name string, idx *Index) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.indices[name] = idx
}

func (c *Cluster) Index(name string) (*Index, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.indices[name]
	return idx, ok
}

// Names returns the stored index names, sorted.
func (c *Cluster) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.match("*")
}

func (c *Cluster) Requests(route string) []Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	var reqs []Request
	for _, r := range c.requests {
		if r.Route == route {
			reqs = append(reqs, r)
		}
	}
	return reqs
}

// Cleared returns the scroll IDs that have been cleared.
func (c *Cluster) Cleared() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.cleared...)
}

// OpenScrolls counts scroll contexts not yet cleared.
func (c *Cluster) OpenScrolls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.scrolls)
}

func (c *Cluster) match(pattern string) []string {
	var names []string
	for name := range c.indices {
		if glob.Glob(pattern, name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *Cluster) handler() http.Handler {
	r := transport.NewSearchRouter()
	handlers := map[string]func(w http.ResponseWriter, vars map[string]string, req *http.Request, body []byte){
		transport.ClusterHealth: c.health,
		transport.CatIndices:    c.catIndices,
		transport.GetIndex:      c.getIndex,
		transport.CreateIndex:   c.createIndex,
		transport.DeleteIndex:   c.deleteIndex,
		transport.SearchScroll:  c.searchScroll,
		transport.ScrollNext:    c.scrollNext,
		transport.ClearScroll:   c.clearScroll,
		transport.Bulk:          c.bulk,
	}
	for name, h := range handlers {
		h := h
		name := name
		r.Get(name).HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			body, _ := ioutil.ReadAll(req.Body)
			vars := mux.Vars(req)
			c.mu.Lock()
			defer c.mu.Unlock()
			c.requests = append(c.requests, Request{Route: name, Vars: vars, Query: req.URL.Query(), Body: body})
			h(w, vars, req, body)
		})
	}
	return r
}

func reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, index string) {
	reply(w, http.StatusNotFound, map[string]interface{}{
		"error":  map[string]string{"type": "index_not_found_exception", "index": index},
		"status": http.StatusNotFound,
	})
}

func (c *Cluster) health(w http.ResponseWriter, _ map[string]string, _ *http.Request, _ []byte) {
	if c.Unhealthy > 0 {
		c.Unhealthy--
		reply(w, http.StatusServiceUnavailable, map[string]string{"status": "red"})
		return
	}
	reply(w, http.StatusOK, map[string]string{"status": "green"})
}

func (c *Cluster) catIndices(w http.ResponseWriter, vars map[string]string, _ *http.Request, _ []byte) {
	rows := []map[string]string{}
	for _, name := range c.match(vars["pattern"]) {
		rows = append(rows, map[string]string{"index": name})
	}
	reply(w, http.StatusOK, rows)
}

func (c *Cluster) getIndex(w http.ResponseWriter, vars map[string]string, _ *http.Request, _ []byte) {
	name := vars["index"]
	idx, ok := c.indices[name]
	if !ok {
		notFound(w, name)
		return
	}
	reply(w, http.StatusOK, map[string]interface{}{
		name: map[string]interface{}{
			"aliases":  map[string]interface{}{},
			"mappings": idx.Mappings,
			"settings": idx.Settings,
		},
	})
}

func (c *Cluster) createIndex(w http.ResponseWriter, vars map[string]string, _ *http.Request, body []byte) {
	name := vars["index"]
	if _, exists := c.indices[name]; exists || c.RejectCreate[name] {
		reply(w, http.StatusBadRequest, map[string]interface{}{
			"error":  map[string]string{"type": "resource_already_exists_exception", "index": name},
			"status": http.StatusBadRequest,
		})
		return
	}
	var schema struct {
		Settings map[string]interface{} `json:"settings"`
		Mappings map[string]interface{} `json:"mappings"`
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &schema); err != nil {
			reply(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}
	c.indices[name] = &Index{Settings: schema.Settings, Mappings: schema.Mappings}
	reply(w, http.StatusOK, map[string]interface{}{"acknowledged": true, "index": name})
}

func (c *Cluster) deleteIndex(w http.ResponseWriter, vars map[string]string, _ *http.Request, _ []byte) {
	names := c.match(vars["index"])
	if len(names) == 0 {
		notFound(w, vars["index"])
		return
	}
	for _, name := range names {
		delete(c.indices, name)
	}
	reply(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (c *Cluster) searchScroll(w http.ResponseWriter, vars map[string]string, req *http.Request, body []byte) {
	name := vars["index"]
	if _, ok := c.indices[name]; !ok {
		notFound(w, name)
		return
	}
	if req.URL.Query().Get("scroll") == "" {
		reply(w, http.StatusBadRequest, map[string]string{"error": "scroll keep-alive missing"})
		return
	}
	var query struct {
		Size int `json:"size"`
	}
	json.Unmarshal(body, &query)
	if query.Size <= 0 {
		query.Size = 10
	}
	c.nextID++
	id := "scroll-" + strconv.Itoa(c.nextID)
	c.scrolls[id] = &scroll{index: name, size: query.Size}
	c.page(w, id)
}

func (c *Cluster) scrollNext(w http.ResponseWriter, _ map[string]string, _ *http.Request, body []byte) {
	var next struct {
		ScrollID string `json:"scroll_id"`
	}
	json.Unmarshal(body, &next)
	if _, ok := c.scrolls[next.ScrollID]; !ok {
		reply(w, http.StatusNotFound, map[string]string{"error": "search_context_missing_exception"})
		return
	}
	c.page(w, next.ScrollID)
}

func (c *Cluster) page(w http.ResponseWriter, id string) {
	s := c.scrolls[id]
	docs := c.indices[s.index].Docs
	end := s.pos + s.size
	if end > len(docs) {
		end = len(docs)
	}
	hits := []map[string]interface{}{}
	for i := s.pos; i < end; i++ {
		hits = append(hits, map[string]interface{}{
			"_index":  s.index,
			"_id":     fmt.Sprintf("%s-%d", s.index, i),
			"_source": docs[i],
		})
	}
	s.pos = end
	reply(w, http.StatusOK, map[string]interface{}{
		"_scroll_id": id,
		"hits":       map[string]interface{}{"hits": hits},
	})
}

func (c *Cluster) clearScroll(w http.ResponseWriter, _ map[string]string, _ *http.Request, body []byte) {
	var clear struct {
		ScrollID string `json:"scroll_id"`
	}
	json.Unmarshal(body, &clear)
	delete(c.scrolls, clear.ScrollID)
	c.cleared = append(c.cleared, clear.ScrollID)
	reply(w, http.StatusOK, map[string]bool{"succeeded": true})
}

func (c *Cluster) bulk(w http.ResponseWriter, _ map[string]string, req *http.Request, body []byte) {
	if req.Header.Get("Content-Type") != "application/x-ndjson" {
		reply(w, http.StatusNotAcceptable, map[string]string{"error": "bulk body must be ndjson"})
		return
	}
	if c.Throttle > 0 {
		c.Throttle--
		reply(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":  map[string]string{"type": "es_rejected_execution_exception"},
			"status": http.StatusTooManyRequests,
		})
		return
	}
	var items []map[string]interface{}
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var action struct {
			Index struct {
				Name string `json:"_index"`
			} `json:"index"`
		}
		if err := json.Unmarshal(sc.Bytes(), &action); err != nil || !sc.Scan() {
			reply(w, http.StatusBadRequest, map[string]string{"error": "malformed bulk body"})
			return
		}
		idx, ok := c.indices[action.Index.Name]
		if !ok {
			idx = &Index{}
			c.indices[action.Index.Name] = idx
		}
		idx.Docs = append(idx.Docs, json.RawMessage(append([]byte(nil), sc.Bytes()...)))
		items = append(items, map[string]interface{}{"index": map[string]interface{}{"status": http.StatusCreated}})
	}
	if c.BulkErrors && len(items) > 0 {
		items[0] = map[string]interface{}{"index": map[string]interface{}{
			"status": http.StatusBadRequest,
			"error":  map[string]string{"type": "mapper_parsing_exception"},
		}}
	}
	reply(w, http.StatusOK, map[string]interface{}{"took": 1, "errors": c.BulkErrors, "items": items})
}
