// Package centraltest provides a scripted stand-in for the Central
// publisher API, to be plugged into an http.Client as its transport.
package centraltest

import (
	"bytes"
	"io/ioutil"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	transport "github.com/infinilabs/cococi/pkg/http"
)

// Response is one scripted reply. A non-nil Err is returned from
// RoundTrip in place of a response, as a network failure would be.
type Response struct {
	Status int
	Body   string
	Err    error
}

// Call records a request the transport has seen.
type Call struct {
	Route  string
	Vars   map[string]string
	Header http.Header
	Body   []byte
}

// Transport answers requests by matching them against the Central
// routes and replaying the responses scripted for that route, in
// order. The last scripted response is repeated once the others are
// used up; unscripted routes get a 404.
type Transport struct {
	mu      sync.Mutex
	router  *mux.Router
	scripts map[string][]Response
	history []Call
}

func New() *Transport {
	return &Transport{
		router:  transport.NewCentralRouter(),
		scripts: map[string][]Response{},
	}
}

// On appends responses to the script for the named route.
func (t *Transport) On(route string, responses ...Response) *Transport {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.scripts[route] = append(t.scripts[route], responses...)
	return t
}

func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = ioutil.ReadAll(req.Body)
		req.Body.Close()
	}

	var matched mux.RouteMatch
	if !t.router.Match(req, &matched) || matched.Route == nil {
		return respond(req, Response{Status: http.StatusNotFound, Body: "404 page not found"})
	}
	name := matched.Route.GetName()

	t.mu.Lock()
	t.history = append(t.history, Call{Route: name, Vars: matched.Vars, Header: req.Header.Clone(), Body: body})
	script := t.scripts[name]
	var r Response
	switch len(script) {
	case 0:
		r = Response{Status: http.StatusNotFound, Body: "404 page not found"}
	case 1:
		r = script[0]
	default:
		r = script[0]
		t.scripts[name] = script[1:]
	}
	t.mu.Unlock()

	if r.Err != nil {
		return nil, r.Err
	}
	return respond(req, r)
}

func respond(req *http.Request, r Response) (*http.Response, error) {
	return &http.Response{
		StatusCode: r.Status,
		Status:     http.StatusText(r.Status),
		Header:     http.Header{},
		Body:       ioutil.NopCloser(bytes.NewReader([]byte(r.Body))),
		Request:    req,
	}, nil
}

// Calls returns the requests seen for the named route.
func (t *Transport) Calls(route string) []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	var calls []Call
	for _, c := range t.history {
		if c.Route == route {
			calls = append(calls, c)
		}
	}
	return calls
}

// History returns every request seen, in order.
func (t *Transport) History() []Call {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Call(nil), t.history...)
}
