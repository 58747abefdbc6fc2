package http

import (
	"net/url"
	"path"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
)

func NewCentralRouter() *mux.Router {
	r := mux.NewRouter()

	r.NewRoute().Name(Upload).Methods("POST").Path("/upload")
	r.NewRoute().Name(DeploymentStatus).Methods("POST").Path("/status")
	r.NewRoute().Name(DropDeployment).Methods("DELETE").Path("/deployment/{id}")
	r.NewRoute().Name(ListDeployments).Methods("GET").Path("/deployments")

	return r
}

// NewSearchRouter returns the routes of the search engine API. The
// fixed underscore-prefixed paths are registered before the
// index-named ones so that they win when matching requests.
func NewSearchRouter() *mux.Router {
	r := mux.NewRouter()

	r.NewRoute().Name(ClusterHealth).Methods("GET").Path("/_cluster/health")
	r.NewRoute().Name(CatIndices).Methods("GET").Path("/_cat/indices/{pattern}")
	r.NewRoute().Name(ScrollNext).Methods("POST").Path("/_search/scroll")
	r.NewRoute().Name(ClearScroll).Methods("DELETE").Path("/_search/scroll")
	r.NewRoute().Name(Bulk).Methods("POST").Path("/_bulk")

	r.NewRoute().Name(SearchScroll).Methods("POST").Path("/{index}/_search")
	r.NewRoute().Name(GetIndex).Methods("GET").Path("/{index}")
	r.NewRoute().Name(CreateIndex).Methods("PUT").Path("/{index}")
	r.NewRoute().Name(DeleteIndex).Methods("DELETE").Path("/{index}")

	return r
}

// MakeURL builds the URL for the named route relative to endpoint.
// urlParams are key/value pairs; keys naming a variable in the route's
// path template fill that variable, the rest become query parameters.
func MakeURL(endpoint string, router *mux.Router, routeName string, urlParams ...string) (*url.URL, error) {
	if len(urlParams)%2 != 0 {
		panic("urlParams must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}
	route := router.Get(routeName)
	if route == nil {
		return nil, errors.New("no route with name " + routeName)
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route template %s", routeName)
	}

	var pathVars []string
	v := url.Values{}
	for i := 0; i < len(urlParams); i += 2 {
		k, val := urlParams[i], urlParams[i+1]
		if strings.Contains(tpl, "{"+k+"}") || strings.Contains(tpl, "{"+k+":") {
			pathVars = append(pathVars, k, val)
			continue
		}
		v.Add(k, val)
	}

	routeURL, err := route.URLPath(pathVars...)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	endpointURL.Path = path.Join(endpointURL.Path, routeURL.Path)
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}
