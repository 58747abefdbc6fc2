package http

import (
	"encoding/base64"
	"net/http"
)

// Credentials sets whatever authorization a remote API expects on an
// outgoing request.
type Credentials interface {
	Set(req *http.Request)
}

// UserToken is the Central publisher's flavour of basic auth: the
// usual base64 user:pass pair, under the "UserToken" scheme.
type UserToken struct {
	Username string
	Password string
}

func (t UserToken) Set(req *http.Request) {
	if t.Username == "" && t.Password == "" {
		return
	}
	req.Header.Set("Authorization", "UserToken "+encodePair(t.Username, t.Password))
}

type BasicAuth struct {
	Username string
	Password string
}

func (b BasicAuth) Set(req *http.Request) {
	if b.Username == "" && b.Password == "" {
		return
	}
	req.Header.Set("Authorization", "Basic "+encodePair(b.Username, b.Password))
}

func encodePair(user, pass string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
}
