package http

import (
	"errors"

	cocoerr "github.com/infinilabs/cococi/pkg/errors"
)

var ErrorUnauthorized = &cocoerr.Error{
	Type: cocoerr.User,
	Help: `The request failed authentication

This most likely means you have missing or incorrect credentials.
For the Central publisher, set the environment variables
OSSRH_USERNAME and OSSRH_PASSWORD (a user token is preferred), or use
--ossrh-username and --ossrh-password. For the search engine,
set ES_USERNAME and ES_PASSWORD.
`,
	Err: errors.New("request failed authentication"),
}
