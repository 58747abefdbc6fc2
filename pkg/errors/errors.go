package errors

import (
	"errors"
)

// Error is an error with a message meant for the person running the
// command. Type says whose fault the error is; i.e., is this error:
//  - a problem with a remote service, so worth trying again later?
//  - not going to work until the user takes some other action, e.g., supplying credentials?
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string
	// the underlying error, logged and printed as the first line
	Err error
}

func (e *Error) Error() string {
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Type string

const (
	// The request looked fine, but the remote service let us down
	Server Type = "server"
	// The command can't succeed until something in the environment
	// changes (credentials, files, the project layout)
	User Type = "user"
)

// Help returns the help text of the first *Error in err's chain, or
// the empty string if there is none.
func Help(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Help
	}
	return ""
}

// CoverAllError wraps err for display when there is no specific help
// for it.
func CoverAllError(err error) *Error {
	return &Error{
		Type: Server,
		Err:  err,
		Help: `We don't have a specific help message for the error above.

Re-run with --log-format=json for structured logs, and check the
remote service's status before trying again.
`,
	}
}
