package httperror

import (
	"fmt"
	"net/http"
	"strings"
)

// When an API call gets an unexpected response, we may want to
// distinguish among the causes by status code. This type is the base
// error in that case, retrievable with errors.Cause(err).
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func New(resp *http.Response, body []byte) *APIError {
	return &APIError{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Body:       strings.TrimSpace(string(body)),
	}
}

func (err *APIError) Error() string {
	status := err.Status
	if status == "" {
		status = fmt.Sprintf("%d %s", err.StatusCode, http.StatusText(err.StatusCode))
	}
	if err.Body == "" {
		return status
	}
	return fmt.Sprintf("%s (%s)", status, err.Body)
}

// Does this error mean the API service is unavailable?
func (err *APIError) IsUnavailable() bool {
	switch err.StatusCode {
	case 502, 503, 504:
		return true
	}
	return false
}

// Is the thing asked for missing?
func (err *APIError) IsMissing() bool {
	return err.StatusCode == http.StatusNotFound
}
