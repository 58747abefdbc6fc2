package central

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// DeploymentID is the opaque token Central hands back for an
// uploaded bundle.
type DeploymentID string

type DeploymentState string

const (
	StateUnknown    DeploymentState = "UNKNOWN"
	StatePending    DeploymentState = "PENDING"
	StateValidating DeploymentState = "VALIDATING"
	StateValidated  DeploymentState = "VALIDATED"
	StatePublishing DeploymentState = "PUBLISHING"
	StatePublished  DeploymentState = "PUBLISHED"
	StateFailed     DeploymentState = "FAILED"
)

// ParseState normalises a state as reported by Central. Anything it
// doesn't recognise is UNKNOWN, which callers treat like any other
// in-progress state.
func ParseState(s string) DeploymentState {
	switch st := DeploymentState(strings.ToUpper(strings.TrimSpace(s))); st {
	case StatePending, StateValidating, StateValidated, StatePublishing, StatePublished, StateFailed:
		return st
	}
	return StateUnknown
}

// Terminal reports whether polling should stop at this state.
func (s DeploymentState) Terminal() bool {
	return s == StatePublished || s == StateFailed
}

func (s *DeploymentState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseState(str)
	return nil
}

// DeploymentErrors is the flattened list of validation failures for a
// FAILED deployment. Central reports these either as a plain array or
// as an object keyed by component (usually a purl); both decode to a
// list of strings, object entries sorted by key.
type DeploymentErrors []string

func (e *DeploymentErrors) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = flattenErrors("", raw)
	return nil
}

func flattenErrors(prefix string, v interface{}) DeploymentErrors {
	var out DeploymentErrors
	switch v := v.(type) {
	case nil:
	case string:
		out = append(out, withPrefix(prefix, v))
	case []interface{}:
		for _, item := range v {
			out = append(out, flattenErrors(prefix, item)...)
		}
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out = append(out, flattenErrors(k, v[k])...)
		}
	default:
		out = append(out, withPrefix(prefix, fmt.Sprint(v)))
	}
	return out
}

func withPrefix(prefix, msg string) string {
	if prefix == "" {
		return msg
	}
	return prefix + ": " + msg
}

// DeploymentStatus is what Central reports for one deployment, from
// either the status or the list endpoint.
type DeploymentStatus struct {
	ID     DeploymentID     `json:"deploymentId"`
	Name   string           `json:"deploymentName,omitempty"`
	State  DeploymentState  `json:"deploymentState"`
	Purls  []string         `json:"purls,omitempty"`
	Errors DeploymentErrors `json:"errors,omitempty"`
}
