package publish

import (
	"fmt"
	"strings"
	"time"

	"github.com/infinilabs/cococi/pkg/central"
)

// UploadError means the bundle never made it to Central; no
// deployment exists.
type UploadError struct {
	Err error
}

func (e *UploadError) Error() string { return "upload failed: " + e.Err.Error() }
func (e *UploadError) Unwrap() error { return e.Err }

// TransientStatusError is a status check that failed, as opposed to
// one that reported a failed deployment. The loop counts and retries
// these.
type TransientStatusError struct {
	ID  central.DeploymentID
	Err error
}

func (e *TransientStatusError) Error() string {
	return fmt.Sprintf("checking status of deployment %s: %s", e.ID, e.Err)
}
func (e *TransientStatusError) Unwrap() error { return e.Err }

// DeploymentFailedError is Central reporting the deployment FAILED.
type DeploymentFailedError struct {
	ID     central.DeploymentID
	Errors central.DeploymentErrors
}

func (e *DeploymentFailedError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("deployment %s failed", e.ID)
	}
	return fmt.Sprintf("deployment %s failed: %s", e.ID, strings.Join(e.Errors, "; "))
}

type TimeoutError struct {
	ID      central.DeploymentID
	Elapsed time.Duration
	Timeout time.Duration
	State   central.DeploymentState
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("deployment %s still %s after %s (timeout %s)", e.ID, e.State, e.Elapsed.Round(time.Millisecond), e.Timeout)
}

type TooManyErrorsError struct {
	ID    central.DeploymentID
	Count int
	Last  error
}

func (e *TooManyErrorsError) Error() string {
	return fmt.Sprintf("giving up on deployment %s after %d consecutive status errors: %v", e.ID, e.Count, e.Last)
}
func (e *TooManyErrorsError) Unwrap() error { return e.Last }

// CleanupError is a drop that didn't work. It is reported, never
// allowed to replace the reason the run failed.
type CleanupError struct {
	ID  central.DeploymentID
	Err error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("dropping deployment %s: %s", e.ID, e.Err)
}
func (e *CleanupError) Unwrap() error { return e.Err }
