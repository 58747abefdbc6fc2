package publish

import (
	"time"

	"github.com/infinilabs/cococi/pkg/central"
)

// Phase is where a publish run is up to. Uploading and Polling are
// the working phases; every other phase is terminal.
type Phase int

const (
	Uploading Phase = iota
	Polling
	Published
	Failed
	TimedOut
	TooManyErrors
	UploadFailed
)

func (p Phase) String() string {
	switch p {
	case Uploading:
		return "uploading"
	case Polling:
		return "polling"
	case Published:
		return "published"
	case Failed:
		return "failed"
	case TimedOut:
		return "timed_out"
	case TooManyErrors:
		return "too_many_errors"
	case UploadFailed:
		return "upload_failed"
	}
	return "unknown"
}

func (p Phase) Terminal() bool {
	return p != Uploading && p != Polling
}

// ExitCode is the process exit code for a run ending in this phase.
func (p Phase) ExitCode() int {
	if p == Published {
		return 0
	}
	return 1
}

// Action is what the loop does after a transition.
type Action int

const (
	// Poll the status endpoint straight away.
	Poll Action = iota
	// Wait out the poll interval, then poll.
	Wait
	// Drop the deployment, then stop.
	Drop
	// Stop; there is nothing to clean up.
	Finish
)

func (a Action) String() string {
	switch a {
	case Poll:
		return "poll"
	case Wait:
		return "wait"
	case Drop:
		return "drop"
	case Finish:
		return "finish"
	}
	return "unknown"
}

// Loop is the whole of the publish loop's mutable state.
type Loop struct {
	Phase             Phase
	ConsecutiveErrors int
}

// PollResult is one status check as seen by the loop. Err is set for
// a transient failure, in which case State is meaningless. Elapsed is
// measured from the start of the run.
type PollResult struct {
	State   central.DeploymentState
	Err     error
	Elapsed time.Duration
}

// Policy holds the limits that end a run which never reaches a
// terminal deployment state.
type Policy struct {
	Timeout              time.Duration
	MaxConsecutiveErrors int
}

func (p Policy) maxErrors() int {
	if p.MaxConsecutiveErrors < 1 {
		return 1
	}
	return p.MaxConsecutiveErrors
}

// Uploaded moves a run out of Uploading. A failed upload leaves no
// deployment behind, so there is nothing to drop.
func (p Policy) Uploaded(err error) (Loop, Action) {
	if err != nil {
		return Loop{Phase: UploadFailed}, Finish
	}
	return Loop{Phase: Polling}, Poll
}

// Next is the transition taken on a status check. A deployment state
// reported by the server is honoured before the run's own limits; a
// successful check resets the error streak.
func (p Policy) Next(l Loop, r PollResult) (Loop, Action) {
	if l.Phase != Polling {
		return l, Finish
	}

	if r.Err != nil {
		l.ConsecutiveErrors++
		if l.ConsecutiveErrors >= p.maxErrors() {
			l.Phase = TooManyErrors
			return l, Drop
		}
	} else {
		l.ConsecutiveErrors = 0
		switch r.State {
		case central.StatePublished:
			l.Phase = Published
			return l, Finish
		case central.StateFailed:
			l.Phase = Failed
			return l, Drop
		}
	}

	if p.Timeout > 0 && r.Elapsed > p.Timeout {
		l.Phase = TimedOut
		return l, Drop
	}
	return l, Wait
}
