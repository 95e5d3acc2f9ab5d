// Package pipeline runs the review of a single webhook delivery from
// signature check to the stored review record.
package pipeline

import (
	"time"

	"github.com/Paribesh01/pullpal/internal/github"
	"github.com/Paribesh01/pullpal/internal/publisher"
	"github.com/Paribesh01/pullpal/internal/review"
	"github.com/Paribesh01/pullpal/internal/storage"
)

// State is a step of a run. Runs only move forward.
type State string

const (
	StateReceived    State = "received"
	StateVerified    State = "verified"
	StateClassified  State = "classified"
	StateDiffFetched State = "diff-fetched"
	StateReviewed    State = "reviewed"
	StatePublished   State = "published"
	StateRecorded    State = "recorded"
	StateDone        State = "done"

	StateRejected     State = "rejected"
	StateIgnored      State = "ignored"
	StateUnregistered State = "unregistered"
	StateDuplicate    State = "duplicate"
	StateThrottled    State = "throttled"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transition can follow s.
func (s State) Terminal() bool {
	switch s {
	case StateDone, StateRejected, StateIgnored, StateUnregistered, StateDuplicate, StateThrottled, StateFailed:
		return true
	}
	return false
}

// Run is the record of one pipeline execution.
type Run struct {
	ID         string
	DeliveryID string
	EventType  string

	State   State
	History []State
	Err     error

	Repo     *storage.Repo
	Event    *github.PullRequestEvent
	Summary  string
	Feedback review.Feedback
	Publish  publisher.Result
	Record   *storage.Review

	StartedAt  time.Time
	FinishedAt time.Time
}

// PullRequest returns the pull request the run is about, if known. Owner and
// name come from the stored registration, never from the payload.
func (r *Run) PullRequest() review.PullRequest {
	var pr review.PullRequest
	if r.Repo != nil {
		pr.Owner, pr.Repo = r.Repo.Owner, r.Repo.Name
	}
	if r.Event != nil {
		pr.Number = r.Event.Number
	}
	return pr
}

// Duration returns how long the run took, or zero while it is in flight.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

func (r *Run) transition(s State) {
	r.State = s
	r.History = append(r.History, s)
}
