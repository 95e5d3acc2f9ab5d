package github

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Webhook headers read by the receiver.
const (
	HeaderEvent      = "X-GitHub-Event"
	HeaderDelivery   = "X-GitHub-Delivery"
	HeaderSignature  = "X-Hub-Signature-256"
	HeaderHookTarget = "X-GitHub-Hook-Installation-Target-ID"
)

// EventPullRequest is the only event type that starts a review.
const EventPullRequest = "pull_request"

// ErrMalformedEvent is returned when a verified payload cannot be decoded.
var ErrMalformedEvent = errors.New("malformed event payload")

// InboundEvent is a webhook delivery exactly as it arrived.
type InboundEvent struct {
	Type       string
	DeliveryID string
	Signature  string
	TargetID   string // hook installation target, usually the repository id
	Payload    []byte // raw body, the only input to signature verification
	ReceivedAt time.Time
}

// PullRequestEvent is the part of a pull_request payload the pipeline needs.
type PullRequestEvent struct {
	Action  string
	RepoID  string
	Owner   string
	Repo    string
	Number  int
	HeadSHA string
	Title   string
	HTMLURL string
	Sender  string
}

// Decision is the outcome of classifying an event.
type Decision int

const (
	Ignore Decision = iota
	Process
)

func (d Decision) String() string {
	if d == Process {
		return "process"
	}
	return "ignore"
}

var reviewActions = map[string]bool{
	"opened":      true,
	"synchronize": true,
	"reopened":    true,
}

// Classify decides whether an event should be reviewed. Only pull_request
// events that open, reopen or push to a pull request are processed.
func Classify(eventType, action string) Decision {
	if eventType == EventPullRequest && reviewActions[action] {
		return Process
	}
	return Ignore
}

// RepositoryID returns the repository id used to select the signing secret.
// The hook target header wins; otherwise repository.id is peeked from the
// payload without interpreting anything else.
func RepositoryID(ev *InboundEvent) (string, error) {
	if ev.TargetID != "" {
		return ev.TargetID, nil
	}
	return PeekRepositoryID(ev.Payload)
}

// PeekRepositoryID extracts repository.id from an unverified payload.
func PeekRepositoryID(payload []byte) (string, error) {
	var peek struct {
		Repository *struct {
			ID json.Number `json:"id"`
		} `json:"repository"`
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	if err := dec.Decode(&peek); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if peek.Repository == nil || peek.Repository.ID == "" {
		return "", fmt.Errorf("%w: no repository id", ErrMalformedEvent)
	}
	return peek.Repository.ID.String(), nil
}

// ParseAction returns only the top-level action of a verified payload.
// Events such as ping carry none, which is not an error.
func ParseAction(payload []byte) (string, error) {
	var envelope struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return envelope.Action, nil
}

// ParsePullRequestEvent decodes a verified pull_request payload.
func ParsePullRequestEvent(payload []byte) (*PullRequestEvent, error) {
	var p struct {
		Action      string `json:"action"`
		Number      int    `json:"number"`
		PullRequest struct {
			Number  int    `json:"number"`
			Title   string `json:"title"`
			HTMLURL string `json:"html_url"`
			Head    struct {
				SHA string `json:"sha"`
			} `json:"head"`
		} `json:"pull_request"`
		Repository struct {
			ID    int64  `json:"id"`
			Name  string `json:"name"`
			Owner struct {
				Login string `json:"login"`
			} `json:"owner"`
		} `json:"repository"`
		Sender struct {
			Login string `json:"login"`
		} `json:"sender"`
	}

	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	number := p.PullRequest.Number
	if number == 0 {
		number = p.Number
	}
	if number <= 0 {
		return nil, fmt.Errorf("%w: no pull request number", ErrMalformedEvent)
	}
	if p.Repository.ID == 0 {
		return nil, fmt.Errorf("%w: no repository id", ErrMalformedEvent)
	}

	return &PullRequestEvent{
		Action:  p.Action,
		RepoID:  strconv.FormatInt(p.Repository.ID, 10),
		Owner:   p.Repository.Owner.Login,
		Repo:    p.Repository.Name,
		Number:  number,
		HeadSHA: p.PullRequest.Head.SHA,
		Title:   p.PullRequest.Title,
		HTMLURL: p.PullRequest.HTMLURL,
		Sender:  p.Sender.Login,
	}, nil
}
