package github

import (
	"errors"
	"testing"
)

func TestClassify(t *testing.T) {
	events := []string{"pull_request", "push", "ping", "issues", "pull_request_review", ""}
	actions := []string{"opened", "synchronize", "reopened", "closed", "edited", "labeled", ""}

	for _, ev := range events {
		for _, action := range actions {
			want := Ignore
			if ev == "pull_request" && (action == "opened" || action == "synchronize" || action == "reopened") {
				want = Process
			}
			if got := Classify(ev, action); got != want {
				t.Errorf("Classify(%q, %q) = %v, want %v", ev, action, got, want)
			}
		}
	}
}

func TestRepositoryID(t *testing.T) {
	tests := []struct {
		name    string
		event   InboundEvent
		want    string
		wantErr bool
	}{
		{
			name:  "header wins",
			event: InboundEvent{TargetID: "7", Payload: []byte(`{"repository":{"id":42}}`)},
			want:  "7",
		},
		{
			name:  "peeked from payload",
			event: InboundEvent{Payload: []byte(`{"action":"opened","repository":{"id":42,"name":"app"}}`)},
			want:  "42",
		},
		{
			name:  "large id keeps precision",
			event: InboundEvent{Payload: []byte(`{"repository":{"id":9007199254740993}}`)},
			want:  "9007199254740993",
		},
		{
			name:    "no repository",
			event:   InboundEvent{Payload: []byte(`{"zen":"Keep it logically awesome."}`)},
			wantErr: true,
		},
		{
			name:    "not json",
			event:   InboundEvent{Payload: []byte(`payload=%7B%7D`)},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RepositoryID(&tt.event)
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedEvent) {
					t.Errorf("error = %v, want ErrMalformedEvent", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("RepositoryID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParsePullRequestEvent(t *testing.T) {
	payload := []byte(`{
		"action": "synchronize",
		"number": 7,
		"pull_request": {"number": 7, "title": "Fix bug", "html_url": "https://github.com/octo/app/pull/7", "head": {"sha": "abc123"}},
		"repository": {"id": 42, "name": "app", "owner": {"login": "octo"}},
		"sender": {"login": "octocat"}
	}`)

	ev, err := ParsePullRequestEvent(payload)
	if err != nil {
		t.Fatalf("ParsePullRequestEvent error: %v", err)
	}
	want := PullRequestEvent{
		Action:  "synchronize",
		RepoID:  "42",
		Owner:   "octo",
		Repo:    "app",
		Number:  7,
		HeadSHA: "abc123",
		Title:   "Fix bug",
		HTMLURL: "https://github.com/octo/app/pull/7",
		Sender:  "octocat",
	}
	if *ev != want {
		t.Errorf("got %+v, want %+v", *ev, want)
	}
}

func TestParsePullRequestEvent_Malformed(t *testing.T) {
	payloads := map[string]string{
		"not json":  `{`,
		"no number": `{"action":"opened","repository":{"id":42}}`,
		"no repo":   `{"action":"opened","number":3}`,
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			if _, err := ParsePullRequestEvent([]byte(payload)); !errors.Is(err, ErrMalformedEvent) {
				t.Errorf("error = %v, want ErrMalformedEvent", err)
			}
		})
	}
}

func TestParseAction(t *testing.T) {
	action, err := ParseAction([]byte(`{"zen":"hi","hook_id":1}`))
	if err != nil {
		t.Fatalf("ParseAction error: %v", err)
	}
	if action != "" {
		t.Errorf("action = %q, want empty", action)
	}
	if _, err := ParseAction([]byte(`nope`)); !errors.Is(err, ErrMalformedEvent) {
		t.Errorf("error = %v, want ErrMalformedEvent", err)
	}
}
