// Package github talks to the GitHub REST API and decodes webhook deliveries.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// Client creates per-token sessions against one GitHub API endpoint.
type Client struct {
	baseURL *url.URL
}

// NewClient creates a client for the API at apiURL. An empty apiURL selects
// the public github.com API.
func NewClient(apiURL string) (*Client, error) {
	if apiURL == "" {
		return &Client{}, nil
	}
	if !strings.HasSuffix(apiURL, "/") {
		apiURL += "/"
	}
	u, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", apiURL, err)
	}
	return &Client{baseURL: u}, nil
}

// Session returns an API session authenticated with token. Sessions are
// cheap and are created once per pipeline run.
func (c *Client) Session(token string) *Session {
	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)
	client := github.NewClient(tc)
	if c.baseURL != nil {
		client.BaseURL = c.baseURL
	}
	return &Session{client: client}
}

// Session wraps the GitHub API client for a single credential.
type Session struct {
	client *github.Client
}

// InlineComment is a review comment anchored to a line on the new side of the diff.
type InlineComment struct {
	Path string
	Line int
	Body string
}

// RepoInfo contains basic repository information.
type RepoInfo struct {
	ID            int64
	Owner         string
	Name          string
	FullName      string
	Private       bool
	DefaultBranch string
	URL           string
}

// HookInfo describes a repository webhook.
type HookInfo struct {
	ID     int64
	URL    string
	Events []string
	Active bool
}

// FetchDiff returns the unified diff of a pull request.
func (s *Session) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	diff, _, err := s.client.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", fmt.Errorf("failed to fetch diff for %s/%s#%d: %w", owner, repo, number, err)
	}
	return diff, nil
}

// CreateIssueComment posts a plain comment on the pull request conversation.
func (s *Session) CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := s.client.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{
		Body: github.String(body),
	})
	if err != nil {
		return fmt.Errorf("failed to comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// CreateReview submits a COMMENT review with an optional body and inline
// comments on the RIGHT side of the diff.
func (s *Session) CreateReview(ctx context.Context, owner, repo string, number int, body string, comments []InlineComment) error {
	req := &github.PullRequestReviewRequest{
		Event: github.String("COMMENT"),
	}
	if body != "" {
		req.Body = github.String(body)
	}
	for _, c := range comments {
		req.Comments = append(req.Comments, &github.DraftReviewComment{
			Path: github.String(c.Path),
			Line: github.Int(c.Line),
			Side: github.String("RIGHT"),
			Body: github.String(c.Body),
		})
	}

	if _, _, err := s.client.PullRequests.CreateReview(ctx, owner, repo, number, req); err != nil {
		return fmt.Errorf("failed to create review on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}

// AuthenticatedLogin returns the login the session's token belongs to.
func (s *Session) AuthenticatedLogin(ctx context.Context) (string, error) {
	u, _, err := s.client.Users.Get(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to get authenticated user: %w", err)
	}
	return u.GetLogin(), nil
}

// GetRepository retrieves information about a repository.
func (s *Session) GetRepository(ctx context.Context, owner, repo string) (*RepoInfo, error) {
	r, _, err := s.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository: %w", err)
	}

	return &RepoInfo{
		ID:            r.GetID(),
		Owner:         r.GetOwner().GetLogin(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Private:       r.GetPrivate(),
		DefaultBranch: r.GetDefaultBranch(),
		URL:           r.GetHTMLURL(),
	}, nil
}

// CreateHook installs a pull_request webhook that delivers JSON to hookURL
// signed with secret.
func (s *Session) CreateHook(ctx context.Context, owner, repo, hookURL, secret string) (int64, error) {
	hook := &github.Hook{
		Config: map[string]interface{}{
			"url":          hookURL,
			"content_type": "json",
			"secret":       secret,
			"insecure_ssl": "0",
		},
		Events: []string{EventPullRequest},
		Active: github.Bool(true),
	}

	created, _, err := s.client.Repositories.CreateHook(ctx, owner, repo, hook)
	if err != nil {
		return 0, fmt.Errorf("failed to create hook on %s/%s: %w", owner, repo, err)
	}
	return created.GetID(), nil
}

// ListHooks returns every webhook configured on the repository.
func (s *Session) ListHooks(ctx context.Context, owner, repo string) ([]HookInfo, error) {
	var hooks []HookInfo
	opts := &github.ListOptions{PerPage: 100}
	for {
		page, resp, err := s.client.Repositories.ListHooks(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list hooks on %s/%s: %w", owner, repo, err)
		}
		for _, h := range page {
			info := HookInfo{
				ID:     h.GetID(),
				Events: h.Events,
				Active: h.GetActive(),
			}
			if u, ok := h.Config["url"].(string); ok {
				info.URL = u
			}
			hooks = append(hooks, info)
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return hooks, nil
}

// DeleteHook removes a webhook by id.
func (s *Session) DeleteHook(ctx context.Context, owner, repo string, id int64) error {
	if _, err := s.client.Repositories.DeleteHook(ctx, owner, repo, id); err != nil {
		return fmt.Errorf("failed to delete hook %d on %s/%s: %w", id, owner, repo, err)
	}
	return nil
}

// DeleteHooksForURL removes every webhook that delivers to hookURL and
// returns how many were removed.
func (s *Session) DeleteHooksForURL(ctx context.Context, owner, repo, hookURL string) (int, error) {
	hooks, err := s.ListHooks(ctx, owner, repo)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, h := range hooks {
		if h.URL != hookURL {
			continue
		}
		if err := s.DeleteHook(ctx, owner, repo, h.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
