// Package publisher posts generated review output to a pull request.
package publisher

import (
	"context"
	"fmt"
	"strings"

	"github.com/Paribesh01/pullpal/internal/github"
	"github.com/Paribesh01/pullpal/internal/review"
	"github.com/Paribesh01/pullpal/pkg/logger"
)

// DefaultBatchThreshold is the comment count above which inline comments are
// folded into a single review body.
const DefaultBatchThreshold = 20

// API is the subset of the GitHub session used for publishing.
type API interface {
	CreateIssueComment(ctx context.Context, owner, repo string, number int, body string) error
	CreateReview(ctx context.Context, owner, repo string, number int, body string, comments []github.InlineComment) error
}

// Publisher turns review output into GitHub API calls.
type Publisher struct {
	api       API
	threshold int
}

// New creates a Publisher. A threshold below 1 selects DefaultBatchThreshold.
func New(api API, threshold int) *Publisher {
	if threshold < 1 {
		threshold = DefaultBatchThreshold
	}
	return &Publisher{api: api, threshold: threshold}
}

// Result counts what reached GitHub.
type Result struct {
	SummaryPosted bool
	Batched       bool
	Posted        int // comments delivered, inline or inside a review body
	Unanchored    int // comments without a usable file/line, sent in one review body
	Failed        int
}

// PublishSummary posts a non-empty summary as a plain pull request comment.
func (p *Publisher) PublishSummary(ctx context.Context, pr review.PullRequest, summary string) (bool, error) {
	if strings.TrimSpace(summary) == "" {
		return false, nil
	}
	if err := p.api.CreateIssueComment(ctx, pr.Owner, pr.Repo, pr.Number, summary); err != nil {
		return false, fmt.Errorf("failed to publish summary: %w", err)
	}
	return true, nil
}

// PublishComments posts the comments. Above the batch threshold they are sent
// as one review body; otherwise each anchored comment becomes its own
// single-comment review, in order, and the unanchored ones follow together in
// one review body. A failed comment does not stop the rest; failures are
// returned together as a *PublishError.
func (p *Publisher) PublishComments(ctx context.Context, pr review.PullRequest, comments []review.Comment) (Result, error) {
	var res Result
	if len(comments) == 0 {
		return res, nil
	}

	if len(comments) > p.threshold {
		res.Batched = true
		if err := p.api.CreateReview(ctx, pr.Owner, pr.Repo, pr.Number, FormatBatch(comments), nil); err != nil {
			res.Failed = len(comments)
			return res, &PublishError{Failures: []Failure{{Index: -1, Err: err}}}
		}
		res.Posted = len(comments)
		return res, nil
	}

	var failures []Failure
	var loose []review.Comment
	var looseIdx []int
	for i, c := range comments {
		if !c.Anchored() {
			loose = append(loose, c)
			looseIdx = append(looseIdx, i)
			continue
		}
		inline := []github.InlineComment{{Path: c.File, Line: c.Line, Body: c.Body}}
		if err := p.api.CreateReview(ctx, pr.Owner, pr.Repo, pr.Number, c.Body, inline); err != nil {
			logger.Warn().
				Err(err).
				Str("pull_request", pr.String()).
				Str("file", c.File).
				Int("line", c.Line).
				Msg("Failed to publish review comment, continuing")
			failures = append(failures, Failure{Index: i, Comment: c, Err: err})
			continue
		}
		res.Posted++
	}

	if len(loose) > 0 {
		res.Unanchored = len(loose)
		if err := p.api.CreateReview(ctx, pr.Owner, pr.Repo, pr.Number, FormatBatch(loose), nil); err != nil {
			logger.Warn().
				Err(err).
				Str("pull_request", pr.String()).
				Int("comments", len(loose)).
				Msg("Failed to publish unanchored comments")
			for j, c := range loose {
				failures = append(failures, Failure{Index: looseIdx[j], Comment: c, Err: err})
			}
		} else {
			res.Posted += len(loose)
		}
	}

	res.Failed = len(failures)
	if len(failures) > 0 {
		return res, &PublishError{Failures: failures}
	}
	return res, nil
}

// FormatBatch renders comments as one review body, one block per comment.
// The line is left out when it is not a valid 1-based line.
func FormatBatch(comments []review.Comment) string {
	blocks := make([]string, len(comments))
	for i, c := range comments {
		if c.Line < 1 {
			blocks[i] = fmt.Sprintf("File: %s\n%s", c.File, c.Body)
			continue
		}
		blocks[i] = fmt.Sprintf("File: %s, Line: %d\n%s", c.File, c.Line, c.Body)
	}
	return strings.Join(blocks, "\n\n")
}

// Failure is one comment that could not be published. Index is -1 when the
// whole batch failed.
type Failure struct {
	Index   int
	Comment review.Comment
	Err     error
}

// PublishError reports comments that did not reach GitHub.
type PublishError struct {
	Failures []Failure
}

func (e *PublishError) Error() string {
	if len(e.Failures) == 1 && e.Failures[0].Index < 0 {
		return fmt.Sprintf("failed to publish batched review: %v", e.Failures[0].Err)
	}
	return fmt.Sprintf("failed to publish %d review comment(s): %v", len(e.Failures), e.Failures[0].Err)
}

// Unwrap exposes every underlying error to errors.Is and errors.As.
func (e *PublishError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}
