package review

import (
	"context"
	"fmt"

	"github.com/Paribesh01/pullpal/pkg/logger"
)

// Model generates text for a prompt. An empty string is a valid answer.
type Model interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Generator asks a Model for a summary and for structured feedback on a diff.
type Generator struct {
	model  Model
	redact bool
}

// Option configures a Generator.
type Option func(*Generator)

// WithRedaction masks likely secrets in the diff before it leaves the process.
func WithRedaction(enabled bool) Option {
	return func(g *Generator) {
		g.redact = enabled
	}
}

// NewGenerator creates a Generator backed by model.
func NewGenerator(model Model, opts ...Option) *Generator {
	g := &Generator{model: model}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Summarize returns a prose summary of the diff. Fences are stripped and an
// empty model answer yields "".
func (g *Generator) Summarize(ctx context.Context, diff string, pr PullRequest) (string, error) {
	text, err := g.model.Generate(ctx, SummaryPrompt(g.prepare(diff)))
	if err != nil {
		return "", fmt.Errorf("failed to generate summary for %s: %w", pr, err)
	}
	return StripFences(text), nil
}

// Feedback returns line comments for the diff. Output that cannot be decoded
// is reported through Feedback.Unparsable, not as an error.
func (g *Generator) Feedback(ctx context.Context, diff string, pr PullRequest) (Feedback, error) {
	text, err := g.model.Generate(ctx, FeedbackPrompt(g.prepare(diff)))
	if err != nil {
		return Feedback{}, fmt.Errorf("failed to generate feedback for %s: %w", pr, err)
	}

	fb := ParseFeedback(text)
	if fb.Unparsable {
		logger.Warn().
			Str("pull_request", pr.String()).
			Int("response_bytes", len(text)).
			Msg("Model feedback was not valid JSON, continuing with no comments")
	}
	return fb, nil
}

func (g *Generator) prepare(diff string) string {
	if g.redact {
		return Redact(diff)
	}
	return diff
}
