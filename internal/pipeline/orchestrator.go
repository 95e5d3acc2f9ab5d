package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Paribesh01/pullpal/internal/github"
	"github.com/Paribesh01/pullpal/internal/publisher"
	"github.com/Paribesh01/pullpal/internal/review"
	"github.com/Paribesh01/pullpal/internal/storage"
	"github.com/Paribesh01/pullpal/pkg/logger"
)

// ErrRepositoryMismatch is returned when a verified payload names a different
// repository than the registration whose secret signed it.
var ErrRepositoryMismatch = errors.New("payload repository does not match registration")

// ErrRateLimited is set on runs for a repository that exceeded its delivery
// rate.
var ErrRateLimited = errors.New("repository delivery rate exceeded")

// RepoStore resolves repository registrations.
type RepoStore interface {
	GetRepoByGitHubID(ctx context.Context, githubRepoID string) (*storage.Repo, error)
}

// UserStore resolves the credential owner of a repository.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*storage.User, error)
}

// ReviewStore persists review records.
type ReviewStore interface {
	CreateReview(ctx context.Context, r *storage.Review) error
	HasReviewForCommit(ctx context.Context, repoID int64, prNumber int, headSHA string) (bool, error)
}

// DeliveryStore claims delivery ids so redeliveries are not processed twice.
type DeliveryStore interface {
	ClaimDelivery(ctx context.Context, deliveryID string, repoID int64, prNumber int) (bool, error)
	ReleaseDelivery(ctx context.Context, deliveryID string) error
}

// GitHubAPI is the per-credential GitHub session a run uses.
type GitHubAPI interface {
	FetchDiff(ctx context.Context, owner, repo string, number int) (string, error)
	publisher.API
}

// Reviewer produces the summary and the structured feedback for a diff.
type Reviewer interface {
	Summarize(ctx context.Context, diff string, pr review.PullRequest) (string, error)
	Feedback(ctx context.Context, diff string, pr review.PullRequest) (review.Feedback, error)
}

// Limiter throttles verified deliveries per repository.
type Limiter interface {
	Allow(key string) bool
}

// Notifier is told about every run that reaches done or failed.
type Notifier interface {
	RunFinished(ctx context.Context, run *Run) error
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Repos      RepoStore
	Users      UserStore
	Reviews    ReviewStore
	Deliveries DeliveryStore
	// GitHub opens a session for the repository owner's token.
	GitHub         func(token string) GitHubAPI
	Reviewer       Reviewer
	BatchThreshold int
	Limiter        Limiter  // optional
	Notifier       Notifier // optional
}

// Orchestrator drives webhook deliveries through the review pipeline.
type Orchestrator struct {
	deps Deps
}

// New creates an Orchestrator.
func New(deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Repos == nil:
		return nil, errors.New("pipeline: repo store is required")
	case deps.Users == nil:
		return nil, errors.New("pipeline: user store is required")
	case deps.Reviews == nil:
		return nil, errors.New("pipeline: review store is required")
	case deps.Deliveries == nil:
		return nil, errors.New("pipeline: delivery store is required")
	case deps.GitHub == nil:
		return nil, errors.New("pipeline: github session factory is required")
	case deps.Reviewer == nil:
		return nil, errors.New("pipeline: reviewer is required")
	}
	return &Orchestrator{deps: deps}, nil
}

// Process runs one delivery to a terminal state. The returned error is
// non-nil exactly when the run ends rejected or failed; the Run is always
// returned.
func (o *Orchestrator) Process(ctx context.Context, ev *github.InboundEvent) (*Run, error) {
	run := &Run{
		ID:         uuid.NewString(),
		DeliveryID: ev.DeliveryID,
		EventType:  ev.Type,
		StartedAt:  time.Now(),
	}
	log := logger.With().
		Str("run_id", run.ID).
		Str("delivery_id", ev.DeliveryID).
		Str("event", ev.Type).
		Logger()

	run.transition(StateReceived)
	o.execute(ctx, run, ev, &log)
	run.FinishedAt = time.Now()

	o.finish(ctx, run, &log)

	if run.State == StateRejected || run.State == StateFailed {
		return run, run.Err
	}
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, ev *github.InboundEvent, log *zerolog.Logger) {
	// Nothing is looked up for an unsigned delivery.
	if ev.Signature == "" {
		o.reject(run, log, github.ErrMissingSignature)
		return
	}

	repoID, err := github.RepositoryID(ev)
	if err != nil {
		o.reject(run, log, err)
		return
	}

	repo, err := o.deps.Repos.GetRepoByGitHubID(ctx, repoID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		log.Info().Str("repo_id", repoID).Msg("Delivery for unregistered repository")
		run.transition(StateUnregistered)
		return
	case err != nil:
		o.fail(run, log, fmt.Errorf("failed to look up repository %s: %w", repoID, err))
		return
	case !repo.Connected:
		log.Info().Str("repo", repo.FullName()).Msg("Delivery for disconnected repository")
		run.transition(StateUnregistered)
		return
	}
	run.Repo = repo

	if err := github.VerifySignature(repo.WebhookSecret, ev.Payload, ev.Signature); err != nil {
		o.reject(run, log, err)
		return
	}
	run.transition(StateVerified)

	action, err := github.ParseAction(ev.Payload)
	if err != nil {
		o.reject(run, log, err)
		return
	}
	if github.Classify(ev.Type, action) != github.Process {
		log.Debug().Str("action", action).Msg("Event ignored")
		run.transition(StateIgnored)
		return
	}

	pr, err := github.ParsePullRequestEvent(ev.Payload)
	if err != nil {
		o.reject(run, log, err)
		return
	}
	// The secret only vouches for the registered repository.
	if pr.RepoID != repo.GitHubRepoID {
		o.reject(run, log, fmt.Errorf("%w: registered %s, payload %s", ErrRepositoryMismatch, repo.GitHubRepoID, pr.RepoID))
		return
	}
	run.Event = pr
	run.transition(StateClassified)

	// Only deliveries signed with the repository's secret count against it.
	if o.deps.Limiter != nil && !o.deps.Limiter.Allow("repo:"+repo.GitHubRepoID) {
		log.Warn().Str("repo", repo.FullName()).Msg("Repository delivery rate exceeded")
		run.Err = ErrRateLimited
		run.transition(StateThrottled)
		return
	}

	*log = log.With().
		Str("repo", repo.FullName()).
		Int("pr", pr.Number).
		Str("head_sha", pr.HeadSHA).
		Logger()

	if dup, err := o.claim(ctx, run); err != nil {
		o.fail(run, log, err)
		return
	} else if dup {
		log.Info().Msg("Delivery already handled")
		run.transition(StateDuplicate)
		return
	}

	// Until publishing starts a failed run leaves no trace on the pull
	// request, so the claim is released and a redelivery can retry.
	published := false
	defer func() {
		if run.State == StateFailed && !published && run.DeliveryID != "" {
			if err := o.deps.Deliveries.ReleaseDelivery(context.WithoutCancel(ctx), run.DeliveryID); err != nil {
				log.Error().Err(err).Msg("Failed to release delivery claim")
			}
		}
	}()

	user, err := o.deps.Users.GetUser(ctx, repo.UserID)
	if err != nil {
		o.fail(run, log, fmt.Errorf("failed to load credential for %s: %w", repo.FullName(), err))
		return
	}
	gh := o.deps.GitHub(user.GitHubToken)

	target := run.PullRequest()
	diff, err := gh.FetchDiff(ctx, target.Owner, target.Repo, target.Number)
	if err != nil {
		o.fail(run, log, err)
		return
	}
	run.transition(StateDiffFetched)
	log.Debug().Int("diff_bytes", len(diff)).Msg("Diff fetched")

	summary, err := o.deps.Reviewer.Summarize(ctx, diff, target)
	if err != nil {
		o.fail(run, log, err)
		return
	}
	feedback, err := o.deps.Reviewer.Feedback(ctx, diff, target)
	if err != nil {
		o.fail(run, log, err)
		return
	}
	run.Summary = summary
	run.Feedback = feedback
	run.transition(StateReviewed)

	published = true
	pub := publisher.New(gh, o.deps.BatchThreshold)
	var publishErrs []error

	posted, err := pub.PublishSummary(ctx, target, summary)
	if err != nil {
		log.Warn().Err(err).Msg("Summary not published, continuing with comments")
		publishErrs = append(publishErrs, err)
	}
	run.Publish, err = pub.PublishComments(ctx, target, feedback.Comments)
	run.Publish.SummaryPosted = posted
	if err != nil {
		publishErrs = append(publishErrs, err)
	}
	run.transition(StatePublished)

	record := &storage.Review{
		RepoID:     repo.ID,
		PRNumber:   pr.Number,
		HeadSHA:    pr.HeadSHA,
		DeliveryID: run.DeliveryID,
		Summary:    summary,
		AIFeedback: storage.CommentList(feedback.Comments),
	}
	if err := o.deps.Reviews.CreateReview(ctx, record); err != nil {
		o.fail(run, log, err)
		return
	}
	run.Record = record
	run.transition(StateRecorded)

	if len(publishErrs) > 0 {
		o.fail(run, log, errors.Join(publishErrs...))
		return
	}
	run.transition(StateDone)
}

// claim reports whether the delivery or the commit was already handled.
func (o *Orchestrator) claim(ctx context.Context, run *Run) (bool, error) {
	if run.DeliveryID != "" {
		claimed, err := o.deps.Deliveries.ClaimDelivery(ctx, run.DeliveryID, run.Repo.ID, run.Event.Number)
		if err != nil {
			return false, err
		}
		if !claimed {
			return true, nil
		}
	}

	seen, err := o.deps.Reviews.HasReviewForCommit(ctx, run.Repo.ID, run.Event.Number, run.Event.HeadSHA)
	if err != nil {
		return false, err
	}
	return seen, nil
}

func (o *Orchestrator) reject(run *Run, log *zerolog.Logger, err error) {
	log.Warn().Err(err).Msg("Delivery rejected")
	run.Err = err
	run.transition(StateRejected)
}

func (o *Orchestrator) fail(run *Run, log *zerolog.Logger, err error) {
	log.Error().Err(err).Str("after", string(run.State)).Msg("Review run failed")
	run.Err = err
	run.transition(StateFailed)
}

func (o *Orchestrator) finish(ctx context.Context, run *Run, log *zerolog.Logger) {
	ev := log.Info()
	if run.State == StateFailed {
		ev = log.Error()
	}
	ev.Str("state", string(run.State)).
		Int("comments", len(run.Feedback.Comments)).
		Bool("unparsable", run.Feedback.Unparsable).
		Int("posted", run.Publish.Posted).
		Dur("duration", run.Duration()).
		Msg("Run finished")

	if o.deps.Notifier == nil || (run.State != StateDone && run.State != StateFailed) {
		return
	}
	if err := o.deps.Notifier.RunFinished(ctx, run); err != nil {
		log.Warn().Err(err).Msg("Failed to send run notification")
	}
}
