package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Paribesh01/pullpal/internal/github"
	"github.com/Paribesh01/pullpal/internal/storage"
)

type memRepos struct {
	repos map[string]*storage.Repo
	calls int
}

func (m *memRepos) GetRepoByGitHubID(_ context.Context, id string) (*storage.Repo, error) {
	m.calls++
	r, ok := m.repos[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

type memUsers struct {
	users map[int64]*storage.User
}

func (m *memUsers) GetUser(_ context.Context, id int64) (*storage.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return u, nil
}

type memReviews struct {
	records []*storage.Review
	err     error
}

func (m *memReviews) CreateReview(_ context.Context, r *storage.Review) error {
	if m.err != nil {
		return m.err
	}
	r.ID = int64(len(m.records) + 1)
	m.records = append(m.records, r)
	return nil
}

func (m *memReviews) HasReviewForCommit(_ context.Context, repoID int64, prNumber int, headSHA string) (bool, error) {
	if headSHA == "" {
		return false, nil
	}
	for _, r := range m.records {
		if r.RepoID == repoID && r.PRNumber == prNumber && r.HeadSHA == headSHA {
			return true, nil
		}
	}
	return false, nil
}

type memDeliveries struct {
	mu      sync.Mutex
	claimed map[string]bool
}

func (m *memDeliveries) ClaimDelivery(_ context.Context, id string, _ int64, _ int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimed == nil {
		m.claimed = map[string]bool{}
	}
	if m.claimed[id] {
		return false, nil
	}
	m.claimed[id] = true
	return true, nil
}

func (m *memDeliveries) ReleaseDelivery(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.claimed, id)
	return nil
}

type reviewCall struct {
	body     string
	comments []github.InlineComment
}

type fakeGitHub struct {
	token         string
	diff          string
	diffErr       error
	diffCalls     int
	issueComments []string
	reviews       []reviewCall
	reviewErrs    map[int]error
	reviewCalls   int
	targets       []string // "<call>:<owner>/<repo>#<number>" per call
}

func (f *fakeGitHub) target(call, owner, repo string, number int) {
	f.targets = append(f.targets, fmt.Sprintf("%s:%s/%s#%d", call, owner, repo, number))
}

func (f *fakeGitHub) FetchDiff(_ context.Context, owner, repo string, number int) (string, error) {
	f.target("diff", owner, repo, number)
	f.diffCalls++
	if f.diffErr != nil {
		return "", f.diffErr
	}
	return f.diff, nil
}

func (f *fakeGitHub) CreateIssueComment(_ context.Context, owner, repo string, number int, body string) error {
	f.target("comment", owner, repo, number)
	f.issueComments = append(f.issueComments, body)
	return nil
}

func (f *fakeGitHub) CreateReview(_ context.Context, owner, repo string, number int, body string, comments []github.InlineComment) error {
	f.target("review", owner, repo, number)
	call := f.reviewCalls
	f.reviewCalls++
	if err, ok := f.reviewErrs[call]; ok {
		return err
	}
	f.reviews = append(f.reviews, reviewCall{body: body, comments: comments})
	return nil
}

func (f *fakeGitHub) publishCalls() int {
	return len(f.issueComments) + len(f.reviews)
}

// promptModel answers summary and feedback prompts with fixed text.
type promptModel struct {
	summary  string
	feedback string
	err      error
	calls    int
}

func (m *promptModel) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	if strings.Contains(prompt, "JSON array") {
		return m.feedback, nil
	}
	return m.summary, nil
}

type recordingNotifier struct {
	runs []*Run
}

func (n *recordingNotifier) RunFinished(_ context.Context, run *Run) error {
	n.runs = append(n.runs, run)
	return errors.New("telegram unavailable")
}
