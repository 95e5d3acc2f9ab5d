package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/Paribesh01/pullpal/internal/review"
)

func newTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "nested", "pullpal.db"))
	if err != nil {
		t.Fatalf("NewDatabase error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRepo(t *testing.T, db *Database) (*User, *Repo) {
	t.Helper()
	ctx := context.Background()

	user, err := NewUserStore(db).UpsertUser(ctx, "octocat", "gho_first")
	if err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}
	repo, err := NewRepoStore(db).SaveRepo(ctx, &Repo{
		GitHubRepoID:  "42",
		Owner:         "octo",
		Name:          "app",
		WebhookSecret: "s3cr3t",
		UserID:        user.ID,
	})
	if err != nil {
		t.Fatalf("SaveRepo error: %v", err)
	}
	return user, repo
}

func TestUserStore_UpsertReplacesToken(t *testing.T) {
	db := newTestDB(t)
	store := NewUserStore(db)
	ctx := context.Background()

	first, err := store.UpsertUser(ctx, "octocat", "gho_first")
	if err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}
	second, err := store.UpsertUser(ctx, "octocat", "gho_second")
	if err != nil {
		t.Fatalf("UpsertUser error: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("upsert created a new user: %d != %d", first.ID, second.ID)
	}
	got, err := store.GetUser(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetUser error: %v", err)
	}
	if got.GitHubToken != "gho_second" {
		t.Errorf("token = %q, want gho_second", got.GitHubToken)
	}

	if _, err := store.GetUser(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetUser(999) error = %v, want ErrNotFound", err)
	}
}

func TestRepoStore_LookupAndDisconnect(t *testing.T) {
	db := newTestDB(t)
	_, repo := seedRepo(t, db)
	store := NewRepoStore(db)
	ctx := context.Background()

	if !repo.Connected {
		t.Error("new repo should be connected")
	}

	got, err := store.GetRepoByGitHubID(ctx, "42")
	if err != nil {
		t.Fatalf("GetRepoByGitHubID error: %v", err)
	}
	if got.WebhookSecret != "s3cr3t" || got.FullName() != "octo/app" {
		t.Errorf("unexpected repo: %+v", got)
	}

	if err := store.SetRepoConnected(ctx, repo.ID, false); err != nil {
		t.Fatalf("SetRepoConnected error: %v", err)
	}
	got, err = store.GetRepo(ctx, "octo", "app")
	if err != nil {
		t.Fatalf("GetRepo error: %v", err)
	}
	if got.Connected {
		t.Error("repo should be disconnected")
	}

	if _, err := store.GetRepoByGitHubID(ctx, "43"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown repo error = %v, want ErrNotFound", err)
	}
	if err := store.SetRepoConnected(ctx, 999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRepoConnected(999) error = %v, want ErrNotFound", err)
	}

	repos, err := store.ListRepos(ctx)
	if err != nil {
		t.Fatalf("ListRepos error: %v", err)
	}
	if len(repos) != 1 {
		t.Errorf("ListRepos returned %d repos, want 1", len(repos))
	}
}

func TestReviewStore_CreateAndList(t *testing.T) {
	db := newTestDB(t)
	_, repo := seedRepo(t, db)
	store := NewReviewStore(db)
	ctx := context.Background()

	comments := CommentList{
		{File: "a.ts", Line: 10, Body: "add null check"},
		{File: "b.go", Line: 2, Body: "typo"},
	}
	rec := &Review{
		RepoID:     repo.ID,
		PRNumber:   7,
		HeadSHA:    "abc123",
		DeliveryID: "d-1",
		Summary:    "Adds a null check.",
		AIFeedback: comments,
	}
	if err := store.CreateReview(ctx, rec); err != nil {
		t.Fatalf("CreateReview error: %v", err)
	}
	if rec.ID == 0 || rec.CreatedAt.IsZero() {
		t.Errorf("record not populated: %+v", rec)
	}

	// A second record with no comments must round-trip as an empty list.
	if err := store.CreateReview(ctx, &Review{RepoID: repo.ID, PRNumber: 8}); err != nil {
		t.Fatalf("CreateReview error: %v", err)
	}

	reviews, err := store.ListReviews(ctx, repo.ID, 7, 0)
	if err != nil {
		t.Fatalf("ListReviews error: %v", err)
	}
	if len(reviews) != 1 {
		t.Fatalf("ListReviews returned %d, want 1", len(reviews))
	}
	if !reflect.DeepEqual([]review.Comment(reviews[0].AIFeedback), []review.Comment(comments)) {
		t.Errorf("feedback = %+v, want %+v", reviews[0].AIFeedback, comments)
	}

	all, err := store.ListReviews(ctx, repo.ID, 0, 10)
	if err != nil {
		t.Fatalf("ListReviews error: %v", err)
	}
	if len(all) != 2 || all[0].PRNumber != 8 {
		t.Fatalf("expected newest first, got %+v", all)
	}
	if all[0].AIFeedback == nil || len(all[0].AIFeedback) != 0 {
		t.Errorf("empty feedback = %#v, want empty list", all[0].AIFeedback)
	}

	exists, err := store.HasReviewForCommit(ctx, repo.ID, 7, "abc123")
	if err != nil {
		t.Fatalf("HasReviewForCommit error: %v", err)
	}
	if !exists {
		t.Error("expected review for abc123")
	}
	exists, err = store.HasReviewForCommit(ctx, repo.ID, 7, "def456")
	if err != nil {
		t.Fatalf("HasReviewForCommit error: %v", err)
	}
	if exists {
		t.Error("unexpected review for def456")
	}
}

func TestDeliveryStore_ClaimIsExclusive(t *testing.T) {
	db := newTestDB(t)
	store := NewDeliveryStore(db)
	ctx := context.Background()

	claimed, err := store.ClaimDelivery(ctx, "d-1", 1, 7)
	if err != nil {
		t.Fatalf("ClaimDelivery error: %v", err)
	}
	if !claimed {
		t.Fatal("first claim should succeed")
	}

	claimed, err = store.ClaimDelivery(ctx, "d-1", 1, 7)
	if err != nil {
		t.Fatalf("ClaimDelivery error: %v", err)
	}
	if claimed {
		t.Fatal("second claim should fail")
	}

	if err := store.ReleaseDelivery(ctx, "d-1"); err != nil {
		t.Fatalf("ReleaseDelivery error: %v", err)
	}
	claimed, err = store.ClaimDelivery(ctx, "d-1", 1, 7)
	if err != nil {
		t.Fatalf("ClaimDelivery error: %v", err)
	}
	if !claimed {
		t.Error("claim after release should succeed")
	}
}

func TestDeliveryStore_Cleanup(t *testing.T) {
	db := newTestDB(t)
	store := NewDeliveryStore(db)
	ctx := context.Background()

	if _, err := db.Exec(`INSERT INTO deliveries (delivery_id, repo_id, pr_number, created_at) VALUES ('old', 1, 1, datetime('now', '-40 days'))`); err != nil {
		t.Fatalf("insert error: %v", err)
	}
	if _, err := store.ClaimDelivery(ctx, "new", 1, 1); err != nil {
		t.Fatalf("ClaimDelivery error: %v", err)
	}

	removed, err := store.CleanupDeliveries(ctx, 30)
	if err != nil {
		t.Fatalf("CleanupDeliveries error: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed %d, want 1", removed)
	}
}
