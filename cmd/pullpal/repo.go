package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Paribesh01/pullpal/internal/github"
	"github.com/Paribesh01/pullpal/internal/storage"
	"github.com/Paribesh01/pullpal/pkg/logger"
)

var (
	flagRepoUser     string
	flagRepoNoHook   bool
	flagRepoKeepHook bool
)

var repoCmd = &cobra.Command{
	Use:   "repo",
	Short: "Manage repositories registered for review",
}

var repoConnectCmd = &cobra.Command{
	Use:   "connect <owner/name>",
	Short: "Register a repository and install its webhook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, name, err := splitRepo(args[0])
		if err != nil {
			return err
		}
		if flagRepoUser == "" {
			return errors.New("--user is required")
		}

		hookURL := cfg.WebhookURL()
		if !flagRepoNoHook && hookURL == "" {
			return errors.New("public_url must be set to install a webhook (or pass --no-hook)")
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		user, err := storage.NewUserStore(db).GetUserByLogin(ctx, flagRepoUser)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("unknown user %s, run 'pullpal user set-token' first", flagRepoUser)
		}
		if err != nil {
			return err
		}

		gh, err := newGitHubClient()
		if err != nil {
			return err
		}
		session := gh.Session(user.GitHubToken)

		info, err := session.GetRepository(ctx, owner, name)
		if err != nil {
			return err
		}

		secret, err := newWebhookSecret()
		if err != nil {
			return err
		}

		if flagRepoNoHook {
			hookURL = ""
		}
		repo, err := registerRepo(ctx, session, storage.NewRepoStore(db), info, user.ID, hookURL, secret)
		if err != nil {
			return err
		}
		hookID := repo.HookID

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Connected %s (GitHub id %s)\n", repo.FullName(), repo.GitHubRepoID)
		if hookID != 0 {
			fmt.Fprintf(out, "Webhook %d delivers pull_request events to %s\n", hookID, hookURL)
		} else {
			fmt.Fprintf(out, "No webhook installed. Configure one for pull_request events with secret:\n%s\n", secret)
		}
		return nil
	},
}

var repoDisconnectCmd = &cobra.Command{
	Use:   "disconnect <owner/name>",
	Short: "Stop reviewing a repository and remove its webhook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, name, err := splitRepo(args[0])
		if err != nil {
			return err
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		repos := storage.NewRepoStore(db)
		repo, err := repos.GetRepo(ctx, owner, name)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s/%s is not registered", owner, name)
		}
		if err != nil {
			return err
		}

		if !flagRepoKeepHook {
			if err := removeHooks(cmd, db, repo); err != nil {
				// The registration is still disconnected; deliveries will be refused.
				logger.Warn().Err(err).Str("repo", repo.FullName()).Msg("Failed to remove webhook")
			}
		}

		if err := repos.SetRepoConnected(ctx, repo.ID, false); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Disconnected %s\n", repo.FullName())
		return nil
	},
}

var repoListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered repositories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		repos, err := storage.NewRepoStore(db).ListRepos(cmd.Context())
		if err != nil {
			return err
		}
		if len(repos) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No repositories registered.")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REPOSITORY\tGITHUB ID\tCONNECTED\tHOOK\tCREATED")
		for _, r := range repos {
			hook := "-"
			if r.HookID != 0 {
				hook = strconv.FormatInt(r.HookID, 10)
			}
			fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", r.FullName(), r.GitHubRepoID, r.Connected, hook, r.CreatedAt.Format("2006-01-02"))
		}
		return w.Flush()
	},
}

type hookManager interface {
	DeleteHooksForURL(ctx context.Context, owner, repo, hookURL string) (int, error)
	CreateHook(ctx context.Context, owner, repo, hookURL, secret string) (int64, error)
	DeleteHook(ctx context.Context, owner, repo string, id int64) error
}

type repoSaver interface {
	SaveRepo(ctx context.Context, r *storage.Repo) (*storage.Repo, error)
}

// registerRepo installs a webhook for hookURL, unless it is empty, and stores
// the registration. A hook whose registration could not be stored is removed
// again, since its secret is lost.
func registerRepo(ctx context.Context, hooks hookManager, repos repoSaver, info *github.RepoInfo, userID int64, hookURL, secret string) (*storage.Repo, error) {
	var hookID int64
	if hookURL != "" {
		// A reconnect replaces any hook left from an earlier registration.
		removed, err := hooks.DeleteHooksForURL(ctx, info.Owner, info.Name, hookURL)
		if err != nil {
			return nil, err
		}
		if removed > 0 {
			logger.Info().Int("removed", removed).Str("repo", info.FullName).Msg("Replaced existing webhook")
		}
		hookID, err = hooks.CreateHook(ctx, info.Owner, info.Name, hookURL, secret)
		if err != nil {
			return nil, err
		}
	}

	repo, err := repos.SaveRepo(ctx, &storage.Repo{
		GitHubRepoID:  strconv.FormatInt(info.ID, 10),
		Owner:         info.Owner,
		Name:          info.Name,
		WebhookSecret: secret,
		UserID:        userID,
		HookID:        hookID,
	})
	if err != nil {
		if hookID != 0 {
			if delErr := hooks.DeleteHook(ctx, info.Owner, info.Name, hookID); delErr != nil {
				logger.Error().Err(delErr).Int64("hook_id", hookID).Str("repo", info.FullName).Msg("Failed to remove webhook after save error")
			}
		}
		return nil, err
	}
	return repo, nil
}

func removeHooks(cmd *cobra.Command, db *storage.Database, repo *storage.Repo) error {
	ctx := cmd.Context()
	user, err := storage.NewUserStore(db).GetUser(ctx, repo.UserID)
	if err != nil {
		return err
	}
	gh, err := newGitHubClient()
	if err != nil {
		return err
	}
	session := gh.Session(user.GitHubToken)

	if hookURL := cfg.WebhookURL(); hookURL != "" {
		removed, err := session.DeleteHooksForURL(ctx, repo.Owner, repo.Name, hookURL)
		if err != nil {
			return err
		}
		logger.Info().Int("removed", removed).Str("repo", repo.FullName()).Msg("Webhooks removed")
		return nil
	}
	if repo.HookID != 0 {
		return session.DeleteHook(ctx, repo.Owner, repo.Name, repo.HookID)
	}
	return nil
}

// newWebhookSecret returns 32 random bytes, hex encoded.
func newWebhookSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating webhook secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func init() {
	repoConnectCmd.Flags().StringVar(&flagRepoUser, "user", "", "GitHub login whose token is used for this repository")
	repoConnectCmd.Flags().BoolVar(&flagRepoNoHook, "no-hook", false, "Register without installing a webhook")
	repoDisconnectCmd.Flags().BoolVar(&flagRepoKeepHook, "keep-hook", false, "Leave the webhook installed on GitHub")

	repoCmd.AddCommand(repoConnectCmd)
	repoCmd.AddCommand(repoDisconnectCmd)
	repoCmd.AddCommand(repoListCmd)
}
