package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Paribesh01/pullpal/internal/config"
	"github.com/Paribesh01/pullpal/internal/github"
	"github.com/Paribesh01/pullpal/internal/storage"
	"github.com/Paribesh01/pullpal/pkg/logger"
)

var (
	flagConfig string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "pullpal",
	Short:         "Automated pull request reviews",
	Long:          "PullPal reviews GitHub pull requests with a language model and posts the feedback as review comments.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(flagConfig)
		if err != nil {
			return err
		}
		if err := logger.Init(logger.Options{
			Level: loaded.Log.Level,
			File:  loaded.Log.File,
			JSON:  loaded.Log.JSON,
		}); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		cfg = loaded
		return nil
	},
}

func run() int {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to configuration file")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(repoCmd)
	rootCmd.AddCommand(reviewCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func openDatabase() (*storage.Database, error) {
	db, err := storage.NewDatabase(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", cfg.Database.Path).Msg("Database initialized")
	return db, nil
}

func newGitHubClient() (*github.Client, error) {
	return github.NewClient(cfg.GitHub.APIURL)
}

// splitRepo parses "owner/name".
func splitRepo(arg string) (string, string, error) {
	owner, name, ok := strings.Cut(arg, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("expected owner/name, got %q", arg)
	}
	return owner, name, nil
}
