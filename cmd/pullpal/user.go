package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Paribesh01/pullpal/internal/storage"
)

var (
	flagUserToken string
	flagUserLogin string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users whose GitHub tokens are used for reviews",
}

var userSetTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store a GitHub token (read from stdin when --token is omitted)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := strings.TrimSpace(flagUserToken)
		if token == "" {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading token from stdin: %w", err)
			}
			token = strings.TrimSpace(line)
		}
		if token == "" {
			return fmt.Errorf("no token given")
		}

		login := flagUserLogin
		if login == "" {
			gh, err := newGitHubClient()
			if err != nil {
				return err
			}
			login, err = gh.Session(token).AuthenticatedLogin(cmd.Context())
			if err != nil {
				return fmt.Errorf("token rejected by GitHub: %w", err)
			}
		}

		db, err := openDatabase()
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := storage.NewUserStore(db).UpsertUser(cmd.Context(), login, token)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %s (user id %d)\n", user.GitHubLogin, user.ID)
		return nil
	},
}

func init() {
	userSetTokenCmd.Flags().StringVar(&flagUserToken, "token", "", "GitHub access token")
	userSetTokenCmd.Flags().StringVar(&flagUserLogin, "login", "", "GitHub login (looked up from the token when omitted)")
	userCmd.AddCommand(userSetTokenCmd)
}
