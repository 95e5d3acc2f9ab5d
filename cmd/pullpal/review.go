package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Paribesh01/pullpal/internal/storage"
)

var (
	flagReviewPR    int
	flagReviewLimit int
	flagReviewJSON  bool
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Inspect recorded reviews",
}

var reviewListCmd = &cobra.Command{
	Use:   "list <owner/name>",
	Short: "List recorded reviews for a repository",
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
		repo, err := storage.NewRepoStore(db).GetRepo(ctx, owner, name)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s/%s is not registered", owner, name)
		}
		if err != nil {
			return err
		}

		reviews, err := storage.NewReviewStore(db).ListReviews(ctx, repo.ID, flagReviewPR, flagReviewLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if flagReviewJSON {
			data, err := json.MarshalIndent(reviews, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if len(reviews) == 0 {
			fmt.Fprintln(out, "No reviews recorded.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tPR\tHEAD\tCOMMENTS\tCREATED")
		for _, r := range reviews {
			head := r.HeadSHA
			if len(head) > 7 {
				head = head[:7]
			}
			fmt.Fprintf(w, "%d\t#%d\t%s\t%d\t%s\n", r.ID, r.PRNumber, head, len(r.AIFeedback), r.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func init() {
	reviewListCmd.Flags().IntVar(&flagReviewPR, "pr", 0, "Only show reviews of this pull request")
	reviewListCmd.Flags().IntVar(&flagReviewLimit, "limit", 20, "Maximum number of reviews to show")
	reviewListCmd.Flags().BoolVar(&flagReviewJSON, "json", false, "Print reviews as JSON")
	reviewCmd.AddCommand(reviewListCmd)
}
