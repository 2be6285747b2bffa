package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/abysmo/ghd/internal/db"
)

var cachedOnly bool

var prsCmd = &cobra.Command{
	Use:     "prs",
	Aliases: []string{"pr"},
	Short:   "Pull requests you authored",
	Long: `List and cache the open pull requests authored by the active user.

Examples:
  ghd prs list                 # ask GitHub
  ghd prs list --cached        # read the local cache
  ghd prs sync                 # refresh the local cache
  ghd prs viewed 1234567       # mark a cached pull request as seen`,
}

var prsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List open pull requests",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var prs []db.PullRequest
		if cachedOnly {
			prs, err = a.sessions.CachedPullRequests(cmd.Context())
		} else {
			var token string
			token, err = a.sessions.GetActiveToken(cmd.Context())
			if err == nil {
				prs, err = a.sessions.FetchPullRequests(cmd.Context(), token)
			}
		}
		if err != nil {
			return explain(err)
		}

		if format == "json" {
			if prs == nil {
				prs = []db.PullRequest{}
			}
			return printJSON(prs)
		}
		return printPullRequests(prs)
	},
}

var prsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Fetch open pull requests into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		start := time.Now()
		n, err := a.sessions.SyncPullRequests(cmd.Context())
		if err != nil {
			return explain(err)
		}

		fmt.Printf("✓ %d pull requests synced in %s\n", n, time.Since(start).Round(time.Millisecond))
		if next, err := a.sessions.NextRefresh(cmd.Context()); err == nil && next != nil {
			fmt.Printf("  Next refresh due: %s\n", next.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var prsViewedCmd = &cobra.Command{
	Use:   "viewed <id>",
	Short: "Mark a cached pull request as viewed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid id %q: %w", args[0], err)
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.sessions.MarkViewed(cmd.Context(), id); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				return fmt.Errorf("no cached pull request with id %d (run 'ghd prs sync' first)", id)
			}
			return err
		}
		fmt.Printf("✓ Marked %d as viewed\n", id)
		return nil
	},
}

func printPullRequests(prs []db.PullRequest) error {
	if len(prs) == 0 {
		fmt.Println("No open pull requests")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPO\t#\tTITLE\tUPDATED\t")
	for _, pr := range prs {
		title := pr.Title
		if pr.IsDraft {
			title = "[draft] " + title
		}
		marker := ""
		if pr.LastViewed == nil || pr.LastViewed.Before(pr.UpdatedAt) {
			marker = " •"
		}
		fmt.Fprintf(w, "%d\t%s/%s\t%d\t%s%s\t%s\t\n",
			pr.ID, pr.RepoOwner, pr.RepoName, pr.Number, truncateStr(title, 60), marker,
			pr.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func init() {
	rootCmd.AddCommand(prsCmd)
	prsCmd.AddCommand(prsListCmd)
	prsCmd.AddCommand(prsSyncCmd)
	prsCmd.AddCommand(prsViewedCmd)

	prsListCmd.Flags().BoolVar(&cachedOnly, "cached", false, "read from the local cache instead of GitHub")
	prsListCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
}
