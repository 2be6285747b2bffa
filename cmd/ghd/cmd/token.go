package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abysmo/ghd/internal/logging"
	"github.com/abysmo/ghd/internal/session"
)

var revealToken bool

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the active GitHub token",
	Long: `Manage the personal access token ghd uses to talk to GitHub.

Examples:
  ghd token set ghp_xxx            # validate and activate a token
  echo ghp_xxx | ghd token set -   # read the token from stdin
  ghd token show                   # show the active token (masked)
  ghd token clear                  # log out
  ghd token history                # list every token ever activated`,
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <token|->",
	Short: "Validate a token and make it active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := args[0]
		if token == "-" {
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read token from stdin: %w", err)
			}
			token = strings.TrimSpace(line)
		}
		if token == "" {
			return errors.New("token is empty")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.sessions.SetActiveToken(cmd.Context(), token); err != nil {
			return explain(err)
		}

		user, err := a.sessions.GetCurrentUser(cmd.Context())
		if err != nil {
			return explain(err)
		}
		fmt.Printf("✓ Token %s active for %s (%s)\n", logging.MaskToken(token), user.Login, user.Name)
		return nil
	},
}

var tokenShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the active token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		token, err := a.sessions.GetActiveToken(cmd.Context())
		if err != nil {
			return explain(err)
		}
		if revealToken {
			fmt.Println(token)
			return nil
		}
		fmt.Println(logging.MaskToken(token))
		return nil
	},
}

var tokenClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deactivate the current token",
	Long:  `Ends the session. The token stays in the history and can be activated again with 'ghd token set'.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.sessions.ClearActiveToken(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("✓ Active token cleared")
		return nil
	},
}

var tokenHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List every token that was activated",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		tokens, err := a.db.ListTokens(cmd.Context())
		if err != nil {
			return err
		}
		if len(tokens) == 0 {
			fmt.Println("No tokens recorded")
			return nil
		}

		active, err := a.db.ActiveToken(cmd.Context())
		var activeID int64
		if err == nil {
			activeID = active.ID
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTOKEN\tUSER\tCREATED\t")
		for _, t := range tokens {
			user := "-"
			if t.UserID != nil {
				if u, err := a.db.GetUser(cmd.Context(), *t.UserID); err == nil {
					user = u.Login
				}
			}
			marker := ""
			if t.ID == activeID {
				marker = "*"
			}
			fmt.Fprintf(w, "%d%s\t%s\t%s\t%s\t\n", t.ID, marker, logging.MaskToken(t.Token), user,
				t.CreatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var whoamiRemote bool

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the user of the active token",
	Long: `Show the GitHub account bound to the active token.

With --remote the token is checked against GitHub instead of the local cache.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		user, err := a.sessions.GetCurrentUser(cmd.Context())
		if whoamiRemote {
			token, terr := a.sessions.GetActiveToken(cmd.Context())
			if terr != nil {
				return explain(terr)
			}
			user, err = a.sessions.Identify(cmd.Context(), token)
		}
		if err != nil {
			return explain(err)
		}

		if format == "json" {
			return printJSON(user)
		}

		fmt.Printf("Login:  %s\n", user.Login)
		fmt.Printf("Name:   %s\n", user.Name)
		fmt.Printf("ID:     %d\n", user.ID)
		fmt.Printf("Avatar: %s\n", user.AvatarURL)

		next, err := a.sessions.NextRefresh(cmd.Context())
		if err != nil && !errors.Is(err, session.ErrUserNotSet) {
			return err
		}
		if next != nil {
			fmt.Printf("Next refresh: %s\n", next.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(whoamiCmd)

	tokenCmd.AddCommand(tokenSetCmd)
	tokenCmd.AddCommand(tokenShowCmd)
	tokenCmd.AddCommand(tokenClearCmd)
	tokenCmd.AddCommand(tokenHistoryCmd)

	tokenShowCmd.Flags().BoolVar(&revealToken, "reveal", false, "print the full token")
	whoamiCmd.Flags().BoolVar(&whoamiRemote, "remote", false, "ask GitHub instead of the local cache")
	whoamiCmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text|json)")
}
