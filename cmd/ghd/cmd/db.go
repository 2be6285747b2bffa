package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abysmo/ghd/internal/db"
	"github.com/abysmo/ghd/internal/paths"
)

var backupPath string

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long: `Manage the ghd SQLite database.

The database caches your GitHub account, the tokens you activated, your pull
requests and application settings.

Examples:
  ghd db init                    # Initialize database
  ghd db status                  # Show database status
  ghd db backup --output b.db    # Backup database`,
}

// dbInitCmd initializes the database
var dbInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the database",
	Long:  `Creates the ghd database with the required schema. An existing database is left untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB(cmd.Context(), viper.GetString("database.path"))
		if err != nil {
			return err
		}
		defer database.Close()

		fmt.Printf("✓ Database initialized at: %s\n", database.Path())
		return nil
	},
}

// dbStatusCmd shows database status
var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database status and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB(cmd.Context(), viper.GetString("database.path"))
		if err != nil {
			return err
		}
		defer database.Close()

		stats, err := database.GetStats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		if format == "json" {
			return printJSON(stats)
		}

		session := "None"
		if stats.HasSession {
			session = "Active"
		}

		fmt.Println("╔════════════════════════════════════════════════════════════╗")
		fmt.Println("║                    DATABASE STATUS                         ║")
		fmt.Println("╠════════════════════════════════════════════════════════════╣")
		fmt.Printf("║  Path:           %-40s ║\n", truncateStr(stats.Path, 40))
		fmt.Printf("║  Size:           %-40s ║\n", formatBytes(stats.Size))
		fmt.Printf("║  Schema Version: %-40d ║\n", stats.SchemaVersion)
		fmt.Println("╠════════════════════════════════════════════════════════════╣")
		fmt.Printf("║  Users:          %-40d ║\n", stats.Users)
		fmt.Printf("║  Tokens:         %-40d ║\n", stats.Tokens)
		fmt.Printf("║  Issues:         %-40d ║\n", stats.Issues)
		fmt.Printf("║  Pull Requests:  %-40d ║\n", stats.PullRequests)
		fmt.Printf("║  Settings:       %-40d ║\n", stats.Settings)
		fmt.Println("╠════════════════════════════════════════════════════════════╣")
		fmt.Printf("║  Session:        %-40s ║\n", session)
		fmt.Println("╚════════════════════════════════════════════════════════════╝")

		return nil
	},
}

// dbPathCmd shows the database path
var dbPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the database file path",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(db.New(viper.GetString("database.path")).Path())
	},
}

// dbBackupCmd backs up the database
var dbBackupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup the database",
	Long: `Creates a backup copy of the database.

If no output path is specified, creates a timestamped backup in $XDG_DATA_HOME/ghd/backups/`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB(cmd.Context(), viper.GetString("database.path"))
		if err != nil {
			return err
		}
		defer database.Close()

		// Generate backup path if not specified
		dest := backupPath
		if dest == "" {
			if err := paths.EnsureBackupDir(); err != nil {
				return fmt.Errorf("failed to create backup directory: %w", err)
			}
			timestamp := time.Now().Format("20060102-150405")
			dest = filepath.Join(paths.BackupDir(), fmt.Sprintf("ghd-%s.db", timestamp))
		}

		if err := database.Backup(cmd.Context(), dest); err != nil {
			return fmt.Errorf("failed to backup database: %w", err)
		}

		info, err := os.Stat(dest)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Database backed up to: %s (%s)\n", dest, formatBytes(info.Size()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)

	// Add subcommands
	dbCmd.AddCommand(dbInitCmd)
	dbCmd.AddCommand(dbStatusCmd)
	dbCmd.AddCommand(dbPathCmd)
	dbCmd.AddCommand(dbBackupCmd)

	// Flags
	dbStatusCmd.Flags().StringVarP(&format, "format", "f", "table", "output format (table|json)")
	dbBackupCmd.Flags().StringVarP(&backupPath, "output", "o", "", "backup output path")
}
