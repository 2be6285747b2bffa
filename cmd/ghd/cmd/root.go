package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/abysmo/ghd/internal/config"
	"github.com/abysmo/ghd/internal/logging"
	"github.com/abysmo/ghd/internal/paths"
)

var (
	// Version info (set by ldflags)
	Version   = "dev"
	GitCommit = "none"
	BuildDate = "unknown"

	// Global flags
	cfgFile string
	dbPath  string
	verbose bool

	// Shared command flags
	format string

	logger = zap.NewNop()
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ghd",
	Short: "Local cache of your GitHub pull requests",
	Long: `ghd keeps a local SQLite cache of the pull requests you authored on GitHub.

It validates a personal access token against the GitHub API, remembers which
account it belongs to and reconciles your open pull requests into the cache.

Example:
  ghd init
  ghd token set ghp_xxx
  ghd prs sync
  ghd prs list --cached`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		logger = l
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer func() { logger.Sync() }()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default .ghd.yaml or $XDG_CONFIG_HOME/ghd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database path (default $XDG_DATA_HOME/ghd/ghd.db)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Bind flags to viper
	viper.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
}

// initConfig reads in .env and config file
func initConfig() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Warning: failed to read .env:", err)
	}

	config.SetDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Search order:
		// 1. Current directory (.ghd.yaml) - project-specific config
		// 2. XDG config dir (config.yaml) - user default config
		viper.AddConfigPath(".")
		viper.AddConfigPath(paths.ConfigDir())
		viper.SetConfigType("yaml")
		viper.SetConfigName(".ghd")
	}

	// GHD_GITHUB_TIMEOUT -> github.timeout
	viper.SetEnvPrefix("GHD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile == "" {
		// If .ghd.yaml not found, try config.yaml in XDG dir
		viper.SetConfigName("config")
		if err := viper.ReadInConfig(); err == nil && verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else {
		fmt.Fprintf(os.Stderr, "Warning: failed to read %s: %v\n", cfgFile, err)
	}
}
