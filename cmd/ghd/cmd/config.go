package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abysmo/ghd/internal/config"
	"github.com/abysmo/ghd/internal/db"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Commands for inspecting and validating ghd configuration.`,
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate configuration",
	Long: `Validate the configuration for errors and warnings.

Without a file argument the effective configuration is validated: config file,
GHD_* environment variables and flags combined.

Examples:
  ghd config validate
  ghd config validate ~/.config/ghd/config.yaml
  GHD_GITHUB_PER_PAGE=500 ghd config validate`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the configuration that would be used.`,
	RunE:  runShowConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(validateCmd)
	configCmd.AddCommand(showCmd)
	showCmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text|json)")
}

func runValidate(cmd *cobra.Command, args []string) error {
	var (
		cfg    *config.Config
		source string
		err    error
	)
	if len(args) > 0 {
		source = args[0]
		cfg, err = config.LoadFile(source)
	} else {
		source = viper.ConfigFileUsed()
		if source == "" {
			source = "(defaults and environment)"
		}
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Printf("Validating: %s\n\n", source)

	result := cfg.Validate()

	// Print errors
	if len(result.Errors) > 0 {
		fmt.Printf("\033[31m✗ %d error(s):\033[0m\n", len(result.Errors))
		for _, e := range result.Errors {
			fmt.Printf("  \033[31m• %s\033[0m\n", e.Error())
		}
		fmt.Println()
	}

	// Print warnings
	if len(result.Warnings) > 0 {
		fmt.Printf("\033[33m⚠ %d warning(s):\033[0m\n", len(result.Warnings))
		for _, w := range result.Warnings {
			fmt.Printf("  \033[33m• %s\033[0m\n", w.Error())
		}
		fmt.Println()
	}

	if result.IsValid() {
		fmt.Printf("\033[32m✓ Configuration is valid\033[0m\n")
		return nil
	}

	return fmt.Errorf("configuration has %d error(s)", len(result.Errors))
}

func runShowConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if format == "json" {
		return printJSON(cfg)
	}

	dbFile := cfg.Database.Path
	if dbFile == "" {
		dbFile = db.DefaultDBPath() + " (default)"
	}
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		configFile = "none"
	}

	fmt.Printf("Config file: %s\n", configFile)
	fmt.Println()

	fmt.Println("Database:")
	fmt.Printf("  Path: %s\n", dbFile)
	fmt.Println()

	fmt.Println("GitHub:")
	fmt.Printf("  API URL:   %s\n", cfg.GitHub.APIURL)
	fmt.Printf("  Timeout:   %s\n", cfg.GitHub.Timeout)
	fmt.Printf("  Per page:  %d\n", cfg.GitHub.PerPage)
	fmt.Printf("  Max pages: %d\n", cfg.GitHub.MaxPages)
	fmt.Println()

	fmt.Println("Sync:")
	fmt.Printf("  Refresh interval: %s\n", cfg.Sync.RefreshInterval)

	return nil
}
