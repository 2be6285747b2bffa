package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abysmo/ghd/internal/config"
	"github.com/abysmo/ghd/internal/paths"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize ghd configuration and database",
	Long: `Write a default config file and create the local database.

The config file goes to $XDG_CONFIG_HOME/ghd/config.yaml unless --config is
given. An existing config file is kept unless --force is set.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&forceInit, "force", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := cfgFile
	if configFile == "" {
		configFile = paths.ConfigFilePath()
	}

	err := config.WriteDefault(configFile, forceInit)
	switch {
	case errors.Is(err, config.ErrConfigExists):
		fmt.Printf("Config file %s already exists (use --force to overwrite)\n", configFile)
	case err != nil:
		return fmt.Errorf("failed to write config: %w", err)
	default:
		fmt.Printf("✓ Created %s\n", configFile)
	}

	database, err := openDB(cmd.Context(), viper.GetString("database.path"))
	if err != nil {
		return err
	}
	defer database.Close()
	fmt.Printf("✓ Database ready at: %s\n", database.Path())

	fmt.Println("\nNext steps:")
	fmt.Println("  1. Create a personal access token at https://github.com/settings/tokens")
	fmt.Println("  2. Run: ghd token set <token>")
	fmt.Println("  3. Run: ghd prs sync")
	fmt.Println("  4. Run: ghd prs list --cached")

	return nil
}
