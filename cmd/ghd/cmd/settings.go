package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abysmo/ghd/internal/db"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and write application settings",
	Long: `Application settings are free-form key/value pairs stored in the database.

Examples:
  ghd settings set theme dark
  ghd settings get theme
  ghd settings list
  ghd settings unset theme`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB(cmd.Context(), viper.GetString("database.path"))
		if err != nil {
			return err
		}
		defer database.Close()

		value, err := database.GetSetting(cmd.Context(), args[0])
		if errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("setting %q is not set", args[0])
		}
		if err != nil {
			return err
		}
		fmt.Println(value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB(cmd.Context(), viper.GetString("database.path"))
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.SetSetting(cmd.Context(), args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("✓ %s = %s\n", args[0], args[1])
		return nil
	},
}

var settingsUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Remove a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB(cmd.Context(), viper.GetString("database.path"))
		if err != nil {
			return err
		}
		defer database.Close()

		if err := database.DeleteSetting(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ %s removed\n", args[0])
		return nil
	},
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDB(cmd.Context(), viper.GetString("database.path"))
		if err != nil {
			return err
		}
		defer database.Close()

		settings, err := database.ListSettings(cmd.Context())
		if err != nil {
			return err
		}

		if format == "json" {
			values := make(map[string]string, len(settings))
			for _, s := range settings {
				values[s.Key] = s.Value
			}
			return printJSON(values)
		}

		if len(settings) == 0 {
			fmt.Println("No settings")
			return nil
		}
		for _, s := range settings {
			fmt.Printf("%s = %s\n", s.Key, s.Value)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsUnsetCmd)
	settingsCmd.AddCommand(settingsListCmd)

	settingsListCmd.Flags().StringVarP(&format, "format", "f", "text", "output format (text|json)")
}
