package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/sprintguardian/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify guardian configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/guardian/config.yaml
Project-specific overrides can be placed in .guardian.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch len(args) {
		case 0:
			return displayAllConfig()
		case 1:
			return displayConfigKey(args[0])
		default:
			return setConfigKey(args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	for _, key := range config.Keys() {
		value, err := config.Get(key)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", key, displayValue(key, value))
	}

	fmt.Println()
	fmt.Printf("user config:    %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Printf("project config: %s\n", project)
	}
	fmt.Printf("api key source: %s\n", config.GetAPIKeySource(cfg))
	return nil
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(key string) error {
	value, err := config.Get(key)
	if err != nil {
		return err
	}
	fmt.Println(displayValue(key, value))
	return nil
}

// setConfigKey sets a configuration value in the user config.
func setConfigKey(key, value string) error {
	if key == "backend.api_key" {
		if err := config.ValidateAPIKey(value); err != nil {
			printStatus("!", err.Error(), color.FgYellow)
		}
	}
	if err := config.Set(key, value); err != nil {
		return err
	}
	shown := value
	if config.IsSecretKey(key) {
		shown = config.MaskAPIKey(value)
	}
	fmt.Fprintf(os.Stdout, "%s Set %s = %s\n", color.GreenString("✓"), key, shown)
	return nil
}

func displayValue(key string, value any) string {
	s := fmt.Sprint(value)
	if config.IsSecretKey(key) {
		return config.MaskAPIKey(s)
	}
	if s == "" {
		return "(not set)"
	}
	return s
}
