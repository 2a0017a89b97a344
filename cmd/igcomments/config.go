package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igcomments/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igcomments configuration files.

Configuration is merged from:
  - Command line flags (highest priority)
  - Environment variables
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is created in the current directory as 'igcomments.yaml'
unless a different path is given with the --config flag.`,
	RunE: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after merging all sources.

Sensitive values like session cookies are masked.`,
	RunE: runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	RunE:  runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = "igcomments.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists: %s", path)
	}

	cfg := config.DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Println("Fill in the endpoint doc_id values and session cookies before crawling.")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, &config.Flags{LogLevel: logLevel})
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	masked := *cfg
	masked.Auth.Cookies = maskValues(cfg.Auth.Cookies)
	masked.Auth.Headers = maskSensitiveHeaders(cfg.Auth.Headers)

	data, err := yaml.Marshal(&masked)
	if err != nil {
		return fmt.Errorf("failed to encode configuration: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, nil)
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	var warnings []string
	if !cfg.Endpoints.Comments.Configured() {
		warnings = append(warnings, "comments endpoint is not configured")
	}
	if len(cfg.FilteredCookies()) == 0 {
		warnings = append(warnings, "no session cookies configured")
	}

	fmt.Println("Configuration is valid")
	for _, w := range warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}

func maskValues(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		if v == "" {
			out[k] = v
			continue
		}
		out[k] = "********"
	}
	return out
}

func maskSensitiveHeaders(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch k {
		case "X-CSRFToken", "X-IG-WWW-Claim":
			out[k] = "********"
		default:
			out[k] = v
		}
	}
	return out
}
