package main

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"forkcrawl/pkg/config"
	"forkcrawl/pkg/ui"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage forkcrawl configuration files.

Configuration can be loaded from:
  - Command line flags (highest priority)
  - Environment variables (FORKCRAWL_*)
  - Configuration file
  - Default values (lowest priority)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write a configuration file with every option at its default value.

The file is created as '.forkcrawl.yaml' in the current directory unless a
different path is given with --config.`,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after flags, environment and file are applied.
Passwords in the Redis and MongoDB settings are masked.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Validate the configuration and check that the project list is readable
and the output directories can be created.`,
	RunE: runConfigValidate,
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
		path = ".forkcrawl.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Add tokens with 'forkcrawl auth add' or GITHUB_TOKEN_1..N in .env")
	fmt.Println("2. Point crawl.project_list at your project list")
	fmt.Println("3. Run 'forkcrawl config validate', then 'forkcrawl crawl'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}

	display := maskedConfig(cfg)
	data, err := yaml.Marshal(display)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}

	ui.PrintHighlight("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source == "" {
		source = "(none found)"
	}
	fmt.Println()
	ui.PrintInfo("Configuration file", source)
	return nil
}

// maskedConfig returns a copy of cfg with secrets masked
func maskedConfig(cfg *config.Config) *config.Config {
	display := *cfg
	if display.RateLimitState.RedisPassword != "" {
		display.RateLimitState.RedisPassword = "***"
	}
	if u, err := url.Parse(display.Sinks.MongoURI); err == nil && u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
			display.Sinks.MongoURI = u.String()
		}
	}
	return &display
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	source := configFile
	if source == "" {
		source = config.FindConfigFile()
	}
	if source != "" {
		ui.PrintInfo("Validating configuration", source)
	} else {
		ui.PrintInfo("Validating configuration", "defaults and environment")
	}

	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}

	var problems []error
	if _, err := os.Stat(cfg.Crawl.ProjectList); err != nil {
		problems = append(problems, fmt.Errorf("project list: %w", err))
	}
	for _, dir := range []string{cfg.Crawl.ResultDir, cfg.Crawl.CheckpointDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create %s: %w", dir, err))
		}
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0755); err != nil {
			problems = append(problems, fmt.Errorf("cannot create log directory: %w", err))
		}
	}
	if err := errors.Join(problems...); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration is valid")
	fmt.Println()
	ui.PrintInfo("Project list", cfg.Crawl.ProjectList)
	ui.PrintInfo("Window", fmt.Sprintf("%s .. %s", cfg.Crawl.WindowStart.Format("2006-01-02"), cfg.Crawl.WindowEnd.Format("2006-01-02")))
	ui.PrintInfo("Page size", fmt.Sprintf("%d", cfg.GitHub.PageSize))
	ui.PrintInfo("Checkpoint every", fmt.Sprintf("%d pages", cfg.Crawl.CheckpointInterval))
	ui.PrintInfo("Rate limit state", cfg.RateLimitState.Backend)
	return nil
}
