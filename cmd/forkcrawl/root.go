package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"

	"forkcrawl/pkg/config"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	noLogo        bool
	verbose       bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "forkcrawl",
	Short: "Resumable crawler for GitHub fork events",
	Long: `forkcrawl walks the fork listing of every project in a list, counts forks
per day inside a date window and writes one result file per project.

Features:
  - Checkpoints every few pages; interrupted runs resume where they stopped
  - Rotates across several GitHub tokens when one runs out of quota
  - Optional SQLite index and MongoDB mirror of the results
  - Prometheus metrics, desktop notifications and a live dashboard`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noLogo || cmd.Name() == "help" {
			return
		}
		if cmd.Name() == "crawl" && useTUI {
			return
		}
		ui.PrintLogo()
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError("Error", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is ./.forkcrawl.yaml or ~/.config/forkcrawl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "send a desktop notification when the run ends")
	rootCmd.PersistentFlags().BoolVar(&noLogo, "no-logo", false, "do not print the banner")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print one line per page instead of a progress line")

	rootCmd.SetVersionTemplate(`forkcrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig loads the configuration with the given command line overrides
// and installs the global logger. quiet keeps log lines off the console.
func loadConfig(cmd *cobra.Command, flags map[string]interface{}, quiet bool) (*config.Config, error) {
	if flags == nil {
		flags = make(map[string]interface{})
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}
	if cmd.Flags().Changed("notifications") {
		flags["notifications"] = notifications
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}

	logger.Version = version
	if err := logger.InitializeWithOptions(&cfg.Logging, logger.Options{Quiet: quiet}); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}
