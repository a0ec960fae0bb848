package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"forkcrawl/pkg/auth"
	"forkcrawl/pkg/github"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/ui"
)

var ratelimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Show the remaining quota of every token",
	Long: `Query GET /rate_limit for every configured token. The endpoint does not
consume quota.`,
	Args: cobra.NoArgs,
	RunE: runRateLimit,
}

func init() {
	rootCmd.AddCommand(ratelimitCmd)
}

func runRateLimit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}

	manager, err := auth.NewManager(&cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	pool, err := manager.Pool()
	if err != nil {
		return err
	}

	client := github.NewClient(&cfg.GitHub, logger.GetLogger())
	reports := client.ProbeAll(cmd.Context(), pool)

	ui.PrintHighlight("Core quota per token")
	for _, r := range reports {
		if r.Err != nil {
			fmt.Printf("  %-24s %s\n", r.Credential, ui.Red(r.Err.Error()))
			continue
		}
		resetIn := time.Until(r.ResetAt).Round(time.Second)
		if resetIn < 0 {
			resetIn = 0
		}
		fmt.Printf("  %-24s %s  resets in %s\n", r.Credential, ui.QuotaBar(r.Remaining, r.Limit), resetIn)
	}
	return nil
}
