package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"forkcrawl/pkg/auth"
	"forkcrawl/pkg/github"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/ui"
)

var skipVerify bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage GitHub tokens",
	Long: `Manage the GitHub tokens the crawler rotates through.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables GITHUB_TOKEN_1..N (read-only)

Never share your tokens or config files!`,
}

var authAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Store a GitHub token",
	Long: `Store a GitHub token under a name. The token is read without echo.

The token is checked against GET /rate_limit before it is stored unless
--no-verify is given.`,
	Example: `  # Interactive
  forkcrawl auth add

  # Named token
  forkcrawl auth add work-account`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthAdd,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored tokens in rotation order",
	RunE:  runAuthList,
}

var authRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a stored token",
	Args:    cobra.ExactArgs(1),
	RunE:    runAuthRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authAddCmd)
	authCmd.AddCommand(authListCmd)
	authCmd.AddCommand(authRemoveCmd)

	authAddCmd.Flags().BoolVar(&skipVerify, "no-verify", false, "store the token without checking it against the API")
}

func runAuthAdd(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager(&cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	reader := bufio.NewReader(os.Stdin)

	var name string
	if len(args) > 0 {
		name = strings.TrimSpace(args[0])
	} else {
		auth.ShowTokenGuide(os.Stdout)
		fmt.Print("\nToken name: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read name: %w", err)
		}
		name = strings.TrimSpace(input)
	}
	if name == "" {
		return errors.New("token name is required")
	}

	if existing, _ := manager.Retrieve(name); existing != nil {
		fmt.Printf("Token '%s' already exists. Replace it? (y/N): ", name)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	fmt.Print("GitHub token (hidden): ")
	token, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if token == "" {
		return errors.New("token is required")
	}

	if !skipVerify {
		ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
		defer cancel()

		client := github.NewClient(&cfg.GitHub, logger.GetLogger())
		rl, err := client.RateLimit(ctx, token)
		if err != nil {
			return fmt.Errorf("token check failed (use --no-verify to store anyway): %w", err)
		}
		ui.PrintInfo("Quota", fmt.Sprintf("%d/%d remaining", rl.Resources.Core.Remaining, rl.Resources.Core.Limit))
	}

	if err := manager.Store(&auth.Credential{Name: name, Token: token}); err != nil {
		return err
	}

	ui.PrintSuccess(fmt.Sprintf("Token stored: %s (%s)", name, auth.MaskToken(token)))
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager(&cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintInfo("No stored tokens", "Use 'forkcrawl auth add' or set GITHUB_TOKEN_1")
		return nil
	}

	ui.PrintHighlight("Tokens (rotation order)")
	for i, cred := range creds {
		sanitized := auth.Sanitize(cred)
		modified := "-"
		if !sanitized.LastModified.IsZero() {
			modified = sanitized.LastModified.Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%2d. %-24s %s  %s\n", i+1, sanitized.Name, sanitized.Token, ui.Dim(modified))
	}
	return nil
}

func runAuthRemove(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil, false)
	if err != nil {
		return err
	}
	manager, err := auth.NewManager(&cfg.Credentials)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess("Token removed: " + args[0])
	return nil
}

// readSecret reads a line from stdin without echo when stdin is a terminal
func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
