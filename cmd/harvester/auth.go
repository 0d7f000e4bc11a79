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

	"imageharvester/pkg/bing"
	"imageharvester/pkg/config"
	"imageharvester/pkg/credentials"
	"imageharvester/pkg/logger"
	"imageharvester/pkg/ratelimit"
	"imageharvester/pkg/ui"
)

var verifyKey bool

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the search API key",
	Long: `Manage the stored search API key.

Keys are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation

HARVESTER_API_KEY and BING_SEARCH_API_KEY are read but never written.`,
}

var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the search API key",
	Long: `Store the search API key in the system keychain or the encrypted file.

The key is read from a hidden prompt, or from stdin when it is not a terminal.`,
	Example: `  # Interactive
  harvester auth set-key

  # From a secret manager, checking the key against the API first
  vault read -field=key secret/bing | harvester auth set-key --verify`,
	Args: cobra.NoArgs,
	RunE: runSetKey,
}

var removeKeyCmd = &cobra.Command{
	Use:   "remove-key",
	Short: "Remove the stored search API key",
	Args:  cobra.NoArgs,
	RunE:  runRemoveKey,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where a search API key is configured",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setKeyCmd)
	authCmd.AddCommand(removeKeyCmd)
	authCmd.AddCommand(statusCmd)

	setKeyCmd.Flags().BoolVar(&verifyKey, "verify", false, "run a one-result search with the key before storing it")
}

func runSetKey(cmd *cobra.Command, args []string) error {
	manager, err := credentials.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	fmt.Print("Search API key: ")
	key, err := readSecret()
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if key == "" {
		credentials.ShowKeyGuide(os.Stdout)
		return errors.New("no key entered")
	}

	if verifyKey {
		ui.PrintInfo("Verifying key", credentials.Mask(key))
		if err := testKey(cmd.Context(), key); err != nil {
			return fmt.Errorf("key rejected: %w", err)
		}
	}

	store, err := manager.Set(credentials.DefaultProvider, key)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("API key stored in %s", store))
	return nil
}

func runRemoveKey(cmd *cobra.Command, args []string) error {
	manager, err := credentials.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	if err := manager.Delete(credentials.DefaultProvider); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			ui.PrintWarning("No stored API key")
			return nil
		}
		return err
	}
	ui.PrintSuccess("API key removed")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := credentials.NewManager("")
	if err != nil {
		return fmt.Errorf("failed to initialize credential store: %w", err)
	}

	found := false
	for _, st := range manager.Status(credentials.DefaultProvider) {
		value := ui.Dim("not set")
		if st.Present {
			value = st.Masked
			found = true
		}
		ui.PrintInfo(fmt.Sprintf("%-15s", st.Store), value)
	}

	if !found {
		fmt.Println()
		credentials.ShowKeyGuide(os.Stdout)
	}
	return nil
}

// readSecret reads a line without echo when stdin is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(b)), nil
		}
	}

	input, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// testKey runs a single-result search against the configured endpoint
func testKey(ctx context.Context, key string) error {
	cfg, err := config.Load(configFile, map[string]interface{}{"api-key": key})
	if err != nil {
		return err
	}

	opts := bing.OptionsFromConfig(cfg)
	opts.RetryAttempts = 1
	client := bing.NewClient(opts, ratelimit.NewGate(0), logger.NewNopLogger())

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err = client.Search(ctx, "test", 1, 0)
	return err
}
