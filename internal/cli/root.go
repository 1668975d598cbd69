// Package cli implements the boardctl command line client.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/steemit/bulletin/internal/client"
	"github.com/steemit/bulletin/pkg/config"
	"github.com/steemit/bulletin/pkg/logging"
)

var (
	apiURL    string
	apiToken  string
	pageLimit int
	verbose   bool

	cfg       *config.Config
	apiClient *client.Client
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:           "boardctl [command] [flags]",
	Short:         "boardctl: read and write the bulletin board from a terminal",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd)
	},
}

func init() {
	flags := RootCmd.PersistentFlags()
	flags.StringVar(&apiURL, "api-url", "", "API base URL (default from BOARD_API_URL)")
	flags.StringVar(&apiToken, "token", "", "bearer token (default from BOARD_API_TOKEN)")
	flags.IntVar(&pageLimit, "limit", 0, "posts per page (default from BOARD_PAGE_LIMIT)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log API calls and cache activity")
}

func setup(cmd *cobra.Command) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	if cmd.Flags().Changed("api-url") {
		cfg.Client.APIURL = apiURL
	}
	if cmd.Flags().Changed("token") {
		cfg.Client.Token = apiToken
	}
	if cmd.Flags().Changed("limit") {
		if pageLimit < 1 || pageLimit > 100 {
			return fmt.Errorf("--limit must be between 1 and 100")
		}
		cfg.Client.PageLimit = pageLimit
	}

	logCfg := config.LoggingConfig{Level: "WARN", Format: "text"}
	if verbose {
		logCfg.Level = "DEBUG"
	}
	if err := logging.InitLogger(&logCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if cfg.Client.RequestTimeout <= 0 {
		cfg.Client.RequestTimeout = 30 * time.Second
	}
	apiClient = client.New(&cfg.Client)
	return nil
}

// Execute adds all child commands to the root command and runs it
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := RootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "Error:", describeError(err))
		os.Exit(1)
	}
}
