package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masa-finance/unified-scraper/internal/config"
)

// ExitError carries a process status other than 1 out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

var (
	envFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:           "unified-scraper",
	Short:         "unified-scraper collects posts from Telegram, X and LinkedIn through Apify actors or a Telegram session.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.ReadConfig(envFile)
		return cfg.Validate()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Env file loaded before reading the environment")
}

// ExecuteContext runs the CLI and returns the process exit status.
func ExecuteContext(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(rootCmd.ErrOrStderr(), exitErr.Err)
		}
		return exitErr.Code
	}
	fmt.Fprintln(rootCmd.ErrOrStderr(), err)
	return 1
}
