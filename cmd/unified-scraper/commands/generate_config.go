package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/masa-finance/unified-scraper/internal/config"
)

var generateConfigCmd = &cobra.Command{
	Use:   "generate-config <path/to/batch.json5>",
	Short: "Writes a sample batch file.",
	Args:  cobra.ExactArgs(1),
	// The sample does not depend on the environment.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.WriteBatchFile(args[0], config.SampleBatchFile); err != nil {
			return fmt.Errorf("writing sample batch file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated sample config: %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(generateConfigCmd)
}
