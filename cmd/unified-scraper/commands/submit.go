package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/masa-finance/unified-scraper/pkg/client"
)

var (
	submitServer   string
	submitWait     time.Duration
	submitInsecure bool
)

var submitCmd = &cobra.Command{
	Use:   "submit --server <url> [--config <batch.json5>] [scrape flags]",
	Short: "Sends a batch to a running serve instance and prints its report.",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := loadBatchFile(cmd)
		if err != nil {
			return err
		}
		if len(file.Channels) == 0 && len(file.SearchTerms) == 0 && len(file.URLs) == 0 {
			return errors.New("provide --channels, --search-terms, --urls or --config")
		}
		batch, err := file.Batch(cfg)
		if err != nil {
			return err
		}

		opts := []client.Option{client.APIKey(cfg.APIKey)}
		if submitInsecure {
			opts = append(opts, client.IgnoreTLSCert())
		}
		c, err := client.NewClient(submitServer, opts...)
		if err != nil {
			return err
		}
		pending, err := c.SubmitBatch(batch)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Submitted batch %s\n", pending.UUID)

		delay := time.Second
		pending.SetDelay(delay)
		pending.SetMaxRetries(int(submitWait / delay))
		rep, err := pending.Get()
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	submitCmd.Flags().StringVar(&submitServer, "server", "http://localhost:8080", "Base URL of the serve instance")
	submitCmd.Flags().DurationVar(&submitWait, "wait", 10*time.Minute, "How long to wait for the report")
	submitCmd.Flags().BoolVar(&submitInsecure, "insecure", false, "Skip TLS certificate verification of the serve instance")
	submitCmd.Flags().AddFlagSet(scrapeCmd.Flags())
	rootCmd.AddCommand(submitCmd)
}
