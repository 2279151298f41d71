package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/masa-finance/unified-scraper/internal/apify"
	"github.com/masa-finance/unified-scraper/internal/jobs"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Lists the backends the current credentials allow and the Apify providers.",
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		available := jobs.AvailableBackends(cfg)
		if len(available) == 0 {
			fmt.Fprintln(out, "No backend available! Please set credentials:")
			fmt.Fprintln(out, "  For Apify: APIFY_API_TOKEN")
			fmt.Fprintln(out, "  For the Telegram session: TELEGRAM_API_ID and TELEGRAM_API_HASH")
		} else {
			fmt.Fprintf(out, "Available backends: %v\n", available)
		}

		t := table.NewWriter()
		t.SetOutputMirror(out)
		t.SetStyle(table.StyleRounded)
		t.SetTitle("Apify providers")
		t.AppendHeader(table.Row{"Provider", "Actor", "Targets per run", "Default limit", "Description"})
		for _, id := range apify.ProviderIds() {
			a, _ := apify.Lookup(id)
			perRun := "1"
			if a.MultiTarget {
				perRun = "all"
			}
			t.AppendRow(table.Row{a.Provider, a.Name, perRun, a.DefaultLimit, a.Description})
		}
		t.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(backendsCmd)
}
