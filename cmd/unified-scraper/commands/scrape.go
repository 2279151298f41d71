package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slices"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/apify"
	"github.com/masa-finance/unified-scraper/internal/config"
	"github.com/masa-finance/unified-scraper/internal/export"
	"github.com/masa-finance/unified-scraper/internal/jobs"
	"github.com/masa-finance/unified-scraper/internal/jobs/stats"
	"github.com/masa-finance/unified-scraper/internal/report"
	"github.com/masa-finance/unified-scraper/internal/session"
	"github.com/masa-finance/unified-scraper/pkg/client"
)

var (
	scrapeConfigPath string
	scrapeFlags      config.BatchFile
	scrapeDateFrom   string
	scrapeDateTo     string
	scrapePerTarget  int
)

// sessionDialer links a session client into the CLI. None is built in.
var sessionDialer session.Dialer

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--config <batch.json5>] [--channels a,b] [flags]",
	Short: "Runs one batch and writes the records to the output directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := loadBatchFile(cmd)
		if err != nil {
			return err
		}
		if len(file.Channels) == 0 && len(file.SearchTerms) == 0 && len(file.URLs) == 0 {
			return errors.New("provide --channels, --search-terms, --urls or --config")
		}
		if file.OutputDir == "" {
			file.OutputDir = cfg.OutputDir
		}
		if file.OutputFormat == "" {
			file.OutputFormat = cfg.OutputFormat
		}
		if _, err := export.ParseFormats(file.OutputFormat); err != nil {
			return err
		}

		batch, err := file.Batch(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		available := jobs.AvailableBackends(cfg)
		printHeader(out, batch, available, sessionDialer != nil)
		if len(available) == 0 {
			return &ExitError{Code: 1, Err: types.ErrNoBackendAvailable}
		}

		sc := stats.StartCollector(cfg.StatsBufSize, available)
		orchestrator := jobs.NewOrchestrator(cfg,
			jobs.WithSessionBackend(newSessionBackend(file)),
			jobs.WithStats(sc),
			jobs.WithClientOptions(client.WithProgress(logProgress)),
		)

		res, err := orchestrator.Run(cmd.Context(), batch)
		if res != nil && res.State != types.BatchNotStarted {
			report.Render(out, res, scrapePerTarget)
		}
		if err != nil {
			return err
		}

		paths, err := export.Save(res.Records, file.OutputDir, file.OutputFormat, filePrefix(res), time.Now())
		if err != nil {
			return fmt.Errorf("saving results: %w", err)
		}
		if len(paths) == 0 {
			fmt.Fprintln(out, "No records to save")
		}
		for _, p := range paths {
			fmt.Fprintf(out, "Saved %s\n", p)
		}

		if code := res.Outcome().ExitCode(); code != 0 {
			return &ExitError{Code: code}
		}
		fmt.Fprintln(out, "Done!")
		return nil
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVarP(&scrapeConfigPath, "config", "f", "", "Path to a JSON5 batch file")
	f.StringSliceVarP(&scrapeFlags.Channels, "channels", "c", nil, "Channels, handles or profiles to scrape")
	f.StringSliceVar(&scrapeFlags.SearchTerms, "search-terms", nil, "Search terms (X providers)")
	f.StringSliceVar(&scrapeFlags.URLs, "urls", nil, "Start URLs (x-full)")
	f.StringVar(&scrapeFlags.Provider, "provider", "", fmt.Sprintf("Apify provider, one of %v", apify.ProviderIds()))
	f.UintVarP(&scrapeFlags.Limit, "limit", "n", 0, "Maximum items per target, 0 for the provider default")
	f.StringVarP(&scrapeFlags.OutputDir, "output-dir", "o", "", "Directory the exports are written to")
	f.StringVar(&scrapeFlags.OutputFormat, "format", "", "Export formats: csv, json, excel, a comma list or all")
	f.StringVar(&scrapeFlags.Backend, "backend", "auto", "Backend: auto, apify or session")
	f.BoolVar(&scrapeFlags.IncludeMedia, "include-media", false, "Keep media details")
	f.BoolVar(&scrapeFlags.IncludeComments, "include-comments", false, "Accepted for compatibility, has no effect")
	f.StringVar(&scrapeDateFrom, "date-from", "", "Drop records before this ISO date")
	f.StringVar(&scrapeDateTo, "date-to", "", "Drop records after this ISO date")
	f.UintVar(&scrapeFlags.Days, "days", 0, "Look back this many days")
	f.UintVar(&scrapeFlags.PostsFrom, "posts-from", 0, "First post number (telegram-posts)")
	f.UintVar(&scrapeFlags.PostsTo, "posts-to", 0, "Last post number (telegram-posts)")
	f.StringVar(&scrapeFlags.Sort, "sort", "", "Sort order for X search: Latest or Top")
	f.StringVar(&scrapeFlags.Lang, "lang", "", "Language code for X search")
	f.StringSliceVar(&scrapeFlags.FilterKeywords, "keywords", nil, "Keep records containing any of these keywords")
	f.Int64Var(&scrapeFlags.FilterMinViews, "min-views", 0, "Keep records with at least this many views")
	f.IntVar(&scrapeFlags.MaxConcurrentJobs, "max-concurrent-jobs", 0, "Remote jobs in flight at once, 0 for the configured default")
	f.IntVar(&scrapePerTarget, "show", report.DefaultPerTarget, "Records shown per target in the summary")
	rootCmd.AddCommand(scrapeCmd)
}

// loadBatchFile reads --config when given and lays every flag set on the command line over it.
func loadBatchFile(cmd *cobra.Command) (config.BatchFile, error) {
	file := config.BatchFile{}
	if scrapeConfigPath != "" {
		var err error
		file, err = config.ReadBatchFile[config.BatchFile](scrapeConfigPath)
		if err != nil {
			return file, fmt.Errorf("reading batch file %s: %w", scrapeConfigPath, err)
		}
	}

	changed := cmd.Flags().Changed
	set := func(name string, apply func()) {
		if scrapeConfigPath == "" || changed(name) {
			apply()
		}
	}
	set("channels", func() { file.Channels = scrapeFlags.Channels })
	set("search-terms", func() { file.SearchTerms = scrapeFlags.SearchTerms })
	set("urls", func() { file.URLs = scrapeFlags.URLs })
	set("provider", func() { file.Provider = scrapeFlags.Provider })
	set("limit", func() { file.Limit = scrapeFlags.Limit })
	set("output-dir", func() { file.OutputDir = scrapeFlags.OutputDir })
	set("format", func() { file.OutputFormat = scrapeFlags.OutputFormat })
	set("backend", func() { file.Backend = scrapeFlags.Backend })
	set("include-media", func() { file.IncludeMedia = scrapeFlags.IncludeMedia })
	set("include-comments", func() { file.IncludeComments = scrapeFlags.IncludeComments })
	set("date-from", func() { file.DateFrom = scrapeDateFrom })
	set("date-to", func() { file.DateTo = scrapeDateTo })
	set("days", func() { file.Days = scrapeFlags.Days })
	set("posts-from", func() { file.PostsFrom = scrapeFlags.PostsFrom })
	set("posts-to", func() { file.PostsTo = scrapeFlags.PostsTo })
	set("sort", func() { file.Sort = scrapeFlags.Sort })
	set("lang", func() { file.Lang = scrapeFlags.Lang })
	set("keywords", func() { file.FilterKeywords = scrapeFlags.FilterKeywords })
	set("min-views", func() { file.FilterMinViews = scrapeFlags.FilterMinViews })
	set("max-concurrent-jobs", func() { file.MaxConcurrentJobs = scrapeFlags.MaxConcurrentJobs })

	if file.IncludeComments {
		logrus.Warn("include_comments is accepted but comments are not collected")
	}
	return file, nil
}

func newSessionBackend(file config.BatchFile) *session.Backend {
	count, delay := session.DefaultRetryCount, session.DefaultRetryDelay
	if file.RetryCount > 0 {
		count = file.RetryCount
	}
	if file.RetryDelay > 0 {
		delay = time.Duration(file.RetryDelay * float64(time.Second))
	}
	return session.NewBackend(cfg.Session, sessionDialer, session.WithRetry(count, delay))
}

func logProgress(p types.ProgressSnapshot) {
	logrus.WithField("run", p.RunID).Debugf("Status %s after %s, %s left", p.Status, p.Elapsed.Round(time.Second), p.Remaining.Round(time.Second))
}

func filePrefix(res *types.BatchResult) string {
	family := types.FamilyTelegram
	if a, err := apify.Lookup(res.Provider); err == nil {
		family = a.Family
	}
	return string(family) + "_scrape"
}

func printHeader(out io.Writer, batch types.Batch, available []types.Backend, sessionLinked bool) {
	rule := strings.Repeat("=", 60)
	fmt.Fprintln(out, rule)
	fmt.Fprintln(out, "Unified Scraper")
	fmt.Fprintln(out, rule)
	if len(batch.Request.Targets) > 0 {
		fmt.Fprintf(out, "Targets: %v\n", batch.Request.Targets)
	}
	if len(batch.Request.SearchTerms) > 0 {
		fmt.Fprintf(out, "Search terms: %v\n", batch.Request.SearchTerms)
	}
	if len(batch.Request.URLs) > 0 {
		fmt.Fprintf(out, "URLs: %v\n", batch.Request.URLs)
	}
	fmt.Fprintf(out, "Limit: %d\n", batch.Request.Limit)
	fmt.Fprintf(out, "Backend: %s\n", batch.Backend)
	fmt.Fprintln(out, rule)
	if len(available) == 0 {
		fmt.Fprintln(out, "No backend available! Please set credentials:")
		fmt.Fprintln(out, "  For Apify: APIFY_API_TOKEN")
		fmt.Fprintln(out, "  For the Telegram session: TELEGRAM_API_ID and TELEGRAM_API_HASH")
		return
	}
	fmt.Fprintf(out, "Available backends: %v\n", available)
	if !sessionLinked && slices.Contains(available, types.BackendSession) {
		fmt.Fprintln(out, "Note: this build links no session client, the Telegram session backend is credential-only and batches routed to it fail")
	}
}
