package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/api"
	"github.com/masa-finance/unified-scraper/internal/capabilities"
	"github.com/masa-finance/unified-scraper/internal/capabilities/health"
	"github.com/masa-finance/unified-scraper/internal/jobs"
	"github.com/masa-finance/unified-scraper/internal/jobs/stats"
	"github.com/masa-finance/unified-scraper/internal/jobserver"
	"github.com/masa-finance/unified-scraper/internal/session"
	"github.com/masa-finance/unified-scraper/pkg/client"
)

var serveWorkers int

var serveCmd = &cobra.Command{
	Use:   "serve [--workers N]",
	Short: "Runs batches submitted over HTTP.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		available := jobs.AvailableBackends(cfg)
		if len(available) == 0 {
			logrus.Warn("No backend available, every batch will fail until credentials are set")
		}
		sc := stats.StartCollector(cfg.StatsBufSize, available)

		sessionBackend := session.NewBackend(cfg.Session, sessionDialer)
		orchestrator := jobs.NewOrchestrator(cfg,
			jobs.WithSessionBackend(sessionBackend),
			jobs.WithStats(sc),
			jobs.WithClientOptions(client.WithProgress(logProgress)),
		)

		tracker := health.NewTracker()
		verifier := capabilities.NewBackendVerifier(tracker)
		if cfg.HasApifyCredentials() {
			apifyClient, err := client.NewApifyClient(cfg.ApifyToken)
			if err != nil {
				return fmt.Errorf("creating Apify client: %w", err)
			}
			verifier.RegisterVerifier(types.BackendApify, capabilities.ApifyVerifier(apifyClient))
		}
		verifier.RegisterVerifier(types.BackendSession, capabilities.SessionVerifier(sessionBackend))
		verifier.VerifyBackends(ctx, available)
		go verifier.StartReconciliationLoop(ctx, capabilities.DefaultReconcileInterval)

		jobServer := jobserver.NewJobServer(serveWorkers, orchestrator, cfg.ResultCacheMaxSize, cfg.ResultCacheMaxAge)
		return api.Start(ctx, cfg, jobServer, sc, tracker)
	},
}

func init() {
	serveCmd.Flags().IntVar(&serveWorkers, "workers", 1, "Batches run at once")
	rootCmd.AddCommand(serveCmd)
}
