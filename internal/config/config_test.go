package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/config"
)

func env(kv map[string]string) func(string) string {
	return func(k string) string { return kv[k] }
}

var _ = Describe("Config", func() {
	Context("FromEnv", func() {
		It("applies defaults when nothing is set", func() {
			cfg := config.FromEnv(env(nil))
			Expect(cfg.PollTimeout).To(Equal(300 * time.Second))
			Expect(cfg.PollInterval).To(Equal(5 * time.Second))
			Expect(cfg.MaxConcurrentJobs).To(Equal(1))
			Expect(cfg.ListenAddress).To(Equal(":8080"))
			Expect(cfg.OutputFormat).To(Equal("csv"))
			Expect(cfg.HasApifyCredentials()).To(BeFalse())
			Expect(cfg.HasSessionCredentials()).To(BeFalse())
			Expect(cfg.Validate()).To(Succeed())
		})

		It("prefers APIFY_API_TOKEN over APIFY_API_KEY", func() {
			cfg := config.FromEnv(env(map[string]string{"APIFY_API_TOKEN": "tok", "APIFY_API_KEY": "key"}))
			Expect(cfg.ApifyToken).To(Equal("tok"))

			cfg = config.FromEnv(env(map[string]string{"APIFY_API_KEY": "key"}))
			Expect(cfg.ApifyToken).To(Equal("key"))
			Expect(cfg.HasApifyCredentials()).To(BeTrue())
		})

		It("needs both telegram id and hash for session credentials", func() {
			cfg := config.FromEnv(env(map[string]string{"TELEGRAM_API_ID": "1"}))
			Expect(cfg.HasSessionCredentials()).To(BeFalse())

			cfg = config.FromEnv(env(map[string]string{"TELEGRAM_API_ID": "1", "TELEGRAM_API_HASH": "h"}))
			Expect(cfg.HasSessionCredentials()).To(BeTrue())
			Expect(cfg.Session.SessionName).To(Equal("telegram_session"))
		})

		It("falls back to defaults on unparseable numbers", func() {
			cfg := config.FromEnv(env(map[string]string{"SCRAPER_POLL_TIMEOUT_SECONDS": "soon", "SCRAPER_MAX_CONCURRENT_JOBS": "4"}))
			Expect(cfg.PollTimeout).To(Equal(300 * time.Second))
			Expect(cfg.MaxConcurrentJobs).To(Equal(4))
		})
	})

	It("parses log levels", func() {
		Expect(config.ParseLogLevel("DEBUG")).To(Equal(logrus.DebugLevel))
		Expect(config.ParseLogLevel("warning")).To(Equal(logrus.WarnLevel))
		Expect(config.ParseLogLevel("nonsense")).To(Equal(logrus.InfoLevel))
	})

	Context("batch files", func() {
		var dir string

		BeforeEach(func() {
			dir = GinkgoT().TempDir()
		})

		It("round-trips the sample file", func() {
			path := filepath.Join(dir, "batch.json")
			Expect(config.WriteBatchFile(path, config.SampleBatchFile)).To(Succeed())

			bf, err := config.ReadBatchFile[config.BatchFile](path)
			Expect(err).NotTo(HaveOccurred())
			Expect(bf.Channels).To(Equal([]string{"example_channel1", "example_channel2"}))
			Expect(bf.FilterMinViews).To(Equal(int64(100)))
		})

		It("reads JSON5 and merges local overrides", func() {
			path := filepath.Join(dir, "batch.json")
			Expect(os.WriteFile(path, []byte(`{
				// comments are fine
				channels: ["durov"],
				limit: 50,
				backend: "apify",
			}`), 0o644)).To(Succeed())
			Expect(os.WriteFile(filepath.Join(dir, "batch.local.json"), []byte(`{limit: 10}`), 0o644)).To(Succeed())

			bf, err := config.ReadBatchFile[config.BatchFile](path)
			Expect(err).NotTo(HaveOccurred())
			Expect(bf.Channels).To(Equal([]string{"durov"}))
			Expect(bf.Limit).To(Equal(uint(10)))
			Expect(bf.Backend).To(Equal("apify"))
		})

		It("reports a missing file", func() {
			_, err := config.ReadBatchFile[config.BatchFile](filepath.Join(dir, "missing.json"))
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Context("BatchFile.Batch", func() {
		cfg := config.Config{Limit: 25, PollTimeout: time.Minute, PollInterval: time.Second, MaxConcurrentJobs: 2}

		It("maps file fields onto the batch", func() {
			b, err := config.BatchFile{
				Channels:       []string{"a", "b"},
				Backend:        "telethon",
				DateFrom:       "2024-01-02",
				FilterKeywords: []string{"btc"},
				FilterMinViews: 5,
			}.Batch(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(b.Backend).To(Equal(types.BackendSession))
			Expect(b.Request.Targets).To(Equal([]string{"a", "b"}))
			Expect(b.Request.Limit).To(Equal(uint(25)))
			Expect(b.Request.DateFrom).NotTo(BeNil())
			Expect(b.Request.DateFrom.Day()).To(Equal(2))
			Expect(b.Keywords).To(Equal([]string{"btc"}))
			Expect(b.MaxConcurrentJobs).To(Equal(2))
			Expect(b.PollTimeout).To(Equal(time.Minute))
		})

		It("rejects bad backends and dates", func() {
			_, err := config.BatchFile{Backend: "carrier-pigeon"}.Batch(cfg)
			Expect(err).To(HaveOccurred())
			_, err = config.BatchFile{DateTo: "yesterday"}.Batch(cfg)
			Expect(err).To(HaveOccurred())
		})
	})
})
