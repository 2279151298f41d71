package commands

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/config"
)

var _ = Describe("Commands", func() {
	var out *bytes.Buffer

	run := func(args ...string) int {
		out = &bytes.Buffer{}
		rootCmd.SetOut(out)
		rootCmd.SetErr(out)
		rootCmd.SetArgs(args)
		return ExecuteContext(context.Background())
	}

	BeforeEach(func() {
		scrapeConfigPath = ""
		scrapeFlags = config.BatchFile{}
		GinkgoT().Setenv("APIFY_API_TOKEN", "")
		GinkgoT().Setenv("APIFY_API_KEY", "")
		GinkgoT().Setenv("TELEGRAM_API_ID", "")
		GinkgoT().Setenv("TELEGRAM_API_HASH", "")
	})

	It("should write a sample batch file that loads back", func() {
		path := filepath.Join(GinkgoT().TempDir(), "batch.json5")
		Expect(run("generate-config", path)).To(Equal(0))
		Expect(out.String()).To(ContainSubstring("Generated sample config"))

		file, err := config.ReadBatchFile[config.BatchFile](path)
		Expect(err).NotTo(HaveOccurred())
		Expect(file.Channels).To(Equal(config.SampleBatchFile.Channels))
	})

	It("should refuse to scrape without targets", func() {
		Expect(run("scrape", "--env-file", filepath.Join(GinkgoT().TempDir(), "missing.env"))).To(Equal(1))
		Expect(out.String()).To(ContainSubstring("provide --channels"))
	})

	It("should fail when no backend has credentials", func() {
		dir := GinkgoT().TempDir()
		Expect(run("scrape", "--env-file", filepath.Join(dir, "missing.env"), "-c", "durov", "-o", dir)).To(Equal(1))
		Expect(out.String()).To(ContainSubstring("No backend available"))
	})

	It("should warn that session credentials alone cannot scrape", func() {
		GinkgoT().Setenv("TELEGRAM_API_ID", "12345")
		GinkgoT().Setenv("TELEGRAM_API_HASH", "hash")
		dir := GinkgoT().TempDir()
		Expect(run("scrape", "--env-file", filepath.Join(dir, "missing.env"), "-c", "durov", "-o", dir)).To(Equal(1))
		Expect(out.String()).To(ContainSubstring("Available backends: [session]"))
		Expect(out.String()).To(ContainSubstring("credential-only"))
	})

	It("should list providers", func() {
		Expect(run("backends", "--env-file", filepath.Join(GinkgoT().TempDir(), "missing.env"))).To(Equal(0))
		Expect(out.String()).To(ContainSubstring("x-ppr"))
		Expect(out.String()).To(ContainSubstring("telegram-media"))
	})

	It("should carry exit codes through errors", func() {
		err := error(&ExitError{Code: 2})
		var exitErr *ExitError
		Expect(errors.As(err, &exitErr)).To(BeTrue())
		Expect(exitErr.Code).To(Equal(2))

		wrapped := &ExitError{Code: 1, Err: types.ErrNoBackendAvailable}
		Expect(errors.Is(wrapped, types.ErrNoBackendAvailable)).To(BeTrue())
	})
})
