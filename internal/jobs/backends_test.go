package jobs_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/config"
	"github.com/masa-finance/unified-scraper/internal/jobs"
	"github.com/masa-finance/unified-scraper/internal/session"
)

var _ = Describe("SelectBackend", func() {
	var (
		both        = config.Config{ApifyToken: "tok", Session: session.Credentials{APIID: "1", APIHash: "h"}}
		apifyOnly   = config.Config{ApifyToken: "tok"}
		sessionOnly = config.Config{Session: session.Credentials{APIID: "1", APIHash: "h"}}
		none        = config.Config{}
	)

	DescribeTable("auto selection",
		func(cfg config.Config, expected types.Backend) {
			b, err := jobs.SelectBackend(cfg, types.BackendAuto)
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal(expected))
		},
		Entry("prefers apify", both, types.BackendApify),
		Entry("apify only", apifyOnly, types.BackendApify),
		Entry("session only", sessionOnly, types.BackendSession),
	)

	It("fails auto selection without credentials", func() {
		_, err := jobs.SelectBackend(none, types.BackendAuto)
		Expect(err).To(MatchError(types.ErrNoBackendAvailable))
	})

	It("honours a pinned backend", func() {
		b, err := jobs.SelectBackend(both, types.BackendSession)
		Expect(err).NotTo(HaveOccurred())
		Expect(b).To(Equal(types.BackendSession))
	})

	It("fails a pinned backend without credentials", func() {
		_, err := jobs.SelectBackend(sessionOnly, types.BackendApify)
		Expect(errors.Is(err, types.ErrBackendUnavailable)).To(BeTrue())
		_, err = jobs.SelectBackend(apifyOnly, types.BackendSession)
		Expect(errors.Is(err, types.ErrBackendUnavailable)).To(BeTrue())
	})

	It("lists available backends in priority order", func() {
		Expect(jobs.AvailableBackends(both)).To(Equal([]types.Backend{types.BackendApify, types.BackendSession}))
		Expect(jobs.AvailableBackends(none)).To(BeEmpty())
	})
})
