package stats_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/jobs/stats"
)

var _ = Describe("StatsCollector", func() {
	It("accumulates per provider", func() {
		sc := stats.StartCollector(8, []types.Backend{types.BackendApify})
		sc.Add("x-ppr", stats.JobSubmissions, 2)
		sc.Add("x-ppr", stats.JobSubmissions, 1)
		sc.Add("telegram-media", stats.ReturnedRecords, 40)

		Eventually(func() uint { return sc.Get("x-ppr", stats.JobSubmissions) }).Should(Equal(uint(3)))
		Eventually(func() uint { return sc.Get("telegram-media", stats.ReturnedRecords) }).Should(Equal(uint(40)))

		data, err := sc.Json()
		Expect(err).NotTo(HaveOccurred())
		var out map[string]any
		Expect(json.Unmarshal(data, &out)).To(Succeed())
		Expect(out).To(HaveKey("stats"))
		Expect(out["available_backends"]).To(ConsistOf("apify"))
	})

	It("ignores a nil collector", func() {
		var sc *stats.StatsCollector
		Expect(func() { sc.Add("x-ppr", stats.Batches, 1) }).NotTo(Panic())
	})
})
