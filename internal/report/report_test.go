package report_test

import (
	"bytes"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/report"
)

var _ = Describe("Render", func() {
	It("lists the newest records per target and the failures", func() {
		res := &types.BatchResult{
			ID:       "b1",
			Backend:  types.BackendApify,
			Provider: "x-ppr",
			Records: []types.CanonicalRecord{
				{SourceTarget: "a", Timestamp: "2024-05-01T00:00:00Z", BodyText: "older"},
				{SourceTarget: "a", Timestamp: "2024-05-03T00:00:00Z", BodyText: "newest"},
				{SourceTarget: "a", Timestamp: "2024-05-02T00:00:00Z", BodyText: "middle"},
			},
			TotalFetched: 3,
			Failures: []types.TargetFailure{
				{Target: "b", JobID: "run-b", Err: fmt.Errorf("%w: run-b", types.ErrTimedOut)},
			},
			Jobs: make([]types.JobSummary, 2),
		}

		var buf bytes.Buffer
		report.Render(&buf, res, 2)
		out := buf.String()

		Expect(out).To(ContainSubstring("a (3)"))
		Expect(out).To(ContainSubstring("newest"))
		Expect(out).To(ContainSubstring("middle"))
		Expect(out).NotTo(ContainSubstring("older"))
		Expect(strings.Index(out, "newest")).To(BeNumerically("<", strings.Index(out, "middle")))
		Expect(strings.ToLower(out)).To(ContainSubstring("partial_success"))
		Expect(out).To(ContainSubstring("run-b"))
	})

	It("omits the failure table when nothing failed", func() {
		var buf bytes.Buffer
		report.Render(&buf, &types.BatchResult{ID: "b2"}, 0)
		Expect(buf.String()).NotTo(ContainSubstring("Failed targets"))
	})
})
