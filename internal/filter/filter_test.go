package filter_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/filter"
)

func record(id, body string, views int64) types.CanonicalRecord {
	return types.CanonicalRecord{ID: id, BodyText: body, Engagement: types.Engagement{Views: views}, MediaURLs: []string{}}
}

func ids(records []types.CanonicalRecord) []string {
	out := []string{}
	for _, r := range records {
		out = append(out, r.ID)
	}
	return out
}

var _ = Describe("Apply", func() {
	records := []types.CanonicalRecord{
		record("1", "Bitcoin hits a new high", 500),
		record("2", "weather today", 50),
		record("3", "CRYPTO winter", 0),
		record("4", "bitcoin again", 500),
		record("4", "bitcoin again", 500),
	}

	It("should be the identity without keywords and a zero threshold", func() {
		Expect(filter.Apply(records, nil, 0)).To(Equal(records))
		Expect(filter.Apply(records, []string{}, 0)).To(Equal(records))
	})

	It("should OR keywords case-insensitively", func() {
		Expect(ids(filter.Apply(records, []string{"crypto", "BITCOIN"}, 0))).To(Equal([]string{"1", "3", "4", "4"}))
	})

	It("should apply the view threshold inclusively", func() {
		Expect(ids(filter.Apply(records, nil, 500))).To(Equal([]string{"1", "4", "4"}))
	})

	It("should AND keywords and views", func() {
		Expect(ids(filter.Apply(records, []string{"crypto", "weather"}, 10))).To(Equal([]string{"2"}))
	})

	It("should ignore blank keywords", func() {
		Expect(filter.Apply(records, []string{"  "}, 0)).To(HaveLen(len(records)))
	})
})

var _ = Describe("Window", func() {
	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	records := []types.CanonicalRecord{
		{ID: "before", Timestamp: "2024-04-30T23:59:59Z"},
		{ID: "inside", Timestamp: "2024-05-10T08:00:00+00:00"},
		{ID: "after", Timestamp: "2024-06-01"},
		{ID: "unknown", Timestamp: "last week"},
	}

	It("should keep records inside the window and those without a timestamp", func() {
		Expect(ids(filter.Window(records, &from, &to))).To(Equal([]string{"inside", "unknown"}))
	})

	It("should treat nil bounds as open", func() {
		Expect(ids(filter.Window(records, &from, nil))).To(Equal([]string{"inside", "after", "unknown"}))
		Expect(filter.Window(records, nil, nil)).To(HaveLen(4))
	})
})

var _ = Describe("SortLatestFirst", func() {
	It("should group by target with the newest first", func() {
		records := []types.CanonicalRecord{
			{ID: "b-old", SourceTarget: "b", Timestamp: "2024-01-01T00:00:00Z"},
			{ID: "a-none", SourceTarget: "a"},
			{ID: "a-new", SourceTarget: "a", Timestamp: "2024-03-01T00:00:00Z"},
			{ID: "b-new", SourceTarget: "b", Timestamp: "2024-02-01T00:00:00Z"},
			{ID: "a-old", SourceTarget: "a", Timestamp: "2024-02-01T00:00:00Z"},
		}
		filter.SortLatestFirst(records)
		Expect(ids(records)).To(Equal([]string{"a-new", "a-old", "a-none", "b-new", "b-old"}))
	})
})
