package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/filter"
)

const (
	DefaultPerTarget = 3
	previewLength    = 80
)

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	return t
}

// Render prints a per-target summary of the batch with the newest records of
// each target first, followed by the failed targets.
func Render(w io.Writer, res *types.BatchResult, perTarget int) {
	if perTarget <= 0 {
		perTarget = DefaultPerTarget
	}

	records := append([]types.CanonicalRecord{}, res.Records...)
	filter.SortLatestFirst(records)

	counts := map[string]int{}
	order := []string{}
	for _, r := range records {
		if _, ok := counts[r.SourceTarget]; !ok {
			order = append(order, r.SourceTarget)
		}
		counts[r.SourceTarget]++
	}

	t := newTable(w)
	t.SetTitle(fmt.Sprintf("Batch %s (%s, %s)", res.ID, res.Backend, res.Provider))
	t.AppendHeader(table.Row{"Target", "Timestamp", "Views", "Text", "URL"})
	shown := map[string]int{}
	for _, r := range records {
		if shown[r.SourceTarget] >= perTarget {
			continue
		}
		shown[r.SourceTarget]++
		target := ""
		if shown[r.SourceTarget] == 1 {
			target = fmt.Sprintf("%s (%d)", r.SourceTarget, counts[r.SourceTarget])
		}
		t.AppendRow(table.Row{target, r.Timestamp, r.Engagement.Views, truncate(r.BodyText, previewLength), r.CanonicalURL})
	}
	t.AppendFooter(table.Row{"Total", len(records), "", fmt.Sprintf("fetched %d, outcome %s", res.TotalFetched, res.Outcome()), ""})
	t.Render()

	if len(res.Failures) == 0 {
		return
	}
	ft := newTable(w)
	ft.SetTitle("Failed targets")
	ft.AppendHeader(table.Row{"Target", "Run", "Timed out", "Reason"})
	for _, f := range res.Failures {
		ft.AppendRow(table.Row{f.Target, f.JobID, f.TimedOut(), truncate(f.Reason(), previewLength*2)})
	}
	ft.Render()
}
