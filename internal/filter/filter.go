// Package filter applies post-hoc predicates to normalised records.
package filter

import (
	"sort"
	"strings"
	"time"

	"github.com/masa-finance/unified-scraper/api/types"
)

// Apply keeps records whose body matches any keyword (case-insensitive
// substring) and whose view count is at least minViews. An empty keyword set
// matches everything. Order is preserved.
func Apply(records []types.CanonicalRecord, keywords []string, minViews int64) []types.CanonicalRecord {
	needles := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			needles = append(needles, k)
		}
	}

	out := make([]types.CanonicalRecord, 0, len(records))
	for _, r := range records {
		if r.Engagement.Views < minViews {
			continue
		}
		if len(needles) > 0 && !matchesAny(strings.ToLower(r.BodyText), needles) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesAny(body string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(body, n) {
			return true
		}
	}
	return false
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RubyDate,
	"2006-01-02",
}

// ParseTimestamp reads the timestamp formats the providers emit.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Window keeps records whose timestamp lies within [from, to]. Nil bounds are
// open. Records without a parseable timestamp are kept.
func Window(records []types.CanonicalRecord, from, to *time.Time) []types.CanonicalRecord {
	if from == nil && to == nil {
		return records
	}
	out := make([]types.CanonicalRecord, 0, len(records))
	for _, r := range records {
		ts, ok := ParseTimestamp(r.Timestamp)
		if ok {
			if from != nil && ts.Before(*from) {
				continue
			}
			if to != nil && ts.After(*to) {
				continue
			}
		}
		out = append(out, r)
	}
	return out
}

// SortLatestFirst orders records by source target, newest first within each
// target. Records without a parseable timestamp go last.
func SortLatestFirst(records []types.CanonicalRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.SourceTarget != b.SourceTarget {
			return a.SourceTarget < b.SourceTarget
		}
		ta, okA := ParseTimestamp(a.Timestamp)
		tb, okB := ParseTimestamp(b.Timestamp)
		switch {
		case okA && okB:
			return ta.After(tb)
		case okA:
			return true
		default:
			return false
		}
	})
}
