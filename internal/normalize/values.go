package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/masa-finance/unified-scraper/api/types"
)

// Path addresses a value inside nested objects, e.g. {"author", "screen_name"}.
type Path []string

// lookup follows the path through nested objects. Both RawRecord and plain
// maps are accepted as intermediate nodes.
func lookup(raw types.RawRecord, path Path) (any, bool) {
	var cur any = raw
	for _, key := range path {
		switch node := cur.(type) {
		case types.RawRecord:
			v, ok := node.Get(key)
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]any:
			v, ok := node[key]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// truthy mirrors the "present and non-empty" test of the field tables:
// nil, empty strings, zeros, false and empty collections all fall through.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case int32:
		return t != 0
	case uint:
		return t != 0
	case uint64:
		return t != 0
	case []any:
		return len(t) > 0
	case []string:
		return len(t) > 0
	case types.RawRecord:
		return t.Len() > 0
	case map[string]any:
		return len(t) > 0
	case time.Time:
		return !t.IsZero()
	case *time.Time:
		return t != nil && !t.IsZero()
	}
	return true
}

// scalarString renders scalars as text. Objects and arrays are not scalars.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatInt(int64(t), 10), true
		}
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case int32:
		return strconv.FormatInt(int64(t), 10), true
	case uint:
		return strconv.FormatUint(uint64(t), 10), true
	case uint64:
		return strconv.FormatUint(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	case time.Time:
		return t.UTC().Format(time.RFC3339), true
	case *time.Time:
		if t == nil {
			return "", false
		}
		return t.UTC().Format(time.RFC3339), true
	}
	return "", false
}

var countSuffixes = map[byte]float64{'k': 1e3, 'm': 1e6, 'b': 1e9}

// parseCount accepts numbers and display strings such as "1,234" or "1.2K".
func parseCount(v any) (int64, bool) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
		return 0, false
	case float64:
		return int64(t), true
	case float32:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case int32:
		return int64(t), true
	case uint:
		return int64(t), true
	case uint64:
		return int64(t), true
	case string:
		s := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(t, ",", "")))
		if s == "" {
			return 0, false
		}
		mult := 1.0
		if m, ok := countSuffixes[s[len(s)-1]]; ok {
			mult = m
			s = strings.TrimSpace(s[:len(s)-1])
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return int64(math.Round(f * mult)), true
	}
	return 0, false
}
