// Package normalize reduces provider payloads to types.CanonicalRecord using
// declarative per-family field tables.
package normalize

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/apify"
)

// Context carries what the caller knows about a record independent of its payload.
type Context struct {
	SourceTarget string
	Provider     types.ProviderId
}

// FamilyOf resolves the field table family of a provider.
func FamilyOf(provider types.ProviderId) types.Family {
	if provider == types.SessionProvider {
		return types.FamilySession
	}
	actor, err := apify.Lookup(provider)
	if err != nil {
		return types.FamilySession
	}
	return actor.Family
}

// Normalize maps one raw record onto the canonical shape. It never fails:
// missing fields take their defaults.
func Normalize(raw types.RawRecord, ctx Context) types.CanonicalRecord {
	return SchemaFor(FamilyOf(ctx.Provider)).Apply(raw, ctx)
}

// NormalizeAll normalises a batch, dropping placeholder items.
func NormalizeAll(raws []types.RawRecord, ctx Context) []types.CanonicalRecord {
	schema := SchemaFor(FamilyOf(ctx.Provider))
	out := make([]types.CanonicalRecord, 0, len(raws))
	for _, raw := range raws {
		if schema.Skip(raw) {
			logrus.WithField("provider", ctx.Provider).Debug("Skipping placeholder item")
			continue
		}
		out = append(out, schema.Apply(raw, ctx))
	}
	return out
}

// Skip reports whether any drop flag of the schema is set on the record.
func (s *Schema) Skip(raw types.RawRecord) bool {
	for _, flag := range s.DropFlags {
		if v, ok := lookup(raw, flag); ok && truthy(v) {
			return true
		}
	}
	return false
}

// Apply evaluates the table against one record.
func (s *Schema) Apply(raw types.RawRecord, ctx Context) types.CanonicalRecord {
	rec := types.CanonicalRecord{
		ID:           s.ID.eval(raw),
		SourceTarget: s.SourceTarget.eval(raw),
		Provider:     ctx.Provider,
		Timestamp:    s.Timestamp.eval(raw),
		Author:       s.Author.eval(raw),
		BodyText:     s.BodyText.eval(raw),
		CanonicalURL: s.CanonicalURL.eval(raw),
		Lang:         s.Lang.eval(raw),
		Engagement: types.Engagement{
			Views:     s.Views.eval(raw),
			Likes:     s.Likes.eval(raw),
			Replies:   s.Replies.eval(raw),
			Reshares:  s.Reshares.eval(raw),
			Quotes:    s.Quotes.eval(raw),
			Bookmarks: s.Bookmarks.eval(raw),
			Reactions: s.Reactions.eval(raw),
		},
		MediaURLs:   s.media(raw),
		ProviderRaw: raw,
	}
	if rec.SourceTarget == "" {
		rec.SourceTarget = ctx.SourceTarget
	}
	if rec.CanonicalURL == "" {
		rec.CanonicalURL = s.url(rec.SourceTarget, rec.ID)
	}
	if s.ReshareMarker != "" {
		rec.IsReshare = strings.HasPrefix(rec.BodyText, s.ReshareMarker)
	}
	return rec
}

func (f TextField) eval(raw types.RawRecord) string {
	for _, path := range f.Keys {
		v, ok := lookup(raw, path)
		if !ok || !truthy(v) {
			continue
		}
		if f.Transform != nil {
			if s, ok := f.Transform(v); ok {
				return s
			}
			continue
		}
		if s, ok := scalarString(v); ok && s != "" {
			return s
		}
	}
	return f.Default
}

func (f CountField) eval(raw types.RawRecord) int64 {
	for _, path := range f.Keys {
		v, ok := lookup(raw, path)
		if !ok || !truthy(v) {
			continue
		}
		if n, ok := parseCount(v); ok && n != 0 {
			return n
		}
	}
	return 0
}

func (s *Schema) url(target, id string) string {
	if s.URLTemplate == "" || target == "" || id == "" {
		return ""
	}
	return strings.NewReplacer("{target}", target, "{id}", id).Replace(s.URLTemplate)
}

func (s *Schema) media(raw types.RawRecord) []string {
	out := []string{}
	for _, rule := range s.Media {
		v, ok := lookup(raw, rule.Path)
		if !ok || !truthy(v) {
			continue
		}
		out = rule.collect(out, v, true)
	}
	return out
}

// collect appends the URLs found in v. Nested expansion only applies at the rule's top level.
func (r MediaRule) collect(out []string, v any, top bool) []string {
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			out = r.collect(out, item, false)
		}
	case []string:
		for _, item := range t {
			if item != "" {
				out = append(out, item)
			}
		}
	case types.RawRecord:
		if top && len(r.Nested) > 0 {
			for _, key := range r.Nested {
				if nested, ok := t.Get(key); ok {
					out = r.collect(out, nested, false)
				}
			}
			return out
		}
		for _, key := range r.URLKeys {
			if u, ok := t.Get(key); ok {
				if s, ok := scalarString(u); ok && s != "" {
					return append(out, s)
				}
			}
		}
	case map[string]any:
		for _, key := range r.URLKeys {
			if s, ok := scalarString(t[key]); ok && s != "" {
				return append(out, s)
			}
		}
	default:
		if s, ok := scalarString(t); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
