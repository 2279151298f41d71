package normalize

import (
	"strings"

	"github.com/masa-finance/unified-scraper/api/types"
)

// TextField lists the candidate paths for a string field. The first truthy
// candidate wins; Transform may reject a candidate by returning false.
type TextField struct {
	Keys      []Path
	Default   string
	Transform func(any) (string, bool)
}

// CountField lists the candidate paths for an engagement counter.
type CountField struct {
	Keys []Path
}

// MediaRule describes one place media URLs can live. Every rule contributes,
// in order. Objects found at Path are expanded through Nested keys when set,
// otherwise reduced to their first URLKeys value.
type MediaRule struct {
	Path    Path
	Nested  []string
	URLKeys []string
}

// Schema is the field table of one provider family.
type Schema struct {
	Family       types.Family
	ID           TextField
	SourceTarget TextField
	Timestamp    TextField
	Author       TextField
	BodyText     TextField
	CanonicalURL TextField
	Lang         TextField

	Views     CountField
	Likes     CountField
	Replies   CountField
	Reshares  CountField
	Quotes    CountField
	Bookmarks CountField
	Reactions CountField

	Media []MediaRule
	// URLTemplate is used when no link is present; {target} and {id} are substituted.
	URLTemplate string
	// ReshareMarker is the body prefix that flags a reshare, empty when the family has none.
	ReshareMarker string
	// DropFlags mark placeholder items that must not be normalised.
	DropFlags []Path
}

func keys(paths ...string) []Path {
	out := make([]Path, 0, len(paths))
	for _, p := range paths {
		out = append(out, Path(strings.Split(p, ".")))
	}
	return out
}

func text(paths ...string) TextField {
	return TextField{Keys: keys(paths...)}
}

func count(paths ...string) CountField {
	return CountField{Keys: keys(paths...)}
}

// fullName joins first_name and last_name of an author object.
func fullName(v any) (string, bool) {
	if s, ok := scalarString(v); ok {
		return s, s != ""
	}
	node, ok := v.(types.RawRecord)
	if !ok {
		return "", false
	}
	var parts []string
	for _, k := range []string{"first_name", "last_name"} {
		if p, ok := node.Get(k); ok {
			if s, ok := scalarString(p); ok && s != "" {
				parts = append(parts, s)
			}
		}
	}
	name := strings.TrimSpace(strings.Join(parts, " "))
	return name, name != ""
}

var telegramSchema = Schema{
	Family:       types.FamilyTelegram,
	ID:           text("id", "messageId", "postId", "post_id"),
	SourceTarget: text("channel", "channelUsername", "channelName", "source", "profileName"),
	Timestamp:    text("date", "timestamp", "datetime", "postDate", "created_at"),
	Author:       text("author", "sender", "postAuthor"),
	BodyText:     text("text", "message", "content", "postText"),
	CanonicalURL: text("url", "postUrl", "link", "post_url"),
	Views:        count("views", "viewCount", "view_count"),
	Replies:      count("replies", "replyCount", "comment_count"),
	Reshares:     count("forwards", "forwardCount", "share_count"),
	Reactions:    count("reactionsCount", "reactions_count"),
	Media: []MediaRule{
		{Path: Path{"mediaUrl"}, URLKeys: []string{"url"}},
		{Path: Path{"imageUrl"}, URLKeys: []string{"url"}},
		{Path: Path{"media_urls"}, URLKeys: []string{"url"}},
		{Path: Path{"photo"}, URLKeys: []string{"url"}},
		{Path: Path{"images"}, URLKeys: []string{"url"}},
	},
	URLTemplate: "https://t.me/{target}/{id}",
}

var xSchema = Schema{
	Family:       types.FamilyX,
	ID:           text("tweet_id", "id", "id_str"),
	SourceTarget: text("author.screen_name", "author.userName", "twitterHandle", "handle"),
	Timestamp:    text("created_at", "createdAt", "date", "timestamp"),
	Author:       text("author.name"),
	BodyText:     text("text", "full_text", "tweetText", "content"),
	Lang:         text("lang"),
	Views:        count("views", "viewCount"),
	Likes:        count("favorites", "likeCount", "favorite_count", "likes"),
	Replies:      count("replies", "replyCount", "reply_count"),
	Reshares:     count("retweets", "retweetCount", "retweet_count"),
	Quotes:       count("quotes", "quoteCount"),
	Bookmarks:    count("bookmarks", "bookmarkCount"),
	Media: []MediaRule{
		{
			Path:    Path{"media"},
			Nested:  []string{"photo", "video", "animated_gif"},
			URLKeys: []string{"media_url_https", "url"},
		},
	},
	URLTemplate:   "https://x.com/{target}/status/{id}",
	ReshareMarker: "RT @",
	DropFlags:     keys("noResults", "demo"),
}

var linkedinSchema = Schema{
	Family:       types.FamilyLinkedIn,
	ID:           text("urn.activity_urn", "id"),
	SourceTarget: text("author.username"),
	Timestamp:    text("posted_at.date"),
	Author:       TextField{Keys: keys("author"), Transform: fullName},
	BodyText:     text("text"),
	CanonicalURL: text("url"),
	Likes:        count("stats.like"),
	Replies:      count("stats.comments"),
	Reshares:     count("stats.reposts"),
	Reactions:    count("stats.total_reactions"),
	Media: []MediaRule{
		{Path: Path{"media", "url"}},
		{Path: Path{"media", "images"}, URLKeys: []string{"url"}},
	},
	URLTemplate: "https://www.linkedin.com/feed/update/urn:li:activity:{id}/",
}

var sessionSchema = Schema{
	Family:       types.FamilySession,
	ID:           text("id"),
	SourceTarget: text("channel"),
	Timestamp:    text("date"),
	Author:       text("author"),
	BodyText:     text("text"),
	CanonicalURL: text("url"),
	Views:        count("views"),
	Replies:      count("replies"),
	Reshares:     count("forwards"),
	Media: []MediaRule{
		{Path: Path{"media_urls"}},
	},
	URLTemplate: "https://t.me/{target}/{id}",
}

var schemas = map[types.Family]*Schema{
	types.FamilyTelegram: &telegramSchema,
	types.FamilyX:        &xSchema,
	types.FamilyLinkedIn: &linkedinSchema,
	types.FamilySession:  &sessionSchema,
}

// SchemaFor returns the table of a family. Unknown families get the session
// table, whose plain id/text/date keys are the most generic.
func SchemaFor(family types.Family) *Schema {
	if s, ok := schemas[family]; ok {
		return s
	}
	return &sessionSchema
}
