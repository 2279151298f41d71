package normalize_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/apify"
	"github.com/masa-finance/unified-scraper/internal/normalize"
)

func raw(doc string) types.RawRecord {
	var r types.RawRecord
	ExpectWithOffset(1, json.Unmarshal([]byte(doc), &r)).To(Succeed())
	return r
}

var _ = Describe("Normalize", func() {
	telegram := normalize.Context{SourceTarget: "durov", Provider: apify.TelegramMedia}
	x := normalize.Context{SourceTarget: "golang", Provider: apify.XPPR}
	linkedin := normalize.Context{SourceTarget: "satyanadella", Provider: apify.LinkedInPosts}

	Context("defaults", func() {
		It("should fill every field of an empty record with its zero value", func() {
			rec := normalize.Normalize(raw(`{}`), telegram)
			Expect(rec.ID).To(BeEmpty())
			Expect(rec.BodyText).To(BeEmpty())
			Expect(rec.Timestamp).To(BeEmpty())
			Expect(rec.Engagement).To(Equal(types.Engagement{}))
			Expect(rec.MediaURLs).NotTo(BeNil())
			Expect(rec.MediaURLs).To(BeEmpty())
			Expect(rec.SourceTarget).To(Equal("durov"))
			Expect(rec.CanonicalURL).To(BeEmpty())
			Expect(rec.Provider).To(Equal(apify.TelegramMedia))
		})

		It("should treat null and non-numeric counters as zero", func() {
			rec := normalize.Normalize(raw(`{"id": 9, "views": null, "forwards": "n/a", "replies": {"count": 3}}`), telegram)
			Expect(rec.Engagement.Views).To(BeZero())
			Expect(rec.Engagement.Reshares).To(BeZero())
			Expect(rec.Engagement.Replies).To(BeZero())
		})
	})

	Context("candidate priority", func() {
		It("should take the first present candidate", func() {
			rec := normalize.Normalize(raw(`{"postId": "p", "messageId": 2, "id": 1}`), telegram)
			Expect(rec.ID).To(Equal("1"))
		})

		It("should fall through empty and zero candidates", func() {
			rec := normalize.Normalize(raw(`{"id": 0, "messageId": 42, "text": "", "message": "hello", "views": 0, "viewCount": "1,234"}`), telegram)
			Expect(rec.ID).To(Equal("42"))
			Expect(rec.BodyText).To(Equal("hello"))
			Expect(rec.Engagement.Views).To(Equal(int64(1234)))
		})

		It("should prefer the payload's own target over the context", func() {
			rec := normalize.Normalize(raw(`{"id": 1, "channelUsername": "telegram"}`), telegram)
			Expect(rec.SourceTarget).To(Equal("telegram"))
			Expect(rec.CanonicalURL).To(Equal("https://t.me/telegram/1"))
		})

		It("should keep large numeric ids exact", func() {
			rec := normalize.Normalize(raw(`{"tweet_id": 1790000000000000123}`), x)
			Expect(rec.ID).To(Equal("1790000000000000123"))
		})
	})

	Context("telegram family", func() {
		It("should synthesize the post link when none is provided", func() {
			rec := normalize.Normalize(raw(`{"id": 77, "text": "hi"}`), telegram)
			Expect(rec.CanonicalURL).To(Equal("https://t.me/durov/77"))
		})

		It("should keep a provider link", func() {
			rec := normalize.Normalize(raw(`{"id": 77, "postUrl": "https://t.me/s/durov/77"}`), telegram)
			Expect(rec.CanonicalURL).To(Equal("https://t.me/s/durov/77"))
		})

		It("should flatten scalar and list media keys in table order without deduplication", func() {
			rec := normalize.Normalize(raw(`{
				"images": ["https://cdn/a.jpg", {"url": "https://cdn/b.jpg"}],
				"mediaUrl": "https://cdn/a.jpg",
				"photo": {"url": "https://cdn/c.jpg"}
			}`), telegram)
			Expect(rec.MediaURLs).To(Equal([]string{
				"https://cdn/a.jpg",
				"https://cdn/c.jpg",
				"https://cdn/a.jpg",
				"https://cdn/b.jpg",
			}))
		})

		It("should never flag reshares", func() {
			rec := normalize.Normalize(raw(`{"text": "RT @someone forwarded"}`), telegram)
			Expect(rec.IsReshare).To(BeFalse())
		})
	})

	Context("x family", func() {
		tweet := `{
			"id_str": "123",
			"author": {"screen_name": "gopher", "name": "The Gopher"},
			"createdAt": "Tue May 14 10:00:00 +0000 2024",
			"full_text": "RT @golang: Go 1.22 is out",
			"likeCount": 10, "retweetCount": "1.2K", "reply_count": 3,
			"viewCount": 5000, "bookmarkCount": 2, "quoteCount": 1,
			"lang": "en",
			"media": {"photo": [{"media_url_https": "https://pbs/p.jpg"}], "video": [{"url": "https://v/v.mp4"}], "animated_gif": []}
		}`

		It("should map the fallback chains", func() {
			rec := normalize.Normalize(raw(tweet), x)
			Expect(rec.ID).To(Equal("123"))
			Expect(rec.SourceTarget).To(Equal("gopher"))
			Expect(rec.Author).To(Equal("The Gopher"))
			Expect(rec.Timestamp).To(Equal("Tue May 14 10:00:00 +0000 2024"))
			Expect(rec.Lang).To(Equal("en"))
			Expect(rec.Engagement).To(Equal(types.Engagement{
				Views: 5000, Likes: 10, Replies: 3, Reshares: 1200, Quotes: 1, Bookmarks: 2,
			}))
			Expect(rec.CanonicalURL).To(Equal("https://x.com/gopher/status/123"))
		})

		It("should detect reshares by the body prefix", func() {
			Expect(normalize.Normalize(raw(tweet), x).IsReshare).To(BeTrue())
			Expect(normalize.Normalize(raw(`{"text": "not RT @x"}`), x).IsReshare).To(BeFalse())
		})

		It("should flatten typed media groups", func() {
			rec := normalize.Normalize(raw(tweet), x)
			Expect(rec.MediaURLs).To(Equal([]string{"https://pbs/p.jpg", "https://v/v.mp4"}))
		})

		It("should flatten list-form media", func() {
			rec := normalize.Normalize(raw(`{"media": [{"url": "https://a"}, {"media_url_https": "https://b", "url": "https://ignored"}]}`), x)
			Expect(rec.MediaURLs).To(Equal([]string{"https://a", "https://b"}))
		})

		It("should fall back to the context handle for the link", func() {
			rec := normalize.Normalize(raw(`{"id": "9"}`), x)
			Expect(rec.CanonicalURL).To(Equal("https://x.com/golang/status/9"))
		})

		It("should drop placeholder items", func() {
			items := []types.RawRecord{
				raw(`{"id": "1", "text": "real"}`),
				raw(`{"noResults": true}`),
				raw(`{"id": "2", "demo": true}`),
				raw(`{"id": "3", "demo": false}`),
			}
			Expect(normalize.SchemaFor(normalize.FamilyOf(apify.XFull)).Skip(items[1])).To(BeTrue())
			out := normalize.NormalizeAll(items, x)
			Expect(out).To(HaveLen(2))
			Expect(out[0].ID).To(Equal("1"))
			Expect(out[1].ID).To(Equal("3"))
		})
	})

	Context("linkedin family", func() {
		post := `{
			"urn": {"activity_urn": "7200000000000000000"},
			"url": "https://www.linkedin.com/posts/abc",
			"text": "Hiring!",
			"posted_at": {"date": "2024-05-01 10:00:00", "relative": "1w"},
			"author": {"first_name": "Satya", "last_name": "Nadella", "username": "satyanadella"},
			"stats": {"total_reactions": 120, "like": 100, "comments": 7, "reposts": 4},
			"media": {"type": "images", "url": "https://m/cover.jpg", "images": [{"url": "https://m/1.jpg"}, {"url": ""}]}
		}`

		It("should read nested paths", func() {
			rec := normalize.Normalize(raw(post), linkedin)
			Expect(rec.ID).To(Equal("7200000000000000000"))
			Expect(rec.Author).To(Equal("Satya Nadella"))
			Expect(rec.SourceTarget).To(Equal("satyanadella"))
			Expect(rec.Timestamp).To(Equal("2024-05-01 10:00:00"))
			Expect(rec.Engagement.Reactions).To(Equal(int64(120)))
			Expect(rec.Engagement.Likes).To(Equal(int64(100)))
			Expect(rec.Engagement.Replies).To(Equal(int64(7)))
			Expect(rec.Engagement.Reshares).To(Equal(int64(4)))
			Expect(rec.CanonicalURL).To(Equal("https://www.linkedin.com/posts/abc"))
			Expect(rec.MediaURLs).To(Equal([]string{"https://m/cover.jpg", "https://m/1.jpg"}))
		})

		It("should synthesize the activity link", func() {
			rec := normalize.Normalize(raw(`{"urn": {"activity_urn": "42"}}`), linkedin)
			Expect(rec.CanonicalURL).To(Equal("https://www.linkedin.com/feed/update/urn:li:activity:42/"))
		})
	})

	It("should be idempotent and keep the raw record", func() {
		r := raw(`{"id": 5, "text": "abc", "views": "3K", "images": ["u"]}`)
		first := normalize.Normalize(r, telegram)
		second := normalize.Normalize(r, telegram)
		Expect(second).To(Equal(first))
		Expect(first.ProviderRaw.Keys()).To(Equal([]string{"id", "text", "views", "images"}))
	})

	It("should fall back to the generic table for unknown providers", func() {
		rec := normalize.Normalize(raw(`{"id": 1, "text": "t", "channel": "c"}`), normalize.Context{Provider: "nope"})
		Expect(rec.ID).To(Equal("1"))
		Expect(rec.CanonicalURL).To(Equal("https://t.me/c/1"))
	})
})
