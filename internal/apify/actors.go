package apify

import (
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/masa-finance/unified-scraper/api/types"
)

type ActorId string

const (
	TelegramMedia    types.ProviderId = "telegram-media"
	TelegramPosts    types.ProviderId = "telegram-posts"
	TelegramMessages types.ProviderId = "telegram-messages"
	TelegramChannel  types.ProviderId = "telegram-channel"
	XPPR             types.ProviderId = "x-ppr"
	XSearch          types.ProviderId = "x-search"
	XFull            types.ProviderId = "x-full"
	LinkedInPosts    types.ProviderId = "linkedin-posts"
)

// DefaultProvider is used when a request names no provider.
const DefaultProvider = TelegramChannel

type actorIds struct {
	TelegramMedia    ActorId
	TelegramPosts    ActorId
	TelegramMessages ActorId
	TelegramChannel  ActorId
	XPPR             ActorId
	XSearch          ActorId
	XFull            ActorId
	LinkedInPosts    ActorId
}

var ActorIds = actorIds{
	TelegramMedia:    "f9ah2tzQwzhF8OyfK",
	TelegramPosts:    "73JZk4CeKcDsWoJQu",
	TelegramMessages: "TpLqaxMYSJzwVnXoj",
	TelegramChannel:  "GEHKCq8O4orlPjLFf",
	XPPR:             "ghSpYIW3L1RvT57NT",
	XSearch:          "CJdippxWmn9uRfooo",
	XFull:            "61RPP7dywgiy0JPD0",
	LinkedInPosts:    "LQQIXN9Othf8f7R5n",
}

type ActorConfig struct {
	Provider    types.ProviderId
	ActorId     ActorId
	Name        string
	Description string
	Family      types.Family
	// MultiTarget actors take every target in one run; the others run once per target.
	MultiTarget bool
	// MaxResults and MaxDays are the clamps applied by the builder, zero when unbounded.
	MaxResults      uint
	MaxDays         uint
	DefaultLimit    uint
	DefaultMemoryMB uint
}

// Actors is the list of actor configurations for Apify.
var Actors = []ActorConfig{
	{
		Provider:        TelegramMedia,
		DefaultLimit:    50,
		ActorId:         ActorIds.TelegramMedia,
		Name:            "webfinity/telegram-channel-content-media-scraper-v2",
		Description:     "Up to 200 posts/channel with media support",
		Family:          types.FamilyTelegram,
		MultiTarget:     true,
		MaxResults:      200,
		MaxDays:         30,
		DefaultMemoryMB: 4096,
	},
	{
		Provider:        TelegramPosts,
		DefaultLimit:    50,
		ActorId:         ActorIds.TelegramPosts,
		Name:            "danielmilevski9/telegram-channel-scraper",
		Description:     "Post range scraping, needs residential proxy",
		Family:          types.FamilyTelegram,
		MultiTarget:     true,
		DefaultMemoryMB: 4096,
	},
	{
		Provider:        TelegramMessages,
		DefaultLimit:    50,
		ActorId:         ActorIds.TelegramMessages,
		Name:            "cheapget/telegram-channel-message",
		Description:     "Message extraction with date filtering",
		Family:          types.FamilyTelegram,
		DefaultMemoryMB: 4096,
	},
	{
		Provider:        TelegramChannel,
		DefaultLimit:    1000,
		ActorId:         ActorIds.TelegramChannel,
		Name:            "tri_angle/telegram-scraper",
		Description:     "Channel profiles with messages",
		Family:          types.FamilyTelegram,
		MultiTarget:     true,
		DefaultMemoryMB: 4096,
	},
	{
		Provider:        XPPR,
		DefaultLimit:    3,
		ActorId:         ActorIds.XPPR,
		Name:            "danek/twitter-scraper-ppr",
		Description:     "Twitter Scraper PPR, one handle per run",
		Family:          types.FamilyX,
		DefaultMemoryMB: 256,
	},
	{
		Provider:        XSearch,
		DefaultLimit:    3,
		ActorId:         ActorIds.XSearch,
		Name:            "kaitoeasyapi/tweet-scraper",
		Description:     "Tweet Scraper, search based, pay-per-result",
		Family:          types.FamilyX,
		DefaultMemoryMB: 256,
	},
	{
		Provider:        XFull,
		DefaultLimit:    3,
		ActorId:         ActorIds.XFull,
		Name:            "apidojo/tweet-scraper",
		Description:     "Tweet Scraper V2, full featured",
		Family:          types.FamilyX,
		MultiTarget:     true,
		DefaultMemoryMB: 256,
	},
	{
		Provider:        LinkedInPosts,
		DefaultLimit:    10,
		ActorId:         ActorIds.LinkedInPosts,
		Name:            "apimaestro/linkedin-profile-posts",
		Description:     "Profile Posts Scraper for LinkedIn, no cookies",
		Family:          types.FamilyLinkedIn,
		MaxResults:      100,
		DefaultMemoryMB: 256,
	},
}

// Lookup returns the actor configured for a provider.
func Lookup(provider types.ProviderId) (ActorConfig, error) {
	if provider == "" {
		provider = DefaultProvider
	}
	for _, a := range Actors {
		if a.Provider == provider {
			return a, nil
		}
	}
	return ActorConfig{}, fmt.Errorf("%w: %q", types.ErrUnknownProvider, provider)
}

// ProviderIds lists every configured provider, sorted.
func ProviderIds() []types.ProviderId {
	out := make([]types.ProviderId, 0, len(Actors))
	for _, a := range Actors {
		out = append(out, a.Provider)
	}
	slices.Sort(out)
	return out
}
