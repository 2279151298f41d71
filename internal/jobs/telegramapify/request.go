package telegramapify

import (
	"fmt"
	"strings"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/apify"
)

const (
	// DefaultDays is the lookback used when a day-based actor gets no window.
	DefaultDays = 7
)

// ProxyConfig is the Apify proxy block shared by the telegram actors.
type ProxyConfig struct {
	UseApifyProxy    bool     `json:"useApifyProxy"`
	ApifyProxyGroups []string `json:"apifyProxyGroups,omitempty"`
}

// MediaActorRequest is the input of webfinity/telegram-channel-content-media-scraper-v2
type MediaActorRequest struct {
	Channels      string `json:"channels"`
	MaxPosts      uint   `json:"maxPosts"`
	DaysRange     uint   `json:"daysRange"`
	IncludeText   bool   `json:"includeText"`
	MediaOnly     bool   `json:"mediaOnly"`
	DownloadMedia bool   `json:"downloadMedia"`
}

// PostsActorRequest is the input of danielmilevski9/telegram-channel-scraper
type PostsActorRequest struct {
	Channels  []string    `json:"channels"`
	PostsFrom uint        `json:"postsFrom"`
	PostsTo   uint        `json:"postsTo"`
	Proxy     ProxyConfig `json:"proxy"`
}

// MessagesActorRequest is the input of cheapget/telegram-channel-message
type MessagesActorRequest struct {
	TelegramURL    string `json:"telegram_url"`
	MaxResults     uint   `json:"max_results"`
	DownloadMedias string `json:"download_medias"`
	StartDate      string `json:"start_date"`
}

// ChannelActorRequest is the input of tri_angle/telegram-scraper
type ChannelActorRequest struct {
	Profiles                  []string    `json:"profiles"`
	CollectMessages           bool        `json:"collectMessages"`
	ProxyConfigurationOptions ProxyConfig `json:"proxyConfigurationOptions"`
}

// NormalizeChannel reduces a channel reference (@name, t.me link) to the plain username.
func NormalizeChannel(channel string) string {
	channel = strings.TrimSpace(channel)
	if i := strings.Index(channel, "t.me/"); i >= 0 {
		channel = channel[i+len("t.me/"):]
		channel = strings.SplitN(channel, "/", 2)[0]
		channel = strings.SplitN(channel, "?", 2)[0]
	}
	return strings.TrimPrefix(channel, "@")
}

// NormalizeChannels applies NormalizeChannel to every entry, dropping blanks.
func NormalizeChannels(channels []string) []string {
	out := make([]string, 0, len(channels))
	for _, c := range channels {
		if n := NormalizeChannel(c); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Build derives the actor input for one of the telegram providers.
func Build(req types.JobRequest, actor apify.ActorConfig) (types.JobSpec, error) {
	if len(req.SearchTerms) > 0 {
		return types.JobSpec{}, types.Unsupported(actor.Provider, "search terms")
	}
	if len(req.URLs) > 0 {
		return types.JobSpec{}, types.Unsupported(actor.Provider, "urls")
	}

	channels := NormalizeChannels(req.Targets)
	if len(channels) == 0 {
		return types.JobSpec{}, types.ErrEmptyRequest
	}

	limit := req.Limit
	if limit == 0 {
		limit = actor.DefaultLimit
	}
	if actor.MaxResults > 0 && limit > actor.MaxResults {
		limit = actor.MaxResults
	}

	spec := types.JobSpec{
		Provider:    actor.Provider,
		ActorID:     string(actor.ActorId),
		MemoryMB:    actor.DefaultMemoryMB,
		Timeout:     req.Timeout,
		Targets:     channels,
		Limit:       limit,
		MultiTarget: actor.MultiTarget,
	}
	if req.MemoryMB > 0 {
		spec.MemoryMB = req.MemoryMB
	}

	switch actor.Provider {
	case apify.TelegramMedia:
		if req.HasPostRange() {
			return types.JobSpec{}, types.Unsupported(actor.Provider, "post ranges")
		}
		days := req.Days
		if days == 0 {
			days = DefaultDays
		}
		if actor.MaxDays > 0 && days > actor.MaxDays {
			days = actor.MaxDays
		}
		spec.Input = MediaActorRequest{
			Channels:      strings.Join(channels, ", "),
			MaxPosts:      limit,
			DaysRange:     days,
			IncludeText:   true,
			MediaOnly:     false,
			DownloadMedia: req.IncludeMedia,
		}

	case apify.TelegramPosts:
		if req.Days > 0 {
			return types.JobSpec{}, types.Unsupported(actor.Provider, "day lookback")
		}
		from := req.PostsFrom
		if from == 0 {
			from = 1
		}
		to := req.PostsTo
		if to == 0 {
			to = limit
		}
		spec.Input = PostsActorRequest{
			Channels:  channels,
			PostsFrom: from,
			PostsTo:   to,
			Proxy: ProxyConfig{
				UseApifyProxy:    true,
				ApifyProxyGroups: []string{"RESIDENTIAL"},
			},
		}

	case apify.TelegramMessages:
		if req.HasPostRange() {
			return types.JobSpec{}, types.Unsupported(actor.Provider, "post ranges")
		}
		if len(channels) > 1 {
			return types.JobSpec{}, types.Unsupported(actor.Provider, "more than one channel per run")
		}
		days := req.Days
		if days == 0 {
			days = DefaultDays
		}
		spec.Input = MessagesActorRequest{
			TelegramURL:    "https://t.me/" + channels[0],
			MaxResults:     limit,
			DownloadMedias: "text",
			StartDate:      fmt.Sprintf("%d days", days),
		}

	case apify.TelegramChannel:
		if req.HasPostRange() {
			return types.JobSpec{}, types.Unsupported(actor.Provider, "post ranges")
		}
		if req.Days > 0 {
			return types.JobSpec{}, types.Unsupported(actor.Provider, "day lookback")
		}
		spec.Input = ChannelActorRequest{
			Profiles:                  channels,
			CollectMessages:           true,
			ProxyConfigurationOptions: ProxyConfig{UseApifyProxy: true},
		}

	default:
		return types.JobSpec{}, fmt.Errorf("%w: %q is not a telegram provider", types.ErrUnknownProvider, actor.Provider)
	}

	return spec, nil
}
