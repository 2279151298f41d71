package xapify

import (
	"fmt"
	"strings"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/apify"
)

// DefaultSort is the search ordering used when the request names none.
const DefaultSort = "Latest"

// PPRActorRequest is the input of danek/twitter-scraper-ppr
type PPRActorRequest struct {
	MaxPosts   uint   `json:"max_posts"`
	Username   string `json:"username,omitempty"`
	Query      string `json:"query,omitempty"`
	SearchType string `json:"search_type,omitempty"`
}

// SearchActorRequest is the input of kaitoeasyapi/tweet-scraper
type SearchActorRequest struct {
	MaxItems       uint   `json:"maxItems"`
	QueryType      string `json:"queryType"`
	TwitterContent string `json:"twitterContent,omitempty"`
	Lang           string `json:"lang,omitempty"`
}

// FullActorRequest is the input of apidojo/tweet-scraper
type FullActorRequest struct {
	MaxItems       uint     `json:"maxItems"`
	Sort           string   `json:"sort"`
	TwitterHandles []string `json:"twitterHandles,omitempty"`
	StartUrls      []string `json:"startUrls,omitempty"`
	SearchTerms    []string `json:"searchTerms,omitempty"`
	TweetLanguage  string   `json:"tweetLanguage,omitempty"`
}

var handlePrefixes = []string{
	"https://x.com/", "https://twitter.com/", "http://x.com/", "http://twitter.com/",
	"x.com/", "twitter.com/",
}

// NormalizeHandle strips @ and x.com or twitter.com URL prefixes from a handle.
func NormalizeHandle(handle string) string {
	handle = strings.TrimSpace(handle)
	lower := strings.ToLower(handle)
	for _, prefix := range handlePrefixes {
		if strings.HasPrefix(lower, prefix) {
			handle = handle[len(prefix):]
			handle = strings.SplitN(handle, "/", 2)[0]
			handle = strings.SplitN(handle, "?", 2)[0]
			break
		}
	}
	return strings.TrimPrefix(handle, "@")
}

// NormalizeHandles applies NormalizeHandle to every entry, dropping blanks.
func NormalizeHandles(handles []string) []string {
	out := make([]string, 0, len(handles))
	for _, h := range handles {
		if n := NormalizeHandle(h); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Build derives the actor input for one of the x providers.
func Build(req types.JobRequest, actor apify.ActorConfig) (types.JobSpec, error) {
	if req.HasPostRange() {
		return types.JobSpec{}, types.Unsupported(actor.Provider, "post ranges")
	}
	if req.Days > 0 {
		return types.JobSpec{}, types.Unsupported(actor.Provider, "day lookback")
	}

	handles := NormalizeHandles(req.Targets)
	limit := req.Limit
	if limit == 0 {
		limit = actor.DefaultLimit
	}
	sort := req.Sort
	if sort == "" {
		sort = DefaultSort
	}

	spec := types.JobSpec{
		Provider:    actor.Provider,
		ActorID:     string(actor.ActorId),
		MemoryMB:    actor.DefaultMemoryMB,
		Timeout:     req.Timeout,
		Limit:       limit,
		MultiTarget: actor.MultiTarget,
	}
	if req.MemoryMB > 0 {
		spec.MemoryMB = req.MemoryMB
	}

	switch actor.Provider {
	case apify.XPPR, apify.XSearch:
		if len(req.URLs) > 0 {
			return types.JobSpec{}, types.Unsupported(actor.Provider, "urls")
		}
		if len(handles)+len(req.SearchTerms) != 1 {
			return types.JobSpec{}, types.Unsupported(actor.Provider, "more than one handle or search term per run")
		}

		if actor.Provider == apify.XPPR {
			in := PPRActorRequest{MaxPosts: limit}
			if len(handles) == 1 {
				in.Username = handles[0]
				spec.Targets = handles
			} else {
				in.Query = strings.Join(req.SearchTerms, " ")
				in.SearchType = strings.ToLower(sort)
				spec.Targets = []string{in.Query}
			}
			spec.Input = in
		} else {
			in := SearchActorRequest{MaxItems: limit, QueryType: sort, Lang: req.Lang}
			if len(handles) == 1 {
				in.TwitterContent = "from:" + handles[0]
				spec.Targets = handles
			} else {
				in.TwitterContent = strings.Join(req.SearchTerms, " ")
				spec.Targets = []string{in.TwitterContent}
			}
			spec.Input = in
		}

	case apify.XFull:
		in := FullActorRequest{
			MaxItems:      limit * uint(max(len(handles), len(req.SearchTerms), 1)),
			Sort:          sort,
			SearchTerms:   req.SearchTerms,
			TweetLanguage: req.Lang,
		}
		if len(handles) > 0 {
			in.TwitterHandles = handles
			for _, h := range handles {
				in.StartUrls = append(in.StartUrls, "https://x.com/"+h)
			}
		}
		in.StartUrls = append(in.StartUrls, req.URLs...)
		spec.Input = in

		switch {
		case len(handles) > 0:
			spec.Targets = handles
		case len(req.SearchTerms) > 0:
			spec.Targets = append([]string{}, req.SearchTerms...)
		default:
			spec.Targets = append([]string{}, req.URLs...)
		}

	default:
		return types.JobSpec{}, fmt.Errorf("%w: %q is not an x provider", types.ErrUnknownProvider, actor.Provider)
	}

	return spec, nil
}
