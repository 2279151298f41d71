package linkedinapify

import (
	"strings"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/apify"
)

// ProfilePostsActorRequest is the input of apimaestro/linkedin-profile-posts
type ProfilePostsActorRequest struct {
	Username   string `json:"username"`
	Limit      uint   `json:"limit"`
	TotalPosts uint   `json:"total_posts"`
}

var profilePrefixes = []string{
	"https://www.linkedin.com/in/",
	"https://linkedin.com/in/",
	"http://www.linkedin.com/in/",
	"http://linkedin.com/in/",
	"www.linkedin.com/in/",
	"linkedin.com/in/",
}

// NormalizeProfile extracts the username from a profile URL or handle.
func NormalizeProfile(profile string) string {
	profile = strings.TrimRight(strings.TrimSpace(profile), "/")
	lower := strings.ToLower(profile)
	for _, prefix := range profilePrefixes {
		if strings.HasPrefix(lower, prefix) {
			profile = profile[len(prefix):]
			profile = strings.SplitN(profile, "/", 2)[0]
			profile = strings.SplitN(profile, "?", 2)[0]
			break
		}
	}
	return profile
}

// Build derives the actor input for a single linkedin profile.
func Build(req types.JobRequest, actor apify.ActorConfig) (types.JobSpec, error) {
	switch {
	case len(req.SearchTerms) > 0:
		return types.JobSpec{}, types.Unsupported(actor.Provider, "search terms")
	case len(req.URLs) > 0:
		return types.JobSpec{}, types.Unsupported(actor.Provider, "urls")
	case req.HasPostRange():
		return types.JobSpec{}, types.Unsupported(actor.Provider, "post ranges")
	case req.Days > 0:
		return types.JobSpec{}, types.Unsupported(actor.Provider, "day lookback")
	case len(req.Targets) > 1:
		return types.JobSpec{}, types.Unsupported(actor.Provider, "more than one profile per run")
	}

	username := ""
	if len(req.Targets) == 1 {
		username = NormalizeProfile(req.Targets[0])
	}
	if username == "" {
		return types.JobSpec{}, types.ErrEmptyRequest
	}

	total := req.Limit
	if total == 0 {
		total = actor.DefaultLimit
	}
	limit := total
	if actor.MaxResults > 0 && limit > actor.MaxResults {
		limit = actor.MaxResults
	}

	spec := types.JobSpec{
		Provider: actor.Provider,
		ActorID:  string(actor.ActorId),
		Input: ProfilePostsActorRequest{
			Username:   username,
			Limit:      limit,
			TotalPosts: total,
		},
		MemoryMB:    actor.DefaultMemoryMB,
		Timeout:     req.Timeout,
		Targets:     []string{username},
		Limit:       limit,
		MultiTarget: actor.MultiTarget,
	}
	if req.MemoryMB > 0 {
		spec.MemoryMB = req.MemoryMB
	}
	return spec, nil
}
