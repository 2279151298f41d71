package jobs

import (
	"fmt"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/apify"
	"github.com/masa-finance/unified-scraper/internal/jobs/linkedinapify"
	"github.com/masa-finance/unified-scraper/internal/jobs/telegramapify"
	"github.com/masa-finance/unified-scraper/internal/jobs/xapify"
)

// BuildSpec turns a request into the payload of the provider's actor. It
// performs no I/O; unsupported field combinations are rejected here so that
// nothing reaches the network.
func BuildSpec(req types.JobRequest, provider types.ProviderId) (types.JobSpec, error) {
	if err := req.Validate(); err != nil {
		return types.JobSpec{}, err
	}
	actor, err := apify.Lookup(provider)
	if err != nil {
		return types.JobSpec{}, err
	}

	switch actor.Family {
	case types.FamilyTelegram:
		return telegramapify.Build(req, actor)
	case types.FamilyX:
		return xapify.Build(req, actor)
	case types.FamilyLinkedIn:
		return linkedinapify.Build(req, actor)
	}
	return types.JobSpec{}, fmt.Errorf("%w: %q has no builder", types.ErrUnknownProvider, provider)
}

// PlanSpecs returns every spec a batch needs: one spec for multi-target
// providers, one per target and per search term otherwise. Any rejection
// fails the whole plan.
func PlanSpecs(req types.JobRequest) ([]types.JobSpec, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	actor, err := apify.Lookup(req.Provider)
	if err != nil {
		return nil, err
	}

	if actor.MultiTarget {
		spec, err := BuildSpec(req, actor.Provider)
		if err != nil {
			return nil, err
		}
		return []types.JobSpec{spec}, nil
	}

	if len(req.URLs) > 0 {
		return nil, types.Unsupported(actor.Provider, "urls")
	}

	specs := make([]types.JobSpec, 0, len(req.Targets)+len(req.SearchTerms))
	for _, target := range req.Targets {
		spec, err := BuildSpec(req.ForTarget(target), actor.Provider)
		if err != nil {
			return nil, fmt.Errorf("target %q: %w", target, err)
		}
		specs = append(specs, spec)
	}
	for _, term := range req.SearchTerms {
		spec, err := BuildSpec(req.ForSearchTerm(term), actor.Provider)
		if err != nil {
			return nil, fmt.Errorf("search term %q: %w", term, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
