package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/masa-finance/unified-scraper/api/types"
	"github.com/masa-finance/unified-scraper/internal/apify"
	"github.com/masa-finance/unified-scraper/internal/config"
	"github.com/masa-finance/unified-scraper/internal/filter"
	"github.com/masa-finance/unified-scraper/internal/jobs/stats"
	"github.com/masa-finance/unified-scraper/internal/jobs/telegramapify"
	"github.com/masa-finance/unified-scraper/internal/normalize"
	"github.com/masa-finance/unified-scraper/internal/session"
	"github.com/masa-finance/unified-scraper/pkg/client"
)

// DefaultSessionLimit caps messages per channel on the session backend when the request sets no limit.
const DefaultSessionLimit = 1000

// NewApifyClient is a function variable that can be replaced in tests.
var NewApifyClient = func(token string, opts ...client.Option) (client.Apify, error) {
	return client.NewApifyClient(token, opts...)
}

// Orchestrator runs batches on whichever backend the configuration allows.
type Orchestrator struct {
	cfg            config.Config
	session        *session.Backend
	statsCollector *stats.StatsCollector
	clientOptions  []client.Option
	now            func() time.Time
}

type OrchestratorOption func(*Orchestrator)

// WithSessionBackend sets the backend used when the session path is selected.
func WithSessionBackend(b *session.Backend) OrchestratorOption {
	return func(o *Orchestrator) { o.session = b }
}

// WithStats reports job and record counts to the collector.
func WithStats(sc *stats.StatsCollector) OrchestratorOption {
	return func(o *Orchestrator) { o.statsCollector = sc }
}

// WithClientOptions passes options to every Apify client the orchestrator creates.
func WithClientOptions(opts ...client.Option) OrchestratorOption {
	return func(o *Orchestrator) { o.clientOptions = append(o.clientOptions, opts...) }
}

func NewOrchestrator(cfg config.Config, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// aggregate is the only place job results are merged.
type aggregate struct {
	sync.Mutex
	records  []types.CanonicalRecord
	failures []types.TargetFailure
	jobs     []types.JobSummary
}

func (a *aggregate) add(idx int, job types.JobSummary, records []types.CanonicalRecord) {
	a.Lock()
	defer a.Unlock()
	a.jobs[idx] = job
	a.records = append(a.records, records...)
}

func (a *aggregate) fail(idx int, job types.JobSummary, failure types.TargetFailure) {
	a.Lock()
	defer a.Unlock()
	a.jobs[idx] = job
	a.failures = append(a.failures, failure)
}

// Run executes one batch. Per-target failures are recorded on the result; the
// returned error is reserved for failures of the batch as a whole, in which
// case the partial result is still returned.
func (o *Orchestrator) Run(ctx context.Context, batch types.Batch) (*types.BatchResult, error) {
	if batch.ID == "" {
		batch.ID = uuid.New().String()
	}
	result := &types.BatchResult{
		ID:        batch.ID,
		State:     types.BatchNotStarted,
		Records:   []types.CanonicalRecord{},
		Failures:  []types.TargetFailure{},
		Jobs:      []types.JobSummary{},
		StartedAt: o.now(),
	}
	log := logrus.WithField("batch", batch.ID)

	err := o.run(ctx, batch, result, log)
	result.FinishedAt = o.now()
	if err != nil {
		o.statsCollector.Add(result.Provider, stats.BatchErrors, 1)
		log.Errorf("Batch stopped in state %s: %v", result.State, err)
		return result, err
	}

	o.statsCollector.Add(result.Provider, stats.Batches, 1)
	log.Infof("Batch done: %d records, %d failures, outcome %s", len(result.Records), len(result.Failures), result.Outcome())
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, batch types.Batch, result *types.BatchResult, log *logrus.Entry) error {
	if err := batch.Request.Validate(); err != nil {
		return err
	}

	backend, err := SelectBackend(o.cfg, batch.Backend)
	if err != nil {
		return err
	}
	result.Backend = backend
	result.State = types.BatchBackendChosen
	log.Infof("Using %s backend", backend)

	var agg *aggregate
	switch backend {
	case types.BackendApify:
		agg, err = o.runApify(ctx, batch, result, log)
	case types.BackendSession:
		agg, err = o.runSession(ctx, batch, result, log)
	default:
		err = fmt.Errorf("unknown backend %q", backend)
	}
	if agg != nil {
		result.Records = append(result.Records, agg.records...)
		result.Failures = append(result.Failures, agg.failures...)
		result.Jobs = append(result.Jobs, agg.jobs...)
		result.TotalFetched = len(agg.records)
	}
	if err != nil {
		return err
	}
	result.State = types.BatchAggregated

	from, to := batch.Request.DateFrom, batch.Request.DateTo
	if from == nil && batch.Request.Days > 0 && backend == types.BackendSession {
		t := o.now().AddDate(0, 0, -int(batch.Request.Days))
		from = &t
	}
	result.Records = filter.Window(result.Records, from, to)
	result.Records = filter.Apply(result.Records, batch.Keywords, batch.MinViews)
	result.State = types.BatchFiltered
	o.statsCollector.Add(result.Provider, stats.FilteredRecords, uint(result.TotalFetched-len(result.Records)))

	result.State = types.BatchDone
	return nil
}

func (o *Orchestrator) pollBudget(batch types.Batch) (timeout, interval time.Duration) {
	timeout = batch.PollTimeout
	if timeout <= 0 {
		timeout = batch.Request.Timeout
	}
	if timeout <= 0 {
		timeout = o.cfg.PollTimeout
	}
	if timeout <= 0 {
		timeout = client.DefaultPollTimeout
	}
	interval = batch.PollInterval
	if interval <= 0 {
		interval = o.cfg.PollInterval
	}
	if interval <= 0 {
		interval = client.DefaultPollInterval
	}
	return timeout, interval
}

func (o *Orchestrator) runApify(ctx context.Context, batch types.Batch, result *types.BatchResult, log *logrus.Entry) (*aggregate, error) {
	actor, err := apify.Lookup(batch.Request.Provider)
	if err != nil {
		return nil, err
	}
	result.Provider = actor.Provider

	// Every spec is built before the first request so a rejected field fails the batch without side effects.
	specs, err := PlanSpecs(batch.Request)
	if err != nil {
		return nil, err
	}

	api, err := NewApifyClient(o.cfg.ApifyToken, o.clientOptions...)
	if err != nil {
		return nil, err
	}

	limit := batch.MaxConcurrentJobs
	if limit < 1 {
		limit = o.cfg.MaxConcurrentJobs
	}
	if limit < 1 {
		limit = 1
	}
	timeout, interval := o.pollBudget(batch)

	result.State = types.BatchPerTargetLoop
	log.Infof("Running %d job(s) on %s, %d at a time", len(specs), actor.Provider, limit)

	agg := &aggregate{jobs: make([]types.JobSummary, len(specs))}
	g := errgroup.Group{}
	g.SetLimit(limit)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			o.runJob(ctx, api, i, spec, timeout, interval, agg)
			return nil
		})
	}
	_ = g.Wait()

	return agg, ctx.Err()
}

func (o *Orchestrator) runJob(ctx context.Context, api client.Apify, idx int, spec types.JobSpec, timeout, interval time.Duration, agg *aggregate) {
	log := logrus.WithFields(logrus.Fields{"provider": spec.Provider, "target": spec.Label()})
	summary := types.JobSummary{Targets: spec.Targets, Status: types.StatusFailed}

	failed := func(err error) {
		if errors.Is(err, types.ErrTimedOut) {
			o.statsCollector.Add(spec.Provider, stats.JobTimeouts, 1)
		} else {
			o.statsCollector.Add(spec.Provider, stats.JobFailures, 1)
		}
		log.Warnf("Target failed: %v", err)
		agg.fail(idx, summary, types.TargetFailure{Target: spec.Label(), JobID: summary.RunID, Err: err})
	}

	handle, err := api.Submit(ctx, spec)
	if err != nil {
		failed(err)
		return
	}
	o.statsCollector.Add(spec.Provider, stats.JobSubmissions, 1)
	summary.RunID = handle.RunID
	log = log.WithField("run", handle.RunID)

	// The budget covers observation and the dataset read.
	jobCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	expired := func(err error) bool {
		return errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil
	}

	status, handle, err := api.Poll(jobCtx, handle, timeout, interval)
	if expired(err) {
		summary.Status = types.StatusTimedOut
		failed(fmt.Errorf("%w: run %s did not finish within %s", types.ErrTimedOut, handle.RunID, timeout))
		return
	}
	if err != nil {
		failed(err)
		return
	}
	summary.Status = status
	switch status {
	case types.StatusSucceeded:
	case types.StatusTimedOut:
		failed(fmt.Errorf("%w: run %s did not finish within %s", types.ErrTimedOut, handle.RunID, timeout))
		return
	default:
		failed(fmt.Errorf("%w: run %s ended with status %s", types.ErrRunNotSucceeded, handle.RunID, status))
		return
	}

	var raws []types.RawRecord
	if handle.DatasetID == "" {
		log.Warn("Run succeeded without a dataset")
	} else if err := api.FetchResults(jobCtx, handle.DatasetID, func(r types.RawRecord) error {
		raws = append(raws, r)
		return nil
	}); err != nil {
		if expired(err) {
			summary.Status = types.StatusTimedOut
			failed(fmt.Errorf("%w: dataset %s of run %s was not read within %s", types.ErrTimedOut, handle.DatasetID, handle.RunID, timeout))
			return
		}
		summary.Status = types.StatusFailed
		failed(fmt.Errorf("fetching dataset %s: %w", handle.DatasetID, err))
		return
	}

	nctx := normalize.Context{Provider: spec.Provider}
	if len(spec.Targets) == 1 {
		nctx.SourceTarget = spec.Targets[0]
	}
	records := normalize.NormalizeAll(raws, nctx)
	summary.Records = len(records)

	o.statsCollector.Add(spec.Provider, stats.JobSuccesses, 1)
	o.statsCollector.Add(spec.Provider, stats.ReturnedRecords, uint(len(records)))
	log.Infof("Fetched %d items, %d records", len(raws), len(records))
	agg.add(idx, summary, records)
}

func (o *Orchestrator) runSession(ctx context.Context, batch types.Batch, result *types.BatchResult, log *logrus.Entry) (*aggregate, error) {
	req := batch.Request
	result.Provider = types.SessionProvider
	switch {
	case len(req.SearchTerms) > 0:
		return nil, types.Unsupported(types.SessionProvider, "search terms")
	case len(req.URLs) > 0:
		return nil, types.Unsupported(types.SessionProvider, "urls")
	case req.HasPostRange():
		return nil, types.Unsupported(types.SessionProvider, "post ranges")
	}

	limit := int(req.Limit)
	if limit == 0 {
		limit = DefaultSessionLimit
	}
	channels := telegramapify.NormalizeChannels(req.Targets)
	agg := &aggregate{jobs: make([]types.JobSummary, len(channels))}

	err := o.session.WithSession(ctx, func(ctx context.Context, c session.Client) error {
		result.State = types.BatchPerTargetLoop
		for i, channel := range channels {
			if err := ctx.Err(); err != nil {
				return err
			}
			summary := types.JobSummary{Targets: []string{channel}, Status: types.StatusFailed}
			raws, err := session.ScrapeChannel(ctx, c, channel, limit, req.IncludeMedia)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithField("target", channel).Warnf("Target failed: %v", err)
				o.statsCollector.Add(types.SessionProvider, stats.JobFailures, 1)
				agg.fail(i, summary, types.TargetFailure{Target: channel, Err: err})
				continue
			}
			records := normalize.NormalizeAll(raws, normalize.Context{SourceTarget: channel, Provider: types.SessionProvider})
			summary.Status = types.StatusSucceeded
			summary.Records = len(records)
			o.statsCollector.Add(types.SessionProvider, stats.SessionScrapes, 1)
			o.statsCollector.Add(types.SessionProvider, stats.ReturnedRecords, uint(len(records)))
			log.WithField("target", channel).Infof("Got %d messages", len(records))
			agg.add(i, summary, records)
		}
		return nil
	})

	// Only channels that were reached count as jobs.
	jobs := agg.jobs[:0]
	for _, j := range agg.jobs {
		if len(j.Targets) > 0 {
			jobs = append(jobs, j)
		}
	}
	agg.jobs = jobs
	return agg, err
}
