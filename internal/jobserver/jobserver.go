package jobserver

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
)

// Runner executes one batch to completion.
type Runner interface {
	Run(ctx context.Context, batch types.Batch) (*types.BatchResult, error)
}

// JobServer runs batches submitted over HTTP on a fixed pool of workers and
// keeps their reports in a ResultCache.
type JobServer struct {
	sync.Mutex

	batchChan chan types.Batch
	stop      chan struct{}
	workers   int
	runner    Runner
	results   *ResultCache

	running int
	stopped bool
}

func NewJobServer(workers int, runner Runner, cacheMaxSize int, cacheMaxAge time.Duration) *JobServer {
	logrus.Info("Initializing JobServer...")

	if workers <= 0 {
		logrus.Infof("Invalid worker count (%d), defaulting to 1 worker.", workers)
		workers = 1
	} else {
		logrus.Infof("Setting worker count to %d.", workers)
	}

	return &JobServer{
		batchChan: make(chan types.Batch),
		stop:      make(chan struct{}),
		workers:   workers,
		runner:    runner,
		results:   NewResultCache(cacheMaxSize, cacheMaxAge),
	}
}

// Run starts the workers and blocks until ctx is done. It must be called once.
func (js *JobServer) Run(ctx context.Context) {
	for i := 0; i < js.workers; i++ {
		go js.worker(ctx)
	}

	<-ctx.Done()

	js.Lock()
	js.stopped = true
	js.Unlock()
	close(js.stop)
	js.results.Close()
}

// AddBatch assigns the batch an id, marks it pending and queues it. It returns
// the id used to look up the result.
func (js *JobServer) AddBatch(b types.Batch) (string, error) {
	js.Lock()
	stopped := js.stopped
	js.Unlock()
	if stopped {
		return "", ErrServerStopped
	}

	b.ID = uuid.New().String()
	js.results.Set(b.ID, BatchEntry{Report: types.BatchReport{
		ID:      b.ID,
		Backend: b.Backend,
		State:   types.BatchNotStarted,
	}})

	go func() {
		select {
		case js.batchChan <- b:
		case <-js.stop:
			logrus.WithField("batch", b.ID).Warn("Server stopped before the batch was picked up")
			js.results.Set(b.ID, BatchEntry{Done: true, Report: types.BatchReport{
				ID:       b.ID,
				Backend:  b.Backend,
				State:    types.BatchNotStarted,
				Records:  []types.CanonicalRecord{},
				Failures: []types.FailureReport{},
				Error:    ErrServerStopped.Error(),
			}})
		}
	}()

	return b.ID, nil
}

// GetBatchResult returns the cache entry of a batch.
func (js *JobServer) GetBatchResult(id string) (BatchEntry, bool) {
	return js.results.Get(id)
}

// Running is the number of batches currently executing.
func (js *JobServer) Running() int {
	js.Lock()
	defer js.Unlock()
	return js.running
}
