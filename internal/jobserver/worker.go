package jobserver

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/masa-finance/unified-scraper/api/types"
)

func (js *JobServer) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			logrus.Debug("Worker stopping")
			return

		case b := <-js.batchChan:
			logrus.WithField("batch", b.ID).Info("Batch received")
			js.doWork(ctx, b)
		}
	}
}

func (js *JobServer) doWork(ctx context.Context, b types.Batch) {
	js.Lock()
	js.running++
	js.Unlock()
	defer func() {
		js.Lock()
		js.running--
		js.Unlock()
	}()

	res, err := js.runner.Run(ctx, b)

	var report types.BatchReport
	if res != nil {
		report = res.Report()
	} else {
		report = types.BatchReport{ID: b.ID, Backend: b.Backend, State: types.BatchNotStarted, Records: []types.CanonicalRecord{}, Failures: []types.FailureReport{}}
	}
	report.ID = b.ID
	if err != nil {
		report.Error = err.Error()
	}

	js.results.Set(b.ID, BatchEntry{Done: true, Report: report})
}
