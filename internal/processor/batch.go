// Package processor drives classify-and-link over many content items.
package processor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
	"github.com/jonesrussell/north-cloud/autotagger/internal/telemetry"
)

// Item statuses.
const (
	StatusSucceeded = "succeeded"
	StatusPartial   = "partial"
	StatusFailed    = "failed"
	StatusSkipped   = "skipped"
)

// Runner classifies and links one content item.
type Runner interface {
	ClassifyAndLink(ctx context.Context, contentID string) (*domain.LinkResult, error)
}

// Options configure a batch run.
type Options struct {
	// Concurrency is the number of items in flight. Default 1.
	Concurrency int
	// MaxErrors stops dispatch once this many items failed. 0 means unlimited.
	MaxErrors int
	// RatePerSecond limits dispatch. 0 means unlimited.
	RatePerSecond float64
	Retry         RetryConfig
}

// ItemResult is the outcome for one content item.
type ItemResult struct {
	ContentID      string   `json:"content_id"`
	Status         string   `json:"status"`
	Kind           string   `json:"kind,omitempty"`
	Error          string   `json:"error,omitempty"`
	Attempts       int      `json:"attempts"`
	Terms          int      `json:"terms"`
	FailedFeatures []string `json:"failed_features,omitempty"`
}

// Summary aggregates a batch run.
type Summary struct {
	RunID     string        `json:"run_id"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Partial   int           `json:"partial"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Results   []ItemResult  `json:"results"`
}

// Batch runs a Runner over content ids. Each item is fire-and-continue: a
// failure is recorded and the run moves on until the error budget is spent.
type Batch struct {
	runner    Runner
	opts      Options
	limiter   *RateLimiter
	log       logger.Logger
	telemetry *telemetry.Provider
}

// NewBatch creates a Batch.
func NewBatch(runner Runner, opts Options, log logger.Logger, tp *telemetry.Provider) *Batch {
	if log == nil {
		log = logger.NewNop()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Retry.IsRetryable == nil {
		opts.Retry.IsRetryable = IsTransport
	}
	return &Batch{
		runner:    runner,
		opts:      opts,
		limiter:   NewRateLimiter(opts.RatePerSecond, opts.Concurrency, log),
		log:       log,
		telemetry: tp,
	}
}

// Run processes ids and returns a summary with results in input order.
func (b *Batch) Run(ctx context.Context, ids []string) *Summary {
	start := time.Now()
	summary := &Summary{
		RunID:   uuid.NewString(),
		Total:   len(ids),
		Results: make([]ItemResult, len(ids)),
	}
	log := b.log.With(logger.String("run_id", summary.RunID))
	log.Info("Batch started",
		logger.Int("total", len(ids)),
		logger.Int("concurrency", b.opts.Concurrency),
		logger.Int("max_errors", b.opts.MaxErrors),
	)
	b.telemetry.RecordBatchSize(len(ids))

	var failures atomic.Int64
	var wg sync.WaitGroup
	// A slot is taken before the budget check, so with Concurrency 1 the
	// check always sees the previous item's outcome.
	slots := make(chan struct{}, b.opts.Concurrency)

	for i, id := range ids {
		if !b.acquire(ctx, slots) {
			summary.Results[i] = ItemResult{ContentID: id, Status: StatusSkipped}
			continue
		}
		if b.budgetSpent(&failures) {
			<-slots
			summary.Results[i] = ItemResult{ContentID: id, Status: StatusSkipped}
			continue
		}
		if err := b.limiter.Wait(ctx); err != nil {
			<-slots
			summary.Results[i] = ItemResult{ContentID: id, Status: StatusSkipped}
			continue
		}

		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			res := b.process(ctx, log, id)
			if res.Status == StatusFailed {
				failures.Add(1)
			}
			summary.Results[i] = res
			<-slots
		}(i, id)
	}
	wg.Wait()

	for _, res := range summary.Results {
		switch res.Status {
		case StatusSucceeded:
			summary.Succeeded++
		case StatusPartial:
			summary.Partial++
		case StatusFailed:
			summary.Failed++
		default:
			summary.Skipped++
		}
		b.telemetry.RecordBatchItem(res.Status)
	}
	summary.Duration = time.Since(start)

	log.Info("Batch finished",
		logger.Int("succeeded", summary.Succeeded),
		logger.Int("partial", summary.Partial),
		logger.Int("failed", summary.Failed),
		logger.Int("skipped", summary.Skipped),
		logger.Duration("duration", summary.Duration),
	)
	return summary
}

func (b *Batch) acquire(ctx context.Context, slots chan struct{}) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case slots <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

func (b *Batch) budgetSpent(failures *atomic.Int64) bool {
	return b.opts.MaxErrors > 0 && failures.Load() >= int64(b.opts.MaxErrors)
}

func (b *Batch) process(ctx context.Context, log logger.Logger, id string) ItemResult {
	retryCfg := b.opts.Retry
	retryCfg.OnRetry = func(attempt int, err error) {
		b.telemetry.IncrementBatchRetries()
		log.Warn("Retrying after transport failure",
			logger.ContentID(id),
			logger.Int("attempt", attempt),
			logger.Error(err),
		)
	}

	var result *domain.LinkResult
	attempts, err := Retry(ctx, retryCfg, func() error {
		var runErr error
		result, runErr = b.runner.ClassifyAndLink(ctx, id)
		return runErr
	})

	res := ItemResult{ContentID: id, Attempts: attempts}
	if err != nil {
		res.Status = StatusFailed
		res.Kind = domain.Kind(err)
		res.Error = err.Error()
		log.Warn("Batch item failed",
			logger.ContentID(id),
			logger.String("kind", res.Kind),
			logger.Error(err),
		)
		return res
	}

	res.Status = StatusSucceeded
	if result != nil {
		for _, fr := range result.PerFeature {
			if fr.Err == nil {
				res.Terms += len(fr.Terms)
			}
		}
		for _, f := range result.Failed() {
			res.FailedFeatures = append(res.FailedFeatures, string(f))
		}
		if len(res.FailedFeatures) > 0 {
			res.Status = StatusPartial
			res.Kind = domain.KindLinking
		}
	}
	return res
}
