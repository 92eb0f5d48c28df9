// Package coordinator implements C6: it filters the input stream against
// the checkpoint, fans records out to W worker goroutines, and owns the
// checkpoint's single writer path plus progress/commit cadence.
package coordinator

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/supplier-resolver/resolver/internal/checkpoint"
	"github.com/supplier-resolver/resolver/internal/domain"
)

// Progress is emitted at every commit boundary (§4.6 step 4).
type Progress struct {
	Processed int
	Total     int
	Rate      float64 // records/sec over the whole run so far
	ETA       time.Duration
}

// Config configures a single coordinator run.
type Config struct {
	Workers     int
	BatchSize   int
	Limit       int // 0 means unlimited
	RetryErrors bool
	// TotalRecords is the full input size, used only to compute ETA in
	// progress reports. 0 means "unknown" and ETA is left as 0.
	TotalRecords int
}

// Worker resolves one RawRecord. The coordinator itself shares no state
// across workers other than the checkpoint; whatever a Worker holds (in
// cmd/resolver: its own RegistryQuery handle and Normalizer cache, plus the
// one rate-limited LLM adapter every worker is given) is the caller's
// wiring.
type Worker interface {
	Resolve(ctx context.Context, raw domain.RawRecord) domain.MatchResult
}

// Coordinator runs the filter → dispatch → checkpoint → progress loop.
type Coordinator struct {
	cfg     Config
	store   *checkpoint.Store
	logger  *zap.Logger
	workers []Worker
	onProgress func(Progress)
}

// New builds a Coordinator. len(workers) must equal cfg.Workers.
func New(cfg Config, store *checkpoint.Store, workers []Worker, logger *zap.Logger, onProgress func(Progress)) *Coordinator {
	return &Coordinator{cfg: cfg, store: store, logger: logger, workers: workers, onProgress: onProgress}
}

// Run drains raw, a channel the caller closes once the input stream is
// exhausted. Cancelling ctx stops dispatch; Run then waits for each worker
// to return from the record it is resolving, commits the results that
// reached it (a result finished after cancellation may or may not be among
// them), and returns.
func (c *Coordinator) Run(ctx context.Context, raw <-chan domain.RawRecord) error {
	// retry_errors=true means error rows flow back through dispatch, so the
	// skip set must exclude them; the default (false) treats every
	// previously-touched row, errors included, as done.
	processedIDs, err := c.store.ProcessedIDs(!c.cfg.RetryErrors)
	if err != nil {
		return fmt.Errorf("bootstrap processed_ids: %w", err)
	}

	results := make(chan domain.MatchResult, c.cfg.Workers*2)
	dispatch := make(chan domain.RawRecord, c.cfg.Workers)

	group, gctx := errgroup.WithContext(ctx)

	// Filter-then-limit: limiting before filtering would waste the limit
	// on already-completed records across re-runs (§4.6 step 2).
	group.Go(func() error {
		defer close(dispatch)
		emitted := 0
		for {
			select {
			case <-gctx.Done():
				return nil
			case rec, ok := <-raw:
				if !ok {
					return nil
				}
				if _, done := processedIDs[rec.InputID]; done {
					continue
				}
				if c.cfg.Limit > 0 && emitted >= c.cfg.Limit {
					return nil
				}
				emitted++
				select {
				case dispatch <- rec:
				case <-gctx.Done():
					return nil
				}
			}
		}
	})

	for i := 0; i < c.cfg.Workers; i++ {
		w := c.workers[i]
		group.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case rec, ok := <-dispatch:
					if !ok {
						return nil
					}
					result := w.Resolve(gctx, rec)
					select {
					case results <- result:
					case <-gctx.Done():
						return nil
					}
				}
			}
		})
	}

	done := make(chan error, 1)
	go func() { done <- group.Wait(); close(results) }()

	start := time.Now()
	total := len(processedIDs)
	thisRun := 0
	for result := range results {
		c.store.Upsert(result)
		total++
		thisRun++
		if c.store.PendingCount() >= c.cfg.BatchSize {
			if err := c.commitAndReport(total, thisRun, start); err != nil {
				return err
			}
		}
	}

	if err := c.commitAndReport(total, thisRun, start); err != nil {
		return err
	}

	return <-done
}

func (c *Coordinator) commitAndReport(processed, thisRun int, start time.Time) error {
	if err := c.store.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint batch: %w", err)
	}
	if c.onProgress != nil {
		elapsed := time.Since(start)
		rate := 0.0
		if elapsed > 0 {
			rate = float64(thisRun) / elapsed.Seconds()
		}
		eta := time.Duration(0)
		if rate > 0 && c.cfg.TotalRecords > processed {
			eta = time.Duration(float64(c.cfg.TotalRecords-processed)/rate) * time.Second
		}
		c.onProgress(Progress{Processed: processed, Total: c.cfg.TotalRecords, Rate: rate, ETA: eta})
	}
	return nil
}
