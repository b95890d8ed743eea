package fetcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/rickgao/yf-price-fetcher/internal/model"
	"github.com/rickgao/yf-price-fetcher/internal/provider"
	"github.com/rickgao/yf-price-fetcher/internal/store"
)

// Issue titles written to the issue log.
const (
	TitleNoData        = "no data"
	TitleFetchFailed   = "fetch failed"
	TitlePersistFailed = "persist failed"
)

// Result summarizes one run.
type Result struct {
	Processed int // Rows attempted in committed batches
	Inserted  int // Rows newly written

	Cohorts       int
	Batches       int
	EmptyBatches  int
	FailedBatches int
}

// Engine runs incremental syncs. It is safe to reuse across runs but not
// to run concurrently with itself; callers serialize runs.
type Engine struct {
	cfg      Config
	store    store.Store
	provider provider.Provider
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for "today" and issue timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// New creates an Engine.
func New(cfg Config, st store.Store, p provider.Provider, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = 1
	}
	e := &Engine{
		cfg:      cfg,
		store:    st,
		provider: p,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs one full sync pass.
//
// Batch failures never fail the run; they are counted in the Result and
// written to the issue log. Run returns an error only when watermarks cannot
// be loaded or ctx is cancelled, in which case the Result covers the batches
// committed so far.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result
	start := e.now()

	assets, err := e.store.LoadWatermarks(ctx)
	if err != nil {
		return res, fmt.Errorf("load watermarks: %w", err)
	}

	ids := make(map[string]uuid.UUID, len(assets))
	watermarks := make(map[string]model.Watermark, len(assets))
	for _, a := range assets {
		if _, dup := ids[a.Asset.Ticker]; dup {
			e.logger.Warn("duplicate ticker in registry, keeping first", "ticker", a.Asset.Ticker)
			continue
		}
		ids[a.Asset.Ticker] = a.Asset.ID
		watermarks[a.Asset.Ticker] = a.Watermark
	}

	today := model.DateOf(e.now().In(e.cfg.Location))
	cohorts := PlanCohorts(watermarks)
	res.Cohorts = len(cohorts)

	e.logger.Info("sync started",
		"assets", len(ids),
		"cohorts", len(cohorts),
		"today", today,
		"provider", e.provider.Name(),
	)

	for _, cohort := range cohorts {
		window := ResolveWindow(cohort.Watermark, today, e.cfg.Window)
		batches := Chunk(cohort.Tickers, e.cfg.ChunkSize)

		e.logger.Info("processing cohort",
			"watermark", cohort.Watermark,
			"window", window,
			"tickers", len(cohort.Tickers),
			"batches", len(batches),
		)

		for i, batch := range batches {
			if err := ctx.Err(); err != nil {
				e.logger.Warn("sync cancelled", "processed", res.Processed, "inserted", res.Inserted)
				return res, err
			}

			br := e.runBatch(ctx, window, batch, ids)
			res.Batches++
			res.Processed += br.processed
			res.Inserted += br.inserted
			switch br.status {
			case provider.StatusEmpty:
				res.EmptyBatches++
			case provider.StatusFailed:
				res.FailedBatches++
			}

			e.logger.Debug("batch done",
				"watermark", cohort.Watermark,
				"batch", i+1,
				"of", len(batches),
				"status", br.status,
				"processed", br.processed,
				"inserted", br.inserted,
			)
		}
	}

	e.logger.Info("sync complete",
		"processed", res.Processed,
		"inserted", res.Inserted,
		"batches", res.Batches,
		"empty_batches", res.EmptyBatches,
		"failed_batches", res.FailedBatches,
		"duration", e.now().Sub(start),
	)

	return res, nil
}

// batchResult is the outcome of one batch after persistence.
type batchResult struct {
	status    provider.Status
	processed int
	inserted  int
}

// runBatch downloads, normalizes and persists one batch. Failures are
// recorded as issues and reported through the returned status.
func (e *Engine) runBatch(ctx context.Context, window Window, batch []string, ids map[string]uuid.UUID) batchResult {
	symbols := make([]string, len(batch))
	for i, t := range batch {
		symbols[i] = ProviderSymbol(t, e.cfg.SymbolSuffix)
	}

	out := e.provider.Download(ctx, provider.Request{
		Symbols:    symbols,
		Start:      window.Start,
		End:        window.End,
		Period:     window.Period,
		Interval:   e.cfg.Interval,
		AutoAdjust: e.cfg.AutoAdjust,
		Actions:    e.cfg.Actions,
	})

	switch out.Status {
	case provider.StatusEmpty:
		e.logger.Warn("no data for batch", "window", window, "tickers", batch)
		msg := fmt.Sprintf("%s returned no rows for %s", e.provider.Name(), window)
		e.recordIssues(ctx, batch, model.LevelWarning, TitleNoData, msg)
		return batchResult{status: provider.StatusEmpty}

	case provider.StatusFailed:
		return e.failBatch(ctx, batch, TitleFetchFailed, out.Err)
	}

	long, err := Normalize(out.Frame, batch, e.cfg.SymbolSuffix)
	if err != nil {
		return e.failBatch(ctx, batch, TitleFetchFailed, fmt.Errorf("normalize: %w", err))
	}
	rows := ToPriceRows(long, ids)

	var inserted int
	err = e.store.InTx(ctx, func(tx store.Tx) error {
		n, err := tx.InsertHistory(ctx, rows)
		if err != nil {
			return err
		}
		inserted = n
		return nil
	})
	if err != nil {
		return e.failBatch(ctx, batch, TitlePersistFailed, err)
	}

	return batchResult{status: provider.StatusRows, processed: len(rows), inserted: inserted}
}

// failBatch flags every ticker of a batch with an error issue.
func (e *Engine) failBatch(ctx context.Context, batch []string, title string, err error) batchResult {
	e.logger.Error("batch failed", "title", title, "tickers", batch, "error", err)
	e.recordIssues(ctx, batch, model.LevelError, title, truncate(err.Error(), MaxIssueMessageLen))
	return batchResult{status: provider.StatusFailed}
}

// recordIssues appends one issue per ticker in its own transaction.
func (e *Engine) recordIssues(ctx context.Context, batch []string, level, title, msg string) {
	now := e.now()
	issues := make([]model.Issue, len(batch))
	for i, t := range batch {
		issues[i] = model.Issue{
			ID:        uuid.New(),
			Ticker:    t,
			Title:     title,
			Message:   msg,
			Service:   e.cfg.Service,
			Level:     level,
			CreatedAt: now,
		}
	}

	err := e.store.InTx(ctx, func(tx store.Tx) error {
		return tx.AppendIssues(ctx, issues)
	})
	if err != nil {
		e.logger.Error("failed to record issues", "title", title, "tickers", batch, "error", err)
	}
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
