// Package lookup serves single-ticker history and latest-price queries,
// reading through the document and key-value caches.
package lookup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/yf-price-fetcher/internal/cache"
	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// ErrNotFound is returned when the provider has no data for a ticker.
var ErrNotFound = errors.New("ticker not found")

// Source fetches uncached data from the market-data provider.
type Source interface {
	History(ctx context.Context, symbol, period string) ([]model.Bar, error)
	LatestPrice(ctx context.Context, symbol string) (float64, error)
}

// HistoryCache stores full histories by ticker.
type HistoryCache interface {
	Get(ctx context.Context, ticker string) (*cache.HistoryDoc, error)
	Put(ctx context.Context, doc cache.HistoryDoc) error
}

// PriceCache stores latest prices by ticker.
type PriceCache interface {
	Get(ctx context.Context, ticker string) (float64, bool, error)
	Set(ctx context.Context, ticker string, price float64) error
}

// Config holds lookup settings.
type Config struct {
	LifetimeDays int            // History documents older than this are refetched
	Location     *time.Location // Zone deciding "today" for document age
}

// Service answers lookups. Either cache may be nil, in which case every
// call goes to the provider.
type Service struct {
	cfg    Config
	source Source
	docs   HistoryCache
	prices PriceCache
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Service.
func New(cfg Config, source Source, docs HistoryCache, prices PriceCache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &Service{
		cfg:    cfg,
		source: source,
		docs:   docs,
		prices: prices,
		logger: logger,
		now:    time.Now,
	}
}

// HistoryMax returns the full daily history of ticker.
func (s *Service) HistoryMax(ctx context.Context, ticker string) ([]model.Bar, error) {
	ticker = strings.TrimSpace(ticker)
	today := model.DateOf(s.now().In(s.cfg.Location))

	if s.docs != nil {
		doc, err := s.docs.Get(ctx, ticker)
		switch {
		case err != nil:
			s.logger.Warn("history cache read failed", "ticker", ticker, "error", err)
		case !doc.Expired(today, s.cfg.LifetimeDays) && len(doc.Data) > 0:
			s.logger.Debug("history cache hit", "ticker", ticker, "created_at", doc.CreatedAt)
			return doc.Data, nil
		}
	}

	s.logger.Info("fetching history", "ticker", ticker)
	bars, err := s.source.History(ctx, ticker, "max")
	if err != nil {
		return nil, notFoundOr(err, ticker)
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%s: %w", ticker, ErrNotFound)
	}

	if s.docs != nil {
		doc := cache.HistoryDoc{Ticker: ticker, Data: bars, CreatedAt: today.String()}
		if err := s.docs.Put(ctx, doc); err != nil {
			s.logger.Warn("history cache write failed", "ticker", ticker, "error", err)
		}
	}
	return bars, nil
}

// LatestPrice returns the last traded price of ticker. A zero price counts
// as no data.
func (s *Service) LatestPrice(ctx context.Context, ticker string) (float64, error) {
	ticker = strings.TrimSpace(ticker)

	if s.prices != nil {
		price, ok, err := s.prices.Get(ctx, ticker)
		switch {
		case err != nil:
			s.logger.Warn("price cache read failed", "ticker", ticker, "error", err)
		case ok && price != 0:
			s.logger.Debug("price cache hit", "ticker", ticker)
			return price, nil
		}
	}

	s.logger.Info("fetching latest price", "ticker", ticker)
	price, err := s.source.LatestPrice(ctx, ticker)
	if err != nil {
		return 0, notFoundOr(err, ticker)
	}
	if price == 0 {
		return 0, fmt.Errorf("%s: %w", ticker, ErrNotFound)
	}

	if s.prices != nil {
		if err := s.prices.Set(ctx, ticker, price); err != nil {
			s.logger.Warn("price cache write failed", "ticker", ticker, "error", err)
		}
	}
	return price, nil
}

// notFoundOr maps provider "unknown symbol" errors onto ErrNotFound.
func notFoundOr(err error, ticker string) error {
	var nf interface{ NotFound() bool }
	if errors.As(err, &nf) && nf.NotFound() {
		return fmt.Errorf("%s: %w", ticker, ErrNotFound)
	}
	return fmt.Errorf("fetch %s: %w", ticker, err)
}
