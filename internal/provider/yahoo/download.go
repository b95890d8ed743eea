package yahoo

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/yf-price-fetcher/internal/model"
	"github.com/rickgao/yf-price-fetcher/internal/provider"
)

// Download implements provider.Provider.
//
// Symbols are fetched concurrently. A symbol the API does not know is left
// out of the frame; any other error fails the whole batch.
func (c *Client) Download(ctx context.Context, req provider.Request) provider.Outcome {
	if err := req.Validate(); err != nil {
		return provider.Failed(err)
	}

	q := chartQuery{
		Start:    req.Start,
		End:      req.End,
		Period:   req.Period,
		Interval: req.Interval,
		Actions:  req.Actions,
	}

	results := make([]*series, len(req.Symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, symbol := range req.Symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			s, err := c.getChart(gctx, symbol, q)
			if err != nil {
				var apiErr *APIError
				if errors.As(err, &apiErr) && apiErr.NotFound() {
					c.logger.Debug("symbol not found", "symbol", symbol, "err", err)
					return nil
				}
				return fmt.Errorf("%s: %w", symbol, err)
			}
			s.trim(req.Start, req.End)
			results[i] = s
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return provider.Failed(err)
	}

	return provider.Rows(buildFrame(results, req.AutoAdjust, req.Actions))
}

// buildFrame merges per-symbol series into one wide frame over the union of dates.
func buildFrame(all []*series, autoAdjust, actions bool) provider.Frame {
	var present []*series
	dateSet := make(map[model.Date]struct{})
	for _, s := range all {
		if s == nil || len(s.Bars) == 0 {
			continue
		}
		present = append(present, s)
		for _, b := range s.Bars {
			dateSet[b.Date] = struct{}{}
		}
	}
	if len(present) == 0 {
		return provider.Frame{}
	}

	index := make([]model.Date, 0, len(dateSet))
	for d := range dateSet {
		index = append(index, d)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })
	row := make(map[model.Date]int, len(index))
	for i, d := range index {
		row[d] = i
	}

	fields := []string{
		provider.FieldOpen,
		provider.FieldHigh,
		provider.FieldLow,
		provider.FieldClose,
		provider.FieldVolume,
	}
	if actions {
		fields = append(fields, provider.FieldDividends, provider.FieldSplits)
	}

	frame := provider.Frame{Index: index}
	for _, field := range fields {
		for _, s := range present {
			col := make([]*float64, len(index))
			for _, b := range s.Bars {
				col[row[b.Date]] = pick(b, field, autoAdjust)
			}
			frame.Columns = append(frame.Columns, provider.Column{Field: field, Symbol: s.Symbol})
			frame.Values = append(frame.Values, col)
		}
	}

	return frame
}

// pick returns one field of a bar, adjusting prices by adjclose/close when requested.
func pick(b bar, field string, autoAdjust bool) *float64 {
	var v *float64
	switch field {
	case provider.FieldOpen:
		v = b.Open
	case provider.FieldHigh:
		v = b.High
	case provider.FieldLow:
		v = b.Low
	case provider.FieldClose:
		v = b.Close
	case provider.FieldVolume:
		return b.Volume
	case provider.FieldDividends:
		return b.Dividends
	case provider.FieldSplits:
		return b.Splits
	}
	if v == nil || !autoAdjust || b.AdjClose == nil || b.Close == nil || *b.Close == 0 {
		return v
	}
	adjusted := *v * (*b.AdjClose / *b.Close)
	return &adjusted
}

// History returns the full daily history of one symbol for period (e.g. "max").
func (c *Client) History(ctx context.Context, symbol, period string) ([]model.Bar, error) {
	s, err := c.getChart(ctx, symbol, chartQuery{Period: period, Interval: "1d", Actions: true})
	if err != nil {
		return nil, err
	}

	bars := make([]model.Bar, 0, len(s.Bars))
	for _, b := range s.Bars {
		out := model.Bar{
			Date:   b.Date.String(),
			Open:   pick(b, provider.FieldOpen, true),
			High:   pick(b, provider.FieldHigh, true),
			Low:    pick(b, provider.FieldLow, true),
			Close:  pick(b, provider.FieldClose, true),
			Volume: b.Volume,
		}
		if b.Dividends != nil {
			out.Dividends = *b.Dividends
		}
		if b.Splits != nil {
			out.Splits = *b.Splits
		}
		bars = append(bars, out)
	}
	return bars, nil
}

// LatestPrice returns the last traded price of one symbol.
func (c *Client) LatestPrice(ctx context.Context, symbol string) (float64, error) {
	s, err := c.getChart(ctx, symbol, chartQuery{Period: "1d", Interval: "1d"})
	if err != nil {
		return 0, err
	}
	if s.LatestPrice != nil {
		return *s.LatestPrice, nil
	}
	for i := len(s.Bars) - 1; i >= 0; i-- {
		if s.Bars[i].Close != nil {
			return *s.Bars[i].Close, nil
		}
	}
	return 0, nil
}
