package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// chartEnvelope is the response structure of /v8/finance/chart.
type chartEnvelope struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type chartResult struct {
	Meta struct {
		Symbol             string   `json:"symbol"`
		Currency           string   `json:"currency"`
		ExchangeTimezone   string   `json:"exchangeTimezoneName"`
		GMTOffset          int      `json:"gmtoffset"`
		RegularMarketPrice *float64 `json:"regularMarketPrice"`
	} `json:"meta"`
	Timestamp []int64 `json:"timestamp"`
	Events    struct {
		Dividends map[string]struct {
			Amount float64 `json:"amount"`
			Date   int64   `json:"date"`
		} `json:"dividends"`
		Splits map[string]struct {
			Date        int64   `json:"date"`
			Numerator   float64 `json:"numerator"`
			Denominator float64 `json:"denominator"`
		} `json:"splits"`
	} `json:"events"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
		AdjClose []struct {
			AdjClose []*float64 `json:"adjclose"`
		} `json:"adjclose"`
	} `json:"indicators"`
}

// chartQuery holds the query parameters of one chart request.
type chartQuery struct {
	Start    *model.Date
	End      *model.Date
	Period   string
	Interval string
	Actions  bool
}

// maxZoneOffset widens explicit bounds so a bar stamped at any exchange's
// local open still falls inside them. Bars outside the requested local dates
// are dropped by series.trim.
const maxZoneOffset = 14 * time.Hour

func (q chartQuery) values(now time.Time) url.Values {
	v := url.Values{}
	interval := q.Interval
	if interval == "" {
		interval = "1d"
	}
	v.Set("interval", interval)
	if q.Start != nil {
		start := q.Start.Time().Add(-maxZoneOffset)
		end := now
		if q.End != nil {
			end = q.End.Time().Add(maxZoneOffset)
		}
		if end.Before(start) {
			end = start
		}
		v.Set("period1", strconv.FormatInt(start.Unix(), 10))
		v.Set("period2", strconv.FormatInt(end.Unix(), 10))
	} else {
		v.Set("range", q.Period)
	}
	if q.Actions {
		v.Set("events", "div,splits")
	}
	v.Set("includeAdjustedClose", "true")
	return v
}

// bar is one parsed daily bar for a single symbol.
type bar struct {
	Date      model.Date
	Open      *float64
	High      *float64
	Low       *float64
	Close     *float64
	AdjClose  *float64
	Volume    *float64
	Dividends *float64
	Splits    *float64
}

// series is the parsed history of one symbol.
type series struct {
	Symbol      string
	LatestPrice *float64
	Bars        []bar
}

// trim drops bars dated before start or on/after end.
func (s *series) trim(start, end *model.Date) {
	if s == nil || (start == nil && end == nil) {
		return
	}
	kept := s.Bars[:0]
	for _, b := range s.Bars {
		if start != nil && b.Date.Before(*start) {
			continue
		}
		if end != nil && !b.Date.Before(*end) {
			continue
		}
		kept = append(kept, b)
	}
	s.Bars = kept
}

// getChart fetches and parses the chart of one symbol.
func (c *Client) getChart(ctx context.Context, symbol string, q chartQuery) (*series, error) {
	body, err := c.doRequest(ctx, "/v8/finance/chart/"+url.PathEscape(symbol), q.values(time.Now()))
	if err != nil {
		return nil, err
	}

	var env chartEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unmarshal chart %s: %w", symbol, err)
	}
	if env.Chart.Error != nil {
		return nil, &APIError{
			StatusCode: 200,
			Code:       env.Chart.Error.Code,
			Message:    env.Chart.Error.Description,
		}
	}
	if len(env.Chart.Result) == 0 {
		return &series{Symbol: symbol}, nil
	}

	return parseChart(symbol, env.Chart.Result[0]), nil
}

// parseChart converts a chart result into per-day bars in the exchange's
// local calendar. A later bar for the same date replaces an earlier one.
func parseChart(symbol string, r chartResult) *series {
	s := &series{Symbol: symbol, LatestPrice: r.Meta.RegularMarketPrice}
	loc := exchangeLocation(r.Meta.ExchangeTimezone, r.Meta.GMTOffset)

	var quote struct {
		Open, High, Low, Close, Volume []*float64
	}
	if len(r.Indicators.Quote) > 0 {
		q := r.Indicators.Quote[0]
		quote.Open, quote.High, quote.Low, quote.Close, quote.Volume = q.Open, q.High, q.Low, q.Close, q.Volume
	}
	var adj []*float64
	if len(r.Indicators.AdjClose) > 0 {
		adj = r.Indicators.AdjClose[0].AdjClose
	}

	dividends := make(map[model.Date]float64)
	for _, d := range r.Events.Dividends {
		dividends[model.DateOf(time.Unix(d.Date, 0).In(loc))] += d.Amount
	}
	splits := make(map[model.Date]float64)
	for _, sp := range r.Events.Splits {
		if sp.Denominator == 0 {
			continue
		}
		splits[model.DateOf(time.Unix(sp.Date, 0).In(loc))] = sp.Numerator / sp.Denominator
	}

	pos := make(map[model.Date]int, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		b := bar{
			Date:     model.DateOf(time.Unix(ts, 0).In(loc)),
			Open:     at(quote.Open, i),
			High:     at(quote.High, i),
			Low:      at(quote.Low, i),
			Close:    at(quote.Close, i),
			AdjClose: at(adj, i),
			Volume:   at(quote.Volume, i),
		}
		if v, ok := dividends[b.Date]; ok {
			b.Dividends = &v
		}
		if v, ok := splits[b.Date]; ok {
			b.Splits = &v
		}

		if j, ok := pos[b.Date]; ok {
			s.Bars[j] = b
			continue
		}
		pos[b.Date] = len(s.Bars)
		s.Bars = append(s.Bars, b)
	}

	return s
}

// exchangeLocation resolves the exchange zone, falling back to its fixed offset.
func exchangeLocation(name string, offset int) *time.Location {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.FixedZone("exchange", offset)
}

func at(values []*float64, i int) *float64 {
	if i < len(values) {
		return values[i]
	}
	return nil
}
