package fetcher

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/yf-price-fetcher/internal/model"
	"github.com/rickgao/yf-price-fetcher/internal/provider"
)

// priceScale matches the NUMERIC(18, 6) history columns.
const priceScale = 6

// LongRow is one (ticker, date) observation taken from a wide frame.
type LongRow struct {
	Ticker    string
	Date      model.Date
	Open      *float64
	High      *float64
	Low       *float64
	Close     *float64
	Volume    *int64
	Dividends float64
	Splits    float64
}

// ProviderSymbol returns the provider symbol of a canonical ticker.
func ProviderSymbol(ticker, suffix string) string {
	if suffix == "" || strings.HasSuffix(strings.ToUpper(ticker), strings.ToUpper(suffix)) {
		return ticker
	}
	return ticker + suffix
}

// BaseTicker strips the provider suffix and canonicalizes a provider symbol.
func BaseTicker(symbol, suffix string) string {
	t := model.CanonicalTicker(symbol)
	if suffix != "" {
		t = strings.TrimSuffix(t, strings.ToUpper(suffix))
	}
	return t
}

// Normalize reshapes a wide frame into one row per (ticker, date).
//
// Columns of a flat frame belong to batch[0]. A field missing for a ticker
// leaves that value nil. Volume is rounded to an integer and stays nil when
// absent; dividends and splits default to zero. Tickers appear in column
// order and dates in index order.
func Normalize(frame provider.Frame, batch []string, suffix string) ([]LongRow, error) {
	if len(frame.Values) != len(frame.Columns) {
		return nil, fmt.Errorf("frame has %d columns but %d value vectors", len(frame.Columns), len(frame.Values))
	}
	for i, col := range frame.Values {
		if len(col) != len(frame.Index) {
			return nil, fmt.Errorf("column %v has %d values, index has %d", frame.Columns[i], len(col), len(frame.Index))
		}
	}
	if frame.Empty() {
		return nil, nil
	}

	flat := frame.Flat()
	if flat && len(batch) == 0 {
		return nil, errors.New("flat frame without a batch ticker")
	}

	// ticker -> field -> values
	byTicker := make(map[string]map[string][]*float64)
	var tickers []string
	for i, col := range frame.Columns {
		var ticker string
		if flat {
			ticker = model.CanonicalTicker(batch[0])
		} else {
			ticker = BaseTicker(col.Symbol, suffix)
		}
		if ticker == "" {
			continue
		}
		fields, ok := byTicker[ticker]
		if !ok {
			fields = make(map[string][]*float64)
			byTicker[ticker] = fields
			tickers = append(tickers, ticker)
		}
		fields[col.Field] = frame.Values[i]
	}

	rows := make([]LongRow, 0, len(tickers)*len(frame.Index))
	for _, ticker := range tickers {
		fields := byTicker[ticker]
		for i, date := range frame.Index {
			rows = append(rows, LongRow{
				Ticker:    ticker,
				Date:      date,
				Open:      value(fields[provider.FieldOpen], i),
				High:      value(fields[provider.FieldHigh], i),
				Low:       value(fields[provider.FieldLow], i),
				Close:     value(fields[provider.FieldClose], i),
				Volume:    toVolume(value(fields[provider.FieldVolume], i)),
				Dividends: orZero(value(fields[provider.FieldDividends], i)),
				Splits:    orZero(value(fields[provider.FieldSplits], i)),
			})
		}
	}

	return rows, nil
}

// ToPriceRows maps long rows onto asset ids. Rows without a known asset,
// a date or a close price are dropped.
func ToPriceRows(long []LongRow, ids map[string]uuid.UUID) []model.PriceRow {
	out := make([]model.PriceRow, 0, len(long))
	for _, r := range long {
		id, ok := ids[r.Ticker]
		if !ok || id == uuid.Nil || r.Date.IsZero() || r.Close == nil {
			continue
		}
		out = append(out, model.PriceRow{
			AssetID:   id,
			PriceDate: r.Date,
			Open:      toNullDecimal(r.Open),
			High:      toNullDecimal(r.High),
			Low:       toNullDecimal(r.Low),
			Close:     decimal.NewFromFloat(*r.Close).Round(priceScale),
			Volume:    r.Volume,
			Dividends: decimal.NewFromFloat(r.Dividends).Round(priceScale),
			Splits:    decimal.NewFromFloat(r.Splits).Round(priceScale),
		})
	}
	return out
}

// value returns values[i], treating NaN and infinities as absent.
func value(values []*float64, i int) *float64 {
	if i >= len(values) || values[i] == nil {
		return nil
	}
	v := *values[i]
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func toVolume(v *float64) *int64 {
	if v == nil {
		return nil
	}
	r := math.Round(*v)
	if r >= math.MaxInt64 || r < math.MinInt64 {
		return nil
	}
	n := int64(r)
	return &n
}

func orZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func toNullDecimal(v *float64) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(*v).Round(priceScale))
}
