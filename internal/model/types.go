package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// -----------------------------------------------------------------------------
// Registry Types
// -----------------------------------------------------------------------------

// Asset is an instrument known to the asset registry.
// The fetcher only reads assets; another service maintains them.
type Asset struct {
	ID     uuid.UUID // Primary key
	Ticker string    // Canonical ticker (uppercase, no provider suffix)
}

// CanonicalTicker trims and uppercases a ticker as stored in the registry.
func CanonicalTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// -----------------------------------------------------------------------------
// History Types
// -----------------------------------------------------------------------------

// PriceRow is one daily bar for one asset.
// (AssetID, PriceDate) is the natural key and is written at most once.
type PriceRow struct {
	AssetID   uuid.UUID
	PriceDate Date
	Open      decimal.NullDecimal
	High      decimal.NullDecimal
	Low       decimal.NullDecimal
	Close     decimal.Decimal
	Volume    *int64          // nil when the provider had no volume
	Dividends decimal.Decimal // zero when no dividend that day
	Splits    decimal.Decimal // zero when no split that day
}

// Bar is one daily bar as served by the lookup endpoints and stored in the
// history document cache.
type Bar struct {
	Date      string   `json:"date" bson:"date"`
	Open      *float64 `json:"open" bson:"open"`
	High      *float64 `json:"high" bson:"high"`
	Low       *float64 `json:"low" bson:"low"`
	Close     *float64 `json:"close" bson:"close"`
	Volume    *float64 `json:"volume" bson:"volume"`
	Dividends float64  `json:"dividends" bson:"dividends"`
	Splits    float64  `json:"stock_splits" bson:"stock_splits"`
}

// Watermark is the latest trading date already persisted for an asset.
// Valid is false when the asset has no history yet.
type Watermark struct {
	Date  Date
	Valid bool
}

// NoWatermark is the watermark of an asset without any history.
var NoWatermark = Watermark{}

// WatermarkAt returns a valid watermark at d.
func WatermarkAt(d Date) Watermark {
	return Watermark{Date: d, Valid: true}
}

func (w Watermark) String() string {
	if !w.Valid {
		return "none"
	}
	return w.Date.String()
}

// AssetWatermark pairs an asset with its current watermark.
type AssetWatermark struct {
	Asset     Asset
	Watermark Watermark
}

// Cohort is the set of tickers sharing one watermark.
type Cohort struct {
	Watermark Watermark
	Tickers   []string
}

// -----------------------------------------------------------------------------
// Diagnostic Types
// -----------------------------------------------------------------------------

// Issue levels written to asset_log.level.
const (
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

// Issue is an append-only diagnostic entry for one ticker.
type Issue struct {
	ID        uuid.UUID
	Ticker    string
	Title     string
	Message   string
	Service   string
	Level     string
	CreatedAt time.Time
}
