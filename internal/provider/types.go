package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// Field names as returned by the provider.
const (
	FieldOpen      = "Open"
	FieldHigh      = "High"
	FieldLow       = "Low"
	FieldClose     = "Close"
	FieldVolume    = "Volume"
	FieldDividends = "Dividends"
	FieldSplits    = "Stock Splits"
)

// Fields lists every tracked field in output order.
var Fields = []string{
	FieldOpen,
	FieldHigh,
	FieldLow,
	FieldClose,
	FieldVolume,
	FieldDividends,
	FieldSplits,
}

// Request describes one history query. Start and Period are mutually exclusive.
type Request struct {
	Symbols    []string    // Provider-qualified symbols (e.g. "PETR4.SA")
	Start      *model.Date // Inclusive start date
	End        *model.Date // Exclusive end date, nil = through latest available day
	Period     string      // Relative lookback (e.g. "1y", "max")
	Interval   string      // Sampling interval (e.g. "1d")
	AutoAdjust bool        // Adjust OHLC for splits and dividends
	Actions    bool        // Include dividends and stock splits
}

// Validate checks the request is well formed.
func (r Request) Validate() error {
	if len(r.Symbols) == 0 {
		return errors.New("request has no symbols")
	}
	if r.Start != nil && r.Period != "" {
		return fmt.Errorf("request sets both start (%s) and period (%s)", r.Start, r.Period)
	}
	if r.Start == nil && r.Period == "" {
		return errors.New("request needs start or period")
	}
	if r.Start != nil && r.End != nil && !r.Start.Before(*r.End) {
		return fmt.Errorf("request start %s is not before end %s", r.Start, r.End)
	}
	return nil
}

// Column identifies one column of a Frame.
type Column struct {
	Field  string
	Symbol string // empty for flat single-symbol frames
}

// Frame is a wide table: one row per trading date, one column per (field, symbol).
// Values[c][i] is the value of Columns[c] at Index[i]; nil means absent.
type Frame struct {
	Index   []model.Date
	Columns []Column
	Values  [][]*float64
}

// Len returns the number of rows.
func (f Frame) Len() int {
	return len(f.Index)
}

// Empty reports whether the frame carries no rows.
func (f Frame) Empty() bool {
	return len(f.Index) == 0 || len(f.Columns) == 0
}

// Flat reports whether the frame has single-symbol flat columns.
func (f Frame) Flat() bool {
	for _, c := range f.Columns {
		if c.Symbol != "" {
			return false
		}
	}
	return true
}

// Status classifies the outcome of one batch download.
type Status int

const (
	StatusRows   Status = iota // Frame has data
	StatusEmpty                // Provider returned nothing for the window
	StatusFailed               // Provider call failed
)

func (s Status) String() string {
	switch s {
	case StatusRows:
		return "rows"
	case StatusEmpty:
		return "empty"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the explicit result of one batch download.
type Outcome struct {
	Status Status
	Frame  Frame
	Err    error
}

// Rows wraps a frame, classifying empty frames as StatusEmpty.
func Rows(f Frame) Outcome {
	if f.Empty() {
		return Outcome{Status: StatusEmpty}
	}
	return Outcome{Status: StatusRows, Frame: f}
}

// Empty returns an empty outcome.
func Empty() Outcome {
	return Outcome{Status: StatusEmpty}
}

// Failed returns a failed outcome.
func Failed(err error) Outcome {
	return Outcome{Status: StatusFailed, Err: err}
}

// Provider downloads daily history for several symbols at once.
type Provider interface {
	Name() string
	Download(ctx context.Context, req Request) Outcome
}
