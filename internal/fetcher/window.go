package fetcher

import (
	"fmt"

	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// Window is a concrete fetch window: either Start (with optional End) or Period.
type Window struct {
	Start  *model.Date
	End    *model.Date // exclusive, nil = through the latest available day
	Period string
}

func (w Window) String() string {
	if w.Start == nil {
		return "period=" + w.Period
	}
	if w.End == nil {
		return fmt.Sprintf("start=%s", w.Start)
	}
	return fmt.Sprintf("start=%s end=%s", w.Start, w.End)
}

// ResolveWindow returns the window to fetch for a cohort with watermark wm.
//
// Without a watermark the configured range or period applies. A watermark
// before today resumes the day after it. A watermark on or after today
// refetches today, whose bar may have been captured before the close.
func ResolveWindow(wm model.Watermark, today model.Date, cfg WindowConfig) Window {
	if !wm.Valid {
		if cfg.UseStartEnd && cfg.Start != nil {
			return Window{Start: cfg.Start, End: cfg.End}
		}
		return Window{Period: cfg.Period}
	}

	if wm.Date.Before(today) {
		start := wm.Date.AddDays(1)
		return Window{Start: &start}
	}

	start := today
	return Window{Start: &start}
}
