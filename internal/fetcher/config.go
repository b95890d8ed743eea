package fetcher

import (
	"fmt"
	"time"

	"github.com/rickgao/yf-price-fetcher/internal/config"
	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// MaxIssueMessageLen bounds the message stored with a failed-batch issue.
const MaxIssueMessageLen = 10000

// WindowConfig selects the window used for assets without history.
// Either UseStartEnd with Start (and optionally End) or Period applies, never both.
type WindowConfig struct {
	UseStartEnd bool
	Start       *model.Date
	End         *model.Date // exclusive
	Period      string
}

// Config is the immutable engine configuration.
type Config struct {
	Window       WindowConfig
	ChunkSize    int
	Interval     string
	AutoAdjust   bool
	Actions      bool
	SymbolSuffix string         // Provider suffix appended to tickers (e.g. ".SA")
	Service      string         // Recorded on every issue
	Location     *time.Location // Zone deciding "today"
}

// ConfigFrom builds an engine Config from a validated FetcherConfig.
func ConfigFrom(c *config.FetcherConfig) (Config, error) {
	loc, err := c.Service.Location()
	if err != nil {
		return Config{}, fmt.Errorf("service timezone: %w", err)
	}

	w := WindowConfig{UseStartEnd: c.Fetch.UseStartEnd, Period: c.Fetch.Period}
	if w.UseStartEnd {
		w.Start, w.End, err = c.Fetch.Range()
		if err != nil {
			return Config{}, err
		}
		w.Period = ""
	}

	return Config{
		Window:       w,
		ChunkSize:    c.Fetch.ChunkSize,
		Interval:     c.Fetch.Interval,
		AutoAdjust:   c.Fetch.AutoAdjust == nil || *c.Fetch.AutoAdjust,
		Actions:      c.Fetch.Actions == nil || *c.Fetch.Actions,
		SymbolSuffix: c.Provider.SymbolSuffix,
		Service:      c.Service.Name,
		Location:     loc,
	}, nil
}
