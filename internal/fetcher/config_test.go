package fetcher

import (
	"testing"

	"github.com/rickgao/yf-price-fetcher/internal/config"
)

func TestConfigFrom(t *testing.T) {
	f := false
	c := &config.FetcherConfig{
		Service:  config.ServiceConfig{Name: "svc", Timezone: "America/Sao_Paulo"},
		Provider: config.ProviderConfig{SymbolSuffix: ".SA"},
		Fetch: config.FetchConfig{
			ChunkSize:   16,
			Interval:    "1d",
			Period:      "1y",
			UseStartEnd: true,
			StartDate:   "2020-01-01",
			AutoAdjust:  &f,
		},
	}

	cfg, err := ConfigFrom(c)
	if err != nil {
		t.Fatalf("ConfigFrom failed: %v", err)
	}

	if cfg.Window.Period != "" {
		t.Errorf("Window.Period = %q, want empty with explicit range", cfg.Window.Period)
	}
	if cfg.Window.Start == nil || cfg.Window.Start.String() != "2020-01-01" {
		t.Errorf("Window.Start = %v, want 2020-01-01", cfg.Window.Start)
	}
	if cfg.Window.End != nil {
		t.Errorf("Window.End = %v, want nil", cfg.Window.End)
	}
	if cfg.AutoAdjust {
		t.Error("AutoAdjust = true, want false")
	}
	if !cfg.Actions {
		t.Error("Actions = false, want true when unset")
	}
	if cfg.Location.String() != "America/Sao_Paulo" {
		t.Errorf("Location = %v, want America/Sao_Paulo", cfg.Location)
	}
	if cfg.Service != "svc" || cfg.SymbolSuffix != ".SA" || cfg.ChunkSize != 16 {
		t.Errorf("cfg = %+v", cfg)
	}
}
