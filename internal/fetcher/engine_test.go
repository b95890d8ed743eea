package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/yf-price-fetcher/internal/model"
	"github.com/rickgao/yf-price-fetcher/internal/provider"
	"github.com/rickgao/yf-price-fetcher/internal/store"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

type histKey struct {
	asset uuid.UUID
	date  model.Date
}

// memStore is an in-memory store.Store with per-call transactions.
type memStore struct {
	mu      sync.Mutex
	assets  []model.Asset
	history map[histKey]model.PriceRow
	issues  []model.Issue

	loadErr   error
	insertErr func(rows []model.PriceRow) error
}

func newMemStore(tickers ...string) *memStore {
	s := &memStore{history: make(map[histKey]model.PriceRow)}
	for _, t := range tickers {
		s.assets = append(s.assets, model.Asset{ID: uuid.New(), Ticker: t})
	}
	return s
}

func (s *memStore) id(ticker string) uuid.UUID {
	for _, a := range s.assets {
		if a.Ticker == ticker {
			return a.ID
		}
	}
	return uuid.Nil
}

func (s *memStore) LoadWatermarks(ctx context.Context) ([]model.AssetWatermark, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loadErr != nil {
		return nil, s.loadErr
	}

	latest := make(map[uuid.UUID]model.Date)
	for k := range s.history {
		if d, ok := latest[k.asset]; !ok || k.date.After(d) {
			latest[k.asset] = k.date
		}
	}

	out := make([]model.AssetWatermark, 0, len(s.assets))
	for _, a := range s.assets {
		wm := model.NoWatermark
		if d, ok := latest[a.ID]; ok {
			wm = model.WatermarkAt(d)
		}
		out = append(out, model.AssetWatermark{Asset: a, Watermark: wm})
	}
	return out, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(store.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s, rows: make(map[histKey]model.PriceRow)}
	if err := fn(tx); err != nil {
		return err
	}
	for k, r := range tx.rows {
		s.history[k] = r
	}
	s.issues = append(s.issues, tx.issues...)
	return nil
}

func (s *memStore) issuesByTitle(title string) []model.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Issue
	for _, is := range s.issues {
		if is.Title == title {
			out = append(out, is)
		}
	}
	return out
}

type memTx struct {
	s      *memStore
	rows   map[histKey]model.PriceRow
	issues []model.Issue
}

func (t *memTx) InsertHistory(ctx context.Context, rows []model.PriceRow) (int, error) {
	if t.s.insertErr != nil {
		if err := t.s.insertErr(rows); err != nil {
			return 0, err
		}
	}
	n := 0
	for _, r := range rows {
		k := histKey{r.AssetID, r.PriceDate}
		if _, ok := t.s.history[k]; ok {
			continue
		}
		if _, ok := t.rows[k]; ok {
			continue
		}
		t.rows[k] = r
		n++
	}
	return n, nil
}

func (t *memTx) AppendIssues(ctx context.Context, issues []model.Issue) error {
	t.issues = append(t.issues, issues...)
	return nil
}

type fakeBar struct {
	date   model.Date
	close  float64
	volume *float64
}

// fakeProvider serves bars from an in-memory market and fails scripted calls.
type fakeProvider struct {
	mu     sync.Mutex
	market map[string][]fakeBar // provider symbol -> bars
	fail   map[int]error        // 1-based call number -> error
	calls  []provider.Request
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Download(ctx context.Context, req provider.Request) provider.Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls = append(p.calls, req)
	if err, ok := p.fail[len(p.calls)]; ok {
		return provider.Failed(err)
	}

	inWindow := func(d model.Date) bool {
		if req.Start == nil {
			return true
		}
		return !d.Before(*req.Start) && (req.End == nil || d.Before(*req.End))
	}

	dateSet := make(map[model.Date]bool)
	for _, sym := range req.Symbols {
		for _, b := range p.market[sym] {
			if inWindow(b.date) {
				dateSet[b.date] = true
			}
		}
	}
	var index []model.Date
	for d := range dateSet {
		index = append(index, d)
	}
	sort.Slice(index, func(i, j int) bool { return index[i].Before(index[j]) })

	frame := provider.Frame{Index: index}
	for _, sym := range req.Symbols {
		bars := p.market[sym]
		if len(bars) == 0 {
			continue
		}
		closes := make([]*float64, len(index))
		volumes := make([]*float64, len(index))
		for i, d := range index {
			for _, b := range bars {
				if b.date == d {
					closes[i] = fp(b.close)
					volumes[i] = b.volume
				}
			}
		}
		frame.Columns = append(frame.Columns,
			provider.Column{Field: provider.FieldClose, Symbol: sym},
			provider.Column{Field: provider.FieldVolume, Symbol: sym},
		)
		frame.Values = append(frame.Values, closes, volumes)
	}

	return provider.Rows(frame)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

// 2024-01-10 is "today" in every engine test.
var testNow = time.Date(2024, time.January, 10, 15, 0, 0, 0, time.UTC)

var testToday = model.DateOf(testNow)

func testConfig(chunk int) Config {
	return Config{
		Window:       WindowConfig{Period: "1y"},
		ChunkSize:    chunk,
		Interval:     "1d",
		AutoAdjust:   true,
		Actions:      true,
		SymbolSuffix: ".SA",
		Service:      "test-fetcher",
		Location:     time.UTC,
	}
}

func newTestEngine(cfg Config, st store.Store, p provider.Provider) *Engine {
	return New(cfg, st, p, nil, WithClock(func() time.Time { return testNow }))
}

// lastDays returns one bar per day for the n days ending today.
func lastDays(n int, base float64) []fakeBar {
	bars := make([]fakeBar, n)
	for i := range bars {
		bars[i] = fakeBar{date: testToday.AddDays(i - n + 1), close: base + float64(i), volume: fp(1000)}
	}
	return bars
}

// -----------------------------------------------------------------------------
// Tests
// -----------------------------------------------------------------------------

func TestEngine_IdempotentSecondRun(t *testing.T) {
	st := newMemStore("AAA", "BBB", "CCC")
	p := &fakeProvider{market: map[string][]fakeBar{
		"AAA.SA": lastDays(3, 10),
		"BBB.SA": lastDays(3, 20),
		"CCC.SA": lastDays(3, 30),
	}}
	e := newTestEngine(testConfig(2), st, p)

	first, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("first Run failed: %v", err)
	}
	if first.Processed != 9 || first.Inserted != 9 {
		t.Errorf("first run = %d/%d, want 9/9", first.Processed, first.Inserted)
	}
	if first.Batches != 2 {
		t.Errorf("first run Batches = %d, want 2", first.Batches)
	}

	second, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("second Run failed: %v", err)
	}
	if second.Inserted != 0 {
		t.Errorf("second run Inserted = %d, want 0", second.Inserted)
	}
	// Only today is refetched.
	if second.Processed != 3 {
		t.Errorf("second run Processed = %d, want 3", second.Processed)
	}
	for _, req := range p.calls[first.Batches:] {
		if req.Start == nil || *req.Start != testToday {
			t.Errorf("second run Start = %v, want %v", req.Start, testToday)
		}
	}
	if len(st.history) != 9 {
		t.Errorf("stored rows = %d, want 9", len(st.history))
	}
}

func TestEngine_FaultIsolation(t *testing.T) {
	tickers := []string{"A1", "A2", "A3", "A4", "A5", "A6"}
	st := newMemStore(tickers...)
	market := make(map[string][]fakeBar)
	for _, tk := range tickers {
		market[tk+".SA"] = lastDays(1, 5)
	}
	p := &fakeProvider{market: market, fail: map[int]error{2: errors.New("connection reset")}}
	e := newTestEngine(testConfig(2), st, p)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Batches != 3 {
		t.Errorf("Batches = %d, want 3", res.Batches)
	}
	if res.FailedBatches != 1 {
		t.Errorf("FailedBatches = %d, want 1", res.FailedBatches)
	}
	if res.Processed != 4 || res.Inserted != 4 {
		t.Errorf("Processed/Inserted = %d/%d, want 4/4", res.Processed, res.Inserted)
	}

	issues := st.issuesByTitle(TitleFetchFailed)
	if len(issues) != 2 {
		t.Fatalf("fetch failed issues = %d, want 2", len(issues))
	}
	got := []string{issues[0].Ticker, issues[1].Ticker}
	sort.Strings(got)
	if fmt.Sprint(got) != "[A3 A4]" {
		t.Errorf("issue tickers = %v, want [A3 A4]", got)
	}
	for _, is := range issues {
		if is.Level != model.LevelError {
			t.Errorf("Level = %q, want %q", is.Level, model.LevelError)
		}
		if is.Service != "test-fetcher" {
			t.Errorf("Service = %q, want %q", is.Service, "test-fetcher")
		}
		if !strings.Contains(is.Message, "connection reset") {
			t.Errorf("Message = %q, want provider error", is.Message)
		}
	}

	for _, tk := range []string{"A3", "A4"} {
		if _, ok := st.history[histKey{st.id(tk), testToday}]; ok {
			t.Errorf("%s should have no rows", tk)
		}
	}
}

func TestEngine_EmptyBatch(t *testing.T) {
	st := newMemStore("GONE", "LIVE")
	p := &fakeProvider{market: map[string][]fakeBar{"LIVE.SA": lastDays(2, 1)}}
	e := newTestEngine(testConfig(1), st, p)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.EmptyBatches != 1 {
		t.Errorf("EmptyBatches = %d, want 1", res.EmptyBatches)
	}
	if res.Inserted != 2 {
		t.Errorf("Inserted = %d, want 2", res.Inserted)
	}

	issues := st.issuesByTitle(TitleNoData)
	if len(issues) != 1 {
		t.Fatalf("no data issues = %d, want 1", len(issues))
	}
	if issues[0].Ticker != "GONE" || issues[0].Level != model.LevelWarning {
		t.Errorf("issue = %s/%s, want GONE/%s", issues[0].Ticker, issues[0].Level, model.LevelWarning)
	}
	if !issues[0].CreatedAt.Equal(testNow) {
		t.Errorf("CreatedAt = %v, want %v", issues[0].CreatedAt, testNow)
	}
}

func TestEngine_ConflictSafety(t *testing.T) {
	st := newMemStore("AAA")
	id := st.id("AAA")
	original := model.PriceRow{AssetID: id, PriceDate: testToday, Close: decimal.NewFromInt(99)}
	st.history[histKey{id, testToday}] = original

	p := &fakeProvider{market: map[string][]fakeBar{"AAA.SA": lastDays(1, 10)}}
	e := newTestEngine(testConfig(16), st, p)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Processed != 1 || res.Inserted != 0 {
		t.Errorf("Processed/Inserted = %d/%d, want 1/0", res.Processed, res.Inserted)
	}
	if got := st.history[histKey{id, testToday}].Close; !got.Equal(original.Close) {
		t.Errorf("stored close = %s, want %s", got, original.Close)
	}
}

func TestEngine_ResumesAfterWatermark(t *testing.T) {
	st := newMemStore("OLD", "NEW")
	oldID := st.id("OLD")
	wm := testToday.AddDays(-30)
	st.history[histKey{oldID, wm}] = model.PriceRow{AssetID: oldID, PriceDate: wm, Close: decimal.NewFromInt(1)}

	p := &fakeProvider{market: map[string][]fakeBar{}}
	e := newTestEngine(testConfig(16), st, p)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(p.calls) != 2 {
		t.Fatalf("calls = %d, want 2", len(p.calls))
	}
	// "none" cohort first.
	none, old := p.calls[0], p.calls[1]
	if none.Period != "1y" || none.Start != nil {
		t.Errorf("none cohort request = start %v period %q, want period 1y", none.Start, none.Period)
	}
	if fmt.Sprint(none.Symbols) != "[NEW.SA]" {
		t.Errorf("none cohort symbols = %v, want [NEW.SA]", none.Symbols)
	}
	want := testToday.AddDays(-29)
	if old.Start == nil || *old.Start != want || old.End != nil {
		t.Errorf("old cohort window = %v..%v, want %v..open", old.Start, old.End, want)
	}
	if old.Interval != "1d" || !old.AutoAdjust || !old.Actions {
		t.Errorf("request flags = %q/%v/%v, want 1d/true/true", old.Interval, old.AutoAdjust, old.Actions)
	}
}

func TestEngine_TruncatesFailureMessage(t *testing.T) {
	st := newMemStore("AAA")
	long := errors.New(strings.Repeat("x", 2*MaxIssueMessageLen))
	p := &fakeProvider{fail: map[int]error{1: long}}
	e := newTestEngine(testConfig(16), st, p)

	if _, err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	issues := st.issuesByTitle(TitleFetchFailed)
	if len(issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(issues))
	}
	if got := len(issues[0].Message); got != MaxIssueMessageLen {
		t.Errorf("len(Message) = %d, want %d", got, MaxIssueMessageLen)
	}
}

func TestEngine_PersistFailureIsolated(t *testing.T) {
	st := newMemStore("AAA", "BBB")
	badID := st.id("AAA")
	st.insertErr = func(rows []model.PriceRow) error {
		for _, r := range rows {
			if r.AssetID == badID {
				return errors.New("deadlock detected")
			}
		}
		return nil
	}
	p := &fakeProvider{market: map[string][]fakeBar{
		"AAA.SA": lastDays(2, 1),
		"BBB.SA": lastDays(2, 2),
	}}
	e := newTestEngine(testConfig(1), st, p)

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Processed != 2 || res.Inserted != 2 {
		t.Errorf("Processed/Inserted = %d/%d, want 2/2", res.Processed, res.Inserted)
	}
	if res.FailedBatches != 1 {
		t.Errorf("FailedBatches = %d, want 1", res.FailedBatches)
	}
	issues := st.issuesByTitle(TitlePersistFailed)
	if len(issues) != 1 || issues[0].Ticker != "AAA" {
		t.Errorf("persist failed issues = %v, want one for AAA", issues)
	}
}

func TestEngine_LoadWatermarksError(t *testing.T) {
	st := newMemStore("AAA")
	st.loadErr = errors.New("relation \"asset\" does not exist")
	p := &fakeProvider{}
	e := newTestEngine(testConfig(16), st, p)

	if _, err := e.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(p.calls) != 0 {
		t.Errorf("calls = %d, want 0", len(p.calls))
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	st := newMemStore("AAA", "BBB")
	p := &fakeProvider{market: map[string][]fakeBar{"AAA.SA": lastDays(1, 1)}}
	e := newTestEngine(testConfig(1), st, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if res.Batches != 0 || len(p.calls) != 0 {
		t.Errorf("Batches = %d, calls = %d, want 0/0", res.Batches, len(p.calls))
	}
}

func TestEngine_NoAssets(t *testing.T) {
	e := newTestEngine(testConfig(16), newMemStore(), &fakeProvider{})

	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res != (Result{}) {
		t.Errorf("Result = %+v, want zero", res)
	}
}
