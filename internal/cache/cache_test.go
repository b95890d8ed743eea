package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rickgao/yf-price-fetcher/internal/config"
	"github.com/rickgao/yf-price-fetcher/internal/model"
)

func TestHistoryDoc_Expired(t *testing.T) {
	today := model.Date{Year: 2024, Month: time.June, Day: 10}

	tests := []struct {
		name     string
		doc      *HistoryDoc
		lifetime int
		want     bool
	}{
		{"missing", nil, 1, true},
		{"no created_at", &HistoryDoc{Ticker: "A"}, 1, true},
		{"bad created_at", &HistoryDoc{CreatedAt: "10/06/2024"}, 1, true},
		{"today", &HistoryDoc{CreatedAt: "2024-06-10"}, 1, false},
		{"yesterday within one day", &HistoryDoc{CreatedAt: "2024-06-09"}, 1, false},
		{"two days old", &HistoryDoc{CreatedAt: "2024-06-08"}, 1, true},
		{"today with zero lifetime", &HistoryDoc{CreatedAt: "2024-06-10"}, 0, false},
		{"yesterday with zero lifetime", &HistoryDoc{CreatedAt: "2024-06-09"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.doc.Expired(today, tt.lifetime); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRedisLatest_Key(t *testing.T) {
	r := NewRedisLatest(nil, time.Minute)
	if got := r.Key("PETR4.SA"); got != "yfinance-latest-pricePETR4.SA" {
		t.Errorf("Key() = %q, want %q", got, "yfinance-latest-pricePETR4.SA")
	}
}

// Runs against a scratch Redis named by YF_TEST_REDIS_ADDR.
func TestRedisLatest_RoundTrip(t *testing.T) {
	addr := os.Getenv("YF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("YF_TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()

	client, err := NewRedisClient(ctx, config.RedisConfig{Addr: addr})
	if err != nil {
		t.Fatalf("NewRedisClient failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	r := NewRedisLatest(client, time.Minute)
	ticker := "TEST" + time.Now().Format("150405.000000")
	t.Cleanup(func() { client.Del(ctx, r.Key(ticker)) })

	if _, ok, err := r.Get(ctx, ticker); err != nil || ok {
		t.Fatalf("Get before Set = ok %v err %v, want miss", ok, err)
	}
	if err := r.Set(ctx, ticker, 36.42); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	price, ok, err := r.Get(ctx, ticker)
	if err != nil || !ok || price != 36.42 {
		t.Errorf("Get = %v, %v, %v, want 36.42, true, nil", price, ok, err)
	}
	if ttl := client.TTL(ctx, r.Key(ticker)).Val(); ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v, want (0, 1m]", ttl)
	}
}

// Runs against a scratch MongoDB named by YF_TEST_MONGO_URI.
func TestMongoHistory_RoundTrip(t *testing.T) {
	uri := os.Getenv("YF_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("YF_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	client, err := ConnectMongo(ctx, config.MongoConfig{URI: uri})
	if err != nil {
		t.Fatalf("ConnectMongo failed: %v", err)
	}
	t.Cleanup(func() { client.Disconnect(ctx) })

	coll := client.Database("yf_price_fetcher_test").Collection("history")
	t.Cleanup(func() { coll.Drop(ctx) })
	m := NewMongoHistory(coll)

	if doc, err := m.Get(ctx, "PETR4"); err != nil || doc != nil {
		t.Fatalf("Get before Put = %v, %v, want nil, nil", doc, err)
	}

	px := 36.4
	for _, created := range []string{"2024-06-01", "2024-06-10"} {
		doc := HistoryDoc{
			Ticker:    "PETR4",
			Data:      []model.Bar{{Date: "2024-06-07", Close: &px}},
			CreatedAt: created,
		}
		if err := m.Put(ctx, doc); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	doc, err := m.Get(ctx, "PETR4")
	if err != nil || doc == nil {
		t.Fatalf("Get = %v, %v, want document", doc, err)
	}
	if doc.CreatedAt != "2024-06-10" {
		t.Errorf("CreatedAt = %q, want replaced %q", doc.CreatedAt, "2024-06-10")
	}
	if len(doc.Data) != 1 || doc.Data[0].Close == nil || *doc.Data[0].Close != 36.4 {
		t.Errorf("Data = %+v, want one bar closing at 36.4", doc.Data)
	}
}
