package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rickgao/yf-price-fetcher/internal/config"
	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// HistoryDoc is the cached history of one ticker.
type HistoryDoc struct {
	Ticker    string      `bson:"_id"`
	Data      []model.Bar `bson:"data"`
	CreatedAt string      `bson:"created_at"` // YYYY-MM-DD
}

// Expired reports whether doc is missing or older than lifetimeDays on today.
// A document created today is fresh even with a zero lifetime.
func (doc *HistoryDoc) Expired(today model.Date, lifetimeDays int) bool {
	if doc == nil || doc.CreatedAt == "" {
		return true
	}
	created, err := model.ParseDate(doc.CreatedAt)
	if err != nil {
		return true
	}
	return today.DaysSince(created) > lifetimeDays
}

// MongoHistory stores HistoryDocs in one collection keyed by ticker.
type MongoHistory struct {
	coll *mongo.Collection
}

// NewMongoHistory creates a MongoHistory on coll.
func NewMongoHistory(coll *mongo.Collection) *MongoHistory {
	return &MongoHistory{coll: coll}
}

// Get returns the cached document of ticker, or nil when there is none.
func (m *MongoHistory) Get(ctx context.Context, ticker string) (*HistoryDoc, error) {
	var doc HistoryDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": ticker}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find history %s: %w", ticker, err)
	}
	return &doc, nil
}

// Put replaces the cached document of doc.Ticker.
func (m *MongoHistory) Put(ctx context.Context, doc HistoryDoc) error {
	_, err := m.coll.ReplaceOne(ctx, bson.M{"_id": doc.Ticker}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace history %s: %w", doc.Ticker, err)
	}
	return nil
}

// ConnectMongo connects and pings MongoDB.
func ConnectMongo(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(10).
		SetConnectTimeout(30 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}
