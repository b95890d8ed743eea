package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/yf-price-fetcher/internal/model"
)

// Store is the persistence handle used by the sync engine.
type Store interface {
	// LoadWatermarks returns every registered asset with its latest stored date.
	LoadWatermarks(ctx context.Context) ([]model.AssetWatermark, error)

	// InTx runs fn in one transaction. It commits when fn returns nil and
	// rolls back otherwise.
	InTx(ctx context.Context, fn func(Tx) error) error
}

// Tx is the write side of one batch transaction.
type Tx interface {
	// InsertHistory inserts rows, skipping existing (asset, price_date) keys.
	// It returns the number of rows actually inserted.
	InsertHistory(ctx context.Context, rows []model.PriceRow) (int, error)

	// AppendIssues appends diagnostic entries to the issue log.
	AppendIssues(ctx context.Context, issues []model.Issue) error
}

// PG implements Store on a pgx connection pool.
type PG struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// New creates a PG store.
func New(db *pgxpool.Pool, logger *slog.Logger) *PG {
	if logger == nil {
		logger = slog.Default()
	}
	return &PG{db: db, logger: logger}
}

const watermarkQuery = `
	SELECT a.id, a.ticker, h.max_date
	FROM asset a
	LEFT JOIN (
		SELECT asset, MAX(price_date) AS max_date
		FROM asset_history
		GROUP BY asset
	) h ON h.asset = a.id
	WHERE a.ticker IS NOT NULL
`

// LoadWatermarks implements Store. Blank tickers are skipped.
func (s *PG) LoadWatermarks(ctx context.Context) ([]model.AssetWatermark, error) {
	rows, err := s.db.Query(ctx, watermarkQuery)
	if err != nil {
		return nil, fmt.Errorf("query watermarks: %w", err)
	}
	defer rows.Close()

	var out []model.AssetWatermark
	for rows.Next() {
		var (
			id      uuid.UUID
			ticker  string
			maxDate pgtype.Date
		)
		if err := rows.Scan(&id, &ticker, &maxDate); err != nil {
			return nil, fmt.Errorf("scan watermark: %w", err)
		}

		ticker = model.CanonicalTicker(ticker)
		if ticker == "" {
			continue
		}

		wm := model.NoWatermark
		if maxDate.Valid {
			wm = model.WatermarkAt(model.DateOf(maxDate.Time))
		}
		out = append(out, model.AssetWatermark{
			Asset:     model.Asset{ID: id, Ticker: ticker},
			Watermark: wm,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate watermarks: %w", err)
	}

	s.logger.Debug("loaded watermarks", "assets", len(out))
	return out, nil
}

// InTx implements Store.
func (s *PG) InTx(ctx context.Context, fn func(Tx) error) error {
	return pgx.BeginFunc(ctx, s.db, func(tx pgx.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

// pgTx implements Tx on an open pgx transaction.
type pgTx struct {
	tx pgx.Tx
}

const insertHistorySQL = `
	INSERT INTO asset_history (
		asset, price_date, open_price, high_price, low_price, close_price,
		volume, dividends, splits
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	ON CONFLICT (asset, price_date) DO NOTHING
`

// InsertHistory inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (t *pgTx) InsertHistory(ctx context.Context, rows []model.PriceRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertHistorySQL, historyArgs(r)...)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, fmt.Errorf("insert history: %w", err)
		}
		if ct.RowsAffected() == 1 {
			inserted++
		}
	}

	return inserted, nil
}

// historyArgs returns the insert arguments of one row in column order.
func historyArgs(r model.PriceRow) []any {
	return []any{
		r.AssetID,
		pgtype.Date{Time: r.PriceDate.Time(), Valid: true},
		r.Open,
		r.High,
		r.Low,
		r.Close,
		r.Volume,
		r.Dividends,
		r.Splits,
	}
}

const insertIssueSQL = `
	INSERT INTO asset_log (
		id, ticker, title, message, service, level,
		created_at, updated_at, created_by, updated_by
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $5, $5)
`

// AppendIssues implements Tx.
func (t *pgTx) AppendIssues(ctx context.Context, issues []model.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, is := range issues {
		batch.Queue(insertIssueSQL, issueArgs(is)...)
	}

	results := t.tx.SendBatch(ctx, batch)
	defer results.Close()

	for range issues {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("insert issue: %w", err)
		}
	}
	return nil
}

// issueArgs fills the id and timestamp when unset.
func issueArgs(is model.Issue) []any {
	id := is.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := is.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return []any{
		id,
		is.Ticker,
		is.Title,
		is.Message,
		is.Service,
		is.Level,
		pgtype.Timestamptz{Time: createdAt, Valid: true},
	}
}
