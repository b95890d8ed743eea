// Package store persists daily price history and the issue log in PostgreSQL.
//
// Tables:
//   - asset: instrument registry (read only here)
//   - asset_history: one row per (asset, price_date), append only
//   - asset_log: per-ticker diagnostics, append only
//
// History inserts use ON CONFLICT DO NOTHING so replaying a window never
// changes rows that already exist.
package store
