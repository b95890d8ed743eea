// Package model defines shared data types used across the price fetcher.
//
// All types mirror the database schema defined in internal/store/schema.sql.
//
// Conventions:
//   - Tickers: canonical uppercase symbols without the provider suffix (e.g. "PETR4")
//   - Trading dates: calendar Date values, no time-of-day or zone
//   - Prices: decimal.Decimal, stored as NUMERIC(18,6)
//   - IDs: uuid.UUID for assets and log entries
package model
