// Package database provides the PostgreSQL connection pool holding the
// asset registry, daily price history, and the issue log.
package database
