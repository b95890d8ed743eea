// Package scheduler triggers sync runs.
//
// The Scheduler:
//   - Runs the engine on a cron spec (default every 15 minutes)
//   - Optionally runs once on start
//   - Serves manual run-once requests
//   - Guarantees at most one run at a time; overlapping triggers are skipped
package scheduler
