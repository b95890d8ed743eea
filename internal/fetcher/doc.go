// Package fetcher implements the incremental daily price sync.
//
// One run:
//  1. Loads each asset's watermark (latest stored date, or none).
//  2. Groups assets sharing a watermark into cohorts.
//  3. Resolves one fetch window per cohort.
//  4. Downloads each cohort in fixed-size batches.
//  5. Reshapes the wide provider frame into one row per (ticker, date).
//  6. Inserts the rows, skipping existing keys, one transaction per batch.
//
// A failing or empty batch is recorded in the issue log and never stops the
// run. A cohort with a watermark before today resumes the day after it; a
// watermark on or after today refetches today only.
package fetcher
