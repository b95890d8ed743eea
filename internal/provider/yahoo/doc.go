// Package yahoo implements provider.Provider over the Yahoo Finance chart API.
//
// REST endpoint:
//   - https://query1.finance.yahoo.com/v8/finance/chart/{symbol}
//
// The chart API serves one symbol per request, so a batch download fans out
// one request per symbol and merges the results into a single wide frame.
package yahoo
