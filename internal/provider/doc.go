// Package provider defines the market-data provider contract consumed by the
// fetcher: a multi-symbol daily history request and a wide response frame.
//
// A Frame is indexed by trading date; each column is one (field, symbol)
// pair. Single-symbol responses may leave Symbol empty (flat columns).
package provider
