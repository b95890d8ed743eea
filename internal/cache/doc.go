// Package cache holds the lookup caches:
//   - a MongoDB document per ticker with its full daily history, valid for a
//     number of calendar days
//   - a Redis key per ticker with its latest price and a TTL
package cache
