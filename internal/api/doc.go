// Package api provides the CoinGecko-compatible REST client.
//
// Endpoints:
//   - Public: https://api.coingecko.com/api/v3
//   - Pro: https://pro-api.coingecko.com/api/v3 (x-cg-pro-api-key header)
//
// Every call goes through a fetch.Gateway under a logical key, so a repeated
// request for the same page supersedes the previous one.
package api
