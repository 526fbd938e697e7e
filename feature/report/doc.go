// Package report serves the audit ledger over HTTP.
//
// # HTTP Endpoints
//
//   - GET /merges : recent runs, newest first (supports ?limit=N, capped at 200).
//   - GET /merges/:id : one run with its per-shard results, 404 when unknown.
package report
