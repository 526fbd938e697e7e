// Package audit keeps a ledger of merge runs in a SQL database.
//
// Every merge, successful or not, is recorded with its counts, the byte sizes of the
// three tables and one row per shard. The ledger is optional: the merge command logs
// a warning and carries on when the database is unavailable.
//
// # Tables
//
//   - merge_runs: one row per run, keyed by run_id.
//   - merge_shard_results: one row per shard of a run.
//
// # Usage
//
//	store := audit.NewStore(db)
//	if err := store.Migrate(); err != nil { ... }
//	err := store.Record(ctx, audit.FromReport(runID, req, false, sizes, report))
package audit
