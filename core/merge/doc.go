// Package merge reconciles two sharded table snapshots into a single merged snapshot.
//
// Both inputs share the same layout:
//
//	<table-root>/<shard>/id
//	<table-root>/<shard>/<table-kind>/<key-dir>/<entry>
//
// # Architecture
//
// The merge is built from four pieces:
//
// 1. Fingerprint: streams a file through SHA-256 so two same-named entries can be
// compared byte for byte without loading them.
//
// 2. DiffChildren: splits the immediate children of two directories into shared,
// left-only and right-only names. The shard merge calls it once for key-directories
// and once per shared key-directory for entries.
//
// 3. Resolver: a closed set of conflict policies chosen once per run from the table
// kind. "pt-crawl" keeps the most recently modified page; "pt-pagerank" sums the two
// rank scores into one record.
//
// 4. Merger: validates the two table roots, fans out one goroutine per shard and
// aggregates the per-shard results into a Report.
//
// # Idempotence
//
// Every directory and file in the merged tree is created with an existence check and
// files are opened with O_EXCL, so nothing is ever overwritten. Running the same shard
// twice against the same destination leaves the tree unchanged, which is how a partial
// run is converged (see Merger.Resume).
//
// # Usage
//
//	m := merge.New(afero.NewOsFs(), log, merge.Config{SimilarityThreshold: 0.7, IdentityFile: "id"})
//	report, err := m.Merge(merge.Request{
//	    TableA:    "/data/final-1",
//	    TableB:    "/data/final-2",
//	    Merged:    "/data/merged",
//	    TableKind: "pt-crawl",
//	})
package merge
