package merge

import "time"

// Request describes a single two-way merge.
type Request struct {
	// TableA is the root of the left table. Its identity markers win.
	TableA string

	// TableB is the root of the right table.
	TableB string

	// Merged is the root of the output table.
	Merged string

	// TableKind names the table directory inside every shard (e.g. "pt-crawl").
	TableKind string

	// AllowRecreate permits deleting and recreating an existing merged root.
	// Callers resolve this before the merge, typically through a confirmation prompt.
	AllowRecreate bool
}

// EntryFailure records a single entry that could not be merged.
type EntryFailure struct {
	// KeyDir is the key-directory holding the entry.
	KeyDir string `json:"key_dir"`

	// Entry is the entry name.
	Entry string `json:"entry"`

	// Err is the underlying error; match it with errors.Is against ErrIO or ErrSchemaMismatch.
	Err error `json:"-"`
}

// ShardResult is the outcome of merging one shard.
type ShardResult struct {
	// Shard is the shard (worker) name.
	Shard string `json:"shard"`

	// EntriesCopied counts entries copied verbatim, including identical shared entries.
	EntriesCopied int `json:"entries_copied"`

	// EntriesSkipped counts entries whose destination already existed.
	EntriesSkipped int `json:"entries_skipped"`

	// Identical counts shared entries whose fingerprints matched.
	Identical int `json:"identical"`

	// ConflictsDetected counts shared entries whose fingerprints differed.
	ConflictsDetected int `json:"conflicts_detected"`

	// ConflictsResolved counts conflicts for which the resolver wrote an entry.
	ConflictsResolved int `json:"conflicts_resolved"`

	// LowSimilarity counts crawl conflicts below the similarity threshold.
	LowSimilarity int `json:"low_similarity"`

	// Failures lists entries that could not be merged.
	Failures []EntryFailure `json:"failures,omitempty"`

	// Err is set when the shard itself could not be merged
	// (ErrMissingShard, ErrMissingIdentity, ErrMissingTableKind or a structural ErrIO).
	Err error `json:"-"`
}

// Failed reports whether the shard or any of its entries failed.
func (r *ShardResult) Failed() bool {
	return r.Err != nil || len(r.Failures) > 0
}

// Summary provides aggregate counts for a merge run.
type Summary struct {
	Shards            int `json:"shards"`
	ShardsFailed      int `json:"shards_failed"`
	EntriesCopied     int `json:"entries_copied"`
	EntriesSkipped    int `json:"entries_skipped"`
	EntriesFailed     int `json:"entries_failed"`
	Identical         int `json:"identical"`
	ConflictsDetected int `json:"conflicts_detected"`
	ConflictsResolved int `json:"conflicts_resolved"`
	LowSimilarity     int `json:"low_similarity"`
}

// Report is the result of a merge run.
type Report struct {
	// TableKind is the merged table kind.
	TableKind string `json:"table_kind"`

	// Shards holds one result per shard, sorted by shard name.
	Shards []ShardResult `json:"shards"`

	// Summary aggregates the shard results.
	Summary Summary `json:"summary"`

	// Started and Finished bracket the shard fan-out.
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// Failed reports whether any shard or entry failed.
func (r *Report) Failed() bool {
	return r.Summary.ShardsFailed > 0 || r.Summary.EntriesFailed > 0
}

func summarize(results []ShardResult) Summary {
	s := Summary{Shards: len(results)}
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			s.ShardsFailed++
		}
		s.EntriesCopied += r.EntriesCopied
		s.EntriesSkipped += r.EntriesSkipped
		s.EntriesFailed += len(r.Failures)
		s.Identical += r.Identical
		s.ConflictsDetected += r.ConflictsDetected
		s.ConflictsResolved += r.ConflictsResolved
		s.LowSimilarity += r.LowSimilarity
	}
	return s
}
