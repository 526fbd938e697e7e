package audit

import (
	"time"

	"table-merger/core/merge"
)

// MergeRun is one merge invocation as stored in the ledger.
type MergeRun struct {
	RunID     string    `gorm:"primaryKey;column:run_id;type:varchar(36)" json:"run_id"`
	TableKind string    `gorm:"column:table_kind;type:varchar(64);index" json:"table_kind"`
	TableA    string    `gorm:"column:table_a;type:varchar(1024)" json:"table_a"`
	TableB    string    `gorm:"column:table_b;type:varchar(1024)" json:"table_b"`
	Merged    string    `gorm:"column:merged;type:varchar(1024)" json:"merged"`
	Resumed   bool      `gorm:"column:resumed" json:"resumed"`
	StartedAt time.Time `gorm:"column:started_at;index" json:"started_at"`
	EndedAt   time.Time `gorm:"column:ended_at" json:"ended_at"`

	SizeA      int64 `gorm:"column:size_a" json:"size_a"`
	SizeB      int64 `gorm:"column:size_b" json:"size_b"`
	SizeMerged int64 `gorm:"column:size_merged" json:"size_merged"`

	Shards            int  `gorm:"column:shards" json:"shards"`
	ShardsFailed      int  `gorm:"column:shards_failed" json:"shards_failed"`
	EntriesCopied     int  `gorm:"column:entries_copied" json:"entries_copied"`
	EntriesSkipped    int  `gorm:"column:entries_skipped" json:"entries_skipped"`
	EntriesFailed     int  `gorm:"column:entries_failed" json:"entries_failed"`
	Identical         int  `gorm:"column:identical" json:"identical"`
	ConflictsDetected int  `gorm:"column:conflicts_detected" json:"conflicts_detected"`
	ConflictsResolved int  `gorm:"column:conflicts_resolved" json:"conflicts_resolved"`
	LowSimilarity     int  `gorm:"column:low_similarity" json:"low_similarity"`
	Failed            bool `gorm:"column:failed" json:"failed"`

	ShardResults []ShardRecord `gorm:"foreignKey:RunID;references:RunID" json:"shard_results,omitempty"`
}

func (MergeRun) TableName() string {
	return "merge_runs"
}

// ShardRecord is the outcome of one shard within a run.
type ShardRecord struct {
	ID                uint   `gorm:"primaryKey;column:id" json:"-"`
	RunID             string `gorm:"column:run_id;type:varchar(36);index" json:"-"`
	Shard             string `gorm:"column:shard;type:varchar(255)" json:"shard"`
	EntriesCopied     int    `gorm:"column:entries_copied" json:"entries_copied"`
	EntriesSkipped    int    `gorm:"column:entries_skipped" json:"entries_skipped"`
	EntriesFailed     int    `gorm:"column:entries_failed" json:"entries_failed"`
	Identical         int    `gorm:"column:identical" json:"identical"`
	ConflictsDetected int    `gorm:"column:conflicts_detected" json:"conflicts_detected"`
	ConflictsResolved int    `gorm:"column:conflicts_resolved" json:"conflicts_resolved"`
	LowSimilarity     int    `gorm:"column:low_similarity" json:"low_similarity"`
	Error             string `gorm:"column:error;type:text" json:"error,omitempty"`
}

func (ShardRecord) TableName() string {
	return "merge_shard_results"
}

// Sizes are the on-disk byte totals of the three tables of a run.
type Sizes struct {
	A, B, Merged int64
}

// FromReport builds the ledger row for a finished merge.
func FromReport(runID string, req merge.Request, resumed bool, sizes Sizes, report *merge.Report) *MergeRun {
	s := report.Summary
	run := &MergeRun{
		RunID:             runID,
		TableKind:         req.TableKind,
		TableA:            req.TableA,
		TableB:            req.TableB,
		Merged:            req.Merged,
		Resumed:           resumed,
		StartedAt:         report.Started,
		EndedAt:           report.Finished,
		SizeA:             sizes.A,
		SizeB:             sizes.B,
		SizeMerged:        sizes.Merged,
		Shards:            s.Shards,
		ShardsFailed:      s.ShardsFailed,
		EntriesCopied:     s.EntriesCopied,
		EntriesSkipped:    s.EntriesSkipped,
		EntriesFailed:     s.EntriesFailed,
		Identical:         s.Identical,
		ConflictsDetected: s.ConflictsDetected,
		ConflictsResolved: s.ConflictsResolved,
		LowSimilarity:     s.LowSimilarity,
		Failed:            report.Failed(),
	}

	for _, r := range report.Shards {
		rec := ShardRecord{
			RunID:             runID,
			Shard:             r.Shard,
			EntriesCopied:     r.EntriesCopied,
			EntriesSkipped:    r.EntriesSkipped,
			EntriesFailed:     len(r.Failures),
			Identical:         r.Identical,
			ConflictsDetected: r.ConflictsDetected,
			ConflictsResolved: r.ConflictsResolved,
			LowSimilarity:     r.LowSimilarity,
		}
		if r.Err != nil {
			rec.Error = r.Err.Error()
		}
		run.ShardResults = append(run.ShardResults, rec)
	}
	return run
}
