package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"table-merger/core/config"
	"table-merger/core/database"
	"table-merger/core/logger"
	"table-merger/core/merge"
	"table-merger/core/storage"
	"table-merger/feature/audit"
	"table-merger/feature/export"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// errMergeIncomplete is returned when a merge ran but some shards or entries failed.
var errMergeIncomplete = errors.New("merge incomplete")

var (
	// Flags for the merge command
	mergeYes     bool
	mergeResume  bool
	mergeExport  bool
	mergeNoAudit bool
)

// mergeCmd merges two tables into a third.
var mergeCmd = &cobra.Command{
	Use:   "merge <table-a> <table-b> <merged> <table-kind>",
	Short: "Merge two sharded tables into one",
	Long: `Merge two snapshots of a sharded table into a new merged table.

Supported table kinds:
  pt-crawl     conflicting pages keep the most recently modified copy
  pt-pagerank  conflicting rank records have their scores summed

Identity markers are taken from <table-a>. Entries present on one side only are
copied as is. Existing merged entries are never overwritten.

Examples:
  # Merge two crawl snapshots
  merge tableA tableB merged pt-crawl

  # Replace an existing merged table without prompting
  merge tableA tableB merged pt-pagerank --yes

  # Finish an interrupted merge, then upload the result
  merge tableA tableB merged pt-crawl --resume --export`,
	Args: cobra.ExactArgs(4),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().BoolVar(&mergeYes, "yes", false, "Auto-confirm replacing an existing merged table (non-interactive)")
	mergeCmd.Flags().BoolVar(&mergeResume, "resume", false, "Continue into an existing merged table instead of recreating it")
	mergeCmd.Flags().BoolVar(&mergeExport, "export", false, "Upload the merged table to object storage after a clean merge")
	mergeCmd.Flags().BoolVar(&mergeNoAudit, "no-audit", false, "Do not record the run in the audit ledger")

	RootCmd.AddCommand(mergeCmd)
}

func runMerge(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer l.Sync()

	runID := uuid.NewString()
	l = logger.WithRunID(l, runID)

	req := merge.Request{
		TableA:    args[0],
		TableB:    args[1],
		Merged:    args[2],
		TableKind: args[3],
	}

	// Reject the table kind before asking anything.
	if _, err := merge.ResolverFor(req.TableKind, cfg.Merge.SimilarityThreshold); err != nil {
		return err
	}

	fsys := afero.NewOsFs()
	m := merge.New(fsys, l, cfg.Merge)

	var report *merge.Report
	if mergeResume {
		report, err = m.Resume(req)
	} else {
		exists, statErr := afero.Exists(fsys, req.Merged)
		if statErr != nil {
			return fmt.Errorf("failed to stat %s: %w", req.Merged, statErr)
		}
		if exists {
			question := fmt.Sprintf("The merged table path %s already exists. Replace it?", req.Merged)
			if !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), question, mergeYes) {
				l.Warn("Merge cancelled by user. No changes were made.")
				return nil
			}
			req.AllowRecreate = true
		}
		report, err = m.Merge(req)
	}
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	sizes := tableSizes(fsys, req, l)
	printMergeReport(l, report, sizes)

	if !mergeNoAudit {
		recordRun(ctx, cfg.Database, l, audit.FromReport(runID, req, mergeResume, sizes, report))
	}

	if report.Failed() {
		if mergeExport {
			l.Warn("Skipping export of an incomplete merge")
		}
		return fmt.Errorf("%w: %d of %d shards and %d entries failed",
			errMergeIncomplete, report.Summary.ShardsFailed, report.Summary.Shards, report.Summary.EntriesFailed)
	}

	if mergeExport {
		if err := exportTable(ctx, cfg.Storage, fsys, l, req.Merged, runID); err != nil {
			return err
		}
	}

	l.Info("Tables merged successfully", zap.String("merged", req.Merged))
	return nil
}

// tableSizes measures the three tables of a run. Failures are logged and counted as zero.
func tableSizes(fsys afero.Fs, req merge.Request, l *zap.Logger) audit.Sizes {
	size := func(root string) int64 {
		n, err := merge.TableSize(fsys, root)
		if err != nil {
			l.Warn("Could not measure table size", zap.String("path", root), zap.Error(err))
		}
		return n
	}
	return audit.Sizes{A: size(req.TableA), B: size(req.TableB), Merged: size(req.Merged)}
}

// printMergeReport prints the run summary and the failing shards.
func printMergeReport(l *zap.Logger, report *merge.Report, sizes audit.Sizes) {
	s := report.Summary

	l.Info("Merge report",
		zap.String("table_kind", report.TableKind),
		zap.Int("shards", s.Shards),
		zap.Int("shards_failed", s.ShardsFailed),
		zap.Int("entries_copied", s.EntriesCopied),
		zap.Int("entries_skipped", s.EntriesSkipped),
		zap.Int("entries_failed", s.EntriesFailed),
		zap.Int("identical", s.Identical),
		zap.Int("conflicts_detected", s.ConflictsDetected),
		zap.Int("conflicts_resolved", s.ConflictsResolved),
		zap.Int("low_similarity", s.LowSimilarity),
	)
	l.Info("Table sizes",
		zap.Int64("table_a_bytes", sizes.A),
		zap.Int64("table_b_bytes", sizes.B),
		zap.Int64("merged_bytes", sizes.Merged),
	)

	for _, r := range report.Shards {
		if r.Err != nil {
			l.Error("Shard failed", zap.String("shard", r.Shard), zap.Error(r.Err))
		}
		for _, f := range r.Failures {
			l.Warn("Entry failed",
				zap.String("shard", r.Shard),
				zap.String("key_dir", f.KeyDir),
				zap.String("entry", f.Entry),
				zap.Error(f.Err),
			)
		}
	}
}

// recordRun stores the run in the audit ledger. The ledger is optional.
func recordRun(ctx context.Context, cfg database.Config, l *zap.Logger, run *audit.MergeRun) {
	db, err := database.Connect(cfg)
	if err != nil {
		l.Warn("Optional audit ledger unavailable", zap.Error(err))
		return
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	store := audit.NewStore(db)
	if err := store.Migrate(); err != nil {
		l.Warn("Audit ledger migration failed", zap.Error(err))
		return
	}
	if err := store.Record(ctx, run); err != nil {
		l.Warn("Recording merge run failed", zap.Error(err))
		return
	}
	l.Info("Merge run recorded", zap.String("driver", cfg.Driver))
}

// exportTable uploads the merged table under <prefix>/<run id>.
func exportTable(ctx context.Context, cfg storage.Config, fsys afero.Fs, l *zap.Logger, root, runID string) error {
	client, err := storage.NewClient(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to storage: %w", err)
	}

	prefix := strings.Trim(cfg.Prefix+"/"+runID, "/")
	res, err := export.NewExporter(client, cfg.Bucket, fsys, l).Export(ctx, root, prefix)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	l.Info("Merged table exported",
		zap.String("bucket", cfg.Bucket),
		zap.String("prefix", prefix),
		zap.Int("uploaded", res.Uploaded),
	)
	return nil
}

// confirm asks a yes/no question on out and reads the answer from in.
// yes short-circuits the prompt.
func confirm(in io.Reader, out io.Writer, question string, yes bool) bool {
	if yes {
		fmt.Fprintln(out, "Auto-confirmed via --yes flag")
		return true
	}

	fmt.Fprintf(out, "%s (yes/no): ", question)
	response, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && response == "" {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes", "y":
		return true
	default:
		return false
	}
}
