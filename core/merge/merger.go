package merge

import (
	"fmt"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Merger merges sharded tables on a filesystem.
type Merger struct {
	fs     afero.Fs
	logger *zap.Logger
	cfg    Config
}

// New creates a Merger that reads and writes through fsys.
func New(fsys afero.Fs, logger *zap.Logger, cfg Config) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{
		fs:     fsys,
		logger: logger,
		cfg:    cfg.withDefaults(),
	}
}

// Merge merges req.TableA and req.TableB into a freshly created req.Merged.
//
// Nothing is written until every precondition holds: the table kind is registered,
// both inputs exist, the merged root is absent (or req.AllowRecreate is set) and
// both inputs hold the same shard names. Shard failures are reported on the
// returned Report; they never stop sibling shards.
func (m *Merger) Merge(req Request) (*Report, error) {
	resolver, err := ResolverFor(req.TableKind, m.cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	if err := m.requireSources(req); err != nil {
		return nil, err
	}

	exists, err := afero.Exists(m.fs, req.Merged)
	if err != nil {
		return nil, fmt.Errorf("%w: stat %s: %w", ErrIO, req.Merged, err)
	}
	if exists && !req.AllowRecreate {
		return nil, fmt.Errorf("%w: %s", ErrDestinationExists, req.Merged)
	}

	shards, err := m.shardNames(req)
	if err != nil {
		return nil, err
	}

	if exists {
		m.logger.Warn("Removing existing merged table", zap.String("path", req.Merged))
		if err := m.fs.RemoveAll(req.Merged); err != nil {
			return nil, fmt.Errorf("%w: remove %s: %w", ErrIO, req.Merged, err)
		}
	}
	if err := m.fs.MkdirAll(req.Merged, dirPerm); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %w", ErrIO, req.Merged, err)
	}

	return m.run(req, shards, resolver), nil
}

// Resume merges into an existing (possibly partial) merged root without recreating it.
// Entries that are already present are skipped, so a resumed run converges to the same
// tree as an uninterrupted one.
func (m *Merger) Resume(req Request) (*Report, error) {
	resolver, err := ResolverFor(req.TableKind, m.cfg.SimilarityThreshold)
	if err != nil {
		return nil, err
	}
	if err := m.requireSources(req); err != nil {
		return nil, err
	}
	shards, err := m.shardNames(req)
	if err != nil {
		return nil, err
	}
	if _, err := ensureDir(m.fs, req.Merged); err != nil {
		return nil, err
	}

	return m.run(req, shards, resolver), nil
}

// MergeShard merges a single shard of req into the merged root, which must already exist.
func (m *Merger) MergeShard(shard string, req Request) (ShardResult, error) {
	resolver, err := ResolverFor(req.TableKind, m.cfg.SimilarityThreshold)
	if err != nil {
		return ShardResult{}, err
	}
	return m.mergeShard(shard, req, resolver), nil
}

// run fans out one task per shard and joins them.
// Tasks never return an error so one failing shard cannot cancel another.
func (m *Merger) run(req Request, shards []string, resolver Resolver) *Report {
	log := m.logger.With(zap.String("table_kind", req.TableKind))
	log.Info("Starting merge",
		zap.String("table_a", req.TableA),
		zap.String("table_b", req.TableB),
		zap.String("merged", req.Merged),
		zap.Int("shards", len(shards)),
		zap.String("policy", resolver.Policy.String()),
	)

	report := &Report{TableKind: req.TableKind, Started: time.Now()}
	results := make([]ShardResult, len(shards))

	var g errgroup.Group
	if m.cfg.Parallelism > 0 {
		g.SetLimit(m.cfg.Parallelism)
	}
	for i, shard := range shards {
		g.Go(func() error {
			results[i] = m.mergeShard(shard, req, resolver)
			return nil
		})
	}
	_ = g.Wait()

	report.Finished = time.Now()
	report.Shards = results
	report.Summary = summarize(results)

	s := report.Summary
	log.Info("Merge finished",
		zap.Int("shards", s.Shards),
		zap.Int("shards_failed", s.ShardsFailed),
		zap.Int("entries_copied", s.EntriesCopied),
		zap.Int("entries_skipped", s.EntriesSkipped),
		zap.Int("entries_failed", s.EntriesFailed),
		zap.Int("conflicts_detected", s.ConflictsDetected),
		zap.Int("conflicts_resolved", s.ConflictsResolved),
		zap.Int("low_similarity", s.LowSimilarity),
		zap.Duration("elapsed", report.Finished.Sub(report.Started)),
	)
	return report
}

func (m *Merger) requireSources(req Request) error {
	for _, root := range []string{req.TableA, req.TableB} {
		ok, err := afero.DirExists(m.fs, root)
		if err != nil {
			return fmt.Errorf("%w: stat %s: %w", ErrIO, root, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", ErrSourceMissing, root)
		}
	}
	return nil
}

// shardNames returns the shard names shared by both inputs, or ErrShardSetMismatch.
func (m *Merger) shardNames(req Request) ([]string, error) {
	d, err := DiffChildren(m.fs, req.TableA, req.TableB, Directories)
	if err != nil {
		return nil, err
	}
	if !d.Equal() {
		return nil, fmt.Errorf("%w: only in %s: %v, only in %s: %v",
			ErrShardSetMismatch, req.TableA, d.OnlyLeft, req.TableB, d.OnlyRight)
	}
	return d.Shared, nil
}
