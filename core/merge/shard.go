package merge

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// side labels an input table in logs.
type side string

const (
	sideLeft  side = "left"
	sideRight side = "right"
)

// shardJob carries everything one shard merge needs.
type shardJob struct {
	shard    string
	req      Request
	resolver Resolver
	result   *ShardResult
	log      *zap.Logger
}

// mergeShard merges a single shard of req into the merged root.
// Structural failures are returned on the result and never affect other shards.
func (m *Merger) mergeShard(shard string, req Request, resolver Resolver) ShardResult {
	res := ShardResult{Shard: shard}
	job := &shardJob{
		shard:    shard,
		req:      req,
		resolver: resolver,
		result:   &res,
		log:      m.logger.With(zap.String("shard", shard)),
	}

	if err := m.runShard(job); err != nil {
		res.Err = err
		job.log.Error("Shard merge failed", zap.Error(err))
		return res
	}

	job.log.Info("Shard merged",
		zap.Int("entries_copied", res.EntriesCopied),
		zap.Int("entries_skipped", res.EntriesSkipped),
		zap.Int("conflicts_detected", res.ConflictsDetected),
		zap.Int("conflicts_resolved", res.ConflictsResolved),
		zap.Int("low_similarity", res.LowSimilarity),
		zap.Int("entries_failed", len(res.Failures)),
	)
	return res
}

func (m *Merger) runShard(job *shardJob) error {
	leftShard := filepath.Join(job.req.TableA, job.shard)
	rightShard := filepath.Join(job.req.TableB, job.shard)
	mergedShard := filepath.Join(job.req.Merged, job.shard)

	// 1. Shard directories
	for _, dir := range []string{leftShard, rightShard} {
		if err := m.requireDir(dir, ErrMissingShard); err != nil {
			return err
		}
	}

	// 2. Identity markers; the left marker is the one kept.
	leftID := filepath.Join(leftShard, m.cfg.IdentityFile)
	rightID := filepath.Join(rightShard, m.cfg.IdentityFile)
	for _, id := range []string{leftID, rightID} {
		if err := m.requireFile(id, ErrMissingIdentity); err != nil {
			return err
		}
	}
	if _, err := ensureDir(m.fs, mergedShard); err != nil {
		return err
	}
	copied, err := copyFile(m.fs, leftID, filepath.Join(mergedShard, m.cfg.IdentityFile))
	if err != nil {
		return err
	}
	if copied {
		job.log.Info("Copied identity marker", zap.String("from", leftID))
	}

	// 3. Table-kind directories
	leftTable := filepath.Join(leftShard, job.req.TableKind)
	rightTable := filepath.Join(rightShard, job.req.TableKind)
	mergedTable := filepath.Join(mergedShard, job.req.TableKind)
	for _, dir := range []string{leftTable, rightTable} {
		if err := m.requireDir(dir, ErrMissingTableKind); err != nil {
			return err
		}
	}
	if _, err := ensureDir(m.fs, mergedTable); err != nil {
		return err
	}

	// 4. Key-directories
	keyDirs, err := DiffChildren(m.fs, leftTable, rightTable, Directories)
	if err != nil {
		return err
	}

	// 5. Shared key-directories are diffed entry by entry.
	for _, kd := range keyDirs.Shared {
		m.mergeKeyDir(job, kd,
			filepath.Join(leftTable, kd),
			filepath.Join(rightTable, kd),
			filepath.Join(mergedTable, kd),
		)
	}

	// 6. One-sided key-directories are copied whole.
	for _, kd := range keyDirs.OnlyLeft {
		m.copyKeyDir(job, kd, filepath.Join(leftTable, kd), filepath.Join(mergedTable, kd), sideLeft)
	}
	for _, kd := range keyDirs.OnlyRight {
		m.copyKeyDir(job, kd, filepath.Join(rightTable, kd), filepath.Join(mergedTable, kd), sideRight)
	}

	return nil
}

// mergeKeyDir reconciles a key-directory present on both sides.
func (m *Merger) mergeKeyDir(job *shardJob, keyDir, left, right, dst string) {
	if _, err := ensureDir(m.fs, dst); err != nil {
		job.fail(keyDir, "", err)
		return
	}

	entries, err := DiffChildren(m.fs, left, right, Files)
	if err != nil {
		job.fail(keyDir, "", err)
		return
	}

	for _, name := range entries.Shared {
		m.mergeEntry(job, keyDir, name, filepath.Join(left, name), filepath.Join(right, name), filepath.Join(dst, name))
	}
	for _, name := range entries.OnlyLeft {
		m.copyEntry(job, keyDir, name, filepath.Join(left, name), filepath.Join(dst, name), sideLeft)
	}
	for _, name := range entries.OnlyRight {
		m.copyEntry(job, keyDir, name, filepath.Join(right, name), filepath.Join(dst, name), sideRight)
	}
}

// copyKeyDir copies every entry of a key-directory present on one side only.
func (m *Merger) copyKeyDir(job *shardJob, keyDir, src, dst string, from side) {
	if _, err := ensureDir(m.fs, dst); err != nil {
		job.fail(keyDir, "", err)
		return
	}

	names, err := listChildren(m.fs, src, false)
	if err != nil {
		job.fail(keyDir, "", err)
		return
	}
	for _, name := range names {
		m.copyEntry(job, keyDir, name, filepath.Join(src, name), filepath.Join(dst, name), from)
	}
}

// mergeEntry reconciles an entry name present on both sides.
func (m *Merger) mergeEntry(job *shardJob, keyDir, name, left, right, dst string) {
	leftSum, err := Fingerprint(m.fs, left)
	if err != nil {
		job.fail(keyDir, name, err)
		return
	}
	rightSum, err := Fingerprint(m.fs, right)
	if err != nil {
		job.fail(keyDir, name, err)
		return
	}

	if leftSum == rightSum {
		job.result.Identical++
		m.copyEntry(job, keyDir, name, left, dst, sideLeft)
		return
	}

	job.result.ConflictsDetected++
	l := job.log.With(zap.String("key_dir", keyDir), zap.String("entry", name))
	l.Info("Conflict detected: same key, different value",
		zap.String("left", left),
		zap.String("right", right),
	)

	d, err := job.resolver.Resolve(m.fs, left, right, dst)
	if err != nil {
		job.fail(keyDir, name, err)
		return
	}

	if d.LowSimilarity {
		job.result.LowSimilarity++
		l.Warn("Conflicting pages have low similarity",
			zap.Float64("similarity", d.Similarity),
			zap.Float64("threshold", job.resolver.SimilarityThreshold),
		)
	}

	fields := []zap.Field{
		zap.String("policy", job.resolver.Policy.String()),
		zap.String("outcome", string(d.Outcome)),
		zap.Bool("written", d.Written),
	}
	switch job.resolver.Policy {
	case MostRecentWins:
		fields = append(fields, zap.Float64("similarity", d.Similarity))
	case AdditiveRankMerge:
		fields = append(fields, zap.String("record", d.Record.String()))
	}
	l.Info("Conflict resolved", fields...)

	if d.Written {
		job.result.ConflictsResolved++
	} else {
		job.result.EntriesSkipped++
	}
}

// copyEntry copies one entry verbatim unless the destination already exists.
func (m *Merger) copyEntry(job *shardJob, keyDir, name, src, dst string, from side) {
	copied, err := copyFile(m.fs, src, dst)
	if err != nil {
		job.fail(keyDir, name, err)
		return
	}

	l := job.log.With(zap.String("key_dir", keyDir), zap.String("entry", name), zap.String("side", string(from)))
	if !copied {
		job.result.EntriesSkipped++
		l.Debug("Entry already present, skipped")
		return
	}
	job.result.EntriesCopied++
	l.Debug("Copied entry")
}

// fail records an entry-level failure and keeps the shard going.
func (j *shardJob) fail(keyDir, name string, err error) {
	j.result.Failures = append(j.result.Failures, EntryFailure{KeyDir: keyDir, Entry: name, Err: err})
	level := j.log.Error
	if errors.Is(err, ErrSchemaMismatch) {
		level = j.log.Warn
	}
	level("Entry not merged",
		zap.String("key_dir", keyDir),
		zap.String("entry", name),
		zap.Error(err),
	)
}

// requireDir returns missing (wrapped) unless dir is an existing directory.
func (m *Merger) requireDir(dir string, missing error) error {
	ok, err := afero.DirExists(m.fs, dir)
	if err != nil {
		return fmt.Errorf("%w: stat %s: %w", ErrIO, dir, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", missing, dir)
	}
	return nil
}

// requireFile returns missing (wrapped) unless path is an existing regular file.
func (m *Merger) requireFile(path string, missing error) error {
	info, err := m.fs.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", missing, path)
		}
		return fmt.Errorf("%w: stat %s: %w", ErrIO, path, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s is not a file", missing, path)
	}
	return nil
}
