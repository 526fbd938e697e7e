package merge

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestMerger(fsys afero.Fs) *Merger {
	return New(fsys, zap.NewNop(), Config{SimilarityThreshold: 0.7, IdentityFile: "id"})
}

func crawlRequest() Request {
	return Request{TableA: "/table1", TableB: "/table2", Merged: "/merged", TableKind: TableCrawl}
}

func TestMerge_CrawlEndToEnd(t *testing.T) {
	fsys := afero.NewMemMapFs()
	addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)
	addShard(t, fsys, "/table2", "worker1", "W1", TableCrawl)
	writeAt(t, fsys, "/table1/worker1/pt-crawl/__ac/pageA", "<html>fresh copy</html>\n", newer)
	writeAt(t, fsys, "/table2/worker1/pt-crawl/__ac/pageA", "<html>stale copy</html>\n", older)

	report, err := newTestMerger(fsys).Merge(crawlRequest())
	require.NoError(t, err)
	assert.False(t, report.Failed())

	assert.Equal(t, "W1", readFile(t, fsys, "/merged/worker1/id"))
	assert.Equal(t, "<html>fresh copy</html>\n", readFile(t, fsys, "/merged/worker1/pt-crawl/__ac/pageA"))
	assert.Equal(t, 1, report.Summary.ConflictsDetected)
	assert.Equal(t, 1, report.Summary.ConflictsResolved)
	assert.Equal(t, 1, report.Summary.LowSimilarity, "single differing line gives similarity 0")
}

func TestMerge_RankEndToEnd(t *testing.T) {
	fsys := afero.NewMemMapFs()
	addShard(t, fsys, "/table1", "worker1", "W1", TablePageRank)
	addShard(t, fsys, "/table2", "worker1", "W1", TablePageRank)
	writeAt(t, fsys, "/table1/worker1/pt-pagerank/__si/siteX", "siteX rank 4 1.25", older)
	writeAt(t, fsys, "/table2/worker1/pt-pagerank/__si/siteX", "siteX rank 4 2.75", older)

	req := crawlRequest()
	req.TableKind = TablePageRank
	report, err := newTestMerger(fsys).Merge(req)
	require.NoError(t, err)

	assert.Equal(t, "siteX rank 3 4.0", readFile(t, fsys, "/merged/worker1/pt-pagerank/__si/siteX"))
	assert.Equal(t, 1, report.Summary.ConflictsResolved)
	assert.Equal(t, 0, report.Summary.LowSimilarity)
}

func TestMerge_RankKeyMismatchSkipsEntry(t *testing.T) {
	fsys := afero.NewMemMapFs()
	addShard(t, fsys, "/table1", "worker1", "W1", TablePageRank)
	addShard(t, fsys, "/table2", "worker1", "W1", TablePageRank)
	writeAt(t, fsys, "/table1/worker1/pt-pagerank/__si/siteX", "siteX rank 4 1.25", older)
	writeAt(t, fsys, "/table2/worker1/pt-pagerank/__si/siteX", "siteZ rank 4 2.75", older)
	writeAt(t, fsys, "/table1/worker1/pt-pagerank/__si/siteY", "siteY rank 3 0.5", older)

	req := crawlRequest()
	req.TableKind = TablePageRank
	report, err := newTestMerger(fsys).Merge(req)
	require.NoError(t, err)

	assert.True(t, report.Failed())
	assert.Equal(t, 0, report.Summary.ShardsFailed)
	require.Len(t, report.Shards[0].Failures, 1)
	failure := report.Shards[0].Failures[0]
	assert.Equal(t, "__si", failure.KeyDir)
	assert.Equal(t, "siteX", failure.Entry)
	assert.ErrorIs(t, failure.Err, ErrSchemaMismatch)

	exists, _ := afero.Exists(fsys, "/merged/worker1/pt-pagerank/__si/siteX")
	assert.False(t, exists)
	assert.Equal(t, "siteY rank 3 0.5", readFile(t, fsys, "/merged/worker1/pt-pagerank/__si/siteY"))
}

func TestMerge_OneSidedEntriesAndKeyDirs(t *testing.T) {
	fsys := afero.NewMemMapFs()
	addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)
	addShard(t, fsys, "/table2", "worker1", "W1-other", TableCrawl)
	writeAt(t, fsys, "/table1/worker1/pt-crawl/__bo/pageB", "only in table1", older)
	writeAt(t, fsys, "/table2/worker1/pt-crawl/__zz/pageZ", "only in table2", older)
	writeAt(t, fsys, "/table1/worker1/pt-crawl/__ac/left", "left entry", older)
	writeAt(t, fsys, "/table2/worker1/pt-crawl/__ac/right", "right entry", older)

	report, err := newTestMerger(fsys).Merge(crawlRequest())
	require.NoError(t, err)

	want := map[string]string{
		"worker1/id":                 "W1",
		"worker1/pt-crawl/__bo/pageB": "only in table1",
		"worker1/pt-crawl/__zz/pageZ": "only in table2",
		"worker1/pt-crawl/__ac/left":  "left entry",
		"worker1/pt-crawl/__ac/right": "right entry",
	}
	if diff := cmp.Diff(want, snapshot(t, fsys, "/merged")); diff != "" {
		t.Errorf("merged tree mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, report.Summary.EntriesCopied)
	assert.Equal(t, 0, report.Summary.ConflictsDetected)
}

func TestMerge_IdenticalEntriesCopiedOnce(t *testing.T) {
	fsys := afero.NewMemMapFs()
	addShard(t, fsys, "/table1", "worker1", "W1", TablePageRank)
	addShard(t, fsys, "/table2", "worker1", "W1", TablePageRank)
	// Identical bytes but a malformed rank record: the resolver would reject it,
	// so a clean merge proves the resolver was not consulted.
	writeAt(t, fsys, "/table1/worker1/pt-pagerank/__ac/same", "not a rank record", older)
	writeAt(t, fsys, "/table2/worker1/pt-pagerank/__ac/same", "not a rank record", newer)

	req := crawlRequest()
	req.TableKind = TablePageRank
	report, err := newTestMerger(fsys).Merge(req)
	require.NoError(t, err)

	assert.False(t, report.Failed())
	assert.Equal(t, 1, report.Summary.Identical)
	assert.Equal(t, 1, report.Summary.EntriesCopied)
	assert.Equal(t, 0, report.Summary.ConflictsDetected)
	assert.Equal(t, "not a rank record", readFile(t, fsys, "/merged/worker1/pt-pagerank/__ac/same"))
}

func TestMerge_ShardSetMismatchWritesNothing(t *testing.T) {
	fsys := afero.NewMemMapFs()
	addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)
	addShard(t, fsys, "/table1", "worker2", "W2", TableCrawl)
	addShard(t, fsys, "/table2", "worker1", "W1", TableCrawl)
	addShard(t, fsys, "/table2", "worker3", "W3", TableCrawl)

	t.Run("FreshDestination", func(t *testing.T) {
		_, err := newTestMerger(fsys).Merge(crawlRequest())
		assert.ErrorIs(t, err, ErrShardSetMismatch)
		assert.Contains(t, err.Error(), "worker2")
		assert.Contains(t, err.Error(), "worker3")

		exists, _ := afero.Exists(fsys, "/merged")
		assert.False(t, exists)
	})

	t.Run("ExistingDestinationUntouched", func(t *testing.T) {
		writeAt(t, fsys, "/merged/keep", "previous run", older)
		req := crawlRequest()
		req.AllowRecreate = true

		_, err := newTestMerger(fsys).Merge(req)
		assert.ErrorIs(t, err, ErrShardSetMismatch)
		assert.Equal(t, "previous run", readFile(t, fsys, "/merged/keep"))
	})
}

func TestMerge_Preconditions(t *testing.T) {
	t.Run("UnsupportedTableKindBeforeIO", func(t *testing.T) {
		// The inputs do not exist, so a source check done first would report ErrSourceMissing.
		fsys := afero.NewReadOnlyFs(afero.NewMemMapFs())
		req := crawlRequest()
		req.TableKind = "pt-index"

		_, err := newTestMerger(fsys).Merge(req)
		assert.ErrorIs(t, err, ErrUnsupportedTableKind)
	})

	t.Run("SourceMissing", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)

		_, err := newTestMerger(fsys).Merge(crawlRequest())
		assert.ErrorIs(t, err, ErrSourceMissing)
		assert.Contains(t, err.Error(), "/table2")
	})

	t.Run("DestinationExists", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)
		addShard(t, fsys, "/table2", "worker1", "W1", TableCrawl)
		writeAt(t, fsys, "/merged/stale", "stale", older)

		_, err := newTestMerger(fsys).Merge(crawlRequest())
		assert.ErrorIs(t, err, ErrDestinationExists)
		assert.Equal(t, "stale", readFile(t, fsys, "/merged/stale"))
	})

	t.Run("RecreateDestination", func(t *testing.T) {
		fsys := afero.NewMemMapFs()
		addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)
		addShard(t, fsys, "/table2", "worker1", "W1", TableCrawl)
		writeAt(t, fsys, "/merged/stale", "stale", older)

		req := crawlRequest()
		req.AllowRecreate = true
		_, err := newTestMerger(fsys).Merge(req)
		require.NoError(t, err)

		exists, _ := afero.Exists(fsys, "/merged/stale")
		assert.False(t, exists)
		assert.Equal(t, "W1", readFile(t, fsys, "/merged/worker1/id"))
	})
}

func TestMerge_ShardFailuresAreIsolated(t *testing.T) {
	fsys := afero.NewMemMapFs()
	for _, root := range []string{"/table1", "/table2"} {
		addShard(t, fsys, root, "worker1", "W1", TableCrawl)
		writeAt(t, fsys, filepath.Join(root, "worker1/pt-crawl/__ac/page"), "same", older)
	}
	// worker2: identity marker missing on the right.
	addShard(t, fsys, "/table1", "worker2", "W2", TableCrawl)
	require.NoError(t, fsys.MkdirAll("/table2/worker2/pt-crawl", 0o755))
	// worker3: table kind missing on the left.
	writeAt(t, fsys, "/table1/worker3/id", "W3", older)
	addShard(t, fsys, "/table2", "worker3", "W3", TableCrawl)

	report, err := newTestMerger(fsys).Merge(crawlRequest())
	require.NoError(t, err)
	require.Len(t, report.Shards, 3)

	assert.True(t, report.Failed())
	assert.Equal(t, 2, report.Summary.ShardsFailed)

	byName := map[string]ShardResult{}
	for _, r := range report.Shards {
		byName[r.Shard] = r
	}
	assert.NoError(t, byName["worker1"].Err)
	assert.ErrorIs(t, byName["worker2"].Err, ErrMissingIdentity)
	assert.ErrorIs(t, byName["worker3"].Err, ErrMissingTableKind)

	assert.Equal(t, "same", readFile(t, fsys, "/merged/worker1/pt-crawl/__ac/page"))
}

func TestMergeShard_MissingShard(t *testing.T) {
	fsys := afero.NewMemMapFs()
	addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)
	require.NoError(t, fsys.MkdirAll("/table2", 0o755))
	require.NoError(t, fsys.MkdirAll("/merged", 0o755))

	res, err := newTestMerger(fsys).MergeShard("worker1", crawlRequest())
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, ErrMissingShard)
}

func TestMergeShard_Idempotent(t *testing.T) {
	fsys := afero.NewMemMapFs()
	addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)
	addShard(t, fsys, "/table2", "worker1", "W1", TableCrawl)
	writeAt(t, fsys, "/table1/worker1/pt-crawl/__ac/pageA", "fresh\n", newer)
	writeAt(t, fsys, "/table2/worker1/pt-crawl/__ac/pageA", "stale\n", older)
	writeAt(t, fsys, "/table1/worker1/pt-crawl/__ac/pageB", "same\n", older)
	writeAt(t, fsys, "/table2/worker1/pt-crawl/__ac/pageB", "same\n", older)
	writeAt(t, fsys, "/table2/worker1/pt-crawl/__bo/pageC", "right only\n", older)

	m := newTestMerger(fsys)
	_, err := m.Merge(crawlRequest())
	require.NoError(t, err)
	before := snapshot(t, fsys, "/merged")

	res, err := m.MergeShard("worker1", crawlRequest())
	require.NoError(t, err)
	assert.False(t, res.Failed())
	assert.Equal(t, 0, res.EntriesCopied)
	assert.Equal(t, 0, res.ConflictsResolved)
	assert.Equal(t, 3, res.EntriesSkipped)

	if diff := cmp.Diff(before, snapshot(t, fsys, "/merged")); diff != "" {
		t.Errorf("second pass changed the merged tree (-before +after):\n%s", diff)
	}
}

func TestResume_ConvergesPartialTree(t *testing.T) {
	build := func(t *testing.T) afero.Fs {
		fsys := afero.NewMemMapFs()
		addShard(t, fsys, "/table1", "worker1", "W1", TableCrawl)
		addShard(t, fsys, "/table2", "worker1", "W1", TableCrawl)
		writeAt(t, fsys, "/table1/worker1/pt-crawl/__ac/pageA", "fresh\n", newer)
		writeAt(t, fsys, "/table2/worker1/pt-crawl/__ac/pageA", "stale\n", older)
		writeAt(t, fsys, "/table1/worker1/pt-crawl/__ac/pageB", "b\n", older)
		return fsys
	}

	full := build(t)
	_, err := newTestMerger(full).Merge(crawlRequest())
	require.NoError(t, err)

	partial := build(t)
	// A crashed run got as far as the identity marker and one entry.
	writeAt(t, partial, "/merged/worker1/id", "W1", older)
	writeAt(t, partial, "/merged/worker1/pt-crawl/__ac/pageB", "b\n", older)

	report, err := newTestMerger(partial).Resume(crawlRequest())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Summary.EntriesSkipped)

	if diff := cmp.Diff(snapshot(t, full, "/merged"), snapshot(t, partial, "/merged")); diff != "" {
		t.Errorf("resumed tree differs from a full run (-full +resumed):\n%s", diff)
	}
}

func TestMerge_ManyShardsBoundedParallelism(t *testing.T) {
	fsys := afero.NewMemMapFs()
	const shards = 8
	for i := 0; i < shards; i++ {
		name := fmt.Sprintf("worker%d", i)
		for _, root := range []string{"/table1", "/table2"} {
			addShard(t, fsys, root, name, name, TableCrawl)
		}
		writeAt(t, fsys, fmt.Sprintf("/table1/%s/pt-crawl/__ac/page-%d", name, i), "left", older)
		writeAt(t, fsys, fmt.Sprintf("/table2/%s/pt-crawl/__ac/page-%d", name, i), "right", newer)
	}

	m := New(fsys, zap.NewNop(), Config{Parallelism: 3})
	report, err := m.Merge(crawlRequest())
	require.NoError(t, err)

	assert.Equal(t, shards, report.Summary.Shards)
	assert.Equal(t, shards, report.Summary.ConflictsResolved)
	for i, r := range report.Shards {
		assert.Equal(t, fmt.Sprintf("worker%d", i), r.Shard, "results keep sorted shard order")
		assert.Equal(t, "right", readFile(t, fsys, fmt.Sprintf("/merged/worker%d/pt-crawl/__ac/page-%d", i, i)))
	}
}

func TestTableSize(t *testing.T) {
	fsys := afero.NewMemMapFs()
	writeAt(t, fsys, "/t/worker1/id", "W1", older)
	writeAt(t, fsys, "/t/worker1/pt-crawl/__ac/page", "12345", older)

	size, err := TableSize(fsys, "/t")
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	size, err = TableSize(fsys, "/missing")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}
