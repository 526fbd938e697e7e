package merge

import (
	"fmt"
	"sort"

	"github.com/spf13/afero"
)

// Table kinds with a registered conflict policy.
const (
	TableCrawl    = "pt-crawl"
	TablePageRank = "pt-pagerank"
)

// Policy is the closed set of conflict policies.
type Policy int

const (
	// MostRecentWins keeps the entry with the later modification time.
	MostRecentWins Policy = iota + 1
	// AdditiveRankMerge sums the scores of two rank records.
	// The record keys of both sides must be equal. The entry name is not compared
	// with the record key, since stored entry names may be an encoding of the key.
	AdditiveRankMerge
)

func (p Policy) String() string {
	switch p {
	case MostRecentWins:
		return "most_recent_wins"
	case AdditiveRankMerge:
		return "additive_rank_merge"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

var policies = map[string]Policy{
	TableCrawl:    MostRecentWins,
	TablePageRank: AdditiveRankMerge,
}

// SupportedTableKinds returns the registered table kinds, sorted.
func SupportedTableKinds() []string {
	kinds := make([]string, 0, len(policies))
	for k := range policies {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Outcome names what a resolver did with a conflict.
type Outcome string

const (
	OutcomeKeptLeft  Outcome = "kept_left"
	OutcomeKeptRight Outcome = "kept_right"
	OutcomeSummed    Outcome = "summed"
)

// Decision describes how a conflict was settled.
type Decision struct {
	// Outcome is the resolver's choice.
	Outcome Outcome

	// Written is false when the merged entry already existed and was left alone.
	Written bool

	// Similarity is the line similarity of the two sides (MostRecentWins only).
	Similarity float64

	// LowSimilarity is set when Similarity fell below the threshold (MostRecentWins only).
	LowSimilarity bool

	// Record is the merged record (AdditiveRankMerge only).
	Record RankRecord
}

// Resolver settles entries that share a name but differ in content.
// It is selected once per merge with ResolverFor and passed by value to every shard.
type Resolver struct {
	Policy              Policy
	SimilarityThreshold float64
}

// ResolverFor returns the resolver registered for tableKind.
func ResolverFor(tableKind string, similarityThreshold float64) (Resolver, error) {
	p, ok := policies[tableKind]
	if !ok {
		return Resolver{}, fmt.Errorf("%w: %q (supported: %v)", ErrUnsupportedTableKind, tableKind, SupportedTableKinds())
	}
	if similarityThreshold <= 0 {
		similarityThreshold = DefaultSimilarityThreshold
	}
	return Resolver{Policy: p, SimilarityThreshold: similarityThreshold}, nil
}

// Resolve settles the conflict between left and right, writing at most one entry to dst.
// An existing dst is never overwritten.
func (r Resolver) Resolve(fsys afero.Fs, left, right, dst string) (Decision, error) {
	switch r.Policy {
	case MostRecentWins:
		return r.mostRecentWins(fsys, left, right, dst)
	case AdditiveRankMerge:
		return r.additiveRankMerge(fsys, left, right, dst)
	default:
		return Decision{}, fmt.Errorf("%w: %s", ErrUnsupportedTableKind, r.Policy)
	}
}

func (r Resolver) mostRecentWins(fsys afero.Fs, left, right, dst string) (Decision, error) {
	leftData, err := afero.ReadFile(fsys, left)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: read %s: %w", ErrIO, left, err)
	}
	rightData, err := afero.ReadFile(fsys, right)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: read %s: %w", ErrIO, right, err)
	}

	var d Decision
	d.Similarity = LineSimilarity(leftData, rightData)
	d.LowSimilarity = d.Similarity < r.SimilarityThreshold

	leftInfo, err := fsys.Stat(left)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: stat %s: %w", ErrIO, left, err)
	}
	rightInfo, err := fsys.Stat(right)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: stat %s: %w", ErrIO, right, err)
	}

	// Equal timestamps keep the left side.
	src := left
	d.Outcome = OutcomeKeptLeft
	if rightInfo.ModTime().After(leftInfo.ModTime()) {
		src = right
		d.Outcome = OutcomeKeptRight
	}

	d.Written, err = copyFile(fsys, src, dst)
	if err != nil {
		return Decision{}, err
	}
	return d, nil
}

// additiveRankMerge writes the summed record of left and right to dst.
// Only the two record keys are compared; dst keeps the entry name it was given.
func (r Resolver) additiveRankMerge(fsys afero.Fs, left, right, dst string) (Decision, error) {
	leftData, err := afero.ReadFile(fsys, left)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: read %s: %w", ErrIO, left, err)
	}
	rightData, err := afero.ReadFile(fsys, right)
	if err != nil {
		return Decision{}, fmt.Errorf("%w: read %s: %w", ErrIO, right, err)
	}

	leftRec, err := ParseRankRecord(leftData)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", left, err)
	}
	rightRec, err := ParseRankRecord(rightData)
	if err != nil {
		return Decision{}, fmt.Errorf("%s: %w", right, err)
	}
	if leftRec.Key != rightRec.Key {
		return Decision{}, fmt.Errorf("%w: record keys %q and %q differ under the same entry name", ErrSchemaMismatch, leftRec.Key, rightRec.Key)
	}

	merged := RankRecord{Key: leftRec.Key, Score: leftRec.Score + rightRec.Score}
	written, err := writeFile(fsys, dst, []byte(merged.String()))
	if err != nil {
		return Decision{}, err
	}

	return Decision{Outcome: OutcomeSummed, Written: written, Record: merged}, nil
}
