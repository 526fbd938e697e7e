package merge

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// rankMarker is the literal second field of every rank record.
const rankMarker = "rank"

// RankRecord is a single "<key> rank <digit-length> <score>" line.
type RankRecord struct {
	Key   string
	Score float64
}

// ParseRankRecord parses the single record held by a rank entry.
// Anything other than exactly one well-formed record is an ErrSchemaMismatch.
func ParseRankRecord(data []byte) (RankRecord, error) {
	var line string
	for _, l := range strings.Split(string(data), "\n") {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if line != "" {
			return RankRecord{}, fmt.Errorf("%w: more than one rank record", ErrSchemaMismatch)
		}
		line = l
	}
	if line == "" {
		return RankRecord{}, fmt.Errorf("%w: empty rank entry", ErrSchemaMismatch)
	}

	fields := strings.Fields(line)
	if len(fields) != 4 || fields[1] != rankMarker {
		return RankRecord{}, fmt.Errorf("%w: malformed rank record %q", ErrSchemaMismatch, line)
	}
	if _, err := strconv.Atoi(fields[2]); err != nil {
		return RankRecord{}, fmt.Errorf("%w: bad score length in %q", ErrSchemaMismatch, line)
	}
	score, err := strconv.ParseFloat(fields[3], 64)
	if err != nil || math.IsNaN(score) || math.IsInf(score, 0) {
		return RankRecord{}, fmt.Errorf("%w: bad score in %q", ErrSchemaMismatch, line)
	}

	return RankRecord{Key: fields[0], Score: score}, nil
}

// String renders the record with the length of its score text as the third field.
func (r RankRecord) String() string {
	score := formatScore(r.Score)
	return fmt.Sprintf("%s %s %d %s", r.Key, rankMarker, len(score), score)
}

// formatScore renders v as the shortest decimal that round-trips, keeping a ".0"
// on integral values and switching to exponent form outside [1e-4, 1e16),
// which is how the rank job writes its scores.
func formatScore(v float64) string {
	if abs := math.Abs(v); v != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
