package merge

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// LineSimilarity returns the SequenceMatcher ratio (0.0 to 1.0) of the lines of a and b.
// Two empty inputs are fully similar.
func LineSimilarity(a, b []byte) float64 {
	return difflib.NewMatcher(splitLines(a), splitLines(b)).Ratio()
}

var newlines = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// splitLines splits data into lines, keeping line terminators.
// "\r\n" and a lone "\r" both end a line and are read as "\n".
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	lines := strings.SplitAfter(newlines.Replace(string(data)), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
