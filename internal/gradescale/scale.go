// Package gradescale classifies raw grade tokens into pass/fail outcomes
// and maps letter grades onto the 10-point scale used for GPA aggregation.
package gradescale

import "strings"

// Passing grades, matched exactly and case-sensitively first.
var passingSet = map[string]struct{}{
	"O": {}, "A+": {}, "A": {}, "B+": {}, "B": {}, "C+": {}, "C": {},
}

// Failing tokens as they appear in real exports, including the case
// variants controllers have been seen to emit.
var failingSet = map[string]struct{}{
	"D": {}, "F": {}, "Fail": {}, "FAIL": {}, "fail": {},
	"U": {}, "RA": {}, "Ab": {}, "AB": {}, "ab": {},
	"Absent": {}, "ABSENT": {}, "W": {}, "I": {}, "Wh": {}, "WH": {},
}

var failingSubstrings = buildFailingSubstrings()

func buildFailingSubstrings() []string {
	seen := make(map[string]struct{}, len(failingSet))
	subs := make([]string, 0, len(failingSet))
	for token := range failingSet {
		lower := strings.ToLower(token)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		subs = append(subs, lower)
	}
	return subs
}

// Classify decides whether the trimmed grade token is a pass. Matching is
// three-tiered: exact passing membership, exact failing membership, then a
// lower-cased substring check against the failing set. The third tier is a
// deliberately permissive heuristic for decorated or oddly-cased tokens;
// heuristic reports when it was the deciding tier so callers can surface
// such tokens for manual review.
func Classify(token string) (passed bool, heuristic bool) {
	token = strings.TrimSpace(token)
	if _, ok := passingSet[token]; ok {
		return true, false
	}
	if _, ok := failingSet[token]; ok {
		return false, false
	}
	lower := strings.ToLower(token)
	for _, sub := range failingSubstrings {
		if strings.Contains(lower, sub) {
			return false, true
		}
	}
	return true, true
}

var gradePoints = map[string]int{
	"O": 10, "A+": 9, "A": 8, "B+": 7, "B": 6, "C+": 5, "C": 4, "D": 3, "F": 0,
}

// Point returns the grade point for a token. Tokens outside the scale
// (absences, withdrawals, malformed values) report ok=false and are
// excluded from GPA aggregation; they never influence the pass flag.
func Point(token string) (int, bool) {
	p, ok := gradePoints[strings.TrimSpace(token)]
	return p, ok
}
