package refindex

import (
	"regexp"
	"strconv"
)

// revisionPattern splits a raw document id into its base reference and
// revision suffix. The base match is greedy, so P12R3R4 resolves to
// base P12R3, revision 4.
var revisionPattern = regexp.MustCompile(`^(.+)R(\d+)$`)

// SplitRevision maps a raw document id to (base reference, revision).
// An id without a revision suffix is its own base with revision 0.
// Total: never fails on any input.
func SplitRevision(id string) (string, int) {
	m := revisionPattern.FindStringSubmatch(id)
	if m == nil {
		return id, 0
	}
	rev, err := strconv.Atoi(m[2])
	if err != nil {
		return id, 0
	}
	return m[1], rev
}
