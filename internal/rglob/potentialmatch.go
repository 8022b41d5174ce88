package rglob

// MatchState is the three-valued result of PotentialMatch.
type MatchState int

const (
	// NoMatch means relPath cannot match g, nor can any descendant.
	NoMatch MatchState = iota
	// Match means relPath fully matches g.
	Match
	// PotentialMatch means relPath does not fully match g, but some
	// descendant of relPath might; the walker should descend.
	PotentialMatch
)

// PotentialMatch answers the "should the walker descend into relPath"
// question: full match wins outright; failing that, g is
// truncated component-by-component from the right and retried against the
// same relPath, and any truncation that matches signals PotentialMatch.
// The empty path is always a PotentialMatch (the walk root itself).
func (g *Glob) PotentialMatch(relPath string) MatchState {
	if relPath == "" {
		return PotentialMatch
	}
	comps := pathComponents(relPath)
	for _, v := range g.variants {
		if matchVariant(v, comps) {
			return Match
		}
	}

	maxLen := 0
	for _, v := range g.variants {
		if len(v) > maxLen {
			maxLen = len(v)
		}
	}
	for k := maxLen - 1; k >= 0; k-- {
		for _, v := range g.variants {
			if len(v) < k {
				continue
			}
			if matchVariant(v[:k], comps) {
				return PotentialMatch
			}
		}
	}
	return NoMatch
}
