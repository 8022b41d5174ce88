package rglob

import "fmt"

const maxInvariantSize = 65536

// validate walks the parsed AST enforcing the language's structural
// rules: separator placement, wildcard adjacency, "**" as a whole
// component, alternation branch shape, repetition bounds, and the
// compiled size budget.
func validate(root *node) error {
	return validateSeq(root, true)
}

// validateSeq validates one nSeq's items (a flat run of tokens possibly
// containing nSep, nAlt, nRepeat). atStart is true when this sequence opens
// the overall expression (so its first item, if any, is "rooted").
func validateSeq(seq *node, atStart bool) error {
	items := seq.items

	for i, it := range items {
		// Rule 1: no adjacent separators.
		if it.kind == nSep && i+1 < len(items) && items[i+1].kind == nSep {
			return &parseError{sp: items[i+1].sp, msg: "adjacent path separators are not allowed"}
		}
		// Rule 2: no adjacent wildcard tokens within the same component.
		if (it.kind == nStar || it.kind == nTree) && i+1 < len(items) {
			next := items[i+1]
			if next.kind == nStar || next.kind == nTree {
				return &parseError{sp: next.sp, msg: "adjacent wildcard tokens are not allowed"}
			}
		}
		// Rule 3: "**" must be a whole component.
		if it.kind == nTree {
			leftOK := i == 0 || items[i-1].kind == nSep
			rightOK := i == len(items)-1 || items[i+1].kind == nSep
			if !leftOK || !rightOK {
				return &parseError{sp: it.sp, msg: "\"**\" must occupy a whole path component"}
			}
		}
		// Recurse into alternation arms (rule 4).
		if it.kind == nAlt {
			isStartOfSeq := i == 0
			for _, arm := range it.arms {
				if err := validateAltArm(arm, atStart && isStartOfSeq, i > 0 && items[i-1].kind == nSep, i+1 < len(items) && items[i+1].kind == nSep); err != nil {
					return err
				}
			}
		}
		// Recurse into repetition bodies (rule 5).
		if it.kind == nRepeat {
			if err := validateRepeat(it, atStart && i == 0); err != nil {
				return err
			}
			if err := validateSeq(it.body, false); err != nil {
				return err
			}
		}
	}

	if err := checkInvariantSize(seq); err != nil {
		return err
	}
	return nil
}

func validateAltArm(arm *node, hasNoLeftContext bool, precededBySep, followedBySep bool) error {
	items := arm.items
	if len(items) > 0 {
		first := items[0]
		if first.kind == nSep && hasNoLeftContext {
			return &parseError{sp: first.sp, msg: "alternation branch must not begin with \"/\" without left context"}
		}
		if first.kind == nSep && precededBySep {
			return &parseError{sp: first.sp, msg: "alternation branch must not introduce a separator adjacent to an outer separator"}
		}
		last := items[len(items)-1]
		if last.kind == nSep && followedBySep {
			return &parseError{sp: last.sp, msg: "alternation branch must not introduce a separator adjacent to an outer separator"}
		}
	}
	if len(items) == 1 && (items[0].kind == nTree || items[0].kind == nStar) {
		return &parseError{sp: items[0].sp, msg: "alternation branch must not be a singular \"*\" or \"**\""}
	}
	return validateSeq(arm, false)
}

func validateRepeat(rep *node, rooted bool) error {
	if rep.lower > rep.upper {
		return &parseError{sp: rep.sp, msg: fmt.Sprintf("repetition lower bound %d exceeds upper bound %d", rep.lower, rep.upper)}
	}
	if rep.upper <= 0 {
		return &parseError{sp: rep.sp, msg: "repetition upper bound must be greater than zero"}
	}
	if rooted && rep.lower < 1 {
		return &parseError{sp: rep.sp, msg: "a repetition that roots the expression must have a lower bound of at least 1"}
	}
	return nil
}

// checkInvariantSize estimates the maximum byte length any single expanded
// variant of seq could produce and rejects expressions whose automaton
// would blow past maxInvariantSize (rule 6).
func checkInvariantSize(seq *node) error {
	size, err := estimateSize(seq)
	if err != nil {
		return err
	}
	if size >= maxInvariantSize {
		return &parseError{sp: seq.sp, msg: fmt.Sprintf("pattern's compiled size (%d bytes) exceeds the %d byte budget", size, maxInvariantSize)}
	}
	return nil
}

func estimateSize(n *node) (int, error) {
	switch n.kind {
	case nSeq:
		total := 0
		for _, it := range n.items {
			sz, err := estimateSize(it)
			if err != nil {
				return 0, err
			}
			total += sz
			if total > maxInvariantSize*4 {
				return 0, &parseError{sp: n.sp, msg: "pattern's compiled size exceeds the byte budget"}
			}
		}
		return total, nil
	case nLiteral:
		return len(n.lit), nil
	case nAny, nClass:
		return 4, nil
	case nStar, nTree:
		return 1, nil
	case nSep:
		return 1, nil
	case nAlt:
		best := 0
		for _, arm := range n.arms {
			sz, err := estimateSize(arm)
			if err != nil {
				return 0, err
			}
			if sz > best {
				best = sz
			}
		}
		return best, nil
	case nRepeat:
		bodySz, err := estimateSize(n.body)
		if err != nil {
			return 0, err
		}
		total := bodySz * n.upper
		if total > maxInvariantSize*4 {
			return 0, &parseError{sp: n.sp, msg: "pattern's compiled size exceeds the byte budget"}
		}
		return total, nil
	default:
		return 0, nil
	}
}
