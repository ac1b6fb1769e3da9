package compose

import "fmt"

// Decision is the budgeter's verdict for one candidate optional block.
type Decision int

const (
	// Accept includes the block.
	Accept Decision = iota

	// AcceptSummaryOnly is the verdict for a detail block that does not
	// fit: the skill's already-included summary stays, the detail does not.
	AcceptSummaryOnly

	// Reject is the verdict for a summary block that does not fit, which
	// implies excluding every detail of its skill.
	Reject
)

// String returns the decision name.
func (d Decision) String() string {
	switch d {
	case Accept:
		return "accept"
	case AcceptSummaryOnly:
		return "accept-summary-only"
	case Reject:
		return "reject"
	default:
		return "unknown"
	}
}

// Budgeter makes pure, deterministic fit decisions against a fixed ceiling.
// Mandatory blocks are never routed through it; the composer fails the whole
// composition when mandatory content alone exceeds the ceiling.
type Budgeter struct {
	Ceiling int
}

// Fits reports whether one more block of the given size stays under the
// ceiling.
func (b Budgeter) Fits(used, next int) bool {
	return used+next <= b.Ceiling
}

// Decide is the admission verdict for the next optional block given the
// tokens already used. The block kind picks the non-accept verdict: a
// summary over the ceiling is rejected outright, a detail over the ceiling
// leaves its summary in place. Identical inputs always yield identical
// decisions.
func (b Budgeter) Decide(used int, kind BlockKind, tokens int) Decision {
	if b.Fits(used, tokens) {
		return Accept
	}
	if kind == BlockSkillSummary {
		return Reject
	}
	return AcceptSummaryOnly
}

// BudgetInfeasibleError reports that the mandatory content (rules, persona,
// inline instructions) alone exceeds the ceiling. Terminal: no bundle is
// produced and the invocation is not retried.
type BudgetInfeasibleError struct {
	MandatoryTokens int
	Ceiling         int
}

func (e *BudgetInfeasibleError) Error() string {
	return fmt.Sprintf("mandatory content (%d tokens) exceeds budget ceiling (%d tokens)",
		e.MandatoryTokens, e.Ceiling)
}
