package engine

import "strconv"

// conclusionState tracks the conclusion walk. The walk starts PENDING and
// must end CONCLUDED; there is no other terminal state.
type conclusionState int

const (
	statePending conclusionState = iota
	stateConcluded
)

// conclusion is the outcome of walking an assembled evaluation trail.
type conclusion struct {
	state   conclusionState
	by      string
	notice  string
	success bool
}

// concludeAs transitions PENDING to CONCLUDED. A concluded walk never
// transitions again; later calls are ignored.
func (c *conclusion) concludeAs(by, notice string, success bool) {
	if c.state == stateConcluded {
		return
	}
	c.state = stateConcluded
	c.by = by
	c.notice = notice
	c.success = success
}

func (c *conclusion) concluded() bool {
	return c.state == stateConcluded
}

// conclude walks the assembled records in their evaluation order and
// determines the single concluding rule or sub-rule. The first record
// whose base evaluation failed concludes with that rule's sequence and
// fail message. Otherwise the first failing sub-rule under a passed rule
// concludes with the parent's sequence and the sub-rule's fail message.
// When nothing failed, the rule set as a whole concludes the evaluation.
func conclude(records []EvaluationRecord) conclusion {
	var c conclusion
	for i := range records {
		rec := &records[i]
		if !rec.Passed {
			c.concludeAs(strconv.Itoa(rec.Sequence), rec.FailMessage, false)
			return c
		}
		for j := range rec.SubRules {
			if !rec.SubRules[j].Passed {
				c.concludeAs(strconv.Itoa(rec.Sequence), rec.SubRules[j].FailMessage, false)
				return c
			}
		}
	}
	c.concludeAs(ConcludedByRuleSet, NoticeAllRulesPassed, true)
	return c
}
