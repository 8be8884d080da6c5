// Package engine evaluates ordered guardrail rule sets against named
// datasets and produces the structured verdict the rest of the platform
// acts on.
//
// # Overview
//
// An evaluation takes a rule set (loaded by the repository or assembled
// ad hoc) and the caller's datasets, runs every rule in ascending sequence
// order, and returns an EvaluationReport: one record per rule with the
// resolved value, the operator's verdict and any sub-rule results, plus the
// single concluding citation.
//
//	eng, err := engine.New(nil)
//	report, err := eng.Evaluate(ctx, set, engine.Datasets{
//		"application": {"lender_name": "Acme Capital"},
//	})
//
// # Conclusion
//
// Evaluation never short-circuits: the trail always covers the whole set.
// A separate conclusion walk then picks the first record whose base
// evaluation failed, or failing that the first failed sub-rule under a
// passed record, and cites its sequence with the configured fail message.
// When nothing failed the report concludes by "RULE_SET" with success true.
//
// # Failure semantics
//
// A business failure (an operator evaluating false) is the designed
// outcome the report carries; it is never a Go error. An *EngineError
// means the rule definition itself is broken, an unregistered operator
// name or a structurally malformed depends list, and aborts the call with
// no report, because silently skipping a broken guardrail would let an
// unchecked application through.
//
// # Determinism
//
// For a fixed (rule set, datasets) pair Evaluate returns a structurally
// identical report every time, and mutates neither input. Depends values
// serialize keyed by path in input order, so even the JSON form is stable.
package engine
