// Guardrail is a rule evaluation service for loan-origination
// workflows.
//
// It evaluates ordered rule sets against request datasets, producing a
// restrict/continue verdict with a per-rule evaluation trail:
//   - Rule sets keyed by type (ACTION, ASSIGNMENT, STATUS, TEST) and
//     business area, loaded from memory, a database, pack files, or git
//   - Sixteen comparison operators over dotted dataset paths
//   - Conditional sub-rule chains with independent fail actions
//   - Audit records for every evaluation, queryable and exportable
//
// Usage:
//
//	# Start the HTTP service with default configuration
//	guardrail serve
//
//	# Start with a custom configuration file
//	guardrail serve --config /etc/guardrail/config.yaml
//
//	# Evaluate datasets against a rule pack from the command line
//	guardrail evaluate --pack rules.yaml --datasets loan.json
//
//	# Validate rule pack files
//	guardrail lint --file rules.yaml
//
//	# Run rule pack test cases
//	guardrail test --pack rules.yaml --cases rule_tests.yaml
//
//	# Query the audit trail
//	guardrail audit query --time-range "2026-08-01T00:00:00Z/2026-08-02T00:00:00Z"
//
//	# Show version information
//	guardrail version
package main

func main() {
	Execute()
}
