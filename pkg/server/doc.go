/*
Package server exposes rule evaluation over HTTP.

Endpoints:

	POST /v1/evaluations  evaluate a stored or ad-hoc rule set against datasets
	GET  /v1/rules        read the rules of one (type, area) set
	POST /v1/rules        validate and persist one rule
	GET  /v1/areas        list areas holding rules of a type
	GET  /healthz         liveness
	GET  /readyz          readiness (probes the rule repository)
	GET  /metrics         Prometheus scrape endpoint, when a registry is wired

An evaluation request selects its rule set either by (rule_type, area),
loaded from the repository, or by an inline rules list evaluated ad hoc:

	{
	  "rule_type": "STATUS",
	  "area": "DOC_PREP",
	  "datasets": {
	    "loan": {"amount": 245000},
	    "applicant": {"creditScore": 712}
	  }
	}

A concluded evaluation returns 200 with the full report whether the rules
passed or not; 422 is reserved for evaluations aborted by a rule
configuration defect (unknown operator, malformed depends). Validation
problems with the request itself return 400, an unknown (type, area) pair
returns 404.

The server records one audit record per evaluation when a recorder is
wired, logs one structured line per request, and shuts down gracefully
within the configured timeout.
*/
package server
