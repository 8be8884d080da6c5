package main

import (
	"os"
	"path/filepath"
	"testing"

	"originware/guardrail/pkg/engine"
	"originware/guardrail/pkg/rule/parser"
)

func TestLoadTestCases(t *testing.T) {
	suite, err := loadTestCases("testdata/pack-tests.yaml")
	if err != nil {
		t.Fatalf("loadTestCases() returned error: %v", err)
	}
	if len(suite.Tests) != 4 {
		t.Fatalf("Expected 4 test cases, got %d", len(suite.Tests))
	}
	for i, tc := range suite.Tests {
		if tc.Name == "" {
			t.Errorf("Test case %d has no name", i)
		}
		if len(tc.Datasets) == 0 {
			t.Errorf("Test case %q has no datasets", tc.Name)
		}
	}
}

func TestLoadTestCasesErrors(t *testing.T) {
	if _, err := loadTestCases("testdata/nonexistent.yaml"); err == nil {
		t.Error("loadTestCases() with nonexistent file should return error")
	}

	malformed := filepath.Join(t.TempDir(), "cases.yaml")
	if err := os.WriteFile(malformed, []byte("tests: {not: [a, list"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadTestCases(malformed); err == nil {
		t.Error("loadTestCases() with malformed YAML should return error")
	}
}

func TestRunPackTests(t *testing.T) {
	// Set flags
	testFlags.packFile = "testdata/valid-pack.yaml"
	testFlags.casesFile = "testdata/pack-tests.yaml"

	// All bundled cases describe the engine's actual verdicts
	if err := runPackTests(nil, []string{}); err != nil {
		t.Errorf("runPackTests() with matching expectations returned error: %v", err)
	}
}

func TestRunPackTestsFailure(t *testing.T) {
	cases := filepath.Join(t.TempDir(), "cases.yaml")
	wrongExpectation := `tests:
  - name: jumbo amount expected to pass
    rule_type: STATUS
    area: DOC_PREP
    datasets:
      loan:
        amount: 912500
        purpose: PURCHASE
      applicant:
        creditScore: 712
    expect:
      success: true
`
	if err := os.WriteFile(cases, []byte(wrongExpectation), 0644); err != nil {
		t.Fatal(err)
	}

	// Set flags
	testFlags.packFile = "testdata/valid-pack.yaml"
	testFlags.casesFile = cases

	if err := runPackTests(nil, []string{}); err == nil {
		t.Error("runPackTests() with a wrong expectation should return error")
	}
}

func TestRunPackTestCase(t *testing.T) {
	pack, err := parser.New().Parse("testdata/valid-pack.yaml")
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	testCase := PackTestCase{
		Name:     "wire approved",
		RuleType: "ACTION",
		Area:     "FUNDING",
		Datasets: map[string]engine.Dataset{
			"wire": {"approved": true},
		},
		Expect: PackTestExpectation{Success: true},
	}

	result := runPackTestCase(eng, pack, testCase)
	if result.Error != "" {
		t.Fatalf("runPackTestCase() reported error: %s", result.Error)
	}
	if !result.Passed {
		t.Errorf("Expected case to pass, actual success=%v conclusion_by=%q",
			result.ActualSuccess, result.ActualConclusionBy)
	}
	if result.ActualConclusionBy != engine.ConcludedByRuleSet {
		t.Errorf("ActualConclusionBy = %q, want %q",
			result.ActualConclusionBy, engine.ConcludedByRuleSet)
	}
}

func TestRunPackTestCaseUnknownSet(t *testing.T) {
	pack, err := parser.New().Parse("testdata/valid-pack.yaml")
	if err != nil {
		t.Fatal(err)
	}
	eng, err := engine.New(nil)
	if err != nil {
		t.Fatal(err)
	}

	testCase := PackTestCase{
		Name:     "missing set",
		RuleType: "STATUS",
		Area:     "SERVICING",
		Datasets: map[string]engine.Dataset{"loan": {"amount": 1}},
	}

	result := runPackTestCase(eng, pack, testCase)
	if result.Error == "" {
		t.Error("Expected case against a missing rule set to report an error")
	}
	if result.Passed {
		t.Error("Case with an error must not count as passed")
	}
}
