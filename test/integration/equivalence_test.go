package integration

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"equivcheck/pkg/equivalence"
	"equivcheck/pkg/summary"
	"equivcheck/pkg/symbolic"
)

func runCheck(t *testing.T, file, bounds string, workers int) (*equivalence.EquivalenceResult, error) {
	t.Helper()

	store, err := summary.Load(filepath.Join("testdata", file))
	if err != nil {
		t.Fatalf("load summaries: %v", err)
	}
	domain, err := symbolic.ParseBounds(bounds)
	if err != nil {
		t.Fatalf("parse bounds: %v", err)
	}

	cfg := equivalence.DefaultConfig()
	cfg.Timeout = "30s"
	cfg.Workers = workers

	checker, err := equivalence.NewChecker(cfg)
	if err != nil {
		t.Fatalf("create checker: %v", err)
	}
	defer checker.Close()

	return checker.Check(context.Background(), store, domain)
}

func TestNotEquivalentSummaries(t *testing.T) {
	t.Parallel()

	result, err := runCheck(t, "not_equivalent.json", "x:0:100", 4)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != equivalence.NotEquivalent {
		t.Fatalf("verdict = %s, want NotEquivalent", result.Verdict)
	}
	if result.PathsCompared != 2 {
		t.Errorf("paths_compared = %d, want 2", result.PathsCompared)
	}

	cex := result.Counterexample
	if cex == nil {
		t.Fatal("expected a counterexample")
	}
	if cex.FirstPath != "c-1" || cex.SecondPath != "r-1" {
		t.Errorf("counterexample paths = %s, %s", cex.FirstPath, cex.SecondPath)
	}
	if cex.Inputs["x"] != 6 {
		t.Errorf("counterexample x = %d, want 6", cex.Inputs["x"])
	}
	want := []equivalence.Difference{{Kind: equivalence.DiffReturnValue, FirstValue: "7", SecondValue: "6"}}
	if !reflect.DeepEqual(cex.Differences, want) {
		t.Errorf("differences = %v, want %v", cex.Differences, want)
	}
}

func TestNotEquivalentIsIndependentOfWorkers(t *testing.T) {
	t.Parallel()

	var baseline *equivalence.Counterexample
	for _, workers := range []int{1, 2, 8} {
		result, err := runCheck(t, "not_equivalent.json", "x:0:100", workers)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if baseline == nil {
			baseline = result.Counterexample
			continue
		}
		if !reflect.DeepEqual(baseline, result.Counterexample) {
			t.Errorf("workers=%d: counterexample differs from workers=1", workers)
		}
	}
}

func TestEquivalentSummaries(t *testing.T) {
	t.Parallel()

	result, err := runCheck(t, "equivalent.json", "x:-20:20,y:-20:20", 4)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != equivalence.Equivalent {
		t.Fatalf("verdict = %s (%s), want Equivalent", result.Verdict, result.Reason)
	}
	if result.Counterexample != nil {
		t.Error("equivalent result must not carry a counterexample")
	}
	if result.PathsCompared != 2 {
		t.Errorf("paths_compared = %d, want 2", result.PathsCompared)
	}
}

func TestIncompleteCoverage(t *testing.T) {
	t.Parallel()

	result, err := runCheck(t, "incomplete_coverage.json", "x:-10:10", 4)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != equivalence.Unknown || result.Reason != equivalence.ReasonIncompleteCoverage {
		t.Fatalf("got %s (%s), want Unknown (incomplete_coverage)", result.Verdict, result.Reason)
	}
}

func TestOverlappingPathsRejected(t *testing.T) {
	t.Parallel()

	_, err := runCheck(t, "overlap.json", "x:0:100", 4)
	var overlap *equivalence.PathOverlapError
	if !errors.As(err, &overlap) {
		t.Fatalf("expected PathOverlapError, got %v", err)
	}
	if overlap.Origin != summary.FirstProgram || overlap.FirstID != "c-0" || overlap.SecondID != "c-1" {
		t.Errorf("unexpected overlap: %v", overlap)
	}
	if x := overlap.Witness["x"]; x <= 5 || x >= 10 {
		t.Errorf("witness x = %d is not in the overlap", x)
	}
}

func TestDivisionByZeroDivergence(t *testing.T) {
	t.Parallel()

	result, err := runCheck(t, "division.json", "x:0:10", 4)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Verdict != equivalence.NotEquivalent {
		t.Fatalf("verdict = %s, want NotEquivalent", result.Verdict)
	}
	cex := result.Counterexample
	if cex.Inputs["x"] != 0 || cex.SecondPath != "r-1" {
		t.Errorf("unexpected counterexample %+v", cex)
	}
	if got := cex.FirstBehavior.ReturnValue; got != "<division by zero>" {
		t.Errorf("first return = %q", got)
	}
}

func TestResultReportJSON(t *testing.T) {
	t.Parallel()

	result, err := runCheck(t, "not_equivalent.json", "x:0:100", 2)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var report map[string]any
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if report["verdict"] != "NotEquivalent" {
		t.Errorf("verdict = %v", report["verdict"])
	}
	if _, ok := report["reason"]; ok {
		t.Error("reason must be omitted for a definite verdict")
	}
	cex, ok := report["counterexample"].(map[string]any)
	if !ok {
		t.Fatalf("counterexample = %v", report["counterexample"])
	}
	if inputs := cex["inputs"].(map[string]any); inputs["x"] != float64(6) {
		t.Errorf("inputs = %v", inputs)
	}
}
