package validator

import "testing"

func TestCheckJob_AllPassWhenCleanResult(t *testing.T) {
	in := JobInput{
		JobID:        "j1",
		Success:      true,
		ResponseText: "here is a detailed and useful answer about the topic",
		EvidenceLevel: "metadata",
	}
	checks, status := CheckJob(in)
	if status != StatusPassed {
		t.Fatalf("expected passed, got %s (checks=%+v)", status, checks)
	}
}

func TestCheckJob_ErrorPatternIsWarningNotFailure(t *testing.T) {
	in := JobInput{
		Success:      true,
		ResponseText: "Sorry, rate limit exceeded, please try again",
	}
	checks, status := CheckJob(in)
	if status != StatusWarning {
		t.Fatalf("expected warning, got %s", status)
	}
	found := false
	for _, c := range checks {
		if c.Name == "error_pattern" && !c.Passed {
			found = true
		}
	}
	if !found {
		t.Fatal("expected error_pattern check to be present and failed")
	}
}

func TestCheckJob_StrictModeElevatesWarningToFailed(t *testing.T) {
	in := JobInput{
		Success:      true,
		ResponseText: "Sorry, rate limit exceeded",
		StrictMode:   true,
	}
	_, status := CheckJob(in)
	if status != StatusFailed {
		t.Fatalf("expected strictMode to elevate warning to failed, got %s", status)
	}
}

func TestCheckJob_FailedJobIsErrorSeverity(t *testing.T) {
	in := JobInput{Success: false, ResponseText: ""}
	checks, status := CheckJob(in)
	if status != StatusFailed {
		t.Fatalf("expected failed, got %s", status)
	}
	names := map[string]bool{}
	for _, c := range checks {
		if !c.Passed {
			names[c.Name] = true
		}
	}
	if !names["job_success"] || !names["result_present"] || !names["content_present"] {
		t.Fatalf("expected job_success/result_present/content_present to fail, got %+v", names)
	}
}

func TestCheckJob_EvidenceChecksOnlyAppliedAtFullLevel(t *testing.T) {
	in := JobInput{Success: true, ResponseText: "ok content here", EvidenceLevel: "metadata"}
	checks, _ := CheckJob(in)
	for _, c := range checks {
		if c.Name == "evidence_present" || c.Name == "evidence_hash" {
			t.Fatalf("evidence checks should not apply at metadata level, got %s", c.Name)
		}
	}

	in.EvidenceLevel = "full"
	checks, status := CheckJob(in)
	if status != StatusFailed {
		t.Fatalf("expected failed due to missing evidence at full level, got %s", status)
	}
	foundEvidence := false
	for _, c := range checks {
		if c.Name == "evidence_present" && !c.Passed {
			foundEvidence = true
		}
	}
	if !foundEvidence {
		t.Fatal("expected evidence_present check to fail at full evidence level without evidence")
	}
}

func TestCheckJob_RequiredAndForbiddenKeywords(t *testing.T) {
	in := JobInput{
		Success:           true,
		ResponseText:       "The weather today is sunny and warm",
		RequiredKeywords:   []string{"weather", "sunny"},
		ForbiddenKeywords:  []string{"storm"},
	}
	_, status := CheckJob(in)
	if status != StatusPassed {
		t.Fatalf("expected passed, got %s", status)
	}

	in.ForbiddenKeywords = []string{"sunny"}
	checks, status := CheckJob(in)
	if status != StatusFailed {
		t.Fatalf("expected failed on forbidden keyword match, got %s", status)
	}
	found := false
	for _, c := range checks {
		if c.Name == "forbidden_keywords" && !c.Passed {
			found = true
		}
	}
	if !found {
		t.Fatal("expected forbidden_keywords check to fail")
	}
}

// TestValidatorMonotonicity_Property13: adding info-severity checks never
// changes final status; adding any error-severity failed check sets status
// to failed (spec §8 property 13).
func TestValidatorMonotonicity_Property13(t *testing.T) {
	base := []Check{
		{Name: "a", Passed: true, Severity: SeverityWarning},
	}
	before := Finalize(base, false)

	withInfo := append(append([]Check{}, base...), Check{Name: "info-check", Passed: false, Severity: SeverityInfo})
	after := Finalize(withInfo, false)
	if before != after {
		t.Fatalf("info-severity failure should not change status: before=%s after=%s", before, after)
	}

	withError := append(append([]Check{}, base...), Check{Name: "error-check", Passed: false, Severity: SeverityError})
	afterError := Finalize(withError, false)
	if afterError != StatusFailed {
		t.Fatalf("any failed error-severity check must set status to failed, got %s", afterError)
	}
}
