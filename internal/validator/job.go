package validator

import "strings"

// defaultErrorPatterns is the case-insensitive substring list checked by
// the error_pattern check (spec §4.F).
var defaultErrorPatterns = []string{
	"error", "404", "not found", "access denied", "forbidden", "rate limit",
	"too many requests", "temporarily unavailable", "service unavailable",
	"internal server error", "bad gateway",
}

// JobInput is the per-job validation request (spec §4.F).
type JobInput struct {
	JobID         string
	SurfaceID     string
	Success       bool
	ResponseText  string
	IsActualContent bool
	HasEvidence   bool
	EvidenceSHA256 string
	EvidenceTimestampToken string
	EvidenceScreenshot []byte
	MinResponseLength int
	RequireActualContent bool
	RequiredKeywords  []string
	ForbiddenKeywords []string
	StrictMode        bool
	EvidenceLevel     string // "full", "metadata", "none"
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// CheckJob runs every applicable check against in and returns both the
// check list and the finalized Status (spec §4.F).
func CheckJob(in JobInput) ([]Check, Status) {
	checks := make([]Check, 0, 12)

	resultPresent := in.Success || in.ResponseText != ""
	checks = append(checks, Check{
		Name:     "result_present",
		Passed:   resultPresent,
		Severity: SeverityError,
		Message:  msgIf(!resultPresent, "no result produced"),
	})

	checks = append(checks, Check{
		Name:     "job_success",
		Passed:   in.Success,
		Severity: SeverityError,
		Message:  msgIf(!in.Success, "job did not succeed"),
	})

	contentPresent := strings.TrimSpace(in.ResponseText) != ""
	checks = append(checks, Check{
		Name:     "content_present",
		Passed:   contentPresent,
		Severity: SeverityError,
		Message:  msgIf(!contentPresent, "response text is empty"),
	})

	if in.MinResponseLength > 0 {
		minLenOK := len(in.ResponseText) >= in.MinResponseLength
		checks = append(checks, Check{
			Name:     "min_length",
			Passed:   minLenOK,
			Severity: SeverityWarning,
			Message:  msgIf(!minLenOK, "response shorter than minimum length"),
			Details:  map[string]any{"length": len(in.ResponseText), "minimum": in.MinResponseLength},
		})
	}

	matchedPattern := ""
	for _, p := range defaultErrorPatterns {
		if containsFold(in.ResponseText, p) {
			matchedPattern = p
			break
		}
	}
	checks = append(checks, Check{
		Name:     "error_pattern",
		Passed:   matchedPattern == "",
		Severity: SeverityWarning,
		Message:  msgIf(matchedPattern != "", "response matched error pattern: "+matchedPattern),
	})

	if len(in.RequiredKeywords) > 0 {
		missing := []string{}
		for _, kw := range in.RequiredKeywords {
			if !containsFold(in.ResponseText, kw) {
				missing = append(missing, kw)
			}
		}
		checks = append(checks, Check{
			Name:     "required_keywords",
			Passed:   len(missing) == 0,
			Severity: SeverityWarning,
			Message:  msgIf(len(missing) > 0, "missing required keywords"),
			Details:  detailsIf(len(missing) > 0, "missing", missing),
		})
	}

	if len(in.ForbiddenKeywords) > 0 {
		present := []string{}
		for _, kw := range in.ForbiddenKeywords {
			if containsFold(in.ResponseText, kw) {
				present = append(present, kw)
			}
		}
		checks = append(checks, Check{
			Name:     "forbidden_keywords",
			Passed:   len(present) == 0,
			Severity: SeverityError,
			Message:  msgIf(len(present) > 0, "contains forbidden keywords"),
			Details:  detailsIf(len(present) > 0, "present", present),
		})
	}

	if in.RequireActualContent {
		checks = append(checks, Check{
			Name:     "actual_content",
			Passed:   in.IsActualContent,
			Severity: SeverityWarning,
			Message:  msgIf(!in.IsActualContent, "response did not classify as actual content"),
		})
	}

	if in.EvidenceLevel == "full" {
		checks = append(checks, Check{
			Name:     "evidence_present",
			Passed:   in.HasEvidence,
			Severity: SeverityError,
			Message:  msgIf(!in.HasEvidence, "no evidence attached"),
		})
		checks = append(checks, Check{
			Name:     "evidence_hash",
			Passed:   in.EvidenceSHA256 != "",
			Severity: SeverityError,
			Message:  msgIf(in.EvidenceSHA256 == "", "missing evidence sha256"),
		})
		checks = append(checks, Check{
			Name:     "evidence_timestamp",
			Passed:   in.EvidenceTimestampToken != "",
			Severity: SeverityError,
			Message:  msgIf(in.EvidenceTimestampToken == "", "missing evidence timestamp token"),
		})
		checks = append(checks, Check{
			Name:     "evidence_screenshot",
			Passed:   len(in.EvidenceScreenshot) > 0,
			Severity: SeverityError,
			Message:  msgIf(len(in.EvidenceScreenshot) == 0, "missing evidence screenshot"),
		})
	}

	return checks, Finalize(checks, in.StrictMode)
}

func msgIf(cond bool, msg string) string {
	if cond {
		return msg
	}
	return ""
}

func detailsIf(cond bool, key string, value any) map[string]any {
	if !cond {
		return nil
	}
	return map[string]any{key: value}
}
