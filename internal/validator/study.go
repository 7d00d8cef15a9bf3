package validator

// SurfaceCoverage is the completion accounting for one surface within a
// study (spec §4.F).
type SurfaceCoverage struct {
	SurfaceID      string
	Total          int
	Completed      int
	CompletionRate float64
	ThresholdMet   bool
	Required       bool
}

// StudyInput is the per-study completion request (spec §4.F).
type StudyInput struct {
	RequiredSurfaceIDs []string
	OptionalSurfaceIDs []string
	CoverageThreshold  float64
	// TotalBySurface/CompletedBySurface are keyed by surfaceId.
	TotalBySurface     map[string]int
	CompletedBySurface map[string]int
}

// StudyCompletion is the Validator's per-study verdict.
type StudyCompletion struct {
	Surfaces    []SurfaceCoverage
	CanComplete bool
	Warnings    []string
}

// CheckStudy evaluates study-completion per spec §4.F: for each required
// surface, completionRate = completed/total; thresholdMet iff
// completionRate >= coverageThreshold. canComplete iff every required
// surface met its threshold. Optional surfaces only ever contribute
// warnings.
func CheckStudy(in StudyInput) StudyCompletion {
	out := StudyCompletion{CanComplete: true}

	evalSurface := func(id string, required bool) SurfaceCoverage {
		total := in.TotalBySurface[id]
		completed := in.CompletedBySurface[id]
		rate := 0.0
		if total > 0 {
			rate = float64(completed) / float64(total)
		}
		return SurfaceCoverage{
			SurfaceID:      id,
			Total:          total,
			Completed:      completed,
			CompletionRate: rate,
			ThresholdMet:   rate >= in.CoverageThreshold,
			Required:       required,
		}
	}

	for _, id := range in.RequiredSurfaceIDs {
		sc := evalSurface(id, true)
		out.Surfaces = append(out.Surfaces, sc)
		if !sc.ThresholdMet {
			out.CanComplete = false
		}
	}
	for _, id := range in.OptionalSurfaceIDs {
		sc := evalSurface(id, false)
		out.Surfaces = append(out.Surfaces, sc)
		if !sc.ThresholdMet {
			out.Warnings = append(out.Warnings, "optional surface below coverage threshold: "+id)
		}
	}

	return out
}
