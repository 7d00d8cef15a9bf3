package validator

import "testing"

// TestCheckStudy_S8_CoverageThresholdMet replicates spec scenario S8:
// 1 required surface, coverageThreshold=0.5, 4 cells total, 2 complete and
// 2 failed (retries exhausted). canComplete must be true.
func TestCheckStudy_S8_CoverageThresholdMet(t *testing.T) {
	in := StudyInput{
		RequiredSurfaceIDs: []string{"surface-a"},
		CoverageThreshold:  0.5,
		TotalBySurface:     map[string]int{"surface-a": 4},
		CompletedBySurface: map[string]int{"surface-a": 2},
	}
	result := CheckStudy(in)
	if !result.CanComplete {
		t.Fatalf("expected canComplete=true, got surfaces=%+v", result.Surfaces)
	}
	if len(result.Surfaces) != 1 || !result.Surfaces[0].ThresholdMet {
		t.Fatalf("expected surface-a to meet threshold, got %+v", result.Surfaces)
	}
}

func TestCheckStudy_RequiredSurfaceBelowThresholdBlocks(t *testing.T) {
	in := StudyInput{
		RequiredSurfaceIDs: []string{"surface-a"},
		CoverageThreshold:  0.9,
		TotalBySurface:     map[string]int{"surface-a": 4},
		CompletedBySurface: map[string]int{"surface-a": 2},
	}
	result := CheckStudy(in)
	if result.CanComplete {
		t.Fatal("expected canComplete=false when required surface is below threshold")
	}
}

func TestCheckStudy_OptionalSurfaceBelowThresholdOnlyWarns(t *testing.T) {
	in := StudyInput{
		RequiredSurfaceIDs: []string{"surface-a"},
		OptionalSurfaceIDs: []string{"surface-b"},
		CoverageThreshold:  0.5,
		TotalBySurface:     map[string]int{"surface-a": 4, "surface-b": 4},
		CompletedBySurface: map[string]int{"surface-a": 2, "surface-b": 0},
	}
	result := CheckStudy(in)
	if !result.CanComplete {
		t.Fatal("optional surface should never block canComplete")
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected one warning for optional surface, got %+v", result.Warnings)
	}
}

func TestStats_AccumulateTracksFailureReasons(t *testing.T) {
	stats := NewStats()
	checks, status := CheckJob(JobInput{Success: false})
	stats.Accumulate(status, checks)
	stats.Accumulate(StatusPassed, nil)

	if stats.Total != 2 || stats.Passed != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.PassRate != 0.5 {
		t.Fatalf("expected pass rate 0.5, got %f", stats.PassRate)
	}
	if stats.FailureReasons["job_success"] == 0 {
		t.Fatalf("expected job_success recorded as a failure reason, got %+v", stats.FailureReasons)
	}
}

func TestCompletionCache_SetGetInvalidate(t *testing.T) {
	cache := NewCompletionCache(8)
	defer cache.Close()

	if _, ok := cache.Get("study-1"); ok {
		t.Fatal("expected cache miss before Set")
	}
	cache.Set("study-1", StudyCompletion{CanComplete: true})
	got, ok := cache.Get("study-1")
	if !ok || !got.CanComplete {
		t.Fatalf("expected cached hit with CanComplete=true, got %+v ok=%v", got, ok)
	}
	cache.Invalidate("study-1")
	if _, ok := cache.Get("study-1"); ok {
		t.Fatal("expected cache miss after Invalidate")
	}
}
