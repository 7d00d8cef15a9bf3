package orchestrator

import "time"

// RateWindow tracks completed-cell timestamps over a trailing window to
// derive ratePerHour (spec §4.G.4).
type RateWindow struct {
	window      time.Duration
	completions []time.Time
}

// NewRateWindow returns a RateWindow with the given trailing window size.
func NewRateWindow(window time.Duration) *RateWindow {
	return &RateWindow{window: window}
}

// RecordCompletion appends a completion timestamp and prunes entries
// outside the trailing window.
func (r *RateWindow) RecordCompletion(now time.Time) {
	r.completions = append(r.completions, now)
	r.prune(now)
}

func (r *RateWindow) prune(now time.Time) {
	cutoff := now.Add(-r.window)
	i := 0
	for i < len(r.completions) && r.completions[i].Before(cutoff) {
		i++
	}
	r.completions = r.completions[i:]
}

// RatePerHour returns the completion rate observed within the trailing
// window, extrapolated to a per-hour figure.
func (r *RateWindow) RatePerHour(now time.Time) float64 {
	r.prune(now)
	if len(r.completions) == 0 || r.window <= 0 {
		return 0
	}
	return float64(len(r.completions)) / r.window.Hours()
}

// ProjectedCompletion estimates when remaining cells will finish at the
// current rate. Returns the zero time if the rate is zero (no projection
// possible).
func ProjectedCompletion(now time.Time, remaining int, ratePerHour float64) time.Time {
	if ratePerHour <= 0 || remaining <= 0 {
		return time.Time{}
	}
	hoursNeeded := float64(remaining) / ratePerHour
	return now.Add(time.Duration(hoursNeeded * float64(time.Hour)))
}

// EvaluateDeadline computes deadlineStatus and fires onDeadlineAtRisk
// exactly once per false->true transition (spec §4.G.4). safetyMargin
// resolves Open Question 1: a study is at risk when, at the current rate,
// projected completion exceeds deadline-safetyMargin.
func EvaluateDeadline(now time.Time, deadline time.Time, remaining int, ratePerHour float64, safetyMargin time.Duration, wasAtRisk bool, onRisk func()) (atRisk bool, projected time.Time) {
	projected = ProjectedCompletion(now, remaining, ratePerHour)
	if projected.IsZero() {
		atRisk = remaining > 0 && now.After(deadline.Add(-safetyMargin))
	} else {
		atRisk = projected.After(deadline.Add(-safetyMargin))
	}
	if atRisk && !wasAtRisk && onRisk != nil {
		onRisk()
	}
	return atRisk, projected
}
