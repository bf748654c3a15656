// Package scoring maps answer latency to points. Pure functions only — both
// the realtime and the asynchronous answer paths go through here so the two
// modes can never drift apart.
package scoring

// Submission acceptance is wider than the scoring window on purpose: a
// timeout submission may arrive a few seconds late because of network and
// client processing delay, and is still a valid (zero-point) answer.
const (
	MaxValidElapsedMs = 15000
	MaxScoredMs       = 10000
)

// Points returns the point value for a correct answer with the given
// latency, measured from question reveal. Strictly non-increasing in
// elapsed time; zero at or beyond the 10 s scoring window.
func Points(elapsedMs int64) int {
	switch {
	case elapsedMs < 1000:
		return 20
	case elapsedMs < 2000:
		return 18
	case elapsedMs < 3000:
		return 16
	case elapsedMs < 4000:
		return 14
	case elapsedMs < 5000:
		return 12
	case elapsedMs < MaxScoredMs:
		return 10
	default:
		return 0
	}
}

// PointsFor folds correctness in: wrong answers score zero regardless of
// latency.
func PointsFor(correct bool, elapsedMs int64) int {
	if !correct {
		return 0
	}
	return Points(elapsedMs)
}

// ValidElapsed reports whether an elapsed time is acceptable for submission
// at all. Out-of-range values are a client error, not something to clamp.
func ValidElapsed(elapsedMs int64) bool {
	return elapsedMs >= 0 && elapsedMs <= MaxValidElapsedMs
}
