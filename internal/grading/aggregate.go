package grading

import (
	"school_quiz_backend/internal/model"
)

// Totals is the attempt-level rollup of per-answer results.
type Totals struct {
	TotalScore float64
	MaxScore   float64
	Percentage float64
	Status     model.AttemptStatus
}

// Aggregate sums per-question results into attempt totals. An attempt holding
// any answer that needs instructor review finalizes to pending_review rather
// than graded, so a provisional zero is never reported as a final score.
func Aggregate(results []Result) Totals {
	t := Totals{Status: model.AttemptGraded}
	for _, r := range results {
		t.TotalScore += r.PointsAwarded
		t.MaxScore += r.MaxPoints
		if r.NeedsReview {
			t.Status = model.AttemptPendingReview
		}
	}
	if t.MaxScore > 0 {
		t.Percentage = t.TotalScore / t.MaxScore * 100
	}
	return t
}
