package grading

import (
	"strings"

	"school_quiz_backend/internal/model"
)

// singleChoiceStrategy covers multiple_choice and dropdown: full points iff
// the single selected option is the correct one.
type singleChoiceStrategy struct{}

func (singleChoiceStrategy) Grade(q model.Question, resp Response) Result {
	res := Result{MaxPoints: q.Points}
	if len(resp.SelectedOptionIDs) != 1 {
		return res
	}
	for _, opt := range q.Options {
		if opt.ID == resp.SelectedOptionIDs[0] && opt.IsCorrect {
			res.PointsAwarded = q.Points
			res.IsCorrect = true
			return res
		}
	}
	return res
}

// trueFalseStrategy compares the submitted text against the text of the
// option flagged correct.
type trueFalseStrategy struct{}

func (trueFalseStrategy) Grade(q model.Question, resp Response) Result {
	res := Result{MaxPoints: q.Points}
	if resp.Text == "" {
		return res
	}
	for _, opt := range q.Options {
		if opt.IsCorrect && resp.Text == opt.Text {
			res.PointsAwarded = q.Points
			res.IsCorrect = true
			return res
		}
	}
	return res
}

// multipleSelectStrategy awards max(0, (C-W)/T) of the points, where C and W
// count correct and incorrect selections and T the correct options.
type multipleSelectStrategy struct{}

func (multipleSelectStrategy) Grade(q model.Question, resp Response) Result {
	res := Result{MaxPoints: q.Points}

	correct := make(map[uint]bool, len(q.Options))
	known := make(map[uint]bool, len(q.Options))
	total := 0
	for _, opt := range q.Options {
		known[opt.ID] = true
		if opt.IsCorrect {
			correct[opt.ID] = true
			total++
		}
	}
	if total == 0 {
		return res
	}

	c, w := 0, 0
	for _, id := range resp.SelectedOptionIDs {
		if correct[id] {
			c++
		} else if known[id] {
			w++
		} else {
			// selections outside the question count against the student
			w++
		}
	}

	frac := float64(c-w) / float64(total)
	if frac < 0 {
		frac = 0
	}
	res.PointsAwarded = frac * q.Points
	res.IsCorrect = c == total && w == 0
	return res
}

// fillBlanksStrategy compares each submitted blank, trimmed and
// case-insensitive, against the option texts in order_number order.
type fillBlanksStrategy struct{}

func (fillBlanksStrategy) Grade(q model.Question, resp Response) Result {
	res := Result{MaxPoints: q.Points}
	totalBlanks := len(q.Options)
	if totalBlanks == 0 {
		return res
	}

	matches := 0
	for i, opt := range q.Options {
		if i >= len(resp.Blanks) {
			break
		}
		if normalizeBlank(resp.Blanks[i]) == normalizeBlank(opt.Text) {
			matches++
		}
	}

	res.PointsAwarded = float64(matches) / float64(totalBlanks) * q.Points
	res.IsCorrect = matches == totalBlanks
	return res
}

func normalizeBlank(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// orderingStrategy is all-or-nothing: the submitted option id sequence must
// equal the order_number ordering element-wise.
type orderingStrategy struct{}

func (orderingStrategy) Grade(q model.Question, resp Response) Result {
	res := Result{MaxPoints: q.Points}
	if len(q.Options) == 0 || len(resp.Ordering) != len(q.Options) {
		return res
	}
	for i, opt := range q.Options {
		if resp.Ordering[i] != opt.ID {
			return res
		}
	}
	res.PointsAwarded = q.Points
	res.IsCorrect = true
	return res
}

// matchingStrategy grades each submitted pair against the item's match_text;
// partial credit per correct pair.
type matchingStrategy struct{}

func (matchingStrategy) Grade(q model.Question, resp Response) Result {
	res := Result{MaxPoints: q.Points}
	totalPairs := len(q.Options)
	if totalPairs == 0 {
		return res
	}

	keys := make(map[uint]string, totalPairs)
	for _, opt := range q.Options {
		keys[opt.ID] = opt.MatchText
	}

	correctPairs := 0
	seen := make(map[uint]bool, len(resp.Matches))
	for _, pair := range resp.Matches {
		if seen[pair.OptionID] {
			continue
		}
		seen[pair.OptionID] = true
		if key, ok := keys[pair.OptionID]; ok && key == pair.MatchText {
			correctPairs++
		}
	}

	res.PointsAwarded = float64(correctPairs) / float64(totalPairs) * q.Points
	res.IsCorrect = correctPairs == totalPairs
	return res
}

// manualStrategy covers short_answer, essay and file_upload: zero points,
// held for instructor review.
type manualStrategy struct{}

func (manualStrategy) Grade(q model.Question, _ Response) Result {
	return Result{MaxPoints: q.Points, NeedsReview: true}
}
