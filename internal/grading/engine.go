package grading

import (
	"school_quiz_backend/internal/model"
)

// Response is the decoded student answer for one question. The same shape is
// bound from autosave requests and stored as JSON on the answer row; which
// fields are meaningful depends on the question type.
type Response struct {
	SelectedOptionIDs []uint      `json:"selectedOptionIds,omitempty"`
	Text              string      `json:"text,omitempty"`
	Blanks            []string    `json:"blanks,omitempty"`
	Ordering          []uint      `json:"ordering,omitempty"`
	Matches           []MatchPair `json:"matches,omitempty"`
	FileRef           string      `json:"fileRef,omitempty"`
}

// MatchPair is one submitted (item -> match) pairing for matching questions.
type MatchPair struct {
	OptionID  uint   `json:"optionId"`
	MatchText string `json:"matchText"`
}

// Result is the outcome of grading a single answer.
type Result struct {
	PointsAwarded float64
	MaxPoints     float64
	IsCorrect     bool
	// NeedsReview marks answer types that cannot be auto-graded; the awarded
	// points stay 0 until an instructor reviews them.
	NeedsReview bool
}

// Strategy grades one answer type.
type Strategy interface {
	Grade(q model.Question, resp Response) Result
}

// Engine routes a question to the strategy for its type. Grading is pure and
// deterministic given its inputs.
type Engine struct {
	strategies map[model.QuestionType]Strategy
}

func NewEngine() *Engine {
	single := singleChoiceStrategy{}
	manual := manualStrategy{}
	return &Engine{
		strategies: map[model.QuestionType]Strategy{
			model.QuestionMultipleChoice: single,
			model.QuestionDropdown:       single,
			model.QuestionTrueFalse:      trueFalseStrategy{},
			model.QuestionMultipleSelect: multipleSelectStrategy{},
			model.QuestionFillBlanks:     fillBlanksStrategy{},
			model.QuestionOrdering:       orderingStrategy{},
			model.QuestionMatching:       matchingStrategy{},
			model.QuestionShortAnswer:    manual,
			model.QuestionEssay:          manual,
			model.QuestionFileUpload:     manual,
		},
	}
}

func (e *Engine) Grade(q model.Question, resp Response) Result {
	s, ok := e.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsReview: true}
	}
	return s.Grade(q, resp)
}
