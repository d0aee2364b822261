package model

// swagger:model Answer
type Answer struct {
	BaseModel

	AttemptID  uint `gorm:"uniqueIndex:idx_attempt_question;type:bigint unsigned" json:"attemptId"`
	QuestionID uint `gorm:"uniqueIndex:idx_attempt_question;type:bigint unsigned" json:"questionId"`

	// AnswerText holds the type-dependent JSON encoding of the response.
	AnswerText string `gorm:"type:json" json:"answerText"`
	// AnswerFile is the stored object reference for file_upload answers.
	AnswerFile string `gorm:"size:512" json:"answerFile,omitempty"`

	PointsAwarded float64 `gorm:"default:0" json:"pointsAwarded"`
	MaxPoints     float64 `gorm:"default:0" json:"maxPoints"`
	IsCorrect     bool    `gorm:"default:false" json:"isCorrect"`
	NeedsReview   bool    `gorm:"default:false" json:"needsReview"`
}

func (Answer) TableName() string {
	return "quiz_answers"
}

// AnswerOptionSelection links an answer to the option(s) the student picked.
type AnswerOptionSelection struct {
	BaseModel

	AnswerID uint `gorm:"index;type:bigint unsigned" json:"answerId"`
	OptionID uint `gorm:"index;type:bigint unsigned" json:"optionId"`
}

func (AnswerOptionSelection) TableName() string {
	return "quiz_answer_option_selections"
}

// FlaggedQuestion marks a question the student wants to revisit. Advisory
// only, never read by grading.
type FlaggedQuestion struct {
	BaseModel

	AttemptID  uint `gorm:"uniqueIndex:idx_flag_attempt_question;type:bigint unsigned" json:"attemptId"`
	QuestionID uint `gorm:"uniqueIndex:idx_flag_attempt_question;type:bigint unsigned" json:"questionId"`
}

func (FlaggedQuestion) TableName() string {
	return "quiz_flagged_questions"
}
