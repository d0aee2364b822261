package model

type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionMultipleSelect QuestionType = "multiple_select"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionEssay          QuestionType = "essay"
	QuestionFileUpload     QuestionType = "file_upload"
	QuestionDropdown       QuestionType = "dropdown"
	QuestionFillBlanks     QuestionType = "fill_blanks"
	QuestionOrdering       QuestionType = "ordering"
	QuestionMatching       QuestionType = "matching"
)

// ManualGrading reports whether the type cannot be auto-graded and is left
// for instructor review.
func (t QuestionType) ManualGrading() bool {
	switch t {
	case QuestionShortAnswer, QuestionEssay, QuestionFileUpload:
		return true
	}
	return false
}

// swagger:model Question
type Question struct {
	BaseModel

	QuizID      uint         `gorm:"index;type:bigint unsigned" json:"quizId"`
	Type        QuestionType `gorm:"size:50;not null" json:"type"`
	Text        string       `gorm:"type:text" json:"text"`
	Points      float64      `gorm:"default:0" json:"points"`
	OrderNumber int          `gorm:"default:0" json:"orderNumber"`

	Options []Option `gorm:"foreignKey:QuestionID" json:"options,omitempty"`
}

func (Question) TableName() string {
	return "quiz_questions"
}

// swagger:model Option
type Option struct {
	BaseModel

	QuestionID  uint   `gorm:"index;type:bigint unsigned" json:"questionId"`
	Text        string `gorm:"type:text" json:"text"`
	IsCorrect   bool   `gorm:"default:false" json:"-"`
	OrderNumber int    `gorm:"default:0" json:"orderNumber"`
	MatchText   string `gorm:"size:255" json:"-"` // matching-type answer key
}

func (Option) TableName() string {
	return "quiz_options"
}
