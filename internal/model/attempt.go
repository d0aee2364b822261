package model

import "time"

type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptGraded        AttemptStatus = "graded"
	AttemptPendingReview AttemptStatus = "pending_review"
)

// swagger:model Attempt
type Attempt struct {
	BaseModel

	QuizID        uint `gorm:"uniqueIndex:idx_quiz_student_number;type:bigint unsigned" json:"quizId"`
	StudentID     uint `gorm:"uniqueIndex:idx_quiz_student_number;index;type:bigint unsigned" json:"studentId"`
	AttemptNumber int  `gorm:"uniqueIndex:idx_quiz_student_number;not null" json:"attemptNumber"`

	Status        AttemptStatus `gorm:"size:20;default:'in_progress';index" json:"status"`
	AutoSubmitted bool          `gorm:"default:false" json:"autoSubmitted"`

	StartTime time.Time  `json:"startTime"`
	EndTime   *time.Time `json:"endTime,omitempty"`
	// TimeTakenSeconds is computed server-side from StartTime at submission.
	TimeTakenSeconds int `gorm:"default:0" json:"timeTakenSeconds"`
	// ReportedTimeSeconds is the client-reported value, stored for analytics only.
	ReportedTimeSeconds int `gorm:"default:0" json:"reportedTimeSeconds"`

	TotalScore float64 `gorm:"default:0" json:"totalScore"`
	MaxScore   float64 `gorm:"default:0" json:"maxScore"`
	Percentage float64 `gorm:"default:0" json:"percentage"`

	// Materialized is the question/option order fixed at attempt start,
	// immune to later question-bank edits.
	Materialized string `gorm:"type:json" json:"-"`
}

func (Attempt) TableName() string {
	return "quiz_attempts"
}

// MaterializedQuestion is one entry of an attempt's frozen question set.
type MaterializedQuestion struct {
	QuestionID uint    `json:"questionId"`
	Points     float64 `json:"points"`
	OptionIDs  []uint  `json:"optionIds,omitempty"`
}
