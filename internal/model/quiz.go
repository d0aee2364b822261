package model

import "time"

type SelectionMethod string

const (
	SelectionAll              SelectionMethod = "all"
	SelectionRandomCount      SelectionMethod = "random_count"
	SelectionRandomPercentage SelectionMethod = "random_percentage"
)

// swagger:model Quiz
type Quiz struct {
	BaseModel

	CourseID    uint   `gorm:"index;type:bigint unsigned" json:"courseId"`
	CreatorID   uint   `gorm:"index;type:bigint unsigned" json:"creatorId"`
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	TimeLimitMinutes int `gorm:"default:0" json:"timeLimitMinutes"` // 0 = untimed
	AttemptsAllowed  int `gorm:"default:0" json:"attemptsAllowed"`  // 0 = unlimited

	ShuffleQuestions    bool            `gorm:"default:false" json:"shuffleQuestions"`
	ShuffleOptions      bool            `gorm:"default:false" json:"shuffleOptions"`
	SelectionMethod     SelectionMethod `gorm:"size:30;default:'all'" json:"selectionMethod"`
	QuestionsToShow     int             `gorm:"default:0" json:"questionsToShow"`
	QuestionsPercentage int             `gorm:"default:0" json:"questionsPercentage"`
	RandomizePerStudent bool            `gorm:"default:false" json:"randomizePerStudent"`

	IsPublished   bool       `gorm:"default:false" json:"isPublished"`
	AvailableFrom *time.Time `json:"availableFrom,omitempty"`
	AvailableTo   *time.Time `json:"availableTo,omitempty"`
}

func (Quiz) TableName() string {
	return "quizzes"
}

// AvailableAt reports whether the quiz accepts new attempts at the given time.
func (q *Quiz) AvailableAt(now time.Time) bool {
	if q.AvailableFrom != nil && now.Before(*q.AvailableFrom) {
		return false
	}
	if q.AvailableTo != nil && now.After(*q.AvailableTo) {
		return false
	}
	return true
}
