package repository

import (
	"errors"
	"time"

	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/util"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) FindByID(id uint) (*model.Quiz, error) {
	var q model.Quiz
	if err := r.DB.First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrQuizNotFound
		}
		return nil, err
	}
	return &q, nil
}

// ListAvailable returns published quizzes whose availability window contains now.
func (r *QuizRepository) ListAvailable(now time.Time) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.
		Where("is_published = ?", true).
		Where("available_from IS NULL OR available_from <= ?", now).
		Where("available_to IS NULL OR available_to >= ?", now).
		Order("id ASC").
		Find(&quizzes).Error
	return quizzes, err
}
