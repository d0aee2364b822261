package repository

import (
	"errors"

	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/util"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) FindByID(id uint) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrAttemptNotFound
		}
		return nil, err
	}
	return &a, nil
}

// FindInProgress returns the student's live attempt for a quiz, if any.
func (r *AttemptRepository) FindInProgress(tx *gorm.DB, quizID, studentID uint) (*model.Attempt, error) {
	var a model.Attempt
	err := tx.
		Where("quiz_id = ? AND student_id = ? AND status = ?", quizID, studentID, model.AttemptInProgress).
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

// CountFinished counts attempts that consumed one of the allowed tries.
func (r *AttemptRepository) CountFinished(tx *gorm.DB, quizID, studentID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.Attempt{}).
		Where("quiz_id = ? AND student_id = ? AND status IN ?", quizID, studentID,
			[]model.AttemptStatus{model.AttemptSubmitted, model.AttemptGraded, model.AttemptPendingReview}).
		Count(&count).Error
	return count, err
}

// CountAll counts every attempt the student has for a quiz; attempt numbers
// stay contiguous from 1.
func (r *AttemptRepository) CountAll(tx *gorm.DB, quizID, studentID uint) (int64, error) {
	var count int64
	err := tx.Model(&model.Attempt{}).
		Where("quiz_id = ? AND student_id = ?", quizID, studentID).
		Count(&count).Error
	return count, err
}

func (r *AttemptRepository) Create(tx *gorm.DB, attempt *model.Attempt) error {
	return tx.Create(attempt).Error
}

func (r *AttemptRepository) Update(tx *gorm.DB, attempt *model.Attempt) error {
	return tx.Save(attempt).Error
}

// AttemptStats aggregates finished attempts for one quiz.
type AttemptStats struct {
	TotalAttempts  int64   `json:"totalAttempts"`
	AvgPercentage  float64 `json:"avgPercentage"`
	AvgTimeSeconds float64 `json:"avgTimeSeconds"`
	AutoSubmitted  int64   `json:"autoSubmitted"`
	PendingReview  int64   `json:"pendingReview"`
	DistinctTakers int64   `json:"distinctTakers"`
}

func (r *AttemptRepository) Stats(quizID uint) (*AttemptStats, error) {
	stats := &AttemptStats{}
	base := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND status <> ?", quizID, model.AttemptInProgress)

	if err := base.Session(&gorm.Session{}).Count(&stats.TotalAttempts).Error; err != nil {
		return nil, err
	}
	if stats.TotalAttempts == 0 {
		return stats, nil
	}
	if err := base.Session(&gorm.Session{}).Select("AVG(percentage)").Scan(&stats.AvgPercentage).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Select("AVG(time_taken_seconds)").Scan(&stats.AvgTimeSeconds).Error; err != nil {
		return nil, err
	}
	if err := base.Session(&gorm.Session{}).Where("auto_submitted = ?", true).Count(&stats.AutoSubmitted).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ? AND status = ?", quizID, model.AttemptPendingReview).
		Count(&stats.PendingReview).Error; err != nil {
		return nil, err
	}
	if err := r.DB.Model(&model.Attempt{}).
		Where("quiz_id = ?", quizID).
		Distinct("student_id").
		Count(&stats.DistinctTakers).Error; err != nil {
		return nil, err
	}
	return stats, nil
}
