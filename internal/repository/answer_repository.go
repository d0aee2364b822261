package repository

import (
	"errors"

	"school_quiz_backend/internal/model"

	"gorm.io/gorm"
)

type AnswerRepository struct {
	DB *gorm.DB
}

func NewAnswerRepository(db *gorm.DB) *AnswerRepository {
	return &AnswerRepository{DB: db}
}

// Upsert stores one answer per (attempt, question); a later write replaces the
// earlier one, which is what autosave relies on. Option selections are
// replaced wholesale alongside the answer row.
func (r *AnswerRepository) Upsert(answer *model.Answer, optionIDs []uint) error {
	err := r.upsert(answer, optionIDs)
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// lost a concurrent first write for this (attempt, question); the row
		// exists now, so a second pass takes the update branch
		err = r.upsert(answer, optionIDs)
	}
	return err
}

func (r *AnswerRepository) upsert(answer *model.Answer, optionIDs []uint) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		var existing model.Answer
		err := tx.Where("attempt_id = ? AND question_id = ?", answer.AttemptID, answer.QuestionID).
			First(&existing).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := writeAnswer(tx, answer, &existing); err != nil {
			return err
		}

		if err := tx.Unscoped().
			Where("answer_id = ?", answer.ID).
			Delete(&model.AnswerOptionSelection{}).Error; err != nil {
			return err
		}
		if len(optionIDs) > 0 {
			selections := make([]model.AnswerOptionSelection, 0, len(optionIDs))
			for _, id := range optionIDs {
				selections = append(selections, model.AnswerOptionSelection{
					AnswerID: answer.ID,
					OptionID: id,
				})
			}
			if err := tx.Create(&selections).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// writeAnswer updates the row the caller's lookup found, otherwise creates
// one. A duplicate key on create means a concurrent first write landed after
// the lookup; re-read and update that row instead.
func writeAnswer(tx *gorm.DB, answer, existing *model.Answer) error {
	if existing.ID == 0 {
		err := tx.Create(answer).Error
		if err == nil || !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		ferr := tx.Where("attempt_id = ? AND question_id = ?", answer.AttemptID, answer.QuestionID).
			First(existing).Error
		if errors.Is(ferr, gorm.ErrRecordNotFound) {
			// the winner's row is outside this transaction's snapshot; the
			// duplicate-key error tells Upsert to start over
			return err
		}
		if ferr != nil {
			return ferr
		}
	}

	existing.AnswerText = answer.AnswerText
	if answer.AnswerFile != "" {
		existing.AnswerFile = answer.AnswerFile
	}
	existing.MaxPoints = answer.MaxPoints
	if err := tx.Save(existing).Error; err != nil {
		return err
	}
	answer.ID = existing.ID
	return nil
}

func (r *AnswerRepository) GetByAttempt(attemptID uint) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

// SaveGrades persists the graded fields of answers inside the given tx.
func (r *AnswerRepository) SaveGrades(tx *gorm.DB, answers []model.Answer) error {
	for i := range answers {
		if err := tx.Save(&answers[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// ToggleFlag flips the review marker for (attempt, question) and reports the
// resulting state.
func (r *AnswerRepository) ToggleFlag(attemptID, questionID uint) (bool, error) {
	flagged := false
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var flag model.FlaggedQuestion
		err := tx.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
			First(&flag).Error
		if err == nil {
			return tx.Unscoped().Delete(&flag).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		flagged = true
		return tx.Create(&model.FlaggedQuestion{AttemptID: attemptID, QuestionID: questionID}).Error
	})
	return flagged, err
}

func (r *AnswerRepository) ListFlags(attemptID uint) ([]model.FlaggedQuestion, error) {
	var flags []model.FlaggedQuestion
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&flags).Error
	return flags, err
}
