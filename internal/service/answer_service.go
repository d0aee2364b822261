package service

import (
	"context"
	"encoding/json"
	"io"

	"school_quiz_backend/internal/grading"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/internal/util"
)

// AnswerService records answers and flags while an attempt is live. Writes
// are last-write-wins per (attempt, question), so rapid autosaves are safe to
// retry.
type AnswerService struct {
	AttemptRepo *repository.AttemptRepository
	AnswerRepo  *repository.AnswerRepository
	Storage     *StorageService
}

func NewAnswerService(attemptRepo *repository.AttemptRepository, answerRepo *repository.AnswerRepository, storage *StorageService) *AnswerService {
	return &AnswerService{
		AttemptRepo: attemptRepo,
		AnswerRepo:  answerRepo,
		Storage:     storage,
	}
}

// openAttempt loads the attempt and verifies the student may still write to
// it and that the question belongs to its materialized set.
func (s *AnswerService) openAttempt(attemptID, studentID, questionID uint) (*model.Attempt, *model.MaterializedQuestion, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt.StudentID != studentID {
		return nil, nil, util.ErrAttemptNotFound
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, nil, util.ErrAttemptClosed
	}

	snapshot, err := decodeMaterialized(attempt)
	if err != nil {
		return nil, nil, err
	}
	for i := range snapshot {
		if snapshot[i].QuestionID == questionID {
			return attempt, &snapshot[i], nil
		}
	}
	return nil, nil, util.ErrQuestionNotInAttempt
}

// Record saves (or replaces) the answer for one question of a live attempt.
func (s *AnswerService) Record(ctx context.Context, attemptID, studentID, questionID uint, resp grading.Response) error {
	attempt, mq, err := s.openAttempt(attemptID, studentID, questionID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(resp)
	if err != nil {
		return err
	}
	answer := &model.Answer{
		AttemptID:  attempt.ID,
		QuestionID: questionID,
		AnswerText: string(raw),
		AnswerFile: resp.FileRef,
		MaxPoints:  mq.Points,
	}
	return s.AnswerRepo.Upsert(answer, resp.SelectedOptionIDs)
}

// RecordFile stores an uploaded file through the storage provider and records
// the resulting reference as the answer.
func (s *AnswerService) RecordFile(ctx context.Context, attemptID, studentID, questionID uint, filename string, reader io.Reader, size int64, contentType string) (string, error) {
	attempt, mq, err := s.openAttempt(attemptID, studentID, questionID)
	if err != nil {
		return "", err
	}

	objectName := AnswerObjectName(attempt.ID, questionID, filename)
	ref, err := s.Storage.Upload(ctx, objectName, reader, size, contentType)
	if err != nil {
		return "", err
	}

	resp := grading.Response{FileRef: ref}
	raw, err := json.Marshal(resp)
	if err != nil {
		return "", err
	}
	answer := &model.Answer{
		AttemptID:  attempt.ID,
		QuestionID: questionID,
		AnswerText: string(raw),
		AnswerFile: ref,
		MaxPoints:  mq.Points,
	}
	if err := s.AnswerRepo.Upsert(answer, nil); err != nil {
		return "", err
	}
	return ref, nil
}

// ToggleFlag flips the student's review marker for a question. Advisory only.
func (s *AnswerService) ToggleFlag(ctx context.Context, attemptID, studentID, questionID uint) (bool, error) {
	attempt, _, err := s.openAttempt(attemptID, studentID, questionID)
	if err != nil {
		return false, err
	}
	return s.AnswerRepo.ToggleFlag(attempt.ID, questionID)
}
