package service

import (
	"time"

	"school_quiz_backend/internal/repository"
)

type QuizService struct {
	QuizRepo    *repository.QuizRepository
	AttemptRepo *repository.AttemptRepository

	Now func() time.Time
}

func NewQuizService(quizRepo *repository.QuizRepository, attemptRepo *repository.AttemptRepository) *QuizService {
	return &QuizService{
		QuizRepo:    quizRepo,
		AttemptRepo: attemptRepo,
		Now:         time.Now,
	}
}

// QuizListItem is one open quiz as shown to a student.
type QuizListItem struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	TimeLimitMinutes int        `json:"timeLimitMinutes"`
	AttemptsAllowed  int        `json:"attemptsAllowed"`
	AttemptsUsed     int64      `json:"attemptsUsed"`
	AvailableTo      *time.Time `json:"availableTo,omitempty"`
}

// ListAvailable returns the quizzes currently open to the student, with how
// many tries each has already consumed.
func (s *QuizService) ListAvailable(studentID uint) ([]QuizListItem, error) {
	quizzes, err := s.QuizRepo.ListAvailable(s.Now())
	if err != nil {
		return nil, err
	}

	items := make([]QuizListItem, 0, len(quizzes))
	for _, q := range quizzes {
		used, err := s.AttemptRepo.CountFinished(s.AttemptRepo.DB, q.ID, studentID)
		if err != nil {
			return nil, err
		}
		items = append(items, QuizListItem{
			ID:               q.ID,
			Title:            q.Title,
			Description:      q.Description,
			TimeLimitMinutes: q.TimeLimitMinutes,
			AttemptsAllowed:  q.AttemptsAllowed,
			AttemptsUsed:     used,
			AvailableTo:      q.AvailableTo,
		})
	}
	return items, nil
}

// Stats aggregates closed attempts of one quiz for the teaching side.
func (s *QuizService) Stats(quizID uint) (*repository.AttemptStats, error) {
	if _, err := s.QuizRepo.FindByID(quizID); err != nil {
		return nil, err
	}
	return s.AttemptRepo.Stats(quizID)
}
