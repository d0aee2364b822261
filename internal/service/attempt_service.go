package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"school_quiz_backend/internal/config"
	"school_quiz_backend/internal/grading"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/internal/selection"
	"school_quiz_backend/internal/util"
	"school_quiz_backend/pkg/logger"
	"school_quiz_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AttemptService owns the attempt state machine: start-or-resume, submission
// gating, authoritative timing and grading hand-off. All mutable attempt
// state lives in the database; nothing here is process-local.
type AttemptService struct {
	QuizRepo     *repository.QuizRepository
	QuestionRepo *repository.QuestionRepository
	AttemptRepo  *repository.AttemptRepository
	AnswerRepo   *repository.AnswerRepository
	Selector     *selection.Selector
	Grader       *grading.Engine
	DB           *gorm.DB
	GraceSeconds int

	// Now is swappable so time-limit enforcement is testable.
	Now func() time.Time
}

func NewAttemptService(
	quizRepo *repository.QuizRepository,
	questionRepo *repository.QuestionRepository,
	attemptRepo *repository.AttemptRepository,
	answerRepo *repository.AnswerRepository,
	selector *selection.Selector,
	grader *grading.Engine,
	db *gorm.DB,
	cfg *config.Config,
) *AttemptService {
	grace := 30
	if cfg != nil && cfg.Quiz.SubmitGraceSeconds > 0 {
		grace = cfg.Quiz.SubmitGraceSeconds
	}
	return &AttemptService{
		QuizRepo:     quizRepo,
		QuestionRepo: questionRepo,
		AttemptRepo:  attemptRepo,
		AnswerRepo:   answerRepo,
		Selector:     selector,
		Grader:       grader,
		DB:           db,
		GraceSeconds: grace,
		Now:          time.Now,
	}
}

type OptionView struct {
	ID   uint   `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the student-facing shape of a materialized question; answer
// keys never leave the server.
type QuestionView struct {
	ID         uint               `json:"id"`
	Type       model.QuestionType `json:"type"`
	Text       string             `json:"text"`
	Points     float64            `json:"points"`
	Options    []OptionView       `json:"options,omitempty"`
	MatchPool  []string           `json:"matchPool,omitempty"`
	BlankCount int                `json:"blankCount,omitempty"`
}

type StartResult struct {
	AttemptID        uint                      `json:"attemptId"`
	AttemptNumber    int                       `json:"attemptNumber"`
	Resumed          bool                      `json:"resumed"`
	StartTime        time.Time                 `json:"startTime"`
	TimeLimitMinutes int                       `json:"timeLimitMinutes"`
	Questions        []QuestionView            `json:"questions"`
	Answers          map[uint]grading.Response `json:"answers,omitempty"`
	Flags            []uint                    `json:"flags,omitempty"`
}

// StartOrResume returns the student's live attempt for the quiz, creating one
// if none exists. Two concurrent starts cannot both create: attempt numbers
// are unique per (quiz, student), so the loser of the race re-reads and
// resumes the winner's attempt.
func (s *AttemptService) StartOrResume(ctx context.Context, quizID, studentID uint) (*StartResult, error) {
	quiz, err := s.QuizRepo.FindByID(quizID)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	if !quiz.IsPublished || !quiz.AvailableAt(now) {
		return nil, util.ErrQuizNotAvailable
	}

	if existing, err := s.AttemptRepo.FindInProgress(s.DB, quizID, studentID); err != nil {
		return nil, err
	} else if existing != nil {
		return s.resume(ctx, quiz, existing)
	}

	finished, err := s.AttemptRepo.CountFinished(s.DB, quizID, studentID)
	if err != nil {
		return nil, err
	}
	if quiz.AttemptsAllowed > 0 && finished >= int64(quiz.AttemptsAllowed) {
		return nil, util.ErrAttemptLimitExceeded
	}

	bank, err := s.QuestionRepo.BankForQuiz(ctx, quizID)
	if err != nil {
		return nil, err
	}

	return s.createAttempt(ctx, quiz, bank, now, studentID)
}

// createAttempt is the transactional half of StartOrResume. The live-attempt
// check is repeated inside the transaction: a start that committed after the
// caller's initial check is resumed instead of shadowed by a second row with
// a fresh attempt number.
func (s *AttemptService) createAttempt(ctx context.Context, quiz *model.Quiz, bank []model.Question, now time.Time, studentID uint) (*StartResult, error) {
	var attempt *model.Attempt
	var selected []model.Question
	var live *model.Attempt
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.AttemptRepo.FindInProgress(tx, quiz.ID, studentID)
		if err != nil {
			return err
		}
		if existing != nil {
			live = existing
			return nil
		}
		prior, err := s.AttemptRepo.CountAll(tx, quiz.ID, studentID)
		if err != nil {
			return err
		}
		selected, err = s.Selector.Select(quiz, bank, int(prior))
		if err != nil {
			return err
		}
		snapshot, err := materialize(selected)
		if err != nil {
			return err
		}
		attempt = &model.Attempt{
			QuizID:        quiz.ID,
			StudentID:     studentID,
			AttemptNumber: int(prior) + 1,
			Status:        model.AttemptInProgress,
			StartTime:     now,
			Materialized:  snapshot,
		}
		return s.AttemptRepo.Create(tx, attempt)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// lost a concurrent start; the other request's attempt wins
			if existing, ferr := s.AttemptRepo.FindInProgress(s.DB, quiz.ID, studentID); ferr == nil && existing != nil {
				return s.resume(ctx, quiz, existing)
			}
		}
		return nil, err
	}
	if live != nil {
		return s.resume(ctx, quiz, live)
	}

	monitoring.AttemptsStarted.Inc()
	logger.Log.Info("attempt started",
		zap.Uint("quizId", quiz.ID),
		zap.Uint("studentId", studentID),
		zap.Int("attemptNumber", attempt.AttemptNumber),
		zap.Int("questions", len(selected)))

	return &StartResult{
		AttemptID:        attempt.ID,
		AttemptNumber:    attempt.AttemptNumber,
		StartTime:        attempt.StartTime,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		Questions:        questionViews(selected),
	}, nil
}

// resume rebuilds the frozen question order from the attempt's snapshot and
// returns previously saved answers and flags.
func (s *AttemptService) resume(ctx context.Context, quiz *model.Quiz, attempt *model.Attempt) (*StartResult, error) {
	questions, err := s.materializedQuestions(attempt)
	if err != nil {
		return nil, err
	}

	answers, err := s.AnswerRepo.GetByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}
	saved := make(map[uint]grading.Response, len(answers))
	for _, a := range answers {
		var resp grading.Response
		if json.Unmarshal([]byte(a.AnswerText), &resp) == nil {
			saved[a.QuestionID] = resp
		}
	}

	flags, err := s.AnswerRepo.ListFlags(attempt.ID)
	if err != nil {
		return nil, err
	}
	flagged := make([]uint, 0, len(flags))
	for _, f := range flags {
		flagged = append(flagged, f.QuestionID)
	}

	return &StartResult{
		AttemptID:        attempt.ID,
		AttemptNumber:    attempt.AttemptNumber,
		Resumed:          true,
		StartTime:        attempt.StartTime,
		TimeLimitMinutes: quiz.TimeLimitMinutes,
		Questions:        questionViews(questions),
		Answers:          saved,
		Flags:            flagged,
	}, nil
}

// Submit closes an in_progress attempt and grades it. time_taken is computed
// server-side; the client-reported value is stored for analytics only. A
// submission past the limit plus grace is accepted but marked auto_submitted.
func (s *AttemptService) Submit(ctx context.Context, attemptID, studentID uint, reportedSeconds int, autoSubmitted bool) (*model.Attempt, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.Status != model.AttemptInProgress {
		return nil, util.ErrAttemptClosed
	}

	quiz, err := s.QuizRepo.FindByID(attempt.QuizID)
	if err != nil {
		return nil, err
	}

	now := s.Now()
	elapsed := now.Sub(attempt.StartTime)
	if quiz.TimeLimitMinutes > 0 {
		limit := time.Duration(quiz.TimeLimitMinutes)*time.Minute +
			time.Duration(s.GraceSeconds)*time.Second
		if elapsed > limit {
			autoSubmitted = true
		}
	}

	endTime := now
	attempt.EndTime = &endTime
	attempt.TimeTakenSeconds = int(elapsed.Seconds())
	attempt.ReportedTimeSeconds = reportedSeconds
	attempt.AutoSubmitted = autoSubmitted
	attempt.Status = model.AttemptSubmitted

	snapshot, err := decodeMaterialized(attempt)
	if err != nil {
		return nil, err
	}
	questionsByID, err := s.QuestionRepo.ByIDs(materializedIDs(snapshot))
	if err != nil {
		return nil, err
	}
	answers, err := s.AnswerRepo.GetByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}
	answersByQuestion := make(map[uint]*model.Answer, len(answers))
	for i := range answers {
		answersByQuestion[answers[i].QuestionID] = &answers[i]
	}

	results := make([]grading.Result, 0, len(snapshot))
	graded := make([]model.Answer, 0, len(answers))
	for _, mq := range snapshot {
		q, ok := questionsByID[mq.QuestionID]
		if !ok {
			// question deleted from the bank mid-attempt; snapshot points still count
			results = append(results, grading.Result{MaxPoints: mq.Points})
			continue
		}
		q.Points = mq.Points

		answer, answered := answersByQuestion[mq.QuestionID]
		if !answered {
			results = append(results, grading.Result{MaxPoints: mq.Points})
			continue
		}

		var resp grading.Response
		if err := json.Unmarshal([]byte(answer.AnswerText), &resp); err != nil {
			logger.Log.Warn("unreadable answer payload",
				zap.Uint("attemptId", attempt.ID),
				zap.Uint("questionId", mq.QuestionID),
				zap.Error(err))
		}
		result := s.Grader.Grade(q, resp)
		results = append(results, result)

		answer.PointsAwarded = result.PointsAwarded
		answer.MaxPoints = result.MaxPoints
		answer.IsCorrect = result.IsCorrect
		answer.NeedsReview = result.NeedsReview
		graded = append(graded, *answer)
	}

	totals := grading.Aggregate(results)
	attempt.TotalScore = totals.TotalScore
	attempt.MaxScore = totals.MaxScore
	attempt.Percentage = totals.Percentage
	attempt.Status = totals.Status

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := s.AnswerRepo.SaveGrades(tx, graded); err != nil {
			return err
		}
		return s.AttemptRepo.Update(tx, attempt)
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptsSubmitted.WithLabelValues(boolLabel(autoSubmitted)).Inc()
	logger.Log.Info("attempt submitted",
		zap.Uint("attemptId", attempt.ID),
		zap.String("status", string(attempt.Status)),
		zap.Float64("percentage", attempt.Percentage),
		zap.Bool("autoSubmitted", autoSubmitted))

	return attempt, nil
}

// AnswerResultView is one graded answer in a results payload.
type AnswerResultView struct {
	QuestionID    uint               `json:"questionId"`
	Type          model.QuestionType `json:"type"`
	Text          string             `json:"text"`
	PointsAwarded float64            `json:"pointsAwarded"`
	MaxPoints     float64            `json:"maxPoints"`
	IsCorrect     bool               `json:"isCorrect"`
	NeedsReview   bool               `json:"needsReview"`
	Answered      bool               `json:"answered"`
	AnswerFile    string             `json:"answerFile,omitempty"`
}

type ResultView struct {
	AttemptID     uint                `json:"attemptId"`
	AttemptNumber int                 `json:"attemptNumber"`
	Status        model.AttemptStatus `json:"status"`
	AutoSubmitted bool                `json:"autoSubmitted"`
	TimeTaken     int                 `json:"timeTakenSeconds"`
	TotalScore    float64             `json:"totalScore"`
	MaxScore      float64             `json:"maxScore"`
	Percentage    float64             `json:"percentage"`
	Answers       []AnswerResultView  `json:"answers"`
}

// Results returns the computed outcome of a closed attempt.
func (s *AttemptService) Results(ctx context.Context, attemptID, studentID uint) (*ResultView, error) {
	attempt, err := s.AttemptRepo.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.StudentID != studentID {
		return nil, util.ErrAttemptNotFound
	}
	if attempt.Status == model.AttemptInProgress {
		return nil, util.ErrAttemptClosed
	}

	snapshot, err := decodeMaterialized(attempt)
	if err != nil {
		return nil, err
	}
	questionsByID, err := s.QuestionRepo.ByIDs(materializedIDs(snapshot))
	if err != nil {
		return nil, err
	}
	answers, err := s.AnswerRepo.GetByAttempt(attempt.ID)
	if err != nil {
		return nil, err
	}
	answersByQuestion := make(map[uint]model.Answer, len(answers))
	for _, a := range answers {
		answersByQuestion[a.QuestionID] = a
	}

	views := make([]AnswerResultView, 0, len(snapshot))
	for _, mq := range snapshot {
		view := AnswerResultView{QuestionID: mq.QuestionID, MaxPoints: mq.Points}
		if q, ok := questionsByID[mq.QuestionID]; ok {
			view.Type = q.Type
			view.Text = q.Text
		}
		if a, ok := answersByQuestion[mq.QuestionID]; ok {
			view.Answered = true
			view.PointsAwarded = a.PointsAwarded
			view.IsCorrect = a.IsCorrect
			view.NeedsReview = a.NeedsReview
			view.AnswerFile = a.AnswerFile
		}
		views = append(views, view)
	}

	return &ResultView{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		Status:        attempt.Status,
		AutoSubmitted: attempt.AutoSubmitted,
		TimeTaken:     attempt.TimeTakenSeconds,
		TotalScore:    attempt.TotalScore,
		MaxScore:      attempt.MaxScore,
		Percentage:    attempt.Percentage,
		Answers:       views,
	}, nil
}

// materializedQuestions rebuilds the frozen question and option order of an
// attempt from its snapshot.
func (s *AttemptService) materializedQuestions(attempt *model.Attempt) ([]model.Question, error) {
	snapshot, err := decodeMaterialized(attempt)
	if err != nil {
		return nil, err
	}
	byID, err := s.QuestionRepo.ByIDs(materializedIDs(snapshot))
	if err != nil {
		return nil, err
	}

	questions := make([]model.Question, 0, len(snapshot))
	for _, mq := range snapshot {
		q, ok := byID[mq.QuestionID]
		if !ok {
			continue
		}
		q.Points = mq.Points
		if len(mq.OptionIDs) > 0 {
			optionsByID := make(map[uint]model.Option, len(q.Options))
			for _, opt := range q.Options {
				optionsByID[opt.ID] = opt
			}
			ordered := make([]model.Option, 0, len(mq.OptionIDs))
			for _, id := range mq.OptionIDs {
				if opt, ok := optionsByID[id]; ok {
					ordered = append(ordered, opt)
				}
			}
			q.Options = ordered
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func materialize(questions []model.Question) (string, error) {
	snapshot := make([]model.MaterializedQuestion, 0, len(questions))
	for _, q := range questions {
		mq := model.MaterializedQuestion{QuestionID: q.ID, Points: q.Points}
		for _, opt := range q.Options {
			mq.OptionIDs = append(mq.OptionIDs, opt.ID)
		}
		snapshot = append(snapshot, mq)
	}
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeMaterialized(attempt *model.Attempt) ([]model.MaterializedQuestion, error) {
	var snapshot []model.MaterializedQuestion
	if err := json.Unmarshal([]byte(attempt.Materialized), &snapshot); err != nil {
		return nil, err
	}
	return snapshot, nil
}

func materializedIDs(snapshot []model.MaterializedQuestion) []uint {
	ids := make([]uint, 0, len(snapshot))
	for _, mq := range snapshot {
		ids = append(ids, mq.QuestionID)
	}
	return ids
}

func questionViews(questions []model.Question) []QuestionView {
	views := make([]QuestionView, 0, len(questions))
	for _, q := range questions {
		view := QuestionView{
			ID:     q.ID,
			Type:   q.Type,
			Text:   q.Text,
			Points: q.Points,
		}
		switch q.Type {
		case model.QuestionFillBlanks:
			// option texts are the answer key; only the blank count is shown
			view.BlankCount = len(q.Options)
		case model.QuestionMatching:
			pool := make([]string, 0, len(q.Options))
			for _, opt := range q.Options {
				view.Options = append(view.Options, OptionView{ID: opt.ID, Text: opt.Text})
				pool = append(pool, opt.MatchText)
			}
			// sorted so the pool order leaks nothing about the pairing
			sort.Strings(pool)
			view.MatchPool = pool
		case model.QuestionShortAnswer, model.QuestionEssay, model.QuestionFileUpload:
			// free-form types carry no options
		default:
			for _, opt := range q.Options {
				view.Options = append(view.Options, OptionView{ID: opt.ID, Text: opt.Text})
			}
		}
		views = append(views, view)
	}
	return views
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
