package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"school_quiz_backend/internal/config"
	"school_quiz_backend/internal/grading"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/repository"
	"school_quiz_backend/internal/selection"
	"school_quiz_backend/internal/util"
	"school_quiz_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	logger.Log = zap.NewNop()
}

var testClockStart = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	db      *gorm.DB
	svc     *AttemptService
	answers *AnswerService
	now     time.Time
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&model.Quiz{},
		&model.Question{},
		&model.Option{},
		&model.Attempt{},
		&model.Answer{},
		&model.AnswerOptionSelection{},
		&model.FlaggedQuestion{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	quizRepo := repository.NewQuizRepository(db)
	questionRepo := repository.NewQuestionRepository(db, nil, time.Minute)
	attemptRepo := repository.NewAttemptRepository(db)
	answerRepo := repository.NewAnswerRepository(db)

	f := &fixture{db: db, now: testClockStart}
	f.svc = NewAttemptService(
		quizRepo, questionRepo, attemptRepo, answerRepo,
		selection.NewSelector(), grading.NewEngine(), db, nil,
	)
	f.svc.Now = func() time.Time { return f.now }

	storage := NewStorageService(&config.Config{
		Storage: config.StorageConfig{Type: "local", LocalPath: t.TempDir()},
	})
	f.answers = NewAnswerService(attemptRepo, answerRepo, storage)
	return f
}

// seedQuiz creates a published quiz with three 5-point multiple_choice
// questions; the first option of each is the correct one.
func (f *fixture) seedQuiz(t *testing.T, mutate func(*model.Quiz)) *model.Quiz {
	t.Helper()

	quiz := &model.Quiz{
		Title:           "Unit 3 checkpoint",
		IsPublished:     true,
		SelectionMethod: model.SelectionAll,
	}
	if mutate != nil {
		mutate(quiz)
	}
	if err := f.db.Create(quiz).Error; err != nil {
		t.Fatalf("seed quiz: %v", err)
	}

	for i := 1; i <= 3; i++ {
		q := &model.Question{
			QuizID:      quiz.ID,
			Type:        model.QuestionMultipleChoice,
			Text:        fmt.Sprintf("question %d", i),
			Points:      5,
			OrderNumber: i,
		}
		if err := f.db.Create(q).Error; err != nil {
			t.Fatalf("seed question: %v", err)
		}
		for j := 1; j <= 3; j++ {
			o := &model.Option{
				QuestionID:  q.ID,
				Text:        fmt.Sprintf("option %d", j),
				IsCorrect:   j == 1,
				OrderNumber: j,
			}
			if err := f.db.Create(o).Error; err != nil {
				t.Fatalf("seed option: %v", err)
			}
		}
	}
	return quiz
}

func (f *fixture) addQuestion(t *testing.T, quizID uint, qType model.QuestionType, points float64, order int) *model.Question {
	t.Helper()
	q := &model.Question{QuizID: quizID, Type: qType, Text: string(qType), Points: points, OrderNumber: order}
	if err := f.db.Create(q).Error; err != nil {
		t.Fatalf("add question: %v", err)
	}
	return q
}

func (f *fixture) correctOption(t *testing.T, questionID uint) uint {
	t.Helper()
	var o model.Option
	if err := f.db.Where("question_id = ? AND is_correct = ?", questionID, true).First(&o).Error; err != nil {
		t.Fatalf("load correct option: %v", err)
	}
	return o.ID
}

const studentID = 7

func TestStartCreatesAttempt(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, func(q *model.Quiz) { q.TimeLimitMinutes = 20 })

	got, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AttemptID == 0 || got.AttemptNumber != 1 || got.Resumed {
		t.Fatalf("start = %+v", got)
	}
	if got.TimeLimitMinutes != 20 {
		t.Errorf("time limit = %d, want 20", got.TimeLimitMinutes)
	}
	if len(got.Questions) != 3 {
		t.Fatalf("questions = %d, want 3", len(got.Questions))
	}
	for _, q := range got.Questions {
		if len(q.Options) != 3 {
			t.Errorf("question %d options = %d, want 3", q.ID, len(q.Options))
		}
	}
}

func TestStartResumesInProgressAttempt(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	first, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}

	qid := first.Questions[0].ID
	resp := grading.Response{SelectedOptionIDs: []uint{f.correctOption(t, qid)}}
	if err := f.answers.Record(context.Background(), first.AttemptID, studentID, qid, resp); err != nil {
		t.Fatal(err)
	}

	second, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	if second.AttemptID != first.AttemptID || !second.Resumed {
		t.Fatalf("expected resume of attempt %d, got %+v", first.AttemptID, second)
	}
	saved, ok := second.Answers[qid]
	if !ok || len(saved.SelectedOptionIDs) != 1 || saved.SelectedOptionIDs[0] != resp.SelectedOptionIDs[0] {
		t.Errorf("saved answer not returned on resume: %+v", second.Answers)
	}
	if len(second.Questions) != len(first.Questions) {
		t.Fatalf("resumed question count changed")
	}
}

func TestStartRaceResumesCommittedAttempt(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)
	ctx := context.Background()

	// The loser of a concurrent start passed its live-attempt check while no
	// attempt existed, then the winner committed. Replay the loser's
	// transactional half against the committed state: it must land on the
	// winner's attempt, never a second in_progress row.
	first, err := f.svc.StartOrResume(ctx, quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}

	bank, err := f.svc.QuestionRepo.BankForQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatal(err)
	}
	got, err := f.svc.createAttempt(ctx, quiz, bank, f.now, studentID)
	if err != nil {
		t.Fatal(err)
	}
	if got.AttemptID != first.AttemptID || !got.Resumed {
		t.Fatalf("expected resume of attempt %d, got %+v", first.AttemptID, got)
	}

	var live int64
	err = f.db.Model(&model.Attempt{}).
		Where("quiz_id = ? AND student_id = ? AND status = ?", quiz.ID, studentID, model.AttemptInProgress).
		Count(&live).Error
	if err != nil {
		t.Fatal(err)
	}
	if live != 1 {
		t.Fatalf("in_progress attempts = %d, want 1", live)
	}
	for i := range first.Questions {
		if got.Questions[i].ID != first.Questions[i].ID {
			t.Errorf("resumed question order differs at %d", i)
		}
	}
}

func TestStartQuizNotAvailable(t *testing.T) {
	f := newFixture(t)

	t.Run("unpublished", func(t *testing.T) {
		quiz := f.seedQuiz(t, func(q *model.Quiz) { q.IsPublished = false })
		_, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
		if !errors.Is(err, util.ErrQuizNotAvailable) {
			t.Errorf("err = %v, want ErrQuizNotAvailable", err)
		}
	})

	t.Run("before window", func(t *testing.T) {
		opens := testClockStart.Add(time.Hour)
		quiz := f.seedQuiz(t, func(q *model.Quiz) { q.AvailableFrom = &opens })
		_, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
		if !errors.Is(err, util.ErrQuizNotAvailable) {
			t.Errorf("err = %v, want ErrQuizNotAvailable", err)
		}
	})

	t.Run("after window", func(t *testing.T) {
		closed := testClockStart.Add(-time.Hour)
		quiz := f.seedQuiz(t, func(q *model.Quiz) { q.AvailableTo = &closed })
		_, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
		if !errors.Is(err, util.ErrQuizNotAvailable) {
			t.Errorf("err = %v, want ErrQuizNotAvailable", err)
		}
	})

	t.Run("unknown quiz", func(t *testing.T) {
		_, err := f.svc.StartOrResume(context.Background(), 9999, studentID)
		if !errors.Is(err, util.ErrQuizNotFound) {
			t.Errorf("err = %v, want ErrQuizNotFound", err)
		}
	})
}

func TestStartAttemptLimit(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, func(q *model.Quiz) { q.AttemptsAllowed = 1 })

	first, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(context.Background(), first.AttemptID, studentID, 60, false); err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if !errors.Is(err, util.ErrAttemptLimitExceeded) {
		t.Fatalf("err = %v, want ErrAttemptLimitExceeded", err)
	}
}

func TestStartRetakeIncrementsAttemptNumber(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	first, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(context.Background(), first.AttemptID, studentID, 30, false); err != nil {
		t.Fatal(err)
	}

	second, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	if second.AttemptNumber != 2 || second.AttemptID == first.AttemptID {
		t.Fatalf("retake = %+v, want attempt number 2", second)
	}
}

func TestSubmitGradesAttempt(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}

	// Answer the first question right, the second wrong, leave the third blank.
	q0, q1 := start.Questions[0].ID, start.Questions[1].ID
	right := grading.Response{SelectedOptionIDs: []uint{f.correctOption(t, q0)}}
	if err := f.answers.Record(context.Background(), start.AttemptID, studentID, q0, right); err != nil {
		t.Fatal(err)
	}
	var wrongOpt model.Option
	if err := f.db.Where("question_id = ? AND is_correct = ?", q1, false).First(&wrongOpt).Error; err != nil {
		t.Fatal(err)
	}
	wrong := grading.Response{SelectedOptionIDs: []uint{wrongOpt.ID}}
	if err := f.answers.Record(context.Background(), start.AttemptID, studentID, q1, wrong); err != nil {
		t.Fatal(err)
	}

	f.advance(8 * time.Minute)
	attempt, err := f.svc.Submit(context.Background(), start.AttemptID, studentID, 777, false)
	if err != nil {
		t.Fatal(err)
	}

	if attempt.Status != model.AttemptGraded {
		t.Errorf("status = %s, want graded", attempt.Status)
	}
	if attempt.TotalScore != 5 || attempt.MaxScore != 15 {
		t.Errorf("score = %v/%v, want 5/15", attempt.TotalScore, attempt.MaxScore)
	}
	if got, want := attempt.Percentage, 5.0/15.0*100; got < want-1e-9 || got > want+1e-9 {
		t.Errorf("percentage = %v, want %v", got, want)
	}
	if attempt.TimeTakenSeconds != 8*60 {
		t.Errorf("server time taken = %d, want %d", attempt.TimeTakenSeconds, 8*60)
	}
	if attempt.ReportedTimeSeconds != 777 {
		t.Errorf("reported time = %d, want 777", attempt.ReportedTimeSeconds)
	}
	if attempt.AutoSubmitted {
		t.Error("on-time submission marked auto_submitted")
	}
	if attempt.EndTime == nil || !attempt.EndTime.Equal(f.now) {
		t.Errorf("end time = %v, want %v", attempt.EndTime, f.now)
	}
}

func TestSubmitTwice(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(context.Background(), start.AttemptID, studentID, 10, false); err != nil {
		t.Fatal(err)
	}
	_, err = f.svc.Submit(context.Background(), start.AttemptID, studentID, 10, false)
	if !errors.Is(err, util.ErrAttemptClosed) {
		t.Fatalf("err = %v, want ErrAttemptClosed", err)
	}
}

func TestSubmitPastLimitMarksAutoSubmitted(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, func(q *model.Quiz) { q.TimeLimitMinutes = 10 })

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}

	// Past the limit plus the default grace.
	f.advance(10*time.Minute + time.Minute)
	attempt, err := f.svc.Submit(context.Background(), start.AttemptID, studentID, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if !attempt.AutoSubmitted {
		t.Error("overdue submission not marked auto_submitted")
	}
	if attempt.Status != model.AttemptGraded {
		t.Errorf("status = %s, want graded", attempt.Status)
	}
}

func TestSubmitWithinGraceNotAutoSubmitted(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, func(q *model.Quiz) { q.TimeLimitMinutes = 10 })

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}

	f.advance(10*time.Minute + 10*time.Second)
	attempt, err := f.svc.Submit(context.Background(), start.AttemptID, studentID, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.AutoSubmitted {
		t.Error("submission inside grace window marked auto_submitted")
	}
}

func TestSubmitWithManualQuestionPendsReview(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)
	essay := f.addQuestion(t, quiz.ID, model.QuestionEssay, 10, 4)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	resp := grading.Response{Text: "The water cycle begins with evaporation."}
	if err := f.answers.Record(context.Background(), start.AttemptID, studentID, essay.ID, resp); err != nil {
		t.Fatal(err)
	}

	attempt, err := f.svc.Submit(context.Background(), start.AttemptID, studentID, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.Status != model.AttemptPendingReview {
		t.Fatalf("status = %s, want pending_review", attempt.Status)
	}
	if attempt.MaxScore != 25 {
		t.Errorf("max score = %v, want 25", attempt.MaxScore)
	}
}

func TestAnswerLastWriteWins(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	qid := start.Questions[0].ID

	var opts []model.Option
	if err := f.db.Where("question_id = ?", qid).Order("order_number").Find(&opts).Error; err != nil {
		t.Fatal(err)
	}
	first := grading.Response{SelectedOptionIDs: []uint{opts[1].ID}}
	second := grading.Response{SelectedOptionIDs: []uint{opts[2].ID}}
	if err := f.answers.Record(context.Background(), start.AttemptID, studentID, qid, first); err != nil {
		t.Fatal(err)
	}
	if err := f.answers.Record(context.Background(), start.AttemptID, studentID, qid, second); err != nil {
		t.Fatal(err)
	}

	resumed, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	saved := resumed.Answers[qid]
	if len(saved.SelectedOptionIDs) != 1 || saved.SelectedOptionIDs[0] != opts[2].ID {
		t.Fatalf("saved = %+v, want latest selection %d", saved, opts[2].ID)
	}

	var count int64
	if err := f.db.Model(&model.Answer{}).Where("attempt_id = ?", start.AttemptID).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("answer rows = %d, want 1", count)
	}
}

func TestAnswerRejectedAfterClose(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	qid := start.Questions[0].ID
	if _, err := f.svc.Submit(context.Background(), start.AttemptID, studentID, 0, false); err != nil {
		t.Fatal(err)
	}

	err = f.answers.Record(context.Background(), start.AttemptID, studentID, qid,
		grading.Response{SelectedOptionIDs: []uint{f.correctOption(t, qid)}})
	if !errors.Is(err, util.ErrAttemptClosed) {
		t.Fatalf("err = %v, want ErrAttemptClosed", err)
	}
}

func TestAnswerUnknownQuestionRejected(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	err = f.answers.Record(context.Background(), start.AttemptID, studentID, 12345, grading.Response{Text: "x"})
	if !errors.Is(err, util.ErrQuestionNotInAttempt) {
		t.Fatalf("err = %v, want ErrQuestionNotInAttempt", err)
	}
}

func TestToggleFlag(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	qid := start.Questions[1].ID

	flagged, err := f.answers.ToggleFlag(context.Background(), start.AttemptID, studentID, qid)
	if err != nil || !flagged {
		t.Fatalf("first toggle = %v, %v; want flagged", flagged, err)
	}

	resumed, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	if len(resumed.Flags) != 1 || resumed.Flags[0] != qid {
		t.Fatalf("flags = %v, want [%d]", resumed.Flags, qid)
	}

	flagged, err = f.answers.ToggleFlag(context.Background(), start.AttemptID, studentID, qid)
	if err != nil || flagged {
		t.Fatalf("second toggle = %v, %v; want unflagged", flagged, err)
	}
}

func TestFileUploadAnswer(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)
	upload := f.addQuestion(t, quiz.ID, model.QuestionFileUpload, 10, 4)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}

	content := "my lab report"
	ref, err := f.answers.RecordFile(context.Background(), start.AttemptID, studentID, upload.ID,
		"report.pdf", strings.NewReader(content), int64(len(content)), "application/pdf")
	if err != nil {
		t.Fatal(err)
	}
	if ref == "" {
		t.Fatal("empty file reference")
	}

	attempt, err := f.svc.Submit(context.Background(), start.AttemptID, studentID, 0, false)
	if err != nil {
		t.Fatal(err)
	}
	if attempt.Status != model.AttemptPendingReview {
		t.Fatalf("status = %s, want pending_review", attempt.Status)
	}

	results, err := f.svc.Results(context.Background(), start.AttemptID, studentID)
	if err != nil {
		t.Fatal(err)
	}
	var found bool
	for _, a := range results.Answers {
		if a.QuestionID == upload.ID {
			found = true
			if !a.NeedsReview || a.AnswerFile == "" {
				t.Errorf("upload answer = %+v, want review with file ref", a)
			}
		}
	}
	if !found {
		t.Error("upload question missing from results")
	}
}

func TestResults(t *testing.T) {
	f := newFixture(t)
	quiz := f.seedQuiz(t, nil)

	start, err := f.svc.StartOrResume(context.Background(), quiz.ID, studentID)
	if err != nil {
		t.Fatal(err)
	}

	t.Run("closed only", func(t *testing.T) {
		_, err := f.svc.Results(context.Background(), start.AttemptID, studentID)
		if !errors.Is(err, util.ErrAttemptClosed) {
			t.Errorf("err = %v, want ErrAttemptClosed", err)
		}
	})

	qid := start.Questions[0].ID
	resp := grading.Response{SelectedOptionIDs: []uint{f.correctOption(t, qid)}}
	if err := f.answers.Record(context.Background(), start.AttemptID, studentID, qid, resp); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Submit(context.Background(), start.AttemptID, studentID, 0, false); err != nil {
		t.Fatal(err)
	}

	t.Run("owner sees graded answers", func(t *testing.T) {
		got, err := f.svc.Results(context.Background(), start.AttemptID, studentID)
		if err != nil {
			t.Fatal(err)
		}
		if got.TotalScore != 5 || got.MaxScore != 15 || len(got.Answers) != 3 {
			t.Fatalf("results = %+v", got)
		}
		for _, a := range got.Answers {
			if a.QuestionID == qid && (!a.Answered || !a.IsCorrect || a.PointsAwarded != 5) {
				t.Errorf("graded answer = %+v", a)
			}
			if a.QuestionID != qid && a.Answered {
				t.Errorf("unanswered question marked answered: %+v", a)
			}
		}
	})

	t.Run("other student denied", func(t *testing.T) {
		_, err := f.svc.Results(context.Background(), start.AttemptID, studentID+1)
		if !errors.Is(err, util.ErrAttemptNotFound) {
			t.Errorf("err = %v, want ErrAttemptNotFound", err)
		}
	})
}
