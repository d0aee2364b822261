package repository

import (
	"fmt"
	"strings"
	"testing"

	"school_quiz_backend/internal/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newAnswerDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.Answer{}, &model.AnswerOptionSelection{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestUpsertLastWriteWins(t *testing.T) {
	db := newAnswerDB(t)
	r := NewAnswerRepository(db)

	first := &model.Answer{AttemptID: 1, QuestionID: 2, AnswerText: `{"selectedOptionIds":[5]}`, MaxPoints: 5}
	if err := r.Upsert(first, []uint{5}); err != nil {
		t.Fatal(err)
	}
	second := &model.Answer{AttemptID: 1, QuestionID: 2, AnswerText: `{"selectedOptionIds":[7]}`, MaxPoints: 5}
	if err := r.Upsert(second, []uint{7}); err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("second write landed on id %d, want %d", second.ID, first.ID)
	}

	var rows []model.Answer
	if err := db.Where("attempt_id = ? AND question_id = ?", 1, 2).Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("answer rows = %d, want 1", len(rows))
	}
	if rows[0].AnswerText != second.AnswerText {
		t.Errorf("answer text = %s, want %s", rows[0].AnswerText, second.AnswerText)
	}

	var selections []model.AnswerOptionSelection
	if err := db.Where("answer_id = ?", first.ID).Find(&selections).Error; err != nil {
		t.Fatal(err)
	}
	if len(selections) != 1 || selections[0].OptionID != 7 {
		t.Errorf("selections = %+v, want single option 7", selections)
	}
}

func TestUpsertConcurrentFirstWriteFallsBackToUpdate(t *testing.T) {
	db := newAnswerDB(t)

	winner := &model.Answer{AttemptID: 1, QuestionID: 2, AnswerText: `{"selectedOptionIds":[5]}`, MaxPoints: 5}
	if err := db.Create(winner).Error; err != nil {
		t.Fatal(err)
	}

	// Replay the loser of two concurrent first writes: its lookup ran before
	// the winner committed, so it goes straight to create and hits the unique
	// index. It must land on the winner's row, not surface an error.
	loser := &model.Answer{AttemptID: 1, QuestionID: 2, AnswerText: `{"selectedOptionIds":[9]}`, MaxPoints: 5}
	var stale model.Answer
	if err := writeAnswer(db, loser, &stale); err != nil {
		t.Fatalf("concurrent first write surfaced error: %v", err)
	}
	if loser.ID != winner.ID {
		t.Fatalf("loser landed on id %d, want winner's %d", loser.ID, winner.ID)
	}

	var rows []model.Answer
	if err := db.Where("attempt_id = ? AND question_id = ?", 1, 2).Find(&rows).Error; err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("answer rows = %d, want 1", len(rows))
	}
	if rows[0].AnswerText != loser.AnswerText {
		t.Errorf("answer text = %s, want the later write %s", rows[0].AnswerText, loser.AnswerText)
	}
}
