package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"school_quiz_backend/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// QuestionRepository loads question banks. The bank is read-only to the quiz
// engine (authoring happens elsewhere), so reads go through a redis
// cache-aside layer with a short TTL.
type QuestionRepository struct {
	DB       *gorm.DB
	RDB      *redis.Client
	CacheTTL time.Duration
}

func NewQuestionRepository(db *gorm.DB, rdb *redis.Client, cacheTTL time.Duration) *QuestionRepository {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &QuestionRepository{DB: db, RDB: rdb, CacheTTL: cacheTTL}
}

func bankCacheKey(quizID uint) string {
	return fmt.Sprintf("quiz:%d:bank", quizID)
}

// BankForQuiz returns the full question bank with options, options ordered by
// order_number.
func (r *QuestionRepository) BankForQuiz(ctx context.Context, quizID uint) ([]model.Question, error) {
	if r.RDB != nil {
		if raw, err := r.RDB.Get(ctx, bankCacheKey(quizID)).Bytes(); err == nil {
			var cached []model.Question
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	questions, err := r.loadBank(quizID)
	if err != nil {
		return nil, err
	}

	if r.RDB != nil {
		if raw, err := json.Marshal(questions); err == nil {
			r.RDB.Set(ctx, bankCacheKey(quizID), raw, r.CacheTTL)
		}
	}
	return questions, nil
}

func (r *QuestionRepository) loadBank(quizID uint) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("quiz_options.order_number ASC")
		}).
		Where("quiz_id = ?", quizID).
		Order("order_number ASC").
		Find(&questions).Error
	return questions, err
}

// ByIDs loads questions with options for a materialized attempt, keyed by id.
func (r *QuestionRepository) ByIDs(ids []uint) (map[uint]model.Question, error) {
	if len(ids) == 0 {
		return map[uint]model.Question{}, nil
	}
	var questions []model.Question
	err := r.DB.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("quiz_options.order_number ASC")
		}).
		Where("id IN ?", ids).
		Find(&questions).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uint]model.Question, len(questions))
	for _, q := range questions {
		out[q.ID] = q
	}
	return out, nil
}
