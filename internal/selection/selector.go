package selection

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"
	"time"

	"school_quiz_backend/internal/model"
	"school_quiz_backend/internal/util"
)

// Selector materializes the ordered question subset (and per-question option
// order) shown in one attempt. With RandomizePerStudent off, the draw is
// seeded from (quizID, priorAttemptCount) so every student's same-numbered
// attempt sees identical material; retakes get a fresh seed.
type Selector struct {
	entropy func() int64
}

func NewSelector() *Selector {
	return &Selector{entropy: func() int64 { return time.Now().UnixNano() }}
}

// NewSelectorWithEntropy pins the entropy source used for per-student draws.
func NewSelectorWithEntropy(entropy func() int64) *Selector {
	return &Selector{entropy: entropy}
}

// Select derives the ordered questions for one new attempt.
func (s *Selector) Select(quiz *model.Quiz, bank []model.Question, priorAttemptCount int) ([]model.Question, error) {
	total := len(bank)
	if total == 0 {
		return nil, util.ErrNoQuestionsAvailable
	}

	show := showCount(quiz, total)

	ordered := make([]model.Question, total)
	copy(ordered, bank)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OrderNumber < ordered[j].OrderNumber
	})

	var rng *rand.Rand
	if quiz.RandomizePerStudent {
		rng = rand.New(rand.NewSource(s.entropy()))
	} else {
		rng = rand.New(rand.NewSource(cohortSeed(quiz.ID, priorAttemptCount)))
	}

	var selected []model.Question
	if show >= total {
		selected = ordered
		if quiz.ShuffleQuestions {
			rng.Shuffle(len(selected), func(i, j int) {
				selected[i], selected[j] = selected[j], selected[i]
			})
		}
	} else {
		perm := rng.Perm(total)[:show]
		if !quiz.ShuffleQuestions {
			// keep bank order among the chosen subset
			sort.Ints(perm)
		}
		selected = make([]model.Question, 0, show)
		for _, idx := range perm {
			selected = append(selected, ordered[idx])
		}
	}

	for i := range selected {
		selected[i].Options = orderOptions(selected[i].Options, quiz.ShuffleOptions, rng)
	}
	return selected, nil
}

func showCount(quiz *model.Quiz, total int) int {
	switch quiz.SelectionMethod {
	case model.SelectionRandomCount:
		return clamp(quiz.QuestionsToShow, 1, total)
	case model.SelectionRandomPercentage:
		n := int(math.Round(float64(total) * float64(quiz.QuestionsPercentage) / 100))
		return clamp(n, 1, total)
	default:
		return total
	}
}

func orderOptions(options []model.Option, shuffle bool, rng *rand.Rand) []model.Option {
	out := make([]model.Option, len(options))
	copy(out, options)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OrderNumber < out[j].OrderNumber
	})
	if shuffle {
		rng.Shuffle(len(out), func(i, j int) {
			out[i], out[j] = out[j], out[i]
		})
	}
	return out
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// cohortSeed ties the pseudo-random draw to the quiz and the attempt ordinal,
// never to the student.
func cohortSeed(quizID uint, priorAttemptCount int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d:%d", quizID, priorAttemptCount)
	return int64(h.Sum64())
}
