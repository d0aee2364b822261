package util

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrPermissionDenied     = errors.New("permission denied")
	ErrQuizNotFound         = errors.New("quiz not found")
	ErrQuizNotAvailable     = errors.New("quiz not available")
	ErrAttemptLimitExceeded = errors.New("attempt limit exceeded")
	ErrNoQuestionsAvailable = errors.New("no questions available")
	ErrAttemptNotFound      = errors.New("attempt not found")
	ErrAttemptClosed        = errors.New("attempt already closed")
	ErrQuestionNotInAttempt = errors.New("question not part of attempt")
)
