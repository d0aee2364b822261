package controller

import (
	"errors"
	"net/http"

	"school_quiz_backend/internal/grading"
	"school_quiz_backend/internal/service"
	"school_quiz_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
	AnswerService  *service.AnswerService
}

func NewAttemptController(attemptService *service.AttemptService, answerService *service.AnswerService) *AttemptController {
	return &AttemptController{
		AttemptService: attemptService,
		AnswerService:  answerService,
	}
}

// respondQuizError translates the quiz error taxonomy into HTTP responses.
func respondQuizError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrQuizNotFound), errors.Is(err, util.ErrAttemptNotFound):
		util.NotFound(ctx)
	case errors.Is(err, util.ErrQuizNotAvailable):
		util.Error(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, util.ErrAttemptLimitExceeded),
		errors.Is(err, util.ErrAttemptClosed),
		errors.Is(err, util.ErrNoQuestionsAvailable):
		util.Error(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, util.ErrQuestionNotInAttempt):
		util.BadRequest(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

// @Summary Start or resume a quiz attempt
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "quiz id"
// @Success 200 {object} util.Response
// @Router /api/quizzes/{id}/attempts/start [post]
func (c *AttemptController) Start(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	quizID := util.MustParseUint(ctx.Param("id"))
	if quizID == 0 {
		util.BadRequest(ctx, "invalid quiz id")
		return
	}

	result, err := c.AttemptService.StartOrResume(ctx.Request.Context(), quizID, user.UserID)
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

type recordAnswerRequest struct {
	QuestionID uint             `json:"questionId" binding:"required"`
	Answer     grading.Response `json:"answer"`
}

// @Summary Save the answer for one question (autosave, last write wins)
// @Tags attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers [post]
func (c *AttemptController) RecordAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID := util.MustParseUint(ctx.Param("id"))
	if attemptID == 0 {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}
	var req recordAnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	if err := c.AnswerService.Record(ctx.Request.Context(), attemptID, user.UserID, req.QuestionID, req.Answer); err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"saved": true})
}

// @Summary Upload a file answer
// @Tags attempts
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param id path int true "attempt id"
// @Param questionId formData int true "question id"
// @Param file formData file true "answer file"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/answers/upload [post]
func (c *AttemptController) UploadAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID := util.MustParseUint(ctx.Param("id"))
	questionID := util.MustParseUint(ctx.PostForm("questionId"))
	if attemptID == 0 || questionID == 0 {
		util.BadRequest(ctx, "invalid attempt or question id")
		return
	}

	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = util.MimeOctetStream
	}

	ref, err := c.AnswerService.RecordFile(ctx.Request.Context(), attemptID, user.UserID, questionID,
		fileHeader.Filename, file, fileHeader.Size, contentType)
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"fileRef": ref})
}

type toggleFlagRequest struct {
	QuestionID uint `json:"questionId" binding:"required"`
}

// @Summary Toggle the review flag on a question
// @Tags attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/flag [post]
func (c *AttemptController) ToggleFlag(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID := util.MustParseUint(ctx.Param("id"))
	if attemptID == 0 {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}
	var req toggleFlagRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	flagged, err := c.AnswerService.ToggleFlag(ctx.Request.Context(), attemptID, user.UserID, req.QuestionID)
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"flagged": flagged})
}

type submitRequest struct {
	TimeTakenSeconds int  `json:"timeTakenSeconds"`
	AutoSubmitted    bool `json:"autoSubmitted"`
}

// @Summary Submit an attempt for grading
// @Tags attempts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/submit [post]
func (c *AttemptController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID := util.MustParseUint(ctx.Param("id"))
	if attemptID == 0 {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}
	var req submitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	attempt, err := c.AttemptService.Submit(ctx.Request.Context(), attemptID, user.UserID, req.TimeTakenSeconds, req.AutoSubmitted)
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary Results of a closed attempt
// @Tags attempts
// @Produce json
// @Security BearerAuth
// @Param id path int true "attempt id"
// @Success 200 {object} util.Response
// @Router /api/attempts/{id}/results [get]
func (c *AttemptController) Results(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	attemptID := util.MustParseUint(ctx.Param("id"))
	if attemptID == 0 {
		util.BadRequest(ctx, "invalid attempt id")
		return
	}

	result, err := c.AttemptService.Results(ctx.Request.Context(), attemptID, user.UserID)
	if err != nil {
		respondQuizError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
