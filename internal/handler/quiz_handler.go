package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/quizly-backend/internal/middleware"
	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/response"
	"github.com/stemsi/quizly-backend/internal/service"
	"github.com/stemsi/quizly-backend/internal/validator"
)

// QuizHandler handles quiz endpoints.
type QuizHandler struct {
	quizService    *service.QuizService
	attemptService *service.AttemptService
}

// NewQuizHandler creates a new QuizHandler.
func NewQuizHandler(quizService *service.QuizService, attemptService *service.AttemptService) *QuizHandler {
	return &QuizHandler{quizService: quizService, attemptService: attemptService}
}

// ListQuizzes godoc
// GET /quiz/all
// Returns every quiz, newest first, without questions.
func (h *QuizHandler) ListQuizzes(c *gin.Context) {
	quizzes, err := h.quizService.ListQuizzes(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quizzes": quizzes})
}

// CreateQuiz godoc
// POST /quiz/create
// Persists a quiz owned by the authenticated user under a fresh share code.
func (h *QuizHandler) CreateQuiz(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.CreateQuiz(c.Request.Context(), user.ID, req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"quiz": quiz})
}

// GenerateQuiz godoc
// POST /quiz/create/ai
// Generates questions for a topic. The result is returned, not saved.
func (h *QuizHandler) GenerateQuiz(c *gin.Context) {
	var req model.GenerateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.quizService.GenerateWithAI(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, model.GenerateQuizResponse{
		Success: true,
		Result:  model.GeneratedResult{Questions: questions},
	})
}

// GetQuiz godoc
// GET /quiz/:id
func (h *QuizHandler) GetQuiz(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	quiz, err := h.quizService.GetQuiz(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// GetQuizByShareCode godoc
// GET /quiz/share/:code
func (h *QuizHandler) GetQuizByShareCode(c *gin.Context) {
	quiz, err := h.quizService.GetQuizByShareCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// SubmitQuiz godoc
// POST /quiz/:id/submit
// Scores answers against the stored quiz. Authentication is optional and
// only decides whether the attempt counts for the leaderboard.
func (h *QuizHandler) SubmitQuiz(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.SubmitRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	var userID *uuid.UUID
	if user := middleware.GetUser(c); user != nil {
		userID = &user.ID
	}

	result, err := h.attemptService.ScoreSubmission(c.Request.Context(), id, userID, req.Answers)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, result)
}

// AppendQuestions godoc
// POST /quiz/:id/questions
// Adds questions to a quiz. Only its creator may do so.
func (h *QuizHandler) AppendQuestions(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req model.AppendQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizService.AppendQuestions(c.Request.Context(), user.ID, id, req.Questions)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"quiz": quiz})
}

// Leaderboard godoc
// GET /quiz/:id/leaderboard?limit=N
func (h *QuizHandler) Leaderboard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"limit": "limit must be a number"})
			return
		}
		limit = n
	}

	entries, err := h.attemptService.Leaderboard(c.Request.Context(), id, limit)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"leaderboard": entries})
}
