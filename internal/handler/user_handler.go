package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stemsi/quizly-backend/internal/config"
	"github.com/stemsi/quizly-backend/internal/middleware"
	"github.com/stemsi/quizly-backend/internal/model"
	"github.com/stemsi/quizly-backend/internal/response"
	"github.com/stemsi/quizly-backend/internal/service"
	"github.com/stemsi/quizly-backend/internal/validator"
)

// UserHandler handles account endpoints.
type UserHandler struct {
	authService    *service.AuthService
	attemptService *service.AttemptService
	cfg            *config.Config
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(authService *service.AuthService, attemptService *service.AttemptService, cfg *config.Config) *UserHandler {
	return &UserHandler{
		authService:    authService,
		attemptService: attemptService,
		cfg:            cfg,
	}
}

// Register godoc
// POST /users/register
// Creates an account, returns the public user with a token and sets the session cookie.
func (h *UserHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	h.setSessionCookie(c, resp.Token)
	response.Success(c, http.StatusCreated, resp)
}

// Login godoc
// POST /users/login
// Validates email + password, returns the public user with a token and sets the session cookie.
func (h *UserHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), req)
	if err != nil {
		fail(c, err)
		return
	}

	h.setSessionCookie(c, resp.Token)
	response.Success(c, http.StatusOK, resp)
}

// Profile godoc
// GET /users/profile
// Returns the authenticated user.
func (h *UserHandler) Profile(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"user": user.Public()})
}

// Attempts godoc
// GET /users/attempts
// Lists the authenticated user's recorded attempts, newest first.
func (h *UserHandler) Attempts(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	attempts, err := h.attemptService.UserAttempts(c.Request.Context(), user.ID)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"attempts": attempts})
}

// Logout godoc
// POST /users/logout
// Clears the session cookie. The presented token is revoked only when
// revocation is enabled.
func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), middleware.ExtractToken(c, false)); err != nil {
		// The cookie is cleared regardless.
		_ = c.Error(err)
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, "", -1, "/", "", h.cfg.CookieSecure, true)
	response.Success(c, http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (h *UserHandler) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.CookieName, token, int(h.cfg.CookieMaxAge.Seconds()), "/", "", h.cfg.CookieSecure, true)
}
