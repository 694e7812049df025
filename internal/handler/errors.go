package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/stemsi/quizly-backend/internal/response"
	"github.com/stemsi/quizly-backend/internal/service"
)

// fail maps a service error onto the response envelope. Unclassified
// errors are attached to the context for the request logger and reach
// the client only as INTERNAL_ERROR.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrQuizNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrNotQuizOwner):
		response.Fail(c, http.StatusForbidden, response.ErrNotQuizOwner)
	case errors.Is(err, service.ErrInvalidQuestion):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"questions": err.Error()})
	case errors.Is(err, service.ErrInvalidDifficulty):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{"difficulty": err.Error()})
	case errors.Is(err, service.ErrEmailTaken):
		response.Fail(c, http.StatusBadRequest, response.ErrEmailTaken)
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
	case errors.Is(err, service.ErrGeneration):
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrGenerationFailed)
	case errors.Is(err, service.ErrShareCodeExhausted):
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrShareCodeExhausted)
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// parseID reads a uuid path parameter, answering 400 when malformed.
func parseID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
