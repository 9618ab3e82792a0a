package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"marketplace_ops_backend/internal/middleware"
	"marketplace_ops_backend/internal/models"
	"marketplace_ops_backend/internal/services"
	"marketplace_ops_backend/pkg/utils"

	"github.com/gin-gonic/gin"
)

// actorFromContext builds the acting operator from the claims set by AuthMiddleware.
func actorFromContext(c *gin.Context) models.Actor {
	actor := models.Actor{
		Username: c.GetString(middleware.ContextUsername),
		FullName: c.GetString(middleware.ContextFullName),
		Role:     c.GetString(middleware.ContextUserRole),
	}
	if id, ok := c.Get(middleware.ContextUserID); ok {
		if v, ok := id.(int64); ok {
			actor.UserID = v
		}
	}
	return actor
}

// parseIDParam reads a positive int64 path parameter or answers 400.
func parseIDParam(c *gin.Context, name, label string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+label+" format.", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

func respondBindError(c *gin.Context, op string, err error) {
	utils.LogError(err, op+": Failed to bind request")
	utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload", err.Error()))
}

// respondServiceError maps service errors to HTTP responses. Unknown errors become 500
// with the cause kept out of the body.
func respondServiceError(c *gin.Context, op string, err error, fallback string) {
	status, code := http.StatusInternalServerError, utils.ErrCodeInternalServerError
	switch {
	case errors.Is(err, services.ErrForbidden):
		status, code = http.StatusForbidden, utils.ErrCodeForbidden
	case errors.Is(err, services.ErrWaveNotFound),
		errors.Is(err, services.ErrWaveOrderNotFound),
		errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrNothingToPack),
		errors.Is(err, services.ErrPickSessionNotFound),
		errors.Is(err, services.ErrUserNotFound):
		status, code = http.StatusNotFound, utils.ErrCodeNotFound
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrInvalidWaveStatus),
		errors.Is(err, services.ErrPickMismatch):
		status, code = http.StatusBadRequest, utils.ErrCodeValidationFailed
	case errors.Is(err, services.ErrWaveBusy),
		errors.Is(err, services.ErrOrderNotQueued),
		errors.Is(err, services.ErrInsufficientStock),
		errors.Is(err, services.ErrDocumentExists),
		errors.Is(err, services.ErrInvalidShipping),
		errors.Is(err, services.ErrPickSessionActive),
		errors.Is(err, services.ErrPickStep):
		status, code = http.StatusConflict, utils.ErrCodeConflict
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrUserInactive):
		status, code = http.StatusUnauthorized, utils.ErrCodeUnauthorized
	}

	if status == http.StatusInternalServerError {
		utils.LogError(err, op+": unexpected error", map[string]interface{}{"request_id": c.GetString(utils.RequestIDKey)})
		utils.RespondInternalError(c, fallback)
		return
	}
	utils.LogWarn(op+": request rejected", map[string]interface{}{"status": status, "error": err.Error()})
	utils.RespondWithError(c, utils.NewAPIError(status, code, errorMessage(status, fallback), err.Error()))
}

func errorMessage(status int, fallback string) string {
	switch status {
	case http.StatusForbidden:
		return "You do not have permission to perform this action."
	case http.StatusNotFound:
		return "Resource not found."
	case http.StatusBadRequest:
		return "Input validation failed."
	case http.StatusConflict:
		return "Request conflicts with the current state."
	case http.StatusUnauthorized:
		return "Authentication failed."
	}
	return fallback
}

// paged wraps list responses.
func paged(data interface{}, total, page, pageSize int) gin.H {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return gin.H{
		"data":      data,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	}
}
