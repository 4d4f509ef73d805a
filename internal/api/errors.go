package api

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"github.com/aspirant2018/niqatech-backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// errorStatus maps service errors to HTTP status codes.
func errorStatus(err error) int {
	var verr errors.ValidationError
	switch {
	case stderrors.As(err, &verr):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrEmptyFile),
		stderrors.Is(err, errors.ErrInvalidFileFormat),
		stderrors.Is(err, errors.ErrCorruptWorkbook),
		stderrors.Is(err, errors.ErrInvalidGradeValue):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case stderrors.Is(err, errors.ErrFileAlreadyExists),
		stderrors.Is(err, errors.ErrUserExists):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrNotFound),
		stderrors.Is(err, errors.ErrFileNotFound),
		stderrors.Is(err, errors.ErrSheetNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrUnauthorized),
		stderrors.Is(err, errors.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrProfileIncomplete):
		return http.StatusForbidden
	case stderrors.Is(err, errors.ErrLockNotAcquired):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func (h *Handler) respondError(c *gin.Context, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}
