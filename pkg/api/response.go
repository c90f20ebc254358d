package api

import (
	"errors"
	"net/http"

	"fleetmon/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// respondError sends a structured JSON error response
func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": gin.H{
			"message": message,
			"status":  code,
		},
	})
	c.Abort()
}

// respondAppError maps a service error onto the HTTP envelope. Storage
// failures are surfaced as a generic 500 so internal detail never reaches
// device clients; everything else carries its message.
func respondAppError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, apperr.ErrInvalidSecret),
		errors.Is(err, apperr.ErrMalformed),
		errors.Is(err, apperr.ErrBadSignature),
		errors.Is(err, apperr.ErrExpired):
		respondError(c, http.StatusUnauthorized, err.Error())
	case errors.Is(err, apperr.ErrValidation):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperr.ErrConflict):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, apperr.ErrForbidden):
		respondError(c, http.StatusForbidden, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "internal error")
	}
}

// SecurityHeaders returns a middleware that sets security headers
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Next()
	}
}
