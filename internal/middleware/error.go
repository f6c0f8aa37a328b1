package middleware

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/pwcheck/pkg/errors"
)

// APIPrefix marks routes that get JSON error bodies; everything else gets
// plain text.
const APIPrefix = "/api/"

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`
}

// ErrorHandler renders the last error attached with c.Error. Internal
// error details are logged but never sent to the client.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		if c.Writer.Written() {
			return
		}

		status := http.StatusInternalServerError
		message := http.StatusText(status)

		var appErr *errors.AppError
		if stderrors.As(c.Errors.Last().Err, &appErr) {
			status = appErr.StatusCode()
			if status < http.StatusInternalServerError {
				message = appErr.Message
			} else {
				message = http.StatusText(status)
			}
		}

		abort(c, status, message)
	}
}

func abort(c *gin.Context, status int, message string) {
	if strings.HasPrefix(c.Request.URL.Path, APIPrefix) {
		c.AbortWithStatusJSON(status, ErrorResponse{
			Code:    status,
			Message: message,
			TraceID: c.GetString(ContextRequestID),
		})
		return
	}
	c.Abort()
	c.String(status, message)
}
