package routes

import (
	"errors"
	"log/slog"
	"net/http"

	"csv-share-access/internal/crypto"

	"github.com/gin-gonic/gin"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Code    []string `json:"code,omitempty"`
}

// integrityFailure reports stored data that failed authentication.
func integrityFailure(err error) bool {
	return errors.Is(err, crypto.ErrDecrypt)
}

// logLevel picks the level a failed request is logged at. Integrity failures
// and server errors are errors, refused access is a warning and the rest is
// ordinary client traffic.
func logLevel(err error, status int) slog.Level {
	switch {
	case integrityFailure(err), status >= http.StatusInternalServerError:
		return slog.LevelError
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// stopCodes collects the codes of every error on the request, without repeats.
func stopCodes(errs []*gin.Error) []string {
	var codes []string
	seen := make(map[string]bool)
	for _, e := range errs {
		for _, code := range GetErrorInfo(e.Err).StopCodes {
			if !seen[code] {
				seen[code] = true
				codes = append(codes, code)
			}
		}
	}
	return codes
}

// ErrorHandler logs the last error of a request and answers with its
// errorResponse, unless the handler already wrote a body.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		status := GetErrorStatus(err)
		codes := stopCodes(c.Errors)

		msg := "Request failed"
		if integrityFailure(err) {
			msg = "Integrity check failed"
		}
		slog.Log(c.Request.Context(), logLevel(err, status), msg,
			"error", err,
			"status", status,
			"code", codes,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"ip", c.ClientIP(),
		)

		if c.Writer.Written() {
			return
		}
		c.AbortWithStatusJSON(status, errorResponse{
			Message: GetErrorInfo(err).Message,
			Code:    codes,
		})
	}
}

// AbortWithError stops the handler chain and leaves err for ErrorHandler.
// The status is set without writing headers so ErrorHandler can still send
// the body.
func AbortWithError(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
	c.Status(GetErrorStatus(err))
}

// AbortWithHTTPError is AbortWithError with an explicit status and message.
func AbortWithHTTPError(c *gin.Context, statusCode int, err error, message string, codes ...string) {
	AbortWithError(c, NewHTTPError(statusCode, err, message, codes...))
}
