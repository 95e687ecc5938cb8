package middleware

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	pkgerrors "github.com/gantryio/gantry/pkg/errors"
	"github.com/gantryio/gantry/pkg/interfaces"
	"github.com/gantryio/gantry/pkg/logger"
)

// ErrorResponse is the JSON body of a translated error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func internalErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:   string(pkgerrors.ErrorTypeInternal),
		Message: "internal server error",
	}
}

// ErrorTranslation maps typed application errors attached through
// c.Error onto HTTP responses.
//
// It must run inside the transaction middleware so the translated status
// is what the boundary inspects. Server errors are logged with the
// request logger; client errors are not, their cause belongs to the
// caller.
func ErrorTranslation() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		status := statusFor(err)

		log := logger.FromContext(c.Request.Context())
		if status >= http.StatusInternalServerError {
			log.Error("request failed",
				interfaces.String("method", c.Request.Method),
				interfaces.String("path", c.Request.URL.Path),
				interfaces.Int("status", status),
				interfaces.Error(err))
		} else {
			log.Debug("request rejected",
				interfaces.String("method", c.Request.Method),
				interfaces.String("path", c.Request.URL.Path),
				interfaces.Int("status", status),
				interfaces.Error(err))
		}

		if c.Writer.Written() {
			return
		}
		c.JSON(status, ErrorResponse{
			Error:   codeFor(err),
			Message: messageFor(err, status),
		})
	}
}

// statusFor maps the error taxonomy onto HTTP status codes. Invalid
// state and anything unclassified count as server faults.
func statusFor(err error) int {
	switch {
	case pkgerrors.IsNotFound(err):
		return http.StatusNotFound
	case pkgerrors.IsConflict(err):
		return http.StatusConflict
	case pkgerrors.IsBadRequest(err):
		return http.StatusBadRequest
	case pkgerrors.IsUnauthorized(err):
		return http.StatusUnauthorized
	case pkgerrors.IsForbidden(err):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func codeFor(err error) string {
	var appErr *pkgerrors.AppError
	if stderrors.As(err, &appErr) {
		return string(appErr.Type)
	}
	return string(pkgerrors.ErrorTypeInternal)
}

// messageFor keeps server-fault details out of responses.
func messageFor(err error, status int) string {
	if status >= http.StatusInternalServerError {
		return "internal server error"
	}
	var appErr *pkgerrors.AppError
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
