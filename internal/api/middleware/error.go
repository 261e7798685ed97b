package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/receiptwise/receiptwise-backend-go/pkg/errors"
	"github.com/receiptwise/receiptwise-backend-go/pkg/utils"
)

// ErrorHandlingMiddleware recovers from panics and converts handler errors
// into standardized JSON responses
func ErrorHandlingMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"ip":          c.ClientIP(),
			"panic":       fmt.Sprintf("%v", recovered),
			"stack_trace": string(debug.Stack()),
		}).Error("Panic recovered in API middleware")

		utils.SendError(c, http.StatusInternalServerError, "Internal server error")
		c.Abort()
	})
}

// ErrorResponseMiddleware converts gin errors attached by handlers into a
// standardized error response
func ErrorResponseMiddleware(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status := errors.GetStatusCode(err)

		logger.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		}).WithError(err).Warn("Request failed")

		if appErr, ok := err.(*errors.AppError); ok {
			utils.SendError(c, appErr.Code, appErr.Message)
			return
		}
		utils.SendError(c, status, "Internal server error")
	}
}
