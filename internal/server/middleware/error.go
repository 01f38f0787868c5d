package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nulzo/completion-gateway/internal/logger"
	"github.com/nulzo/completion-gateway/pkg/api"
	"go.uber.org/zap"
)

// ErrorHandler is a custom error handling middleware that handles all errors returned by handlers
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// check if there is an error, if so, get the last error
		if len(c.Errors) > 0 {
			err := c.Errors.Last().Err

			// first, we need to check if it's a custom error
			var problem *api.Problem
			if errors.As(err, &problem) {
				// if there is an internal log attached, log it
				if problem.Log != nil {
					logger.Error("Internal error", zap.Error(problem.Log))
				}

				// RFC 9457 dictates the json is at the root
				c.JSON(problem.Status, problem)
				c.Abort()
				return
			}

			var appErr *api.Error
			if errors.As(err, &appErr) {
				if appErr.Log != nil {
					logger.Error("Internal error", zap.Error(appErr.Log))
				}
				c.JSON(appErr.Code, gin.H{"error": appErr.Message})
				c.Abort()
				return
			}

			// at this point it's an unknown error.
			// we just should to 500 for catch-all server error
			logger.Error("Unhandled error", zap.Error(err))

			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "An unexpected error occurred.",
			})

			// we want to prevent the other middleware from writing to the response
			c.Abort()
		}
	}
}
