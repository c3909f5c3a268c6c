// Package response writes the service's HTTP response shapes and maps
// application errors onto them.
package response

import (
	"net/http"

	"runbox/pkg/errors"
	"runbox/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ExecuteResponse is the wire shape of an execution outcome. Failure
// responses reuse it with the error field set.
type ExecuteResponse struct {
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	ExecutionTime int64  `json:"executionTime"`
	ExitCode      int    `json:"exitCode"`
	Timeout       bool   `json:"timeout,omitempty"`
	Truncated     bool   `json:"truncated,omitempty"`
	Error         string `json:"error,omitempty"`
}

// OK writes a 200 execution outcome.
func OK(c *gin.Context, resp ExecuteResponse) {
	c.JSON(http.StatusOK, resp)
}

// AbortWithError writes the error as an ExecuteResponse with the status
// derived from its code, and stops the handler chain.
func AbortWithError(c *gin.Context, err error) {
	AbortWithOutput(c, err, ExecuteResponse{})
}

// AbortWithOutput writes an error response that keeps any partial output
// captured before the failure. Only infrastructure faults (5xx) are logged as
// errors; everything else is a routine outcome.
func AbortWithOutput(c *gin.Context, err error, partial ExecuteResponse) {
	customErr := errors.GetError(err)
	status := customErr.Code.HTTPStatus()

	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed",
			zap.Int("code", int(customErr.Code)),
			zap.String("message", customErr.Error()),
			zap.Any("details", customErr.Details),
		)
	} else {
		logger.Info(c.Request.Context(), "request rejected",
			zap.Int("code", int(customErr.Code)),
			zap.String("message", customErr.Error()),
		)
	}

	partial.ExitCode = -1
	partial.Timeout = customErr.Code == errors.TimeLimitExceeded
	partial.Error = customErr.Error()
	c.AbortWithStatusJSON(status, partial)
}
