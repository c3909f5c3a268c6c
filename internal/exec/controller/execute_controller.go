// Package controller exposes the execution HTTP endpoints.
package controller

import (
	"context"
	"net/http"
	"time"

	"runbox/internal/exec/model"
	"runbox/internal/exec/result"
	appErr "runbox/pkg/errors"
	"runbox/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// Executor is the orchestrator surface the controller needs.
type Executor interface {
	Execute(ctx context.Context, req model.ExecutionRequest) (result.ExecutionResult, error)
	Languages() []string
}

// ExecuteController handles code execution requests.
type ExecuteController struct {
	svc Executor
}

// NewExecuteController creates a new controller.
func NewExecuteController(svc Executor) *ExecuteController {
	return &ExecuteController{svc: svc}
}

// Execute runs submitted code and returns its outcome. Compile errors,
// runtime errors and timeouts are 200s with the outcome encoded; only
// malformed requests and infrastructure faults map to 4xx/5xx.
func (h *ExecuteController) Execute(c *gin.Context) {
	var req model.ExecutionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.AbortWithError(c, appErr.BadRequest("invalid request body"))
		return
	}

	res, err := h.svc.Execute(c.Request.Context(), req)
	if err != nil {
		// Output captured before a mid-run failure still belongs to the client.
		response.AbortWithOutput(c, err, response.ExecuteResponse{
			Stdout:        res.Stdout,
			Stderr:        res.Stderr,
			ExecutionTime: res.DurationMs,
			Truncated:     res.Truncated(),
		})
		return
	}

	resp := response.ExecuteResponse{
		Stdout:        res.Stdout,
		Stderr:        res.Stderr,
		ExecutionTime: res.DurationMs,
		ExitCode:      res.ExitCode,
		Timeout:       res.TimedOut,
		Truncated:     res.Truncated(),
	}
	if res.Kind == result.KindTimeout {
		resp.Error = appErr.TimeLimitExceeded.Message()
	}
	response.OK(c, resp)
}

// Languages enumerates the supported language ids.
func (h *ExecuteController) Languages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"languages": h.svc.Languages()})
}

// Health reports liveness.
func (h *ExecuteController) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
