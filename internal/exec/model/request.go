// Package model defines the execution request shape shared by the HTTP layer
// and the orchestrator.
package model

// ExecutionRequest is one normalized request to run user code. Stdin is
// optional; Code and Language are mandatory.
type ExecutionRequest struct {
	Code     string `json:"code"`
	Language string `json:"language"`
	Stdin    string `json:"input"`
}
