// Package rpcerr classifies engine/collaborator errors into the structured
// error codes the RPC surface exposes, each tagged retryable or not.
package rpcerr

import (
	"encoding/json"
	"errors"

	"github.com/ironleaf/conductor/memory"
	"github.com/ironleaf/conductor/workspace"
)

// Code is one of the RPC surface's structured error codes.
type Code string

const (
	MemoryStoreError     Code = "MEMORY_STORE_ERROR"
	MemoryRetrieveError  Code = "MEMORY_RETRIEVE_ERROR"
	GitRepositoryInvalid Code = "GIT_REPOSITORY_INVALID"
	CircuitBreakerOpen   Code = "CIRCUIT_BREAKER_OPEN"
	ToolExecutionError   Code = "TOOL_EXECUTION_ERROR"
	UnexpectedError      Code = "UNEXPECTED_ERROR"
)

// Error is the structured error payload every RPC handler returns on
// failure, instead of a bare string.
type Error struct {
	Message   string         `json:"error"`
	Code      Code           `json:"code"`
	Retryable bool           `json:"retryable"`
	Tool      string         `json:"tool"`
	Context   map[string]any `json:"context,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// JSON marshals e for inclusion in a tool result's error text.
func (e *Error) JSON() string {
	data, err := json.Marshal(e)
	if err != nil {
		return e.Message
	}
	return string(data)
}

// Classify wraps err with the tool name and an inferred code: circuit-
// breaker trips and invalid-repository errors get their specific codes,
// everything else falls back to TOOL_EXECUTION_ERROR.
func Classify(tool string, err error) *Error {
	switch {
	case errors.Is(err, memory.ErrCircuitOpen):
		return &Error{Message: err.Error(), Code: CircuitBreakerOpen, Retryable: true, Tool: tool}
	case errors.Is(err, workspace.ErrInvalidRepository):
		return &Error{Message: err.Error(), Code: GitRepositoryInvalid, Retryable: false, Tool: tool}
	default:
		return &Error{Message: err.Error(), Code: ToolExecutionError, Retryable: true, Tool: tool}
	}
}

// ClassifyMemoryStore wraps a memory-store Store() failure specifically
// (as opposed to Retrieve(), which uses ClassifyMemoryRetrieve), since
// both surface through the same ErrCircuitOpen sentinel but carry
// different codes when the breaker is closed.
func ClassifyMemoryStore(tool string, err error) *Error {
	if errors.Is(err, memory.ErrCircuitOpen) {
		return &Error{Message: err.Error(), Code: CircuitBreakerOpen, Retryable: true, Tool: tool}
	}
	return &Error{Message: err.Error(), Code: MemoryStoreError, Retryable: true, Tool: tool}
}

// ClassifyMemoryRetrieve is ClassifyMemoryStore's counterpart for Retrieve().
func ClassifyMemoryRetrieve(tool string, err error) *Error {
	if errors.Is(err, memory.ErrCircuitOpen) {
		return &Error{Message: err.Error(), Code: CircuitBreakerOpen, Retryable: true, Tool: tool}
	}
	return &Error{Message: err.Error(), Code: MemoryRetrieveError, Retryable: true, Tool: tool}
}

// Unexpected wraps an error the caller cannot classify any further (a
// panic recovery boundary, an invariant violation).
func Unexpected(tool string, err error) *Error {
	return &Error{Message: err.Error(), Code: UnexpectedError, Retryable: false, Tool: tool}
}
