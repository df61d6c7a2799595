package tool

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDefinitionNotFound is returned when no resident definition has the id.
	ErrDefinitionNotFound = errors.New("tool: definition not found")
	// ErrDuplicateDefinition is returned when adding an id that is already resident.
	ErrDuplicateDefinition = errors.New("tool: duplicate definition")
	// ErrTornDown is returned by operations on a registry after Teardown.
	ErrTornDown = errors.New("tool: registry torn down")
	// ErrInvalidPayload is returned when a command payload cannot be decoded.
	ErrInvalidPayload = errors.New("tool: invalid payload")
	// ErrInvalidArgument is returned when a command argument is not a string, number or bool.
	ErrInvalidArgument = errors.New("tool: invalid argument")
	// ErrUnknownRunner is returned when a manifest names a runner with no factory.
	ErrUnknownRunner = errors.New("tool: unknown runner")
)

const (
	// ErrorCodeNotFound is used when the plugin id has no resident definition.
	ErrorCodeNotFound = "DEFINITION_NOT_FOUND"
	// ErrorCodeInvalidRequest is returned when request construction fails.
	ErrorCodeInvalidRequest = "INVALID_REQUEST"
	// ErrorCodeTransportFailure is returned when subprocess I/O fails.
	ErrorCodeTransportFailure = "TRANSPORT_FAILURE"
	// ErrorCodeTimeout is returned when execution times out.
	ErrorCodeTimeout = "TIMEOUT"
	// ErrorCodeUpstreamFailure is returned when a runner reports failure.
	ErrorCodeUpstreamFailure = "UPSTREAM_FAILURE"
	// ErrorCodeDecodeFailure is returned when runner output decoding fails.
	ErrorCodeDecodeFailure = "DECODE_FAILURE"
	// ErrorCodeExecutionFailed is a generic fallback for execution failures.
	ErrorCodeExecutionFailed = "EXECUTION_FAILED"
)

// DefinitionError is a structured runner error carrying a machine-readable
// code and retryability.
type DefinitionError struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *DefinitionError) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "" && msg == "":
		return ErrorCodeExecutionFailed
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *DefinitionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newDefinitionError(code, message string, retryable bool, cause error) *DefinitionError {
	cleanCode := strings.TrimSpace(code)
	if cleanCode == "" {
		cleanCode = ErrorCodeExecutionFailed
	}
	cleanMsg := strings.TrimSpace(message)
	if cleanMsg == "" && cause != nil {
		cleanMsg = cause.Error()
	}
	return &DefinitionError{
		Code:      cleanCode,
		Message:   cleanMsg,
		Retryable: retryable,
		Cause:     cause,
	}
}

func withDetails(err *DefinitionError, details map[string]any) *DefinitionError {
	if err == nil || len(details) == 0 {
		return err
	}
	if err.Details == nil {
		err.Details = make(map[string]any, len(details))
	}
	for key, value := range details {
		err.Details[key] = value
	}
	return err
}

// ErrorCode returns the structured code carried by err, or
// ErrorCodeExecutionFailed when err has none. It returns "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrDefinitionNotFound) {
		return ErrorCodeNotFound
	}
	var defErr *DefinitionError
	if errors.As(err, &defErr) && strings.TrimSpace(defErr.Code) != "" {
		return defErr.Code
	}
	return ErrorCodeExecutionFailed
}

// ExecutionError reports a failed definition execution. It is the only
// error the engine propagates to the end caller; Unwrap exposes the
// definition's original error.
type ExecutionError struct {
	PluginID string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool: executing %q: %v", e.PluginID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// TeardownError reports a definition whose teardown hook failed.
type TeardownError struct {
	PluginID string
	Err      error
}

func (e *TeardownError) Error() string {
	return fmt.Sprintf("tool: tearing down %q: %v", e.PluginID, e.Err)
}

func (e *TeardownError) Unwrap() error { return e.Err }
