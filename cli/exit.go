package cli

import (
	"errors"
	"fmt"
)

// Process exit codes.
const (
	exitSuccess      = 0
	exitValidation   = 1
	exitRuntime      = 2
	exitFileNotFound = 3
	exitInputParse   = 4
	exitConfig       = 5
)

// ExitError is an error that carries a specific process exit code.
// Cobra's RunE returns this to signal the desired exit code to main.
type ExitError struct {
	Code    int
	Message string
}

func (e *ExitError) Error() string {
	return e.Message
}

// exitError creates a new ExitError with the given code and formatted message.
func exitError(code int, format string, args ...any) *ExitError {
	return &ExitError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Code returns the exit code for err: 0 for nil, the carried code for an
// *ExitError and 1 otherwise.
func Code(err error) int {
	if err == nil {
		return exitSuccess
	}
	var e *ExitError
	if errors.As(err, &e) {
		return e.Code
	}
	return 1
}
