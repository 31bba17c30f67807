package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Every fixture passed
	ExitFailure      = 1 // At least one fixture failed
	ExitCommandError = 2 // Command error (bad config, unreadable fixture dir, database not found, etc.)
)

// Error codes reported in JSON error responses, keyed by exit code.
var errorCodes = map[int]string{
	ExitFailure:      "FIXTURES_FAILED",
	ExitCommandError: "COMMAND_ERROR",
}

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitSuccess for nil. Errors that are not an ExitError (cobra flag
// parsing, unknown commands) are command errors.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // diagnostics and errors; keeps the report stream clean
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code     string `json:"code"`              // "FIXTURES_FAILED", "COMMAND_ERROR"
	ExitCode int    `json:"exit_code"`         // process exit status
	Message  string `json:"message"`           // human-readable message
	Details  any    `json:"details,omitempty"` // underlying cause
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error reports err on ErrWriter in the configured format.
//
// Errors never go to Writer: a failed run has already printed its report
// (or its JSON summary) there.
func (f *OutputFormatter) Error(err error) error {
	code := GetExitCode(err)
	if code == ExitSuccess {
		return nil
	}

	message := err.Error()
	var details any
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		message = exitErr.Message
		if exitErr.Err != nil {
			details = exitErr.Err.Error()
		}
	}

	w := f.errWriter()
	if f.Format == "json" {
		return json.NewEncoder(w).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:     errorCode(code),
				ExitCode: code,
				Message:  message,
				Details:  details,
			},
		})
	}

	if details != nil {
		fmt.Fprintf(w, "Error: %s: %v\n", message, details)
	} else {
		fmt.Fprintf(w, "Error: %s\n", message)
	}
	return nil
}

// errWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) errWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

func errorCode(exitCode int) string {
	if code, ok := errorCodes[exitCode]; ok {
		return code
	}
	return "ERROR"
}
