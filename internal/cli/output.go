package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/watchgraft/internal/engine"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // merge applied, dry run completed, all scenarios passed
	ExitFailure      = 1 // apply rolled back, unresolved threshold exceeded, scenarios failed
	ExitCommandError = 2 // store unavailable, invalid flags or config
)

// Error codes for failures that are not stage errors.
const (
	ErrCodeGeneric = "E001"
	ErrCodeUsage   = "E002"
)

// ExitError carries the process exit code for a command failure.
type ExitError struct {
	Code    int
	Message string
	Err     error
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
// Errors that are not an ExitError exit with ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// stageExitError maps engine failures to exit codes: unavailable stores
// are command errors, everything else is a run failure.
func stageExitError(message string, err error) *ExitError {
	if engine.IsSourceUnavailable(err) || engine.IsTargetUnavailable(err) {
		return WrapExitError(ExitCommandError, message, err)
	}
	return WrapExitError(ExitFailure, message, err)
}

// stageErrorCode returns the code reported for err in JSON output.
func stageErrorCode(err error) string {
	var se *engine.StageError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return ErrCodeGeneric
}

// CLIResponse is the JSON document every command prints in json format.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error member of a CLIResponse.
type CLIError struct {
	Code    string `json:"code"` // stage error code, E001 or E002
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// OutputFormatter writes command results as text or as one JSON document.
// Diagnostics go to ErrWriter so JSON output stays parseable.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // falls back to Writer when nil
	Verbose   bool
}

// NewOutputFormatter builds a formatter writing to the command's streams.
func NewOutputFormatter(cmd *cobra.Command, root *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    root.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   root.Verbose,
	}
}

func (f *OutputFormatter) json() bool { return f.Format == "json" }

// Success prints data as {"status":"ok"} JSON, or with fmt in text mode.
func (f *OutputFormatter) Success(data any) error {
	if f.json() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error prints a failure. Details are only shown in text mode when verbose.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.json() {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error:  &CLIError{Code: code, Message: message, Details: details},
		})
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Report prints a run report.
func (f *OutputFormatter) Report(r *engine.Report) error {
	if f.json() {
		return f.Success(r)
	}
	writeReport(f.Writer, r)
	return nil
}

// StageFailure reports a failed engine call and returns its exit error.
// Text mode leaves printing to the caller of Execute.
func (f *OutputFormatter) StageFailure(message string, err error) error {
	if f.json() {
		_ = f.Error(stageErrorCode(err), err.Error(), nil)
	}
	return stageExitError(message, err)
}

// Usage reports a missing or invalid argument.
func (f *OutputFormatter) Usage(message string) error {
	if f.json() {
		_ = f.Error(ErrCodeUsage, message, nil)
	}
	return NewExitError(ExitCommandError, message)
}

// Unavailable reports a store that cannot be used.
func (f *OutputFormatter) Unavailable(code, message string, err error) error {
	if f.json() {
		_ = f.Error(code, fmt.Sprintf("%s: %v", message, err), nil)
	}
	return WrapExitError(ExitCommandError, message, err)
}

// VerboseLog prints a diagnostic line when verbose is set.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
