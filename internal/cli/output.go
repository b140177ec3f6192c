package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"posdoctor/internal/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Validation found violations
	ExitCommandError = 2 // Store could not be loaded or saved, bad flags
)

// ExitError carries the process exit code for a failed command.
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

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not an
// ExitError are command errors.
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

// OutputFormatter renders command results as text, JSON or YAML.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose diagnostics; keeps JSON and YAML output clean
	Verbose   bool
}

// CLIResponse is the envelope for JSON and YAML output.
type CLIResponse struct {
	Status string    `json:"status"`
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Structured writes resp as JSON or YAML. It reports false for text output.
func (f *OutputFormatter) Structured(resp CLIResponse) (bool, error) {
	switch f.Format {
	case "json":
		encoder := json.NewEncoder(f.Writer)
		encoder.SetIndent("", "  ")
		return true, encoder.Encode(resp)
	case "yaml":
		out, err := toYAML(resp)
		if err != nil {
			return true, err
		}
		_, err = f.Writer.Write(out)
		return true, err
	default:
		return false, nil
	}
}

// Error writes a command failure in the configured format.
func (f *OutputFormatter) Error(code, message string) error {
	handled, err := f.Structured(CLIResponse{Status: "error", Error: &CLIError{Code: code, Message: message}})
	if handled {
		return err
	}
	_, err = fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	return err
}

// VerboseLog outputs a message only if verbose mode is enabled.
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

// toYAML goes through JSON so field names match the JSON output, then
// re-emits the tree in block style with key order preserved.
func toYAML(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(raw, &node); err != nil {
		return nil, err
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

func blockStyle(n *yaml.Node) {
	if n.Kind == yaml.MappingNode || n.Kind == yaml.SequenceNode {
		n.Style = 0
	}
	for _, child := range n.Content {
		blockStyle(child)
	}
}

func writeViolations(w io.Writer, violations []domain.Violation) {
	if len(violations) == 0 {
		return
	}
	fmt.Fprintln(w)
	for _, v := range violations {
		action := v.Action
		if v.Advisory {
			action = "advisory"
		}
		fmt.Fprintf(w, "  [%s] %s %s: %s (%s)\n", v.Rule, v.Entity, v.ID, v.Message, action)
	}
}

func writeParseFailures(w io.Writer, failures []domain.ParseFailure) {
	if len(failures) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "parse failures:")
	for _, f := range failures {
		if f.Index < 0 {
			fmt.Fprintf(w, "  %s: %s\n", f.Key, f.Reason)
			continue
		}
		fmt.Fprintf(w, "  %s[%d]: %s\n", f.Key, f.Index, f.Reason)
	}
}

func countBlocking(violations []domain.Violation) int {
	n := 0
	for _, v := range violations {
		if !v.Advisory {
			n++
		}
	}
	return n
}
