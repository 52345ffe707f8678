package dispatch

import (
	"fmt"
	"strings"

	"github.com/richinex/coda/action"
)

// Result is the outcome of one action. Success is determined by whether Err is nil.
type Result struct {
	Kind    action.Kind
	Output  string
	Err     error
	Context bool // output belongs in the next outbound prompt
}

// Succeeded reports whether the action completed without error.
func (r Result) Succeeded() bool {
	return r.Err == nil
}

func successResult(kind action.Kind, output string) Result {
	return Result{Kind: kind, Output: output}
}

// failureResult renders err as user-facing text. prefix holds any output
// produced before the failure.
func failureResult(kind action.Kind, prefix string, err error) Result {
	msg := errorText(kind, err)
	if prefix != "" {
		msg = prefix + "\n" + msg
	}
	return Result{Kind: kind, Output: msg, Err: err}
}

func errorText(kind action.Kind, err error) string {
	return fmt.Sprintf("An error occurred during %s: %v", kind, err)
}

// Results is the ordered outcome of ExecuteAll.
type Results []Result

// Text joins every non-empty output with a blank line.
func (rs Results) Text() string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		if r.Output != "" {
			parts = append(parts, r.Output)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ContextText joins the outputs flagged as context for the next turn.
func (rs Results) ContextText() string {
	var parts []string
	for _, r := range rs {
		if r.Context && r.Output != "" {
			parts = append(parts, r.Output)
		}
	}
	return strings.Join(parts, "\n\n")
}

// Failed reports whether any action failed.
func (rs Results) Failed() bool {
	for _, r := range rs {
		if !r.Succeeded() {
			return true
		}
	}
	return false
}
