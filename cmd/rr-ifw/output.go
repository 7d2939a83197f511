package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // every package succeeded
	ExitFailure      = 1 // one or more packages failed
	ExitCommandError = 2 // configuration, store or usage error
)

// ExitError carries a process exit code with an error.
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

func (e *ExitError) Unwrap() error { return e.Err }

// exitCode extracts the exit code from err; plain errors are command errors.
func exitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitCommandError
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// BatchResult is the outcome of one batch command.
type BatchResult struct {
	Operation string   `json:"operation"`
	Packages  int      `json:"packages"`
	Failed    []string `json:"failed"`
}

// RuleView is one rule as printed by show.
type RuleView struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	State string `json:"state,omitempty"`
}

// formatter renders results as text or JSON.
type formatter struct {
	format string
	w      io.Writer
}

func (f formatter) writeJSON(v any) error {
	enc := json.NewEncoder(f.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (f formatter) batch(res BatchResult) error {
	if res.Failed == nil {
		res.Failed = []string{}
	}
	if f.format == "json" {
		return f.writeJSON(res)
	}
	if len(res.Failed) == 0 {
		_, err := fmt.Fprintf(f.w, "%s: %d package(s) ok\n", res.Operation, res.Packages)
		return err
	}
	_, err := fmt.Fprintf(f.w, "%s: %d of %d package(s) failed: %s\n",
		res.Operation, len(res.Failed), res.Packages, strings.Join(res.Failed, ", "))
	return err
}

func (f formatter) rules(rules []RuleView) error {
	if rules == nil {
		rules = []RuleView{}
	}
	if f.format == "json" {
		return f.writeJSON(rules)
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Name, r.Type, r.State)
	}
	return tw.Flush()
}

func (f formatter) counts(items []domain.ItemCount) error {
	if f.format == "json" {
		type view struct {
			Package string `json:"package"`
			Label   string `json:"label"`
			Count   int    `json:"count"`
		}
		out := make([]view, 0, len(items))
		for _, it := range items {
			out = append(out, view{Package: it.PackageName, Label: it.PackageLabel, Count: it.Count})
		}
		return f.writeJSON(out)
	}
	tw := tabwriter.NewWriter(f.w, 0, 4, 2, ' ', 0)
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", it.PackageName, it.PackageLabel, it.Count)
	}
	return tw.Flush()
}
