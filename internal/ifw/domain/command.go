package domain

import "strings"

// CommandResult is the synchronous outcome of one privileged command.
type CommandResult struct {
	Success     bool
	StdoutLines []string
	RawStdout   string
}

// NewCommandResult builds a CommandResult, splitting stdout into lines.
// A trailing newline does not produce an empty final line.
func NewCommandResult(success bool, stdout string) CommandResult {
	res := CommandResult{Success: success, RawStdout: stdout}
	trimmed := strings.TrimRight(stdout, "\n")
	if trimmed == "" {
		return res
	}
	res.StdoutLines = strings.Split(trimmed, "\n")
	return res
}
