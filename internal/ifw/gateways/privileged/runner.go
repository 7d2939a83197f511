package privileged

import (
	"bytes"
	"os/exec"
	"strings"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/domain"
)

// Observer is notified of every command outcome.
type Observer interface {
	ObserveCommand(success bool)
}

// Options configures a ShellRunner.
type Options struct {
	// Shell is invoked as `<Shell> -c <command>`; "su" for root, "sh" for tests.
	Shell    string
	Logger   log.Logger
	Observer Observer
}

// ShellRunner executes commands synchronously through a shell. Calls block until
// the child exits; there is no timeout at this layer.
type ShellRunner struct {
	shell    string
	logger   log.Logger
	observer Observer
}

// execCommand is the process factory, replaceable in tests.
var execCommand = exec.Command

// NewShellRunner returns a runner for the configured shell.
func NewShellRunner(opts Options) *ShellRunner {
	shell := opts.Shell
	if shell == "" {
		shell = "su"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &ShellRunner{shell: shell, logger: logger, observer: opts.Observer}
}

// Run executes command and reports its outcome. A non-zero exit or a failure to
// start the shell is an unsuccessful result, never an error.
func (r *ShellRunner) Run(command string) domain.CommandResult {
	cmd := execCommand(r.shell, "-c", command)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := domain.NewCommandResult(err == nil, stdout.String())
	if err != nil {
		r.logger.Debug(map[string]any{
			"command": command,
			"error":   err.Error(),
			"stderr":  strings.TrimSpace(stderr.String()),
		}, "privileged_command_failed")
	} else {
		r.logger.Debug(map[string]any{"command": command, "lines": len(res.StdoutLines)}, "privileged_command_ok")
	}
	if r.observer != nil {
		r.observer.ObserveCommand(res.Success)
	}
	return res
}
