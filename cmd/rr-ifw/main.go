package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/haukened/rr-ifw/internal/ifw/common/log"
	"github.com/haukened/rr-ifw/internal/ifw/config"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "rr-ifw"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, buildApplication)
	stop()
	os.Exit(code)
}

// run executes one CLI invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, build func(*config.AppConfig) (*Application, error)) int {
	opts := &RootOptions{build: build}
	cmd := NewRootCommand(opts)
	cmd.Version = version
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if cerr := opts.close(); cerr != nil {
		log.Warn(map[string]any{"error": cerr.Error()}, "Shutdown error")
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitCode(err)
	}
	return ExitSuccess
}
