// Package runner executes the commands and file operations issued by provisioning steps.
//
// A Runner is constructed with the run configuration, so the dry-run decision travels with
// the instance instead of living in a global. Mutating calls (Run, Clone, AppendLine,
// WriteFileIfAbsent, DownloadAndExtract, RemoveAll) only log "[dry-run] ..." when dry-run is
// active. Query is reserved for read-only probes and always executes.
package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"time"

	"dev-bootstrap/internal/config"
	"dev-bootstrap/internal/logger"
)

// Runner executes commands on behalf of steps and records everything in the log.
type Runner struct {
	exec    Executor
	log     *logger.Logger
	dryRun  bool
	timeout time.Duration
	client  *http.Client

	// LookPath resolves executables for presence checks; tests may replace it.
	LookPath func(file string) (string, error)
}

// New returns a Runner bound to cfg's mode and timeout.
func New(executor Executor, log *logger.Logger, cfg config.RunConfig) *Runner {
	return &Runner{
		exec:     executor,
		log:      log,
		dryRun:   cfg.DryRun,
		timeout:  cfg.CommandTimeout,
		client:   http.DefaultClient,
		LookPath: exec.LookPath,
	}
}

// DryRun reports whether mutating operations are only logged.
func (r *Runner) DryRun() bool {
	return r.dryRun
}

// Logger returns the logger the runner writes to.
func (r *Runner) Logger() *logger.Logger {
	return r.log
}

// Run executes a mutating command.
//
// In dry-run mode it logs "[dry-run] <command>" and reports success without touching the
// executor. Otherwise it logs "Running: <command>", runs it, appends the captured output
// to the log and returns an *ExitError for a non-zero exit status.
func (r *Runner) Run(ctx context.Context, cmd Command) (Result, error) {
	line := cmd.String()
	if r.dryRun {
		r.log.Log("[dry-run] %s", line)
		return Result{DryRun: true}, nil
	}

	r.log.Log("Running: %s", line)
	res, err := r.execute(ctx, cmd)
	if len(res.Output) > 0 {
		_, _ = r.log.Write(res.Output)
	}
	if err != nil {
		return res, fmt.Errorf("failed to run %q: %w", line, err)
	}
	if res.ExitCode != 0 {
		return res, &ExitError{Command: line, ExitCode: res.ExitCode, Output: res.Output}
	}
	return res, nil
}

// Query runs a read-only probe. It executes even in dry-run mode and logs only at debug level.
func (r *Runner) Query(ctx context.Context, cmd Command) (Result, error) {
	line := cmd.String()
	r.log.Debug("[DEBUG] Query: %s\n", line)

	res, err := r.execute(ctx, cmd)
	if err != nil {
		return res, fmt.Errorf("failed to query %q: %w", line, err)
	}
	if res.ExitCode != 0 {
		return res, &ExitError{Command: line, ExitCode: res.ExitCode, Output: res.Output}
	}
	return res, nil
}

// Has reports whether an executable named file is on PATH.
func (r *Runner) Has(file string) bool {
	_, err := r.LookPath(file)
	return err == nil
}

func (r *Runner) execute(ctx context.Context, cmd Command) (Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	res, err := r.exec.Execute(ctx, cmd)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		return res, fmt.Errorf("timed out after %s: %w", r.timeout, err)
	}
	return res, err
}
