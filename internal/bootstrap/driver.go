// Package bootstrap runs one provisioning pass: it opens the log, detects the machine once,
// refuses to run as root and then walks the step catalog.
package bootstrap

import (
	"context"
	"errors"
	"io"
	"strings"

	"dev-bootstrap/internal/config"
	"dev-bootstrap/internal/installer"
	"dev-bootstrap/internal/logger"
	"dev-bootstrap/internal/platform"
	"dev-bootstrap/internal/runner"
)

// ErrRunAsRoot is returned when the process runs with effective UID 0. Homebrew refuses to
// install as root and files created under the wrong owner are hard to undo.
var ErrRunAsRoot = errors.New("refusing to run as root; run as your normal user (sudo is requested where needed)")

// Driver holds everything one run needs.
type Driver struct {
	Config  config.RunConfig
	Profile config.Profile

	// Detector overrides platform detection. Its Query field is filled with the run's
	// Runner when left nil.
	Detector *platform.Detector

	// Executor runs external commands; nil selects the real process executor.
	Executor runner.Executor

	// Stdout receives the console copy of the log; nil means os.Stdout.
	Stdout io.Writer
}

// session is the per-run state shared by Run and Describe.
type session struct {
	log   *logger.Logger
	run   *runner.Runner
	facts platform.Facts
	steps []installer.Step
}

// Run executes the catalog once. It returns ErrRunAsRoot before any step when privileged,
// a *installer.StepError when a fatal step fails and ctx's error when interrupted.
// Best-effort failures are reported in the summary only.
func (d *Driver) Run(ctx context.Context) (installer.Summary, error) {
	s, err := d.open(ctx, d.Config)
	if err != nil {
		return installer.Summary{}, err
	}
	defer s.log.Close()

	if d.Config.DryRun {
		s.log.Info("[INFO] Dry-run: install commands are logged, not executed\n")
	}

	sum, err := installer.RunAll(ctx, s.run, s.steps)
	s.log.Info("[INFO] Summary: %s\n", sum)
	if failed := sum.Failed(); len(failed) > 0 {
		s.log.Warn("[WARN] Failed steps: %s\n", strings.Join(failed, ", "))
	}
	if err != nil {
		s.log.Error("[ERROR] Bootstrap aborted: %v\n", err)
		return sum, err
	}
	s.log.Info("[INFO] Bootstrap finished. Open a new terminal to pick up the zsh configuration.\n")
	return sum, nil
}

// Describe evaluates every presence check without installing anything. The run is forced
// into dry-run mode so no step can mutate the machine even by mistake.
func (d *Driver) Describe(ctx context.Context) ([]installer.Status, error) {
	cfg := d.Config
	cfg.DryRun = true
	s, err := d.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer s.log.Close()
	return installer.Describe(ctx, s.steps), nil
}

func (d *Driver) open(ctx context.Context, cfg config.RunConfig) (*session, error) {
	log := logger.New(cfg.LogPath, cfg.Debug, d.Stdout)

	executor := d.Executor
	if executor == nil {
		executor = runner.NewExecExecutor()
	}
	r := runner.New(executor, log, cfg)

	det := d.Detector
	if det == nil {
		det = platform.NewDetector(r)
	} else if det.Query == nil {
		det.Query = r
	}
	facts := det.Detect(ctx)
	log.Debug("[DEBUG] Platform: os=%s kernel=%s arch=%s shell=%s user=%s home=%s\n",
		facts.OS, facts.Kernel, facts.Arch, facts.ShellName, facts.User, facts.Home)
	if facts.ShellVersion != nil {
		log.Debug("[DEBUG] Shell version: %s\n", facts.ShellVersion)
	}

	if facts.IsRoot {
		log.Error("[ERROR] %v\n", ErrRunAsRoot)
		_ = log.Close()
		return nil, ErrRunAsRoot
	}
	if facts.OS == platform.Other {
		log.Warn("[WARN] Unsupported operating system %q; continuing with the Linux steps\n", facts.Kernel)
	}

	home := cfg.HomeDir
	if home == "" {
		home = facts.Home
	}
	steps := installer.Catalog(installer.Env{Facts: facts, Profile: d.Profile, Run: r, Home: home})
	log.Debug("[DEBUG] Steps: %s\n", installer.Names(steps))

	return &session{log: log, run: r, facts: facts, steps: steps}, nil
}
