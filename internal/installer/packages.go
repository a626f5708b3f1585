package installer

import (
	"context"
	"fmt"
	"path/filepath"

	"dev-bootstrap/internal/config"
	"dev-bootstrap/internal/platform"
	"dev-bootstrap/internal/runner"
)

// prerequisiteTools must be on PATH before Homebrew can be installed.
var prerequisiteTools = []string{"git", "curl", "zsh"}

// systemManager describes how a Linux distribution's package manager installs the
// build prerequisites.
type systemManager struct {
	name     string
	commands []runner.Command
}

var systemManagers = []systemManager{
	{
		name: "apt-get",
		commands: []runner.Command{
			runner.Exec("sudo", "apt-get", "update").WithConsole(),
			runner.Exec("sudo", "apt-get", "install", "-y", "build-essential", "procps", "curl", "file", "git", "zsh").WithConsole(),
		},
	},
	{
		name: "dnf",
		commands: []runner.Command{
			runner.Exec("sudo", "dnf", "install", "-y", "gcc", "gcc-c++", "make", "procps-ng", "curl", "file", "git", "zsh").WithConsole(),
		},
	},
	{
		name: "pacman",
		commands: []runner.Command{
			runner.Exec("sudo", "pacman", "-Sy", "--noconfirm", "--needed", "base-devel", "procps-ng", "curl", "file", "git", "zsh").WithConsole(),
		},
	},
}

// prerequisitesStep installs what the Homebrew installer itself needs: the Xcode command
// line tools on macOS, compilers plus git/curl/zsh from the system package manager elsewhere.
func prerequisitesStep(env Env) Step {
	r := env.Run
	if env.Facts.OS == platform.Darwin {
		return Step{
			Name:   "system-prerequisites",
			Policy: Fatal,
			Installed: func(ctx context.Context) bool {
				_, err := r.Query(ctx, runner.Exec("xcode-select", "-p"))
				return err == nil
			},
			Install: func(ctx context.Context) error {
				_, err := r.Run(ctx, runner.Exec("xcode-select", "--install").WithConsole())
				return err
			},
		}
	}

	return Step{
		Name:   "system-prerequisites",
		Policy: Fatal,
		Installed: func(ctx context.Context) bool {
			for _, tool := range prerequisiteTools {
				if !r.Has(tool) {
					return false
				}
			}
			return true
		},
		Install: func(ctx context.Context) error {
			for _, m := range systemManagers {
				if !r.Has(m.name) {
					continue
				}
				r.Logger().Debug("[DEBUG] Using system package manager %s\n", m.name)
				for _, c := range m.commands {
					if _, err := r.Run(ctx, c); err != nil {
						return err
					}
				}
				return nil
			}
			err := fmt.Errorf("no supported system package manager found (tried apt-get, dnf, pacman)")
			if r.DryRun() {
				r.Logger().Warn("[WARN] %v; a real run would fail here\n", err)
				return nil
			}
			return err
		},
	}
}

// homebrewStep bootstraps the package manager. Everything after it may shell out to brew,
// so a failure here ends the run.
func homebrewStep(env Env) Step {
	r := env.Run
	prefix := env.brewPrefix()
	bin := filepath.Join(prefix, "bin", "brew")

	return Step{
		Name:   "homebrew",
		Policy: Fatal,
		Installed: func(ctx context.Context) bool {
			return r.Has("brew") || exists(bin)
		},
		Install: func(ctx context.Context) error {
			script := fetchAndRun(env.Profile.Homebrew.InstallerURL, `/bin/bash -c "$script"`)
			if _, err := r.Run(ctx, runner.Shell(script).WithEnv("NONINTERACTIVE=1").WithConsole()); err != nil {
				return err
			}

			hook := fmt.Sprintf(`eval "$(%s shellenv)"`, bin)
			if _, err := r.AppendLine(env.zprofile(), hook); err != nil {
				return err
			}

			if !r.DryRun() {
				prependPath(filepath.Join(prefix, "bin"), filepath.Join(prefix, "sbin"))
			}
			return nil
		},
	}
}

// dockerStep installs the container engine: Docker Desktop through a cask on macOS,
// the upstream convenience script elsewhere.
func dockerStep(env Env) Step {
	r := env.Run
	return Step{
		Name:   "docker",
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			if r.Has("docker") {
				return true
			}
			return env.Facts.OS == platform.Darwin && isDir("/Applications/Docker.app")
		},
		Install: func(ctx context.Context) error {
			var cmd runner.Command
			if env.Facts.OS == platform.Darwin {
				cmd = runner.Exec(env.brew(), "install", "--cask", env.Profile.Docker.Cask)
			} else {
				cmd = runner.Shell(fmt.Sprintf("curl -fsSL %s | sh", env.Profile.Docker.InstallerURL)).WithConsole()
			}
			_, err := r.Run(ctx, cmd)
			return err
		},
	}
}

// packageStep installs one CLI utility with Homebrew when its binary is missing.
func packageStep(env Env, pkg config.Package) Step {
	r := env.Run
	return Step{
		Name:   "pkg:" + pkg.Name,
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return r.Has(pkg.BinaryName())
		},
		Install: func(ctx context.Context) error {
			_, err := r.Run(ctx, runner.Exec(env.brew(), "install", pkg.Name))
			return err
		},
	}
}
