// Package installer holds the ordered catalog of provisioning steps and the dispatch loop
// that evaluates them.
//
// The catalog is a strict chain: the package manager comes before anything installed with it,
// nvm before Node, the shell framework before its theme and plugins, and the login shell
// change last. Steps are built fresh for each run from the detected platform facts and the
// profile, and evaluated exactly once.
package installer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"dev-bootstrap/internal/config"
	"dev-bootstrap/internal/platform"
	"dev-bootstrap/internal/runner"
)

// Env is everything a step needs: what the machine is, what to install and how to run it.
type Env struct {
	Facts   platform.Facts
	Profile config.Profile
	Run     *runner.Runner
	Home    string
}

// Catalog returns the steps in their fixed execution order.
func Catalog(env Env) []Step {
	steps := []Step{
		prerequisitesStep(env),
		homebrewStep(env),
		zshStep(env),
		ohMyZshStep(env),
		themeStep(env, env.Profile.Theme),
	}
	for _, p := range env.Profile.Plugins {
		steps = append(steps, pluginStep(env, p))
	}
	steps = append(steps,
		nvmStep(env),
		nodeStep(env),
		goStep(env),
		rustStep(env),
		dockerStep(env),
	)
	for _, p := range env.Profile.Packages {
		steps = append(steps, packageStep(env, p))
	}
	steps = append(steps,
		zshrcStep(env),
		defaultShellStep(env),
	)
	return steps
}

// path expands "~" in a profile path against the run's home directory.
func (e Env) path(p string) string {
	return config.ExpandHome(e.Home, p)
}

// brewPrefix returns the Homebrew prefix for this platform.
func (e Env) brewPrefix() string {
	if e.Profile.Homebrew.Prefix != "" {
		return e.path(e.Profile.Homebrew.Prefix)
	}
	if e.Facts.OS == platform.Darwin {
		if e.Facts.GoArch() == "arm64" {
			return "/opt/homebrew"
		}
		return "/usr/local"
	}
	return "/home/linuxbrew/.linuxbrew"
}

// brew returns the brew executable, preferring PATH and falling back to the prefix so
// steps keep working in the same run that installed Homebrew.
func (e Env) brew() string {
	if p, err := e.Run.LookPath("brew"); err == nil {
		return p
	}
	return filepath.Join(e.brewPrefix(), "bin", "brew")
}

func (e Env) ohMyZshDir() string {
	if e.Profile.OhMyZsh.Dir != "" {
		return e.path(e.Profile.OhMyZsh.Dir)
	}
	return filepath.Join(e.Home, ".oh-my-zsh")
}

// zshCustom follows oh-my-zsh: $ZSH_CUSTOM when set, otherwise <oh-my-zsh>/custom.
func (e Env) zshCustom() string {
	if c := os.Getenv("ZSH_CUSTOM"); c != "" {
		return c
	}
	return filepath.Join(e.ohMyZshDir(), "custom")
}

func (e Env) nvmDir() string {
	if e.Profile.Nvm.Dir != "" {
		return e.path(e.Profile.Nvm.Dir)
	}
	if d := os.Getenv("NVM_DIR"); d != "" {
		return d
	}
	return filepath.Join(e.Home, ".nvm")
}

func (e Env) goRoot() string {
	if e.Profile.Go.Root != "" {
		return e.path(e.Profile.Go.Root)
	}
	return filepath.Join(e.Home, ".local", "go")
}

func (e Env) zprofile() string {
	return filepath.Join(e.Home, ".zprofile")
}

// exists reports whether path exists (a dangling symlink counts).
func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// prependPath puts dirs in front of the process PATH so later presence checks and commands
// in this run see freshly installed tools. Persisting PATH for new shells is done separately
// through ~/.zprofile and ~/.zshrc.
func prependPath(dirs ...string) {
	current := filepath.SplitList(os.Getenv("PATH"))
	seen := make(map[string]bool, len(current))
	for _, d := range current {
		seen[d] = true
	}
	var add []string
	for _, d := range dirs {
		if !seen[d] {
			add = append(add, d)
			seen[d] = true
		}
	}
	if len(add) == 0 {
		return
	}
	_ = os.Setenv("PATH", strings.Join(append(add, current...), string(os.PathListSeparator)))
}
