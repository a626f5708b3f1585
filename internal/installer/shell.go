package installer

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"dev-bootstrap/internal/config"
	"dev-bootstrap/internal/platform"
	"dev-bootstrap/internal/runner"
)

//go:embed zshrc.tmpl
var zshrcTemplate string

var zshrcTmpl = template.Must(template.New("zshrc").Parse(zshrcTemplate))

// zshrcData is the template input for a fresh ~/.zshrc.
type zshrcData struct {
	OhMyZsh string
	Theme   string
	Plugins []string
	Brew    string
	NvmDir  string
	GoRoot  string
	Exports []config.Export
	Aliases []config.Alias
}

func zshStep(env Env) Step {
	r := env.Run
	return Step{
		Name:   "zsh",
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return r.Has("zsh")
		},
		Install: func(ctx context.Context) error {
			_, err := r.Run(ctx, runner.Exec(env.brew(), "install", "zsh"))
			return err
		},
	}
}

// ohMyZshStep runs the framework installer unattended. It must neither start a new shell,
// change the login shell nor replace an existing ~/.zshrc: later steps own those.
func ohMyZshStep(env Env) Step {
	r := env.Run
	dir := env.ohMyZshDir()
	return Step{
		Name:   "oh-my-zsh",
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return isDir(dir)
		},
		Install: func(ctx context.Context) error {
			script := fetchAndRun(env.Profile.OhMyZsh.InstallerURL, `sh -c "$script" "" --unattended`)
			cmd := runner.Shell(script).WithEnv("RUNZSH=no", "CHSH=no", "KEEP_ZSHRC=yes", "ZSH="+dir)
			_, err := r.Run(ctx, cmd)
			return err
		},
	}
}

func themeStep(env Env, theme config.Repo) Step {
	return cloneStep(env, "theme:"+theme.Name, theme.URL, filepath.Join(env.zshCustom(), "themes", theme.Name))
}

func pluginStep(env Env, plugin config.Repo) Step {
	return cloneStep(env, "plugin:"+plugin.Name, plugin.URL, filepath.Join(env.zshCustom(), "plugins", plugin.Name))
}

// cloneStep is present when dest exists. An interrupted clone that left a directory behind
// counts as present; git removes its partial checkout on failure.
func cloneStep(env Env, name, url, dest string) Step {
	r := env.Run
	return Step{
		Name:   name,
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return isDir(dest)
		},
		Install: func(ctx context.Context) error {
			return r.Clone(ctx, url, dest)
		},
	}
}

// fetchAndRun downloads an installer script into $script before running it with run. The
// assignment carries curl's exit status, which an inline "$(curl ...)" would discard.
func fetchAndRun(url, run string) string {
	return fmt.Sprintf(`script="$(curl -fsSL %s)" && %s`, url, run)
}

// zshrcStep creates ~/.zshrc from the template. The step is create-only: an existing file,
// whatever it contains, satisfies it and is never read or rewritten.
func zshrcStep(env Env) Step {
	r := env.Run
	path := filepath.Join(env.Home, ".zshrc")
	return Step{
		Name:   "zshrc",
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return exists(path)
		},
		Install: func(ctx context.Context) error {
			data, err := renderZshrc(env)
			if err != nil {
				return err
			}
			_, err = r.WriteFileIfAbsent(path, data, 0o644)
			return err
		},
	}
}

func renderZshrc(env Env) ([]byte, error) {
	p := env.Profile
	plugins := []string{"git"}
	for _, pl := range p.Plugins {
		plugins = append(plugins, pl.Name)
	}
	theme := p.Theme.Entry
	if theme == "" {
		theme = p.Theme.Name
	}

	var buf bytes.Buffer
	err := zshrcTmpl.Execute(&buf, zshrcData{
		OhMyZsh: env.ohMyZshDir(),
		Theme:   theme,
		Plugins: plugins,
		Brew:    filepath.Join(env.brewPrefix(), "bin", "brew"),
		NvmDir:  env.nvmDir(),
		GoRoot:  env.goRoot(),
		Exports: p.Shell.Exports,
		Aliases: p.Shell.Aliases,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to render .zshrc: %w", err)
	}
	return buf.Bytes(), nil
}

// defaultShellStep makes zsh the account's login shell.
func defaultShellStep(env Env) Step {
	r := env.Run
	return Step{
		Name:   "default-shell",
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return filepath.Base(loginShell(ctx, env)) == "zsh"
		},
		Install: func(ctx context.Context) error {
			zsh, err := zshPath(r)
			if err != nil {
				return err
			}
			_, err = r.Run(ctx, runner.Exec("chsh", "-s", zsh).WithConsole())
			return err
		},
	}
}

// loginShell reads the login shell from the account database rather than $SHELL, which
// does not change inside this process after chsh.
func loginShell(ctx context.Context, env Env) string {
	r := env.Run
	user := env.Facts.User
	if user != "" {
		if env.Facts.OS == platform.Darwin {
			res, err := r.Query(ctx, runner.Exec("dscl", ".", "-read", "/Users/"+user, "UserShell"))
			if err == nil {
				// "UserShell: /bin/zsh"
				if f := strings.Fields(string(res.Output)); len(f) == 2 {
					return f[1]
				}
			}
		} else {
			res, err := r.Query(ctx, runner.Exec("getent", "passwd", user))
			if err == nil {
				// name:x:uid:gid:gecos:home:shell
				fields := strings.Split(strings.TrimSpace(string(res.Output)), ":")
				if len(fields) == 7 {
					return fields[6]
				}
			}
		}
	}
	return os.Getenv("SHELL")
}

// zshPath prefers the system zsh, which is already listed in /etc/shells.
func zshPath(r *runner.Runner) (string, error) {
	for _, p := range []string{"/bin/zsh", "/usr/bin/zsh"} {
		if exists(p) {
			return p, nil
		}
	}
	if p, err := r.LookPath("zsh"); err == nil {
		return p, nil
	}
	if r.DryRun() {
		return "zsh", nil
	}
	return "", fmt.Errorf("zsh not found on this machine")
}
