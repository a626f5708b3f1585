package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"

	"dev-bootstrap/internal/platform"
	"dev-bootstrap/internal/runner"
)

// nvmStep installs the Node version manager. PROFILE=/dev/null stops its installer from
// editing shell files; ~/.zshrc carries the nvm hook instead.
func nvmStep(env Env) Step {
	r := env.Run
	dir := env.nvmDir()
	return Step{
		Name:   "nvm",
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return exists(filepath.Join(dir, "nvm.sh"))
		},
		Install: func(ctx context.Context) error {
			// The installer refuses an NVM_DIR that does not exist yet.
			if _, err := r.Run(ctx, runner.Exec("mkdir", "-p", dir)); err != nil {
				return err
			}
			script := fmt.Sprintf("curl -fsSL -o- %s | bash", env.Profile.Nvm.InstallerURL)
			if _, err := r.Run(ctx, runner.Shell(script).WithEnv("PROFILE=/dev/null", "NVM_DIR="+dir)); err != nil {
				return err
			}
			if !r.DryRun() {
				_ = os.Setenv("NVM_DIR", dir)
			}
			return nil
		},
	}
}

// nodeStep installs Node.js through nvm. nvm is a shell function, so the command sources
// nvm.sh first.
func nodeStep(env Env) Step {
	r := env.Run
	dir := env.nvmDir()
	version := env.Profile.Node.Version
	return Step{
		Name:   "node",
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return hasNodeVersion(filepath.Join(dir, "versions", "node"), version)
		},
		Install: func(ctx context.Context) error {
			arg := "--lts"
			if !strings.EqualFold(version, "lts") {
				arg = version
			}
			script := fmt.Sprintf(`. "$NVM_DIR/nvm.sh" && nvm install %s`, arg)
			_, err := r.Run(ctx, runner.Shell(script).WithEnv("NVM_DIR="+dir))
			return err
		},
	}
}

// hasNodeVersion looks for an installed version directory (v20.11.1). "lts" accepts any.
func hasNodeVersion(versionsDir, version string) bool {
	entries, err := os.ReadDir(versionsDir)
	if err != nil {
		return false
	}
	want := "v" + strings.TrimPrefix(version, "v")
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		if strings.EqualFold(version, "lts") {
			return true
		}
		if e.Name() == want || strings.HasPrefix(e.Name(), want+".") {
			return true
		}
	}
	return false
}

// goRelease is one entry of the Go downloads JSON feed.
type goRelease struct {
	Version string `json:"version"` // e.g. go1.23.4
	Stable  bool   `json:"stable"`
}

// goToolchain installs the Go distribution from an archive, pinned to one version.
type goToolchain struct {
	env    Env
	target string // resolved version without the "go" prefix
}

// goStep is the one version-pinned step: a Go toolchain reporting another version does not
// satisfy it and is replaced.
func goStep(env Env) Step {
	g := &goToolchain{env: env}
	return Step{
		Name:      "go",
		Policy:    BestEffort,
		Installed: g.installed,
		Install:   g.install,
	}
}

// resolve returns the pinned version, looking up the newest stable release once when the
// profile asks for "latest".
func (g *goToolchain) resolve(ctx context.Context) (string, error) {
	if g.target != "" {
		return g.target, nil
	}
	want := strings.TrimPrefix(g.env.Profile.Go.Version, "go")
	if !strings.EqualFold(want, "latest") {
		g.target = want
		return want, nil
	}

	var releases []goRelease
	if err := g.env.Run.GetJSON(ctx, g.env.Profile.Go.ReleasesURL, &releases); err != nil {
		return "", fmt.Errorf("failed to resolve latest Go release: %w", err)
	}
	for _, rel := range releases {
		if rel.Stable {
			g.target = strings.TrimPrefix(rel.Version, "go")
			g.env.Run.Logger().Debug("[DEBUG] Latest stable Go release is %s\n", g.target)
			return g.target, nil
		}
	}
	return "", fmt.Errorf("no stable Go release listed at %s", g.env.Profile.Go.ReleasesURL)
}

func (g *goToolchain) installed(ctx context.Context) bool {
	r := g.env.Run
	bin := filepath.Join(g.env.goRoot(), "bin", "go")
	if !exists(bin) {
		return false
	}

	target, err := g.resolve(ctx)
	if err != nil {
		r.Logger().Warn("[WARN] %v\n", err)
		return false
	}
	want, err := semver.NewVersion(target)
	if err != nil {
		r.Logger().Warn("[WARN] Invalid Go version %q in profile: %v\n", target, err)
		return false
	}

	res, err := r.Query(ctx, runner.Exec(bin, "version"))
	if err != nil {
		return false
	}
	have := platform.ParseVersion(string(res.Output))
	if have == nil || !have.Equal(want) {
		r.Logger().Info("[INFO] Go at %s is %s, want %s\n", bin, strings.TrimSpace(string(res.Output)), target)
		return false
	}
	return true
}

func (g *goToolchain) install(ctx context.Context) error {
	r := g.env.Run
	target, err := g.resolve(ctx)
	if err != nil {
		return err
	}

	root := g.env.goRoot()
	facts := g.env.Facts
	url := fmt.Sprintf("%s/go%s.%s-%s.tar.gz",
		strings.TrimSuffix(g.env.Profile.Go.DownloadURL, "/"), target, facts.GoOS(), facts.GoArch())

	// A stale or half-extracted tree is replaced wholesale.
	if err := r.RemoveAll(root); err != nil {
		return err
	}
	if err := r.DownloadAndExtract(ctx, url, root); err != nil {
		return err
	}

	bin := filepath.Join(root, "bin")
	if _, err := r.AppendLine(g.env.zprofile(), fmt.Sprintf(`export PATH="%s:$PATH"`, bin)); err != nil {
		return err
	}
	if !r.DryRun() {
		prependPath(bin)
	}
	return nil
}

// rustStep installs rustup without letting it edit shell profiles.
func rustStep(env Env) Step {
	r := env.Run
	cargoBin := filepath.Join(env.Home, ".cargo", "bin")
	return Step{
		Name:   "rust",
		Policy: BestEffort,
		Installed: func(ctx context.Context) bool {
			return r.Has("rustup") || exists(filepath.Join(cargoBin, "rustup"))
		},
		Install: func(ctx context.Context) error {
			script := fmt.Sprintf("curl --proto '=https' --tlsv1.2 -sSf %s | sh -s -- -y --no-modify-path", env.Profile.Rust.URL)
			if _, err := r.Run(ctx, runner.Shell(script)); err != nil {
				return err
			}
			if !r.DryRun() {
				prependPath(cargoBin)
			}
			return nil
		},
	}
}
