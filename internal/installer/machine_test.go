package installer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"

	"dev-bootstrap/internal/config"
	"dev-bootstrap/internal/logger"
	"dev-bootstrap/internal/platform"
	"dev-bootstrap/internal/runner"
)

func init() {
	color.NoColor = true
}

// machine is a simulated workstation: a temporary home, a PATH directory holding fake
// executables and a mock executor whose installers create the files later checks probe.
type machine struct {
	t       *testing.T
	home    string
	bin     string
	logPath string
	mock    *runner.MockExecutor
	profile config.Profile
	facts   platform.Facts
	goSrv   *httptest.Server
}

func newMachine(t *testing.T) *machine {
	t.Helper()
	root := t.TempDir()
	m := &machine{
		t:       t,
		home:    filepath.Join(root, "home"),
		bin:     filepath.Join(root, "bin"),
		logPath: filepath.Join(root, "bootstrap.log"),
		mock:    runner.NewMockExecutor(),
	}
	require.NoError(t, os.MkdirAll(m.home, 0o755))
	require.NoError(t, os.MkdirAll(m.bin, 0o755))

	t.Setenv("PATH", m.bin)
	t.Setenv("HOME", m.home)
	t.Setenv("SHELL", "/bin/bash")
	t.Setenv("ZSH_CUSTOM", "")
	t.Setenv("NVM_DIR", "")

	// A bare Linux box: only the system package manager is available.
	m.addTool("apt-get")

	p, err := config.DefaultProfile()
	require.NoError(t, err)
	p.Homebrew.Prefix = filepath.Join(root, "linuxbrew")
	archive := goArchive(t)
	m.goSrv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write(archive)
	}))
	t.Cleanup(m.goSrv.Close)
	p.Go.DownloadURL = m.goSrv.URL
	m.profile = p

	m.facts = platform.Facts{OS: platform.Linux, Kernel: "Linux", Arch: "x86_64", ShellName: "bash", User: "dev", Home: m.home}

	m.mock.Results["getent passwd dev"] = runner.Result{Output: []byte("dev:x:1000:1000::" + m.home + ":/bin/bash\n")}
	m.mock.OnExecute = m.simulate
	return m
}

func goArchive(t *testing.T) []byte {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	body := "#!/bin/sh\necho go version go1.23.4 linux/amd64\n"
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "go/bin/go", Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(body))}))
	_, err := tw.Write([]byte(body))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func (m *machine) addTool(name string) {
	m.t.Helper()
	require.NoError(m.t, os.WriteFile(filepath.Join(m.bin, name), []byte("#!/bin/sh\n"), 0o755))
}

func (m *machine) touch(path string) {
	m.t.Helper()
	require.NoError(m.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(m.t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))
}

func (m *machine) mkdir(path string) {
	m.t.Helper()
	require.NoError(m.t, os.MkdirAll(path, 0o755))
}

// simulate applies the side effect each installer would have on a real machine.
func (m *machine) simulate(cmd runner.Command) {
	s := cmd.String()
	switch {
	case strings.HasPrefix(s, "sudo apt-get install"):
		for _, tool := range []string{"git", "curl", "zsh"} {
			m.addTool(tool)
		}
	case strings.Contains(s, "Homebrew/install"):
		m.touch(filepath.Join(m.profile.Homebrew.Prefix, "bin", "brew"))
	case strings.Contains(s, "ohmyzsh"):
		m.mkdir(filepath.Join(m.home, ".oh-my-zsh"))
	case cmd.Name == "git" && len(cmd.Args) == 4 && cmd.Args[0] == "clone":
		m.mkdir(cmd.Args[3])
	case cmd.Name == "mkdir":
		m.mkdir(cmd.Args[len(cmd.Args)-1])
	case strings.Contains(s, "nvm-sh/nvm"):
		m.touch(filepath.Join(m.home, ".nvm", "nvm.sh"))
	case strings.Contains(s, "nvm install"):
		m.mkdir(filepath.Join(m.home, ".nvm", "versions", "node", "v22.11.0"))
	case strings.Contains(s, "sh.rustup.rs"):
		m.touch(filepath.Join(m.home, ".cargo", "bin", "rustup"))
	case strings.Contains(s, "get.docker.com"):
		m.addTool("docker")
	case strings.HasSuffix(cmd.Name, "/brew") && len(cmd.Args) == 2 && cmd.Args[0] == "install":
		for _, p := range m.profile.Packages {
			if p.Name == cmd.Args[1] {
				m.addTool(p.BinaryName())
			}
		}
		if cmd.Args[1] == "zsh" {
			m.addTool("zsh")
		}
	case cmd.Name == "chsh":
		m.mock.Results["getent passwd dev"] = runner.Result{Output: []byte("dev:x:1000:1000::" + m.home + ":" + cmd.Args[1] + "\n")}
	case strings.HasSuffix(cmd.Name, "/go") && len(cmd.Args) == 1 && cmd.Args[0] == "version":
		out, err := os.ReadFile(cmd.Name)
		if err == nil && strings.Contains(string(out), "go1.") {
			line := string(out)[strings.Index(string(out), "go version"):]
			m.mock.Results[s] = runner.Result{Output: []byte(strings.TrimSpace(line))}
		}
	}
}

// env builds a catalog environment with a fresh logger and runner.
func (m *machine) env(dryRun bool) Env {
	log := logger.New(m.logPath, false, &bytes.Buffer{})
	m.t.Cleanup(func() { _ = log.Close() })
	r := runner.New(m.mock, log, config.RunConfig{DryRun: dryRun, LogPath: m.logPath, HomeDir: m.home})
	return Env{Facts: m.facts, Profile: m.profile, Run: r, Home: m.home}
}

func (m *machine) log() string {
	m.t.Helper()
	data, err := os.ReadFile(m.logPath)
	require.NoError(m.t, err)
	return string(data)
}

// isQuery reports whether a recorded command is one of the read-only probes steps issue.
func isQuery(c runner.Command) bool {
	if c.Name == "getent" || c.Name == "dscl" || c.Name == "xcode-select" && len(c.Args) == 1 && c.Args[0] == "-p" {
		return true
	}
	return strings.HasSuffix(c.Name, "/go") && len(c.Args) == 1 && c.Args[0] == "version"
}

func mutating(calls []runner.Command) []string {
	var out []string
	for _, c := range calls {
		if !isQuery(c) {
			out = append(out, c.String())
		}
	}
	return out
}
