package runner

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev-bootstrap/internal/config"
	"dev-bootstrap/internal/logger"
)

func init() {
	color.NoColor = true
}

func newTestRunner(t *testing.T, dryRun bool) (*Runner, *MockExecutor, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "bootstrap.log")
	log := logger.New(logPath, false, &bytes.Buffer{})
	t.Cleanup(func() { _ = log.Close() })

	mock := NewMockExecutor()
	r := New(mock, log, config.RunConfig{DryRun: dryRun, LogPath: logPath})
	return r, mock, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunDryRunNeverExecutes(t *testing.T) {
	r, mock, logPath := newTestRunner(t, true)

	res, err := r.Run(context.Background(), Exec("brew", "install", "jq"))
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Empty(t, mock.Calls)
	assert.Contains(t, readLog(t, logPath), "[dry-run] brew install jq\n")
}

func TestRunLogsCommandAndOutput(t *testing.T) {
	r, mock, logPath := newTestRunner(t, false)
	mock.Results["brew install"] = Result{Output: []byte("==> Pouring jq")}

	_, err := r.Run(context.Background(), Exec("brew", "install", "jq"))
	require.NoError(t, err)

	require.Len(t, mock.Calls, 1)
	log := readLog(t, logPath)
	assert.Contains(t, log, "Running: brew install jq\n==> Pouring jq\n")
}

func TestRunReturnsExitError(t *testing.T) {
	r, mock, _ := newTestRunner(t, false)
	mock.Results["false"] = Result{ExitCode: 3, Output: []byte("boom")}

	res, err := r.Run(context.Background(), Exec("false"))
	require.Error(t, err)
	assert.Equal(t, 3, res.ExitCode)

	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, 3, exitErr.ExitCode)
	assert.Equal(t, "false", exitErr.Command)
}

func TestRunWrapsStartErrors(t *testing.T) {
	r, mock, _ := newTestRunner(t, false)
	mock.Errors["missing"] = errors.New("executable file not found")

	_, err := r.Run(context.Background(), Exec("missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable file not found")
}

func TestQueryExecutesInDryRun(t *testing.T) {
	r, mock, logPath := newTestRunner(t, true)
	mock.Results["zsh --version"] = Result{Output: []byte("zsh 5.9")}

	res, err := r.Query(context.Background(), Exec("zsh", "--version"))
	require.NoError(t, err)
	assert.Equal(t, "zsh 5.9", string(res.Output))
	require.Len(t, mock.Calls, 1)
	assert.NotContains(t, readLog(t, logPath), "[dry-run]")
}

func TestShellCommandsUsePipefail(t *testing.T) {
	c := Shell(`curl -fsSL https://example.com/install.sh | bash`)
	name, args := c.Argv()
	assert.Equal(t, "bash", name)
	assert.Equal(t, []string{"-o", "pipefail", "-c", c.Script}, args)
	assert.Equal(t, `curl -fsSL https://example.com/install.sh | bash`, c.String())
}

func TestCommandStringQuotesArguments(t *testing.T) {
	c := Exec("git", "commit", "-m", "it's done").WithEnv("GIT_AUTHOR=me")
	assert.Equal(t, `GIT_AUTHOR=me git commit -m 'it'\''s done'`, c.String())
}

func TestExecExecutorReportsExitCode(t *testing.T) {
	res, err := NewExecExecutor().Execute(context.Background(), Shell("echo out; echo err >&2; exit 4"))
	require.NoError(t, err)
	assert.Equal(t, 4, res.ExitCode)
	assert.Contains(t, string(res.Output), "out")
	assert.Contains(t, string(res.Output), "err")
}

func TestExecExecutorEchoesInteractiveCommands(t *testing.T) {
	var console bytes.Buffer
	e := ExecExecutor{Console: &console}

	res, err := e.Execute(context.Background(), Shell("echo 'Password:' >&2; echo done").WithConsole())
	require.NoError(t, err)
	assert.Contains(t, console.String(), "Password:")
	assert.Contains(t, string(res.Output), "Password:")
	assert.Contains(t, string(res.Output), "done")

	console.Reset()
	res, err = e.Execute(context.Background(), Shell("echo quiet"))
	require.NoError(t, err)
	assert.Empty(t, console.String())
	assert.Contains(t, string(res.Output), "quiet")
}

func TestRunLogsPercentSignsLiterally(t *testing.T) {
	r, _, logPath := newTestRunner(t, true)

	_, err := r.Run(context.Background(), Shell("date +%Y-%m-%d"))
	require.NoError(t, err)
	_, err = r.AppendLine(filepath.Join(t.TempDir(), ".zprofile"), "export PS1='%n@%m'")
	require.NoError(t, err)

	log := readLog(t, logPath)
	assert.Contains(t, log, "[dry-run] date +%Y-%m-%d\n")
	assert.Contains(t, log, "export PS1='%n@%m'\n")
	assert.NotContains(t, log, "%!")
}

func TestRunTimesOut(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "bootstrap.log")
	log := logger.New(logPath, false, &bytes.Buffer{})
	defer log.Close()

	r := New(NewExecExecutor(), log, config.RunConfig{CommandTimeout: 50 * time.Millisecond})
	_, err := r.Run(context.Background(), Exec("sleep", "5"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAppendLineIsIdempotent(t *testing.T) {
	r, _, _ := newTestRunner(t, false)
	path := filepath.Join(t.TempDir(), ".zprofile")
	line := `eval "$(/opt/homebrew/bin/brew shellenv)"`

	changed, err := r.AppendLine(path, line)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = r.AppendLine(path, line)
	require.NoError(t, err)
	assert.False(t, changed)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, line+"\n", string(data))
}

func TestFileOperationsInDryRunLeaveDiskUntouched(t *testing.T) {
	r, _, logPath := newTestRunner(t, true)
	dir := t.TempDir()

	changed, err := r.AppendLine(filepath.Join(dir, ".zprofile"), "export A=1")
	require.NoError(t, err)
	assert.True(t, changed)

	created, err := r.WriteFileIfAbsent(filepath.Join(dir, ".zshrc"), []byte("x"), 0o644)
	require.NoError(t, err)
	assert.True(t, created)

	existing := filepath.Join(dir, "keep")
	require.NoError(t, os.WriteFile(existing, []byte("keep"), 0o644))
	require.NoError(t, r.RemoveAll(existing))
	require.NoError(t, r.DownloadAndExtract(context.Background(), "http://127.0.0.1:1/go.tar.gz", filepath.Join(dir, "go")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "keep", entries[0].Name())

	log := readLog(t, logPath)
	assert.Equal(t, 4, strings.Count(log, "[dry-run] "))
	assert.NotContains(t, log, "Running:")
}

func TestWriteFileIfAbsentNeverClobbers(t *testing.T) {
	r, _, _ := newTestRunner(t, false)
	path := filepath.Join(t.TempDir(), ".zshrc")
	original := []byte("# my own config\nalias x=y\n")
	require.NoError(t, os.WriteFile(path, original, 0o600))

	created, err := r.WriteFileIfAbsent(path, []byte("template"), 0o644)
	require.NoError(t, err)
	assert.False(t, created)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, data)
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "go/", Typeflag: tar.TypeDir, Mode: 0o755}))
	for name, body := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Typeflag: tar.TypeReg, Mode: 0o755, Size: int64(len(body))}))
		_, err := tw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestDownloadAndExtractInstallsTopLevelAsTarget(t *testing.T) {
	archive := tarGz(t, map[string]string{"go/bin/go": "#!/bin/sh\necho go version go1.23.4\n"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write(archive)
	}))
	defer srv.Close()

	r, _, _ := newTestRunner(t, false)
	target := filepath.Join(t.TempDir(), "sdk", "go1.23.4")

	require.NoError(t, r.DownloadAndExtract(context.Background(), srv.URL+"/go1.23.4.linux-amd64.tar.gz", target))

	info, err := os.Stat(filepath.Join(target, "bin", "go"))
	require.NoError(t, err)
	assert.NotZero(t, info.Mode().Perm()&0o111, "executable bit must survive extraction")

	// The staging directory is cleaned up.
	entries, err := os.ReadDir(filepath.Dir(target))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestDownloadAndExtractReportsHTTPErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	r, _, _ := newTestRunner(t, false)
	err := r.DownloadAndExtract(context.Background(), srv.URL+"/missing.tar.gz", filepath.Join(t.TempDir(), "go"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP status 404")
}

func TestExtractZip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tool.zip")
	f, err := os.Create(src)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("tool/README")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	top, err := ExtractArchive(src, filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out", "tool"), top)

	data, err := os.ReadFile(filepath.Join(top, "README"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestExtractRejectsEscapingEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "evil.tar")
	f, err := os.Create(src)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "../escape", Typeflag: tar.TypeReg, Mode: 0o644, Size: 1}))
	_, err = tw.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	_, err = ExtractArchive(src, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "escape"))
}

// writeTar writes a plain tar archive from headers; regular entries get body as content.
func writeTar(t *testing.T, path string, headers []*tar.Header, body string) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	for _, h := range headers {
		if h.Typeflag == tar.TypeReg {
			h.Size = int64(len(body))
		}
		require.NoError(t, tw.WriteHeader(h))
		if h.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(body))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())
}

func TestExtractRejectsSymlinksLeavingDestination(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(dir, "outside")
	require.NoError(t, os.MkdirAll(outside, 0o755))

	for name, linkname := range map[string]string{
		"absolute": outside,
		"relative": "../../outside",
	} {
		t.Run(name, func(t *testing.T) {
			src := filepath.Join(dir, name+".tar")
			writeTar(t, src, []*tar.Header{
				{Name: "go/", Typeflag: tar.TypeDir, Mode: 0o755},
				{Name: "go/link", Typeflag: tar.TypeSymlink, Linkname: linkname},
				{Name: "go/link/file", Typeflag: tar.TypeReg, Mode: 0o644},
			}, "pwned")

			_, err := ExtractArchive(src, filepath.Join(dir, "out-"+name))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "escapes")
			assert.NoFileExists(t, filepath.Join(outside, "file"))
		})
	}
}

func TestExtractKeepsInternalSymlinks(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "tool.tar")
	writeTar(t, src, []*tar.Header{
		{Name: "tool/bin/", Typeflag: tar.TypeDir, Mode: 0o755},
		{Name: "tool/bin/tool", Typeflag: tar.TypeReg, Mode: 0o755},
		{Name: "tool/current", Typeflag: tar.TypeSymlink, Linkname: "bin"},
	}, "#!/bin/sh\n")

	top, err := ExtractArchive(src, filepath.Join(dir, "out"))
	require.NoError(t, err)

	link, err := os.Readlink(filepath.Join(top, "current"))
	require.NoError(t, err)
	assert.Equal(t, "bin", link)
	assert.FileExists(t, filepath.Join(top, "current", "tool"))
}

func TestExtractUnsupportedFormat(t *testing.T) {
	_, err := ExtractArchive("tool.rar", t.TempDir())
	require.Error(t, err)
}

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte(`[{"version":"go1.23.4","stable":true}]`))
	}))
	defer srv.Close()

	r, _, _ := newTestRunner(t, true)
	var releases []struct {
		Version string `json:"version"`
		Stable  bool   `json:"stable"`
	}
	require.NoError(t, r.GetJSON(context.Background(), srv.URL, &releases))
	require.Len(t, releases, 1)
	assert.Equal(t, "go1.23.4", releases[0].Version)
}
