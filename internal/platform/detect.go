// Package platform answers the questions steps branch on: which OS and CPU this is,
// which shell the user runs, and whether the process is privileged.
package platform

import (
	"context"
	"os"
	"os/user"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"dev-bootstrap/internal/runner"
)

// OS is the operating system family.
type OS string

const (
	Darwin OS = "Darwin"
	Linux  OS = "Linux"
	Other  OS = "Other"
)

// Facts is the read-only result of detection, computed once per run.
type Facts struct {
	OS           OS
	Kernel       string // Raw uname sysname, kept for the unknown-OS warning
	Arch         string // Raw uname machine (x86_64, arm64, aarch64, ...)
	ShellName    string // Basename of $SHELL
	ShellVersion *semver.Version
	IsRoot       bool
	User         string
	Home         string
}

// LinuxLike reports whether Linux code paths apply. Unknown systems take the Linux branch.
func (f Facts) LinuxLike() bool {
	return f.OS != Darwin
}

// GoArch maps the machine name to the architecture suffix used by Go release archives.
func (f Facts) GoArch() string {
	return GoArch(f.Arch)
}

// GoOS returns the OS component of Go release archive names.
func (f Facts) GoOS() string {
	if f.OS == Darwin {
		return "darwin"
	}
	return "linux"
}

// Querier runs read-only probes; *runner.Runner satisfies it.
type Querier interface {
	Query(ctx context.Context, cmd runner.Command) (runner.Result, error)
}

// Detector gathers Facts. Every field has a working default; tests replace them.
type Detector struct {
	Uname   func() (sysname, machine string, err error)
	Geteuid func() int
	Getenv  func(string) string
	Query   Querier
}

// NewDetector returns a Detector backed by the running system.
func NewDetector(q Querier) *Detector {
	return &Detector{
		Uname:   uname,
		Geteuid: os.Geteuid,
		Getenv:  os.Getenv,
		Query:   q,
	}
}

// Detect computes the environment facts. It has no side effects beyond read-only queries.
func (d *Detector) Detect(ctx context.Context) Facts {
	var f Facts

	sysname, machine, err := d.Uname()
	if err != nil {
		sysname, machine = fallbackUname()
	}
	f.Kernel = sysname
	f.Arch = machine
	switch sysname {
	case "Darwin":
		f.OS = Darwin
	case "Linux":
		f.OS = Linux
	default:
		f.OS = Other
	}

	f.IsRoot = d.Geteuid() == 0

	f.Home = d.Getenv("HOME")
	f.User = d.Getenv("USER")
	if f.User == "" {
		if u, err := user.Current(); err == nil {
			f.User = u.Username
			if f.Home == "" {
				f.Home = u.HomeDir
			}
		}
	}

	shell := d.Getenv("SHELL")
	if shell != "" {
		f.ShellName = filepath.Base(shell)
		f.ShellVersion = d.shellVersion(ctx, shell)
	}
	return f
}

var versionPattern = regexp.MustCompile(`(\d+\.\d+(?:\.\d+)?)`)

// shellVersion runs "<shell> --version" and extracts the first dotted version number.
// zsh prints "zsh 5.9 (x86_64-apple-darwin23.0)"; bash prints
// "GNU bash, version 5.2.15(1)-release (aarch64-unknown-linux-gnu)".
func (d *Detector) shellVersion(ctx context.Context, shell string) *semver.Version {
	if d.Query == nil {
		return nil
	}
	res, err := d.Query.Query(ctx, runner.Exec(shell, "--version"))
	if err != nil {
		return nil
	}
	return ParseVersion(string(res.Output))
}

// ParseVersion extracts the first dotted version number in s, or nil.
func ParseVersion(s string) *semver.Version {
	m := versionPattern.FindString(s)
	if m == "" {
		return nil
	}
	v, err := semver.NewVersion(m)
	if err != nil {
		return nil
	}
	return v
}

// GoArch maps a uname machine name to Go's architecture naming.
func GoArch(machine string) string {
	switch strings.ToLower(machine) {
	case "x86_64", "amd64":
		return "amd64"
	case "aarch64", "arm64":
		return "arm64"
	case "armv6l", "armv7l":
		return "armv6l"
	case "i386", "i686", "x86":
		return "386"
	default:
		return strings.ToLower(machine)
	}
}
