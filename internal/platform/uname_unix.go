//go:build unix

package platform

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func uname() (string, string, error) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return "", "", err
	}
	return unix.ByteSliceToString(u.Sysname[:]), unix.ByteSliceToString(u.Machine[:]), nil
}

// fallbackUname derives names from the build target when uname(2) fails.
func fallbackUname() (string, string) {
	switch runtime.GOOS {
	case "darwin":
		return "Darwin", runtime.GOARCH
	case "linux":
		return "Linux", runtime.GOARCH
	default:
		return runtime.GOOS, runtime.GOARCH
	}
}
