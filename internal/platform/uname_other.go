//go:build !unix

package platform

import (
	"errors"
	"runtime"
)

func uname() (string, string, error) {
	return "", "", errors.New("uname is not available on " + runtime.GOOS)
}

func fallbackUname() (string, string) {
	return runtime.GOOS, runtime.GOARCH
}
