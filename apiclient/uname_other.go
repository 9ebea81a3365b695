//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package apiclient

import "runtime"

func uname() (sysname, release, machine string) {
	return runtime.GOOS, "", runtime.GOARCH
}
