//go:build linux || darwin || freebsd || netbsd || openbsd

package apiclient

import (
	"runtime"

	"golang.org/x/sys/unix"
)

func uname() (sysname, release, machine string) {
	var u unix.Utsname
	if err := unix.Uname(&u); err != nil {
		return runtime.GOOS, "", runtime.GOARCH
	}

	return unix.ByteSliceToString(u.Sysname[:]),
		unix.ByteSliceToString(u.Release[:]),
		unix.ByteSliceToString(u.Machine[:])
}
