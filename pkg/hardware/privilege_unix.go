//go:build !windows
// +build !windows

package hardware

import "golang.org/x/sys/unix"

// IsPrivileged reports whether the process may write EC registers
func IsPrivileged() bool {
	return unix.Geteuid() == 0
}
