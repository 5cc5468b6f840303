//go:build windows
// +build windows

package hardware

import "golang.org/x/sys/windows"

// IsPrivileged reports whether the process token is elevated
func IsPrivileged() bool {
	return windows.GetCurrentProcessToken().IsElevated()
}
