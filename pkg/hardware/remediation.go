package hardware

import "runtime"

// Remediation tells the user how to make the EC reachable on this platform
func Remediation() string {
	return remediationFor(runtime.GOOS)
}

func remediationFor(goos string) string {
	switch goos {
	case "windows":
		return "install the inpoutx64 port I/O driver next to thermalctl.exe and run as Administrator"
	case "linux":
		return "load the EC debug interface with 'modprobe ec_sys write_support=1' and run as root"
	default:
		return "embedded controller access is not supported on " + goos
	}
}
