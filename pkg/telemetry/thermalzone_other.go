//go:build !windows
// +build !windows

package telemetry

// platformCPUTemp has no source outside Windows; hwmon covers Linux
func platformCPUTemp() (float64, bool) {
	return 0, false
}
