//go:build !linux && !windows
// +build !linux,!windows

package hardware

// DetectProduct has no source on this platform
func DetectProduct() (productID, model string) {
	return "", ""
}
