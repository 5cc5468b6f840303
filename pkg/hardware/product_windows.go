//go:build windows
// +build windows

package hardware

import (
	"strings"

	"github.com/yusufpapurcu/wmi"
)

type win32ComputerSystemProduct struct {
	Name    string
	Version string
}

// DetectProduct returns the SMBIOS product name and version of this machine
func DetectProduct() (productID, model string) {
	var dst []win32ComputerSystemProduct
	if err := wmi.Query("SELECT Name, Version FROM Win32_ComputerSystemProduct", &dst); err != nil || len(dst) == 0 {
		return "", ""
	}
	return strings.TrimSpace(dst[0].Name), strings.TrimSpace(dst[0].Version)
}
