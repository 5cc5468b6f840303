//go:build linux
// +build linux

package hardware

import (
	"os"
	"strings"
)

const dmiRoot = "/sys/class/dmi/id"

// DetectProduct returns the DMI product name and family of this machine
func DetectProduct() (productID, model string) {
	read := func(name string) string {
		b, err := os.ReadFile(dmiRoot + "/" + name)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
	return read("product_name"), read("product_family")
}
