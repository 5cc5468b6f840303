//go:build !windows
// +build !windows

package ec

// DefaultDriverDLL is the user-mode half of the port I/O kernel driver
const DefaultDriverDLL = "inpoutx64.dll"

// PortEC is unavailable outside Windows; use SysfsEC instead
type PortEC struct {
	dllName string
}

// NewPortEC returns an Access that always reports unavailable on this platform
func NewPortEC(dllName string) *PortEC {
	return &PortEC{dllName: dllName}
}

func (p *PortEC) Name() string            { return "port" }
func (p *PortEC) Available() bool         { return false }
func (p *PortEC) Read(uint8) (byte, bool) { return 0, false }
func (p *PortEC) Write(uint8, byte) bool  { return false }
