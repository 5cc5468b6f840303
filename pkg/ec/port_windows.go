//go:build windows
// +build windows

package ec

import (
	"sync"
	"time"

	"golang.org/x/sys/windows"
)

// ACPI EC protocol over legacy I/O ports
const (
	ecDataPort    = 0x62
	ecCommandPort = 0x66
	ecReadCmd     = 0x80
	ecWriteCmd    = 0x81
	statusOBF     = 1 << 0 // output buffer full
	statusIBF     = 1 << 1 // input buffer full
	portRetries   = 100
)

// DefaultDriverDLL is the user-mode half of the port I/O kernel driver
const DefaultDriverDLL = "inpoutx64.dll"

// PortEC talks to the EC through a kernel-mode port I/O driver.
// The EC command/address/data handshake for one byte is held under a mutex,
// nothing longer.
type PortEC struct {
	mu        sync.Mutex
	dllName   string
	out32     *windows.LazyProc
	inp32     *windows.LazyProc
	available bool
}

// NewPortEC loads the driver DLL and resolves its entry points once
func NewPortEC(dllName string) *PortEC {
	if dllName == "" {
		dllName = DefaultDriverDLL
	}
	p := &PortEC{dllName: dllName}

	dll := windows.NewLazyDLL(dllName)
	if err := dll.Load(); err != nil {
		return p
	}

	p.out32 = dll.NewProc("Out32")
	p.inp32 = dll.NewProc("Inp32")
	if p.out32.Find() != nil || p.inp32.Find() != nil {
		return p
	}

	// The driver reports whether its kernel half is running
	if isOpen := dll.NewProc("IsInpOutDriverOpen"); isOpen.Find() == nil {
		if r, _, _ := isOpen.Call(); r == 0 {
			return p
		}
	}

	p.available = true
	return p
}

func (p *PortEC) Name() string {
	return "port"
}

func (p *PortEC) Available() bool {
	return p.available
}

func (p *PortEC) Read(addr uint8) (byte, bool) {
	if !p.available {
		return 0, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.waitInputEmpty() {
		return 0, false
	}
	p.outb(ecCommandPort, ecReadCmd)
	if !p.waitInputEmpty() {
		return 0, false
	}
	p.outb(ecDataPort, addr)
	if !p.waitOutputFull() {
		return 0, false
	}
	return p.inb(ecDataPort), true
}

func (p *PortEC) Write(addr uint8, v byte) bool {
	if !p.available {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.waitInputEmpty() {
		return false
	}
	p.outb(ecCommandPort, ecWriteCmd)
	if !p.waitInputEmpty() {
		return false
	}
	p.outb(ecDataPort, addr)
	if !p.waitInputEmpty() {
		return false
	}
	p.outb(ecDataPort, v)
	return p.waitInputEmpty()
}

func (p *PortEC) outb(port uint16, v byte) {
	_, _, _ = p.out32.Call(uintptr(port), uintptr(v))
}

func (p *PortEC) inb(port uint16) byte {
	r, _, _ := p.inp32.Call(uintptr(port))
	return byte(r)
}

func (p *PortEC) waitInputEmpty() bool {
	for i := 0; i < portRetries; i++ {
		if p.inb(ecCommandPort)&statusIBF == 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}

func (p *PortEC) waitOutputFull() bool {
	for i := 0; i < portRetries; i++ {
		if p.inb(ecCommandPort)&statusOBF != 0 {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return false
}
