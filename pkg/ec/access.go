// Package ec provides raw byte access to the laptop embedded controller.
//
// An Access knows nothing about what a register means. It reads or writes a
// single byte at an offset into the EC address space and reports whether the
// transfer happened. Failures of any kind (missing module or driver, permission
// denied, device busy) surface as a false result and are never returned as
// errors or panics. Callers are expected to have checked privileges before
// issuing writes.
//
// There is no persistent handle: every transfer opens and closes the
// underlying interface. Concurrent callers can therefore interleave byte
// transfers, and a multi-register sequence such as writing fan1 then fan2 is
// not atomic unless the Access is wrapped with Serialized and the sequence is
// run through Atomically.
package ec

import (
	"runtime"

	"github.com/mscrnt/thermalctl/pkg/config"
)

// Access is a byte-addressable embedded controller interface
type Access interface {
	// Read returns the byte at addr, or false when the read failed
	Read(addr uint8) (byte, bool)

	// Write stores v at addr and reports whether the write went through
	Write(addr uint8, v byte) bool

	// Available reports whether the interface was found at construction
	Available() bool
}

// Unavailable is an Access with no backing hardware
type Unavailable struct{}

func (Unavailable) Read(uint8) (byte, bool) { return 0, false }
func (Unavailable) Write(uint8, byte) bool  { return false }
func (Unavailable) Available() bool         { return false }
func (Unavailable) Name() string            { return config.BackendNone }

// Name returns the backend name of a, or "unknown"
func Name(a Access) string {
	if n, ok := a.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "unknown"
}

// Open constructs the backend selected by cfg. Availability is probed once here.
func Open(cfg config.EC) Access {
	backend := cfg.Backend
	if backend == config.BackendAuto || backend == "" {
		backend = config.BackendSysfs
		if runtime.GOOS == "windows" {
			backend = config.BackendPort
		}
	}

	var a Access
	switch backend {
	case config.BackendSysfs:
		a = NewSysfsEC(cfg.SysfsPath)
	case config.BackendPort:
		a = NewPortEC(cfg.DriverDLL)
	default:
		a = Unavailable{}
	}

	if cfg.Serialize {
		return Serialized(a)
	}
	return a
}
