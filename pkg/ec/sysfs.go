package ec

import (
	"os"
)

// DefaultSysfsPath is where the ec_sys kernel module exposes the EC register file
const DefaultSysfsPath = "/sys/kernel/debug/ec/ec0/io"

// SysfsEC accesses the EC through the ec_sys debugfs register file.
// Writes require the module to be loaded with write_support=1.
type SysfsEC struct {
	path      string
	available bool
}

// NewSysfsEC probes path once; the result never changes afterwards
func NewSysfsEC(path string) *SysfsEC {
	if path == "" {
		path = DefaultSysfsPath
	}
	_, err := os.Stat(path)
	return &SysfsEC{
		path:      path,
		available: err == nil,
	}
}

// Path returns the register file path
func (s *SysfsEC) Path() string {
	return s.path
}

func (s *SysfsEC) Name() string {
	return "sysfs"
}

func (s *SysfsEC) Available() bool {
	return s.available
}

func (s *SysfsEC) Read(addr uint8) (byte, bool) {
	if !s.available {
		return 0, false
	}

	f, err := os.Open(s.path)
	if err != nil {
		return 0, false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 1)
	n, err := f.ReadAt(buf, int64(addr))
	if err != nil || n != 1 {
		return 0, false
	}
	return buf[0], true
}

func (s *SysfsEC) Write(addr uint8, v byte) bool {
	if !s.available {
		return false
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}

	n, err := f.WriteAt([]byte{v}, int64(addr))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err == nil && n == 1
}
