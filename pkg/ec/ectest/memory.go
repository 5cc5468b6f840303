// Package ectest provides an in-memory embedded controller for tests
package ectest

import (
	"sync"
)

// Write records one write issued to a MemoryEC
type Write struct {
	Addr  uint8
	Value byte
}

// MemoryEC is a 256-byte register file that echoes writes back on read
type MemoryEC struct {
	mu          sync.Mutex
	regs        [256]byte
	unavailable bool
	failRead    map[uint8]bool
	failWrite   map[uint8]bool
	writes      []Write
	onWrite     func(regs *[256]byte, addr uint8, v byte)
}

// New returns an available, zeroed MemoryEC
func New() *MemoryEC {
	return &MemoryEC{
		failRead:  make(map[uint8]bool),
		failWrite: make(map[uint8]bool),
	}
}

// NewUnavailable returns a MemoryEC that reports no hardware
func NewUnavailable() *MemoryEC {
	m := New()
	m.unavailable = true
	return m
}

func (m *MemoryEC) Name() string {
	return "memory"
}

func (m *MemoryEC) Available() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.unavailable
}

func (m *MemoryEC) Read(addr uint8) (byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable || m.failRead[addr] {
		return 0, false
	}
	return m.regs[addr], true
}

func (m *MemoryEC) Write(addr uint8, v byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unavailable || m.failWrite[addr] {
		return false
	}
	m.regs[addr] = v
	m.writes = append(m.writes, Write{Addr: addr, Value: v})
	if m.onWrite != nil {
		m.onWrite(&m.regs, addr, v)
	}
	return true
}

// Set seeds a register without recording a write
func (m *MemoryEC) Set(addr uint8, v byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = v
}

// Get returns a register regardless of availability or failure injection
func (m *MemoryEC) Get(addr uint8) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

// FailRead makes reads of addr fail
func (m *MemoryEC) FailRead(addr uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRead[addr] = true
}

// FailWrite makes writes to addr fail
func (m *MemoryEC) FailWrite(addr uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrite[addr] = true
}

// OnWrite installs a hook that emulates firmware reacting to a write.
// The hook runs under the register lock and may modify regs directly.
func (m *MemoryEC) OnWrite(fn func(regs *[256]byte, addr uint8, v byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onWrite = fn
}

// Writes returns the successful writes in order
func (m *MemoryEC) Writes() []Write {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Write, len(m.writes))
	copy(out, m.writes)
	return out
}

// Reset clears the write log
func (m *MemoryEC) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
}
