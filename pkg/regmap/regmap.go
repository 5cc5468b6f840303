// Package regmap names the EC registers thermalctl uses and their legal encodings,
// per hardware generation.
package regmap

import (
	"fmt"
	"sort"
)

// Protocol constants shared by every generation
const (
	// RPMUnit is the RPM represented by one unit of a fan speed-set register
	RPMUnit = 100
	// SpeedScale is the raw unit count written for 100% (about 5500 RPM)
	SpeedScale = 55

	BoostOff byte = 0x00
	BoostOn  byte = 0x0C

	FanStateAuto   byte = 0x00 // firmware controls the fans
	FanStateManual byte = 0x02 // speed-set registers are honored

	MaxThermalPowerLimit = 5
)

// Performance mode encoding names used as keys in PerfMode.Values
const (
	PerfDefault     = "default"
	PerfPerformance = "performance"
	PerfCool        = "cool"
)

// Register is one EC address and the values it legally holds
type Register struct {
	Name string
	Addr uint8
	// Values lists named encodings. When nil, Min..Max is the legal range.
	Values   map[string]byte
	Min, Max byte
	ReadOnly bool
}

// Legal reports whether v is a valid encoding for r
func (r Register) Legal(v byte) bool {
	if r.Values != nil {
		for _, allowed := range r.Values {
			if v == allowed {
				return true
			}
		}
		return false
	}
	return v >= r.Min && v <= r.Max
}

// Lookup returns the byte for a named encoding
func (r Register) Lookup(name string) (byte, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// NameOf returns the encoding name for v, if any
func (r Register) NameOf(v byte) (string, bool) {
	for name, allowed := range r.Values {
		if allowed == v {
			return name, true
		}
	}
	return "", false
}

func (r Register) String() string {
	return fmt.Sprintf("%s@0x%02X", r.Name, r.Addr)
}

// Map is the register layout of one hardware generation. It is never mutated after registration.
type Map struct {
	Generation  string
	Description string

	CPUTemp Register // raw byte is degrees Celsius
	GPUTemp Register

	Fan1Speed Register // speed-set, unit RPMUnit
	Fan2Speed Register

	Fan1Percent Register // 0-100, read-only
	Fan2Percent Register

	FanBoost          Register
	FanState          Register
	PerfMode          Register
	ThermalPowerLimit Register
}

// Registers returns every register of m in a stable order
func (m Map) Registers() []Register {
	return []Register{
		m.CPUTemp, m.GPUTemp,
		m.Fan1Speed, m.Fan2Speed,
		m.Fan1Percent, m.Fan2Percent,
		m.FanBoost, m.FanState,
		m.PerfMode, m.ThermalPowerLimit,
	}
}

// FanSpeed returns the speed-set register for fan index 0 or 1
func (m Map) FanSpeed(fan int) Register {
	if fan == 1 {
		return m.Fan2Speed
	}
	return m.Fan1Speed
}

// FanPercent returns the speed-percent register for fan index 0 or 1
func (m Map) FanPercent(fan int) Register {
	if fan == 1 {
		return m.Fan2Percent
	}
	return m.Fan1Percent
}

// Validate rejects maps with missing names or two registers sharing an address
func (m Map) Validate() error {
	if m.Generation == "" {
		return fmt.Errorf("register map generation cannot be empty")
	}
	seen := make(map[uint8]string)
	for _, r := range m.Registers() {
		if r.Name == "" {
			return fmt.Errorf("%s: register at 0x%02X has no name", m.Generation, r.Addr)
		}
		if prev, dup := seen[r.Addr]; dup {
			return fmt.Errorf("%s: %s and %s share address 0x%02X", m.Generation, prev, r.Name, r.Addr)
		}
		seen[r.Addr] = r.Name
	}
	for _, name := range []string{PerfDefault, PerfPerformance, PerfCool} {
		if _, ok := m.PerfMode.Lookup(name); !ok {
			return fmt.Errorf("%s: performance mode register lacks %q encoding", m.Generation, name)
		}
	}
	return nil
}

// Addr converts a register address constant, panicking when it does not fit the EC space
func Addr(n int) uint8 {
	if n < 0 || n > 0xFF {
		panic(fmt.Sprintf("regmap: register address 0x%X outside EC space", n))
	}
	return uint8(n)
}

func tempRegister(name string, addr int) Register {
	return Register{Name: name, Addr: Addr(addr), Min: 0, Max: 127, ReadOnly: true}
}

func speedRegister(name string, addr int) Register {
	return Register{Name: name, Addr: Addr(addr), Min: 0, Max: 0xFF}
}

func percentRegister(name string, addr int) Register {
	return Register{Name: name, Addr: Addr(addr), Min: 0, Max: 100, ReadOnly: true}
}

func boostRegister(addr int) Register {
	return Register{
		Name:   "fan_boost",
		Addr:   Addr(addr),
		Values: map[string]byte{"off": BoostOff, "on": BoostOn},
	}
}

func fanStateRegister(addr int) Register {
	return Register{
		Name:   "fan_state",
		Addr:   Addr(addr),
		Values: map[string]byte{"auto": FanStateAuto, "manual": FanStateManual},
	}
}

func tplRegister(addr int) Register {
	return Register{Name: "thermal_power_limit", Addr: Addr(addr), Min: 0, Max: MaxThermalPowerLimit}
}

// Sorted returns names in ascending order
func sorted(names []string) []string {
	sort.Strings(names)
	return names
}
