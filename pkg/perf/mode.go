package perf

import (
	"fmt"
	"strings"

	"github.com/mscrnt/thermalctl/pkg/regmap"
)

// Mode is a logical performance mode
type Mode int

const (
	Default Mode = iota
	Balanced
	Performance
	Cool
)

var modeNames = map[Mode]string{
	Default:     "default",
	Balanced:    "balanced",
	Performance: "performance",
	Cool:        "cool",
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Modes lists every mode in order
func Modes() []Mode {
	return []Mode{Default, Balanced, Performance, Cool}
}

// ParseMode converts a case-insensitive name into a Mode
func ParseMode(s string) (Mode, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for m, n := range modeNames {
		if n == name {
			return m, nil
		}
	}
	return Balanced, fmt.Errorf("unknown performance mode %q (want default, balanced, performance or cool)", s)
}

// encodingName maps a mode onto the register encoding it is written as.
// Balanced has no encoding of its own and shares Default's.
func (m Mode) encodingName() (string, bool) {
	switch m {
	case Default, Balanced:
		return regmap.PerfDefault, true
	case Performance:
		return regmap.PerfPerformance, true
	case Cool:
		return regmap.PerfCool, true
	}
	return "", false
}

// decodeMode maps a register byte back onto a mode; anything unrecognized is Balanced
func decodeMode(r regmap.Register, v byte) Mode {
	name, _ := r.NameOf(v)
	switch name {
	case regmap.PerfDefault:
		return Default
	case regmap.PerfPerformance:
		return Performance
	case regmap.PerfCool:
		return Cool
	default:
		return Balanced
	}
}
