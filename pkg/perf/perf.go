// Package perf drives the performance mode and thermal power limit registers.
package perf

import (
	"errors"

	"github.com/mscrnt/thermalctl/pkg/ec"
	"github.com/mscrnt/thermalctl/pkg/logger"
	"github.com/mscrnt/thermalctl/pkg/regmap"
)

// ErrUnsupported is returned for operations the EC cannot perform
var ErrUnsupported = errors.New("operation not supported by the embedded controller")

const (
	// DefaultTjMax is assumed when the sensor subsystem does not report a critical threshold
	DefaultTjMax = 100
	// MaxTCCOffset is the largest offset the TCC field can hold
	MaxTCCOffset = 63
)

// TCCOffsetStatus describes the thermal control circuit offset
type TCCOffsetStatus struct {
	Supported bool `json:"supported"`
	Offset    int  `json:"offset"`
	TjMax     int  `json:"tj_max"`
}

// EffectiveLimit is the temperature at which the CPU starts throttling
func (s TCCOffsetStatus) EffectiveLimit() int {
	return s.TjMax - s.Offset
}

// Controller reads and writes the performance registers of one register map
type Controller struct {
	ec   ec.Access
	regs regmap.Map
	log  *logger.Logger

	// TjMax is reported in TCCOffset; callers may replace it with a sensor reading
	TjMax int
}

// NewController creates a performance controller over acc using the layout regs
func NewController(acc ec.Access, regs regmap.Map, log *logger.Logger) *Controller {
	return &Controller{
		ec:    acc,
		regs:  regs,
		log:   logger.OrDefault(log).With("perf"),
		TjMax: DefaultTjMax,
	}
}

// SetMode writes the encoding of m to the performance mode register
func (c *Controller) SetMode(m Mode) bool {
	name, ok := m.encodingName()
	if !ok {
		c.log.Warnf("refusing to write unknown mode %s", m)
		return false
	}
	v, ok := c.regs.PerfMode.Lookup(name)
	if !ok {
		c.log.Warnf("%s has no %q encoding", c.regs.PerfMode, name)
		return false
	}
	if !c.ec.Write(c.regs.PerfMode.Addr, v) {
		c.log.Debugf("set mode %s (0x%02X) failed", m, v)
		return false
	}
	return true
}

// Mode reads the current mode. Unreadable or unknown values decode to Balanced.
func (c *Controller) Mode() Mode {
	v, ok := c.ec.Read(c.regs.PerfMode.Addr)
	if !ok {
		return Balanced
	}
	return decodeMode(c.regs.PerfMode, v)
}

// SetThermalPowerLimit writes a power limit multiplier in 0..5
func (c *Controller) SetThermalPowerLimit(n int) bool {
	if n < 0 || n > regmap.MaxThermalPowerLimit {
		c.log.Warnf("thermal power limit %d outside 0..%d", n, regmap.MaxThermalPowerLimit)
		return false
	}
	return c.ec.Write(c.regs.ThermalPowerLimit.Addr, byte(n))
}

// ThermalPowerLimit reads the power limit multiplier
func (c *Controller) ThermalPowerLimit() (int, bool) {
	v, ok := c.ec.Read(c.regs.ThermalPowerLimit.Addr)
	if !ok || !c.regs.ThermalPowerLimit.Legal(v) {
		return 0, false
	}
	return int(v), true
}

// SetTCCOffset always fails. TCC lives in a model specific register that the EC does not expose.
func (c *Controller) SetTCCOffset(offset int) error {
	return ErrUnsupported
}

// TCCOffset reports the offset as unsupported with no offset applied
func (c *Controller) TCCOffset() TCCOffsetStatus {
	tj := c.TjMax
	if tj <= 0 {
		tj = DefaultTjMax
	}
	return TCCOffsetStatus{Supported: false, Offset: 0, TjMax: tj}
}
