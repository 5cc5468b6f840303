// Package fan translates fan profiles and manual percentages into EC register writes.
//
// Every mutation reports success as a bool and every read degrades to zero, so
// a monitoring loop never has to handle an error. Writing both fans is only
// atomic with respect to other EC users when the Access is ec.Serialized;
// otherwise a concurrent reader may observe fan1 updated and fan2 not yet.
package fan

import (
	"sync/atomic"

	"github.com/mscrnt/thermalctl/pkg/ec"
	"github.com/mscrnt/thermalctl/pkg/logger"
	"github.com/mscrnt/thermalctl/pkg/regmap"
)

// Controller drives the fan registers of one register map
type Controller struct {
	ec   ec.Access
	regs regmap.Map
	log  *logger.Logger

	// commanded is the last percentage written successfully, -1 when none
	commanded atomic.Int32
}

// NewController creates a fan controller over acc using the layout regs
func NewController(acc ec.Access, regs regmap.Map, log *logger.Logger) *Controller {
	c := &Controller{
		ec:   acc,
		regs: regs,
		log:  logger.OrDefault(log).With("fan"),
	}
	c.commanded.Store(-1)
	return c
}

// PercentToUnits converts a percentage to speed-set units on the fixed 55 unit scale
func PercentToUnits(pct int) byte {
	return byte(clamp(pct, 0, 100) * regmap.SpeedScale / 100)
}

// UnitsToPercent converts speed-set units back to a percentage
func UnitsToPercent(units byte) int {
	return clamp(int(units)*100/regmap.SpeedScale, 0, 100)
}

// SetSpeedPercent writes pct (clamped to 0..100) to both fans.
// It succeeds only if both writes succeed.
func (c *Controller) SetSpeedPercent(pct int) bool {
	pct = clamp(pct, 0, 100)
	units := PercentToUnits(pct)

	ok := c.writeBoth(units)
	if ok {
		c.commanded.Store(int32(pct))
	} else {
		c.log.Debugf("set speed %d%% (%d units) failed", pct, units)
	}
	return ok
}

// SetLevel writes a raw speed-set level to both fans, bypassing the percent scale
func (c *Controller) SetLevel(level int) bool {
	units := byte(clamp(level, 0, 0xFF))
	ok := c.writeBoth(units)
	if !ok {
		c.log.Debugf("set level %d failed", level)
	}
	return ok
}

func (c *Controller) writeBoth(units byte) bool {
	var ok1, ok2 bool
	ec.Atomically(c.ec, func(a ec.Access) {
		ok1 = a.Write(c.regs.Fan1Speed.Addr, units)
		ok2 = a.Write(c.regs.Fan2Speed.Addr, units)
	})
	return ok1 && ok2
}

// SetProfile applies p. Auto hands control back to firmware; the other profiles
// take manual control and apply their fixed percentage.
func (c *Controller) SetProfile(p Profile) bool {
	pct, manual := p.Percent()
	if !manual {
		return c.SetBiosControl(true)
	}
	if !c.SetBiosControl(false) {
		c.log.Debugf("profile %s: could not take manual control", p)
		return false
	}
	return c.SetSpeedPercent(pct)
}

// SetBoost toggles the fan boost register
func (c *Controller) SetBoost(enabled bool) bool {
	v := regmap.BoostOff
	if enabled {
		v = regmap.BoostOn
	}
	return c.ec.Write(c.regs.FanBoost.Addr, v)
}

// SetBiosControl hands fan control to the firmware (true) or forces manual mode (false)
func (c *Controller) SetBiosControl(enabled bool) bool {
	v := regmap.FanStateManual
	if enabled {
		v = regmap.FanStateAuto
		c.commanded.Store(-1)
	}
	return c.ec.Write(c.regs.FanState.Addr, v)
}

// Speeds returns both fans' speed-set registers in RPM, 0 when unreadable
func (c *Controller) Speeds() (rpm1, rpm2 int) {
	return c.RPM(0), c.RPM(1)
}

// RPM returns one fan's speed-set register in RPM, 0 when unreadable
func (c *Controller) RPM(fan int) int {
	v, ok := c.ec.Read(c.regs.FanSpeed(fan).Addr)
	if !ok {
		return 0
	}
	return int(v) * regmap.RPMUnit
}

// SpeedPercent returns both fans' speed-set registers as percentages, 0 when unreadable
func (c *Controller) SpeedPercent() (pct1, pct2 int) {
	return c.Percent(0), c.Percent(1)
}

// Percent returns one fan's speed-set register as a percentage
func (c *Controller) Percent(fan int) int {
	v, ok := c.ec.Read(c.regs.FanSpeed(fan).Addr)
	if !ok {
		return 0
	}
	return UnitsToPercent(v)
}

// ReportedPercent reads the firmware's read-only duty cycle register for fan
func (c *Controller) ReportedPercent(fan int) (int, bool) {
	v, ok := c.ec.Read(c.regs.FanPercent(fan).Addr)
	if !ok || !c.regs.FanPercent(fan).Legal(v) {
		return 0, false
	}
	return int(v), true
}

// Commanded returns the last percentage set through this controller, if any
func (c *Controller) Commanded() (int, bool) {
	v := c.commanded.Load()
	return int(v), v >= 0
}

// Boost reports whether fan boost is on
func (c *Controller) Boost() bool {
	v, ok := c.ec.Read(c.regs.FanBoost.Addr)
	return ok && v == regmap.BoostOn
}

// BiosControl reports whether the firmware controls the fans
func (c *Controller) BiosControl() bool {
	v, ok := c.ec.Read(c.regs.FanState.Addr)
	return ok && v == regmap.FanStateAuto
}

// Available reports whether the underlying EC was found
func (c *Controller) Available() bool {
	return c.ec.Available()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
