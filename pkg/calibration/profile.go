// Package calibration models per-laptop fan calibration data: which RPM each
// fan reaches at each EC fan level, and the conversions between percent,
// level and RPM built on top of that table.
//
// PercentToLevel and ExpectedRPM interpolate linearly between samples, while
// RPMToLevel picks the nearest sample without interpolating. The two
// directions are deliberately not inverses of each other.
package calibration

import (
	"math"
	"sort"
	"time"
)

// Defaults for a profile of an unrecognized model
const (
	DefaultMaxLevel = 55
	DefaultMaxRPM   = 5500
	DefaultFanCount = 2

	// baselineSpinLevel is the lowest level used for the synthetic mid point
	baselineSpinLevel = 25
	// baselineSpinRatio is the share of max RPM assumed at the mid point
	baselineSpinRatio = 0.35
)

// Sample is one measured level to RPM pair
type Sample struct {
	Level int `json:"level" yaml:"level"`
	RPM   int `json:"rpm" yaml:"rpm"`
}

// Curve is a level to RPM table kept in ascending level order
type Curve []Sample

// Set inserts or replaces the sample at level
func (c *Curve) Set(level, rpm int) {
	i := sort.Search(len(*c), func(i int) bool { return (*c)[i].Level >= level })
	if i < len(*c) && (*c)[i].Level == level {
		(*c)[i].RPM = rpm
		return
	}
	*c = append(*c, Sample{})
	copy((*c)[i+1:], (*c)[i:])
	(*c)[i] = Sample{Level: level, RPM: rpm}
}

// At returns the RPM sampled exactly at level
func (c Curve) At(level int) (int, bool) {
	i := sort.Search(len(c), func(i int) bool { return c[i].Level >= level })
	if i < len(c) && c[i].Level == level {
		return c[i].RPM, true
	}
	return 0, false
}

// Bounds returns the nearest samples strictly below and strictly above level.
// lo and hi report whether each side exists.
func (c Curve) Bounds(level int) (below Sample, lo bool, above Sample, hi bool) {
	for _, s := range c {
		if s.Level < level {
			below, lo = s, true
		} else if s.Level > level {
			above, hi = s, true
			break
		}
	}
	return below, lo, above, hi
}

// Profile is the calibration record of one hardware model
type Profile struct {
	ProductID    string `json:"productId" yaml:"product_id"`
	ModelName    string `json:"modelName" yaml:"model_name"`
	MaxLevel     int    `json:"maxLevel" yaml:"max_level"`
	MinSpinLevel int    `json:"minSpinLevel" yaml:"min_spin_level"`
	FanCount     int    `json:"fanCount" yaml:"fan_count"`

	Fan0Curve  Curve `json:"fan0LevelToRpm" yaml:"fan0_level_to_rpm"`
	Fan1Curve  Curve `json:"fan1LevelToRpm" yaml:"fan1_level_to_rpm"`
	Fan0MaxRPM int   `json:"fan0MaxRpm" yaml:"fan0_max_rpm"`
	Fan1MaxRPM int   `json:"fan1MaxRpm" yaml:"fan1_max_rpm"`

	SupportsDirectRPM bool `json:"supportsDirectRpm" yaml:"supports_direct_rpm"`
	// CalibratedAt is the zero time until a calibration run completes
	CalibratedAt time.Time `json:"calibratedAt" yaml:"calibrated_at"`
}

// NewProfile creates the empty profile used for a model seen for the first time
func NewProfile(productID, modelName string) *Profile {
	return &Profile{
		ProductID:  productID,
		ModelName:  modelName,
		MaxLevel:   DefaultMaxLevel,
		FanCount:   DefaultFanCount,
		Fan0MaxRPM: DefaultMaxRPM,
		Fan1MaxRPM: DefaultMaxRPM,
	}
}

// Valid reports whether p holds a completed calibration
func (p *Profile) Valid() bool {
	return p.ProductID != "" &&
		(len(p.Fan0Curve) > 0 || len(p.Fan1Curve) > 0) &&
		p.MaxLevel > 0 &&
		!p.CalibratedAt.IsZero()
}

// Curve returns the table for fan 0 or 1
func (p *Profile) Curve(fan int) Curve {
	if fan == 1 {
		return p.Fan1Curve
	}
	return p.Fan0Curve
}

func (p *Profile) curvePtr(fan int) *Curve {
	if fan == 1 {
		return &p.Fan1Curve
	}
	return &p.Fan0Curve
}

// MaxRPM returns the top speed of fan 0 or 1
func (p *Profile) MaxRPM(fan int) int {
	if fan == 1 {
		return p.Fan1MaxRPM
	}
	return p.Fan0MaxRPM
}

func (p *Profile) setMaxRPM(fan, rpm int) {
	if fan == 1 {
		p.Fan1MaxRPM = rpm
		return
	}
	p.Fan0MaxRPM = rpm
}

func (p *Profile) fans() int {
	if p.FanCount < 1 {
		return 1
	}
	if p.FanCount > 2 {
		return 2
	}
	return p.FanCount
}

// EnsureBaselineCurve synthesizes a three point curve for every fan whose table
// is empty. Existing samples are never touched, so calling it again is a no-op.
func (p *Profile) EnsureBaselineCurve() {
	if p.MaxLevel <= 0 {
		p.MaxLevel = DefaultMaxLevel
	}

	spin := p.MinSpinLevel
	if spin < baselineSpinLevel {
		spin = baselineSpinLevel
	}

	for fan := 0; fan < p.fans(); fan++ {
		curve := p.curvePtr(fan)
		if len(*curve) > 0 {
			continue
		}
		maxRPM := p.MaxRPM(fan)
		if maxRPM <= 0 {
			maxRPM = DefaultMaxRPM
			p.setMaxRPM(fan, maxRPM)
		}

		curve.Set(0, 0)
		if spin < p.MaxLevel {
			curve.Set(spin, int(math.Round(float64(maxRPM)*baselineSpinRatio)))
		}
		curve.Set(p.MaxLevel, maxRPM)
	}
}

// PercentToLevel converts a duty cycle percentage to an EC fan level.
// Percentages below the minimum spin level map to 0 since the fan would not turn.
func (p *Profile) PercentToLevel(pct int) int {
	if p.MaxLevel <= 0 || pct <= 0 {
		return 0
	}
	if pct >= 100 {
		return p.MaxLevel
	}

	spinPct := p.MinSpinLevel * 100 / p.MaxLevel
	if pct < spinPct {
		return 0
	}
	return int(math.Round(float64(pct) * float64(p.MaxLevel) / 100))
}

// LevelToPercent is the approximate inverse of PercentToLevel
func (p *Profile) LevelToPercent(level int) int {
	if p.MaxLevel <= 0 || level <= 0 {
		return 0
	}
	if level >= p.MaxLevel {
		return 100
	}
	return int(math.Round(float64(level) * 100 / float64(p.MaxLevel)))
}

// ExpectedRPM predicts the RPM of fan at pct. It seeds the baseline curve when
// the fan has no data, uses an exact sample when one exists, and otherwise
// interpolates linearly between the neighbouring samples, with (0, 0) and
// (MaxLevel, MaxRPM) as implicit bounds.
func (p *Profile) ExpectedRPM(fan, pct int) int {
	p.EnsureBaselineCurve()
	level := p.PercentToLevel(pct)
	return Interpolate(p.Curve(fan), level, p.MaxLevel, p.MaxRPM(fan))
}

// Interpolate returns the RPM at level from curve, bounded by (0, 0) below and
// (maxLevel, maxRPM) above when no sample exists on that side.
func Interpolate(curve Curve, level, maxLevel, maxRPM int) int {
	if rpm, ok := curve.At(level); ok {
		return rpm
	}

	below, lo, above, hi := curve.Bounds(level)
	if !lo {
		below = Sample{Level: 0, RPM: 0}
	}
	if !hi {
		above = Sample{Level: maxLevel, RPM: maxRPM}
	}
	if above.Level <= below.Level {
		return below.RPM
	}

	ratio := float64(level-below.Level) / float64(above.Level-below.Level)
	return int(math.Round(float64(below.RPM) + ratio*float64(above.RPM-below.RPM)))
}

// RPMToLevel returns the level whose sample is closest to target. Ties keep
// the lowest level. 0 maps to level 0 and anything at or above the fan's max
// RPM maps to MaxLevel.
func (p *Profile) RPMToLevel(fan, target int) int {
	if target <= 0 {
		return 0
	}
	if maxRPM := p.MaxRPM(fan); maxRPM > 0 && target >= maxRPM {
		return p.MaxLevel
	}

	best, bestDiff := 0, math.MaxInt
	for _, s := range p.Curve(fan) {
		diff := s.RPM - target
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best, bestDiff = s.Level, diff
		}
	}
	return best
}
