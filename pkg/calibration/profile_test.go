package calibration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// measured returns a calibrated two fan profile with samples at 0, 25 and 55
func measured() *Profile {
	p := NewProfile("GS66", "Stealth GS66")
	p.Fan0MaxRPM = 5000
	p.Fan1MaxRPM = 5000
	for _, s := range []Sample{{0, 0}, {25, 1750}, {55, 5000}} {
		p.Fan0Curve.Set(s.Level, s.RPM)
		p.Fan1Curve.Set(s.Level, s.RPM)
	}
	p.CalibratedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return p
}

func TestCurveSetKeepsOrder(t *testing.T) {
	var c Curve
	c.Set(30, 3000)
	c.Set(10, 1000)
	c.Set(20, 2000)
	c.Set(10, 1100)

	assert.Equal(t, Curve{{10, 1100}, {20, 2000}, {30, 3000}}, c)

	rpm, ok := c.At(20)
	assert.True(t, ok)
	assert.Equal(t, 2000, rpm)
	_, ok = c.At(25)
	assert.False(t, ok)

	below, lo, above, hi := c.Bounds(25)
	assert.True(t, lo)
	assert.True(t, hi)
	assert.Equal(t, Sample{20, 2000}, below)
	assert.Equal(t, Sample{30, 3000}, above)

	_, lo, _, hi = c.Bounds(5)
	assert.False(t, lo)
	assert.True(t, hi)
}

func TestValid(t *testing.T) {
	assert.True(t, measured().Valid())

	tests := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"no product id", func(p *Profile) { p.ProductID = "" }},
		{"no samples", func(p *Profile) { p.Fan0Curve = nil; p.Fan1Curve = nil }},
		{"zero max level", func(p *Profile) { p.MaxLevel = 0 }},
		{"never calibrated", func(p *Profile) { p.CalibratedAt = time.Time{} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := measured()
			tt.mutate(p)
			assert.False(t, p.Valid())
		})
	}
}

func TestPercentToLevelBounds(t *testing.T) {
	for _, maxLevel := range []int{55, 100} {
		p := NewProfile("x", "x")
		p.MaxLevel = maxLevel
		p.MinSpinLevel = 12

		assert.Equal(t, 0, p.PercentToLevel(0))
		assert.Equal(t, maxLevel, p.PercentToLevel(100))
		assert.Equal(t, 0, p.PercentToLevel(-5))
		assert.Equal(t, maxLevel, p.PercentToLevel(150))

		prev := 0
		for pct := 0; pct <= 100; pct++ {
			level := p.PercentToLevel(pct)
			assert.GreaterOrEqual(t, level, prev, "pct %d", pct)
			prev = level
		}
	}
}

func TestPercentToLevelBelowSpin(t *testing.T) {
	p := NewProfile("x", "x")
	p.MinSpinLevel = 11 // 20% of 55

	assert.Equal(t, 0, p.PercentToLevel(19))
	assert.Equal(t, 11, p.PercentToLevel(20))
	assert.Equal(t, 28, p.PercentToLevel(50))
}

func TestExpectedRPMInterpolates(t *testing.T) {
	p := measured()

	// 73% of 55 rounds to level 40
	require.Equal(t, 40, p.PercentToLevel(73))
	rpm := p.ExpectedRPM(0, 73)
	assert.Greater(t, rpm, 1750)
	assert.Less(t, rpm, 5000)
	assert.Equal(t, 3375, rpm)

	assert.Equal(t, 5000, p.ExpectedRPM(0, 100))
	assert.Equal(t, 1750, p.ExpectedRPM(1, 45)) // level 25 exactly
	assert.Equal(t, 0, p.ExpectedRPM(0, 0))
}

func TestExpectedRPMImplicitBounds(t *testing.T) {
	p := NewProfile("x", "x")
	p.Fan0MaxRPM = 6000
	p.Fan0Curve.Set(20, 2000)

	// below the only sample: (0,0) bound
	assert.Equal(t, 1000, Interpolate(p.Fan0Curve, 10, 55, 6000))
	// above it: (maxLevel, maxRPM) bound
	assert.Equal(t, 3143, Interpolate(p.Fan0Curve, 30, 55, 6000))
	assert.Equal(t, 6000, Interpolate(p.Fan0Curve, 55, 55, 6000))
}

func TestExpectedRPMSeedsBaseline(t *testing.T) {
	p := NewProfile("x", "x")
	rpm := p.ExpectedRPM(0, 100)
	assert.Equal(t, DefaultMaxRPM, rpm)
	assert.NotEmpty(t, p.Fan0Curve)
	assert.NotEmpty(t, p.Fan1Curve)
	assert.False(t, p.Valid(), "baseline is not a calibration")
}

func TestRPMToLevel(t *testing.T) {
	p := measured()

	assert.Equal(t, 0, p.RPMToLevel(0, 0))
	assert.Equal(t, 55, p.RPMToLevel(0, 5000))
	assert.Equal(t, 55, p.RPMToLevel(0, 9000))
	assert.Equal(t, 25, p.RPMToLevel(0, 2000))
	assert.Equal(t, 0, p.RPMToLevel(0, 500))
	// nearest neighbour, not interpolated: 3375 rpm is the interpolated value at
	// level 40 but the nearest sample is level 25
	assert.Equal(t, 25, p.RPMToLevel(0, 3375))
	assert.Equal(t, 55, p.RPMToLevel(0, 3400))
}

func TestRPMToLevelTieKeepsFirst(t *testing.T) {
	p := NewProfile("x", "x")
	p.Fan0Curve.Set(10, 1000)
	p.Fan0Curve.Set(30, 3000)

	assert.Equal(t, 10, p.RPMToLevel(0, 2000))
}

func TestEnsureBaselineCurve(t *testing.T) {
	p := NewProfile("x", "x")
	p.Fan0MaxRPM = 4000
	p.Fan1MaxRPM = 0

	p.EnsureBaselineCurve()
	first := append(Curve(nil), p.Fan0Curve...)
	assert.Equal(t, Curve{{0, 0}, {25, 1400}, {55, 4000}}, first)
	assert.Equal(t, Curve{{0, 0}, {25, 1925}, {55, DefaultMaxRPM}}, p.Fan1Curve)

	p.EnsureBaselineCurve()
	assert.Equal(t, first, p.Fan0Curve)
}

func TestEnsureBaselineUsesMinSpin(t *testing.T) {
	p := NewProfile("x", "x")
	p.MaxLevel = 100
	p.MinSpinLevel = 40
	p.FanCount = 1
	p.Fan0MaxRPM = 5000

	p.EnsureBaselineCurve()
	assert.Equal(t, Curve{{0, 0}, {40, 1750}, {100, 5000}}, p.Fan0Curve)
	assert.Empty(t, p.Fan1Curve)
}

func TestEnsureBaselineKeepsMeasured(t *testing.T) {
	p := measured()
	before := append(Curve(nil), p.Fan0Curve...)
	p.EnsureBaselineCurve()
	assert.Equal(t, before, p.Fan0Curve)
}

func TestAddStep(t *testing.T) {
	p := NewProfile("x", "x")
	p.AddStep(Step{Level: 0, WriteOK: true})
	p.AddStep(Step{Level: 10, Fan0RPM: 0, Fan1RPM: 0, WriteOK: true})
	p.AddStep(Step{Level: 20, Fan0RPM: 1900, Fan1RPM: 2000, WriteOK: true})
	p.AddStep(Step{Level: 30, Fan0RPM: 9999, WriteOK: false})
	p.AddStep(Step{Level: 55, Fan0RPM: 4800, Fan1RPM: 5100, WriteOK: true})

	assert.Equal(t, Curve{{0, 0}, {10, 0}, {20, 1900}, {55, 4800}}, p.Fan0Curve)
	assert.Equal(t, 20, p.MinSpinLevel)
	assert.Equal(t, 4800, p.Fan0MaxRPM)
	assert.Equal(t, 5100, p.Fan1MaxRPM)
}
