package calibration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRig is a fan whose RPM follows the last written level
type fakeRig struct {
	level       int
	bios        bool
	failLevel   int
	rpmPerLevel int
	levels      []int
}

func (f *fakeRig) SetLevel(level int) bool {
	if f.failLevel != 0 && level == f.failLevel {
		return false
	}
	f.level = level
	f.bios = false
	f.levels = append(f.levels, level)
	return true
}

func (f *fakeRig) SetBiosControl(enabled bool) bool {
	f.bios = enabled
	return true
}

func (f *fakeRig) FanRPM(fan int) (int, bool) {
	if f.level < 10 {
		return 0, true
	}
	return f.level*f.rpmPerLevel + fan*50, true
}

func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}

func TestDefaultLevels(t *testing.T) {
	p := NewProfile("x", "x")
	assert.Equal(t, []int{0, 5, 10, 15, 20, 25, 30, 35, 40, 45, 50, 55}, DefaultLevels(p))

	p.MaxLevel = 100
	levels := DefaultLevels(p)
	assert.Equal(t, 0, levels[0])
	assert.Equal(t, 100, levels[len(levels)-1])
}

func TestWizardRun(t *testing.T) {
	rig := &fakeRig{rpmPerLevel: 100}
	p := NewProfile("GS66", "Stealth")
	at := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	var seen []Step
	w := &Wizard{
		Profile: p,
		Fans:    rig,
		RPM:     rig,
		Levels:  []int{0, 5, 10, 30, 55},
		Sleep:   noSleep,
		Now:     func() time.Time { return at },
		OnStep:  func(s Step) { seen = append(seen, s) },
	}

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, summary.Cancelled)
	assert.Len(t, summary.Steps, 5)
	assert.Len(t, seen, 5)

	assert.True(t, p.Valid())
	assert.Equal(t, at, p.CalibratedAt)
	assert.Equal(t, 10, p.MinSpinLevel)
	assert.Equal(t, 5500, p.Fan0MaxRPM)
	assert.Equal(t, 5550, p.Fan1MaxRPM)
	assert.Equal(t, Curve{{0, 0}, {5, 0}, {10, 1000}, {30, 3000}, {55, 5500}}, p.Fan0Curve)
	assert.True(t, rig.bios, "fans handed back to firmware")

	require.Len(t, summary.Fits, 2)
	assert.True(t, summary.Fits[0].Monotonic)
	assert.Equal(t, 5, summary.Fits[0].Samples)
	assert.Greater(t, summary.Fits[0].Slope, 0.0)
	assert.Greater(t, summary.Fits[0].RSquared, 0.9)
}

func TestWizardPartialSweepSetsMaxRPM(t *testing.T) {
	rig := &fakeRig{rpmPerLevel: 60}
	p := NewProfile("x", "x")
	w := &Wizard{Profile: p, Fans: rig, RPM: rig, Levels: []int{0, 10, 20, 30}, Sleep: noSleep}

	_, err := w.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1800, p.Fan0MaxRPM)
	assert.Equal(t, 1850, p.Fan1MaxRPM)
	assert.Equal(t, p.MaxLevel, p.RPMToLevel(0, 1800))
	assert.Equal(t, 1800, p.ExpectedRPM(0, 100))
}

func TestWizardSkipsFailedWrites(t *testing.T) {
	rig := &fakeRig{rpmPerLevel: 100, failLevel: 30}
	p := NewProfile("x", "x")
	w := &Wizard{Profile: p, Fans: rig, RPM: rig, Levels: []int{0, 30, 55}, Sleep: noSleep}

	summary, err := w.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summary.Steps, 3)
	assert.False(t, summary.Steps[1].WriteOK)
	_, ok := p.Fan0Curve.At(30)
	assert.False(t, ok)
}

func TestWizardCancelled(t *testing.T) {
	rig := &fakeRig{rpmPerLevel: 100}
	p := NewProfile("x", "x")
	ctx, cancel := context.WithCancel(context.Background())

	w := &Wizard{
		Profile: p,
		Fans:    rig,
		RPM:     rig,
		Levels:  []int{0, 20, 40, 55},
		Sleep:   noSleep,
		OnStep: func(s Step) {
			if s.Level == 20 {
				cancel()
			}
		},
	}

	summary, err := w.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, summary.Cancelled)
	assert.Len(t, summary.Steps, 2)
	assert.False(t, p.Valid(), "partial run is not a calibration")
	assert.True(t, rig.bios)
	assert.Equal(t, []int{0, 20}, rig.levels)
}

func TestWizardRequiresCollaborators(t *testing.T) {
	_, err := (&Wizard{}).Run(context.Background())
	assert.Error(t, err)
}

func TestFitsFlagNonMonotonic(t *testing.T) {
	p := NewProfile("x", "x")
	p.FanCount = 1
	p.Fan0Curve = Curve{{0, 0}, {20, 2500}, {40, 2000}, {55, 5000}}

	f := fits(p)
	require.Len(t, f, 1)
	assert.False(t, f[0].Monotonic)
}
