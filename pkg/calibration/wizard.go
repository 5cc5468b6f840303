package calibration

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/mscrnt/thermalctl/pkg/logger"
	"gonum.org/v1/gonum/stat"
)

// FanDriver writes raw fan levels during a calibration run
type FanDriver interface {
	SetLevel(level int) bool
	SetBiosControl(enabled bool) bool
}

// RPMReader measures fan speed
type RPMReader interface {
	FanRPM(fan int) (int, bool)
}

// Fit summarizes a least-squares line through one fan's measured curve
type Fit struct {
	Fan       int     `json:"fan"`
	Samples   int     `json:"samples"`
	Intercept float64 `json:"intercept"`
	Slope     float64 `json:"slope"` // RPM per level
	RSquared  float64 `json:"rSquared"`
	Monotonic bool    `json:"monotonic"`
}

// Summary is the outcome of a calibration run
type Summary struct {
	Steps     []Step `json:"steps"`
	Fits      []Fit  `json:"fits"`
	Cancelled bool   `json:"cancelled"`
}

// Wizard steps the fans through a list of levels and records the RPM reached
// at each one into Profile.
type Wizard struct {
	Profile *Profile
	Fans    FanDriver
	RPM     RPMReader
	Levels  []int
	Settle  time.Duration
	Sleep   func(ctx context.Context, d time.Duration) error
	Now     func() time.Time
	Logger  *logger.Logger
	// OnStep is called after every measured level, e.g. to report progress
	OnStep func(Step)
}

// DefaultLevels returns 0 followed by ten evenly spaced levels up to MaxLevel
func DefaultLevels(p *Profile) []int {
	maxLevel := p.MaxLevel
	if maxLevel <= 0 {
		maxLevel = DefaultMaxLevel
	}
	step := maxLevel / 10
	if step < 1 {
		step = 1
	}

	levels := []int{0}
	for l := step; l < maxLevel; l += step {
		levels = append(levels, l)
	}
	return append(levels, maxLevel)
}

// Run measures every level in order. It checks ctx before each level and
// always hands the fans back to firmware control when it returns. Steps
// measured before a cancellation are kept in the profile, but the profile is
// only stamped as calibrated when every level was measured.
func (w *Wizard) Run(ctx context.Context) (Summary, error) {
	if w.Profile == nil || w.Fans == nil || w.RPM == nil {
		return Summary{}, fmt.Errorf("calibration wizard requires a profile, a fan driver and an RPM reader")
	}
	log := logger.OrDefault(w.Logger).With("calibrate")
	sleep := w.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	now := w.Now
	if now == nil {
		now = time.Now
	}
	levels := w.Levels
	if len(levels) == 0 {
		levels = DefaultLevels(w.Profile)
	}

	if !w.Fans.SetBiosControl(false) {
		return Summary{}, fmt.Errorf("failed to take manual fan control")
	}
	defer func() {
		if !w.Fans.SetBiosControl(true) {
			log.Warnf("failed to hand fans back to firmware control")
		}
	}()

	var summary Summary
	for _, level := range levels {
		if err := ctx.Err(); err != nil {
			summary.Cancelled = true
			summary.Fits = fits(w.Profile)
			return summary, err
		}

		step := Step{
			Level:   level,
			Percent: w.Profile.LevelToPercent(level),
			Settle:  w.Settle,
		}
		step.WriteOK = w.Fans.SetLevel(level)
		if !step.WriteOK {
			log.Warnf("level %d: write failed, skipping", level)
		} else if err := sleep(ctx, w.Settle); err != nil {
			summary.Cancelled = true
			summary.Fits = fits(w.Profile)
			return summary, err
		}

		if step.WriteOK {
			step.Fan0RPM, _ = w.RPM.FanRPM(0)
			step.Fan1RPM, _ = w.RPM.FanRPM(1)
		}
		step.At = now()

		w.Profile.AddStep(step)
		summary.Steps = append(summary.Steps, step)
		log.Infof("level %d (%d%%): fan0=%d rpm fan1=%d rpm", step.Level, step.Percent, step.Fan0RPM, step.Fan1RPM)
		if w.OnStep != nil {
			w.OnStep(step)
		}
	}

	w.Profile.Finish(now())
	summary.Fits = fits(w.Profile)
	return summary, nil
}

// fits computes a least-squares summary per fan curve
func fits(p *Profile) []Fit {
	var out []Fit
	for fan := 0; fan < p.fans(); fan++ {
		curve := p.Curve(fan)
		f := Fit{Fan: fan, Samples: len(curve), Monotonic: true}
		if len(curve) >= 2 {
			xs := make([]float64, len(curve))
			ys := make([]float64, len(curve))
			for i, s := range curve {
				xs[i] = float64(s.Level)
				ys[i] = float64(s.RPM)
				if i > 0 && s.RPM < curve[i-1].RPM {
					f.Monotonic = false
				}
			}
			f.Intercept, f.Slope = stat.LinearRegression(xs, ys, nil, false)
			f.RSquared = stat.RSquared(xs, ys, nil, f.Intercept, f.Slope)
			if math.IsNaN(f.RSquared) {
				f.RSquared = 0
			}
		}
		out = append(out, f)
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
