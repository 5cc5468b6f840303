// Package verify applies a fan percentage and checks the fans actually reached
// the speed the calibration profile predicts.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/mscrnt/thermalctl/pkg/calibration"
	"github.com/mscrnt/thermalctl/pkg/logger"
)

// TolerancePercent is how far the measured RPM may stray from the prediction
const TolerancePercent = 15

// DefaultSettle is how long fans get to spin up before the second reading
const DefaultSettle = 3 * time.Second

// Result records one apply attempt
type Result struct {
	Fan              int           `json:"fan"`
	RequestedPercent int           `json:"requested_percent"`
	Level            int           `json:"level"`
	ExpectedRPM      int           `json:"expected_rpm"`
	RPMBefore        int           `json:"rpm_before"`
	RPMAfter         int           `json:"rpm_after"`
	WriteOK          bool          `json:"write_ok"`
	Elapsed          time.Duration `json:"elapsed"`
	At               time.Time     `json:"at"`
}

// Passed is true when the write succeeded and the fan landed within tolerance.
// A zero prediction always passes.
func (r Result) Passed() bool {
	if !r.WriteOK {
		return false
	}
	if r.ExpectedRPM == 0 {
		return true
	}
	return abs(r.RPMAfter-r.ExpectedRPM)*100 <= TolerancePercent*r.ExpectedRPM
}

// PercentError is |actual-expected|*100/expected, or 0 when nothing was expected
func (r Result) PercentError() float64 {
	if r.ExpectedRPM == 0 {
		return 0
	}
	return float64(abs(r.RPMAfter-r.ExpectedRPM)) * 100 / float64(r.ExpectedRPM)
}

func (r Result) String() string {
	verdict := "FAIL"
	if r.Passed() {
		verdict = "PASS"
	}
	return fmt.Sprintf("%s fan%d %d%% (level %d): expected %d rpm, %d -> %d rpm (%.1f%% off) in %s",
		verdict, r.Fan+1, r.RequestedPercent, r.Level, r.ExpectedRPM,
		r.RPMBefore, r.RPMAfter, r.PercentError(), r.Elapsed.Round(time.Millisecond))
}

// Applier performs the fan write under test
type Applier interface {
	SetSpeedPercent(pct int) bool
}

// Verifier runs one apply and measure cycle. It does not retry.
type Verifier struct {
	Fans    Applier
	RPM     calibration.RPMReader
	Profile *calibration.Profile
	// Fan selects which fan is measured; the write always covers both
	Fan    int
	Settle time.Duration
	Sleep  func(ctx context.Context, d time.Duration) error
	Now    func() time.Time
	Logger *logger.Logger
}

// Apply writes pct, waits for the fans to settle and compares the new RPM with
// the profile's prediction. The error is non-nil only when ctx ends during the
// settle wait; the partial Result is still returned.
func (v *Verifier) Apply(ctx context.Context, pct int) (Result, error) {
	now := v.Now
	if now == nil {
		now = time.Now
	}
	sleep := v.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	settle := v.Settle
	if settle == 0 {
		settle = DefaultSettle
	}
	log := logger.OrDefault(v.Logger).With("verify")
	profile := v.Profile
	if profile == nil {
		profile = calibration.NewProfile("uncalibrated", "")
	}

	start := now()
	r := Result{Fan: v.Fan, RequestedPercent: clampPercent(pct), At: start}
	r.Level = profile.PercentToLevel(r.RequestedPercent)
	r.RPMBefore = v.read()

	r.WriteOK = v.Fans.SetSpeedPercent(r.RequestedPercent)
	if r.WriteOK {
		if err := sleep(ctx, settle); err != nil {
			r.Elapsed = now().Sub(start)
			return r, fmt.Errorf("settle interrupted: %w", err)
		}
	} else {
		log.Warnf("write of %d%% failed, measuring without settling", r.RequestedPercent)
	}

	r.RPMAfter = v.read()
	r.ExpectedRPM = profile.ExpectedRPM(v.Fan, r.RequestedPercent)
	r.Elapsed = now().Sub(start)

	log.Debugf("%s", r)
	return r, nil
}

func (v *Verifier) read() int {
	if v.RPM == nil {
		return 0
	}
	rpm, ok := v.RPM.FanRPM(v.Fan)
	if !ok {
		return 0
	}
	return rpm
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func clampPercent(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
