// Package daemon runs the monitoring loop: it polls hardware status at a
// fixed interval, applies the critical-temperature safety action, fires due
// schedules and reloads its configuration when the file changes.
//
// Cancellation is cooperative. The context is checked before every
// iteration and during the wait between iterations, never in the middle of
// an EC transfer.
package daemon

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mscrnt/thermalctl/pkg/calibration"
	"github.com/mscrnt/thermalctl/pkg/config"
	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/mscrnt/thermalctl/pkg/logger"
	"github.com/mscrnt/thermalctl/pkg/telemetry"
)

// SafetyHysteresis is how far below the critical temperature the hottest
// sensor must fall before the safety action can fire again
const SafetyHysteresis = 5.0

// Hardware is the part of hardware.Service the daemon drives
type Hardware interface {
	Status() hardware.Status
	Execute(name, arg string) hardware.CommandResult
	SetProfile(p *calibration.Profile)
}

// Recorder stores commands issued by the daemon
type Recorder interface {
	RecordCommand(source, command, arg string, ok bool, message string) (*db.Run, error)
}

// Scheduler fires schedules whose next run has passed
type Scheduler interface {
	CheckDue() error
}

// ProfileLoader returns the stored calibration for a product, or nil
type ProfileLoader func(productID string) (*calibration.Profile, error)

// Options wires the optional collaborators
type Options struct {
	// ConfigPath is watched for changes when set
	ConfigPath  string
	History     Recorder
	Scheduler   Scheduler
	LoadProfile ProfileLoader
	Logger      *logger.Logger
	// Sleep waits between iterations; it must return early when ctx is done
	Sleep func(ctx context.Context, d time.Duration) error
	// OnTick observes every polled status
	OnTick func(hardware.Status)
}

// Daemon is the polling loop
type Daemon struct {
	hw   Hardware
	opts Options
	log  *logger.Logger

	mu      sync.RWMutex
	cfg     config.Config
	tripped bool
	ticks   int
}

// New creates a daemon over hw with the initial configuration
func New(cfg config.Config, hw Hardware, opts Options) *Daemon {
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}
	return &Daemon{
		hw:   hw,
		opts: opts,
		log:  logger.OrDefault(opts.Logger).With("daemon"),
		cfg:  cfg,
	}
}

// Config returns the configuration currently in effect
func (d *Daemon) Config() config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// Tripped reports whether the safety action is currently engaged
func (d *Daemon) Tripped() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.tripped
}

// Ticks returns the number of completed iterations
func (d *Daemon) Ticks() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ticks
}

// Run polls until ctx is cancelled. Cancellation is not an error.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.loadProfile(); err != nil {
		d.log.Warnf("%v", err)
	}

	if d.opts.ConfigPath != "" {
		w, err := newWatcher(d.opts.ConfigPath, d.log)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()
		go w.run(ctx, func() {
			if err := d.Reload(); err != nil {
				d.log.Warnf("keeping previous configuration: %v", err)
			}
		})
	}

	d.log.Infof("polling every %s", d.Config().Daemon.PollInterval)
	for {
		if ctx.Err() != nil {
			d.log.Infof("stopped after %d iterations", d.Ticks())
			return nil
		}

		d.Tick()

		if err := d.opts.Sleep(ctx, d.Config().Daemon.PollInterval); err != nil {
			d.log.Infof("stopped after %d iterations", d.Ticks())
			return nil
		}
	}
}

// Tick performs one iteration: poll, log, enforce safety, fire schedules
func (d *Daemon) Tick() hardware.Status {
	st := d.hw.Status()
	d.logStatus(st)
	d.checkSafety(st)

	if d.opts.Scheduler != nil {
		if err := d.opts.Scheduler.CheckDue(); err != nil {
			d.log.Warnf("schedule check failed: %v", err)
		}
	}

	d.mu.Lock()
	d.ticks++
	d.mu.Unlock()

	if d.opts.OnTick != nil {
		d.opts.OnTick(st)
	}
	return st
}

func (d *Daemon) logStatus(st hardware.Status) {
	if !st.ECAvailable {
		d.log.Warnf("embedded controller unavailable: %s", st.Remediation)
		return
	}
	d.log.Infof("cpu=%s gpu=%s fan1=%s (%d%%) fan2=%s (%d%%) mode=%s",
		formatReading(st.CPUTemp, "C"), formatReading(st.GPUTemp, "C"),
		formatReading(st.Fan1RPM, "rpm"), st.Fan1Percent,
		formatReading(st.Fan2RPM, "rpm"), st.Fan2Percent,
		st.Mode)
}

// checkSafety fires the configured action once when the hottest sensor
// reaches CriticalTemp and rearms after it cools by SafetyHysteresis
func (d *Daemon) checkSafety(st hardware.Status) {
	cfg := d.Config().Daemon
	if cfg.CriticalTemp <= 0 || cfg.SafetyAction == config.SafetyNone {
		return
	}
	temp, ok := st.MaxTemp()
	if !ok {
		return
	}
	critical := float64(cfg.CriticalTemp)

	d.mu.Lock()
	tripped := d.tripped
	if tripped && temp < critical-SafetyHysteresis {
		d.tripped = false
	}
	d.mu.Unlock()

	if tripped {
		if temp < critical-SafetyHysteresis {
			d.log.Infof("temperature back to %.0fC, safety rearmed", temp)
		}
		return
	}
	if temp < critical {
		return
	}

	command, arg := safetyCommand(cfg.SafetyAction)
	d.log.Warnf("temperature %.0fC at or above critical %dC, applying %s", temp, cfg.CriticalTemp, cfg.SafetyAction)
	result := d.hw.Execute(command, arg)
	if d.opts.History != nil {
		if _, err := d.opts.History.RecordCommand(db.SourceDaemon, command, arg, result.OK, result.Message); err != nil {
			d.log.Warnf("failed to record safety action: %v", err)
		}
	}
	if !result.OK {
		d.log.Errorf("%s", result)
		return
	}

	d.mu.Lock()
	d.tripped = true
	d.mu.Unlock()
}

func safetyCommand(action string) (string, string) {
	if action == config.SafetyFullSpeed {
		return hardware.CmdFanProfile, "max"
	}
	return hardware.CmdFanBios, "on"
}

// Reload rereads the configuration file and the stored calibration. An
// invalid file leaves the running configuration untouched.
func (d *Daemon) Reload() error {
	if d.opts.ConfigPath == "" {
		return d.loadProfile()
	}

	cfg, err := config.Load(d.opts.ConfigPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	d.cfg = cfg
	d.mu.Unlock()
	d.log.Infof("configuration reloaded from %s", d.opts.ConfigPath)

	return d.loadProfile()
}

func (d *Daemon) loadProfile() error {
	productID := d.Config().Fan.ProductID
	if d.opts.LoadProfile == nil || productID == "" {
		return nil
	}
	p, err := d.opts.LoadProfile(productID)
	if err != nil {
		return fmt.Errorf("failed to load calibration for %s: %w", productID, err)
	}
	if p != nil {
		d.hw.SetProfile(p)
		d.log.Infof("using calibration for %s", productID)
	}
	return nil
}

func formatReading(r telemetry.Reading, unit string) string {
	if !r.OK {
		return "n/a"
	}
	return fmt.Sprintf("%.0f%s[%s]", r.Value, unit, r.Source)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		d = time.Second
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
