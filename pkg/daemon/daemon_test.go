package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mscrnt/thermalctl/pkg/calibration"
	"github.com/mscrnt/thermalctl/pkg/config"
	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/mscrnt/thermalctl/pkg/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHardware struct {
	mu       sync.Mutex
	temps    []float64
	polls    int
	commands []string
	profile  *calibration.Profile
	fail     bool
}

func (f *fakeHardware) Status() hardware.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	st := hardware.Status{ECAvailable: true, Mode: "balanced"}
	if len(f.temps) > 0 {
		i := f.polls
		if i >= len(f.temps) {
			i = len(f.temps) - 1
		}
		st.CPUTemp = telemetry.Reading{Value: f.temps[i], Source: telemetry.SourceEC, OK: true}
	}
	f.polls++
	return st
}

func (f *fakeHardware) Execute(name, arg string) hardware.CommandResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, name+" "+arg)
	return hardware.CommandResult{Command: name, OK: !f.fail}
}

func (f *fakeHardware) SetProfile(p *calibration.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
}

func (f *fakeHardware) Commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type fakeRecorder struct {
	sources []string
}

func (r *fakeRecorder) RecordCommand(source, command, arg string, ok bool, message string) (*db.Run, error) {
	r.sources = append(r.sources, source)
	return &db.Run{}, nil
}

type countingScheduler struct{ calls int }

func (s *countingScheduler) CheckDue() error {
	s.calls++
	return nil
}

// stopAfter cancels ctx once n sleeps have happened
func stopAfter(n int, cancel context.CancelFunc) func(context.Context, time.Duration) error {
	count := 0
	return func(ctx context.Context, _ time.Duration) error {
		count++
		if count >= n {
			cancel()
		}
		return ctx.Err()
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	hw := &fakeHardware{}
	sched := &countingScheduler{}
	ctx, cancel := context.WithCancel(context.Background())

	d := New(config.DefaultConfig(), hw, Options{Scheduler: sched, Sleep: stopAfter(3, cancel)})

	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 3, d.Ticks())
	assert.Equal(t, 3, sched.calls)
}

func TestRunChecksCancellationFirst(t *testing.T) {
	hw := &fakeHardware{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(config.DefaultConfig(), hw, Options{})
	require.NoError(t, d.Run(ctx))
	assert.Equal(t, 0, d.Ticks())
	assert.Equal(t, 0, hw.polls)
}

func TestSafetyAction(t *testing.T) {
	tests := []struct {
		name   string
		action string
		temps  []float64
		want   []string
	}{
		{"below critical", config.SafetyBiosControl, []float64{70, 80}, nil},
		{"bios control once", config.SafetyBiosControl, []float64{96, 97, 99}, []string{"fan-bios on"}},
		{"full speed", config.SafetyFullSpeed, []float64{95}, []string{"fan-profile max"}},
		{"rearm after cooling", config.SafetyBiosControl, []float64{96, 92, 89, 96}, []string{"fan-bios on", "fan-bios on"}},
		{"disabled", config.SafetyNone, []float64{120}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Daemon.CriticalTemp = 95
			cfg.Daemon.SafetyAction = tt.action
			hw := &fakeHardware{temps: tt.temps}
			rec := &fakeRecorder{}

			d := New(cfg, hw, Options{History: rec})
			for range tt.temps {
				d.Tick()
			}

			assert.Equal(t, tt.want, hw.Commands())
			assert.Len(t, rec.sources, len(tt.want))
			for _, s := range rec.sources {
				assert.Equal(t, db.SourceDaemon, s)
			}
		})
	}
}

func TestSafetyRetriesFailedAction(t *testing.T) {
	hw := &fakeHardware{temps: []float64{99}, fail: true}
	d := New(config.DefaultConfig(), hw, Options{})

	d.Tick()
	d.Tick()
	assert.False(t, d.Tripped())
	assert.Len(t, hw.Commands(), 2)
}

func TestSafetyIgnoresMissingTemperature(t *testing.T) {
	hw := &fakeHardware{}
	d := New(config.DefaultConfig(), hw, Options{})
	d.Tick()
	assert.Empty(t, hw.Commands())
}

func TestReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thermalctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  critical_temp: 88\nfan:\n  product_id: GS66\n"), 0o600))

	stored := calibration.NewProfile("GS66", "Stealth")
	var asked string
	hw := &fakeHardware{}
	d := New(config.DefaultConfig(), hw, Options{
		ConfigPath: path,
		LoadProfile: func(id string) (*calibration.Profile, error) {
			asked = id
			return stored, nil
		},
	})

	require.NoError(t, d.Reload())
	assert.Equal(t, 88, d.Config().Daemon.CriticalTemp)
	assert.Equal(t, "GS66", asked)
	assert.Same(t, stored, hw.profile)

	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  critical_temp: 500\n"), 0o600))
	assert.Error(t, d.Reload())
	assert.Equal(t, 88, d.Config().Daemon.CriticalTemp, "invalid file keeps previous config")
}

func TestReloadProfileError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Fan.ProductID = "GS66"
	d := New(cfg, &fakeHardware{}, Options{
		LoadProfile: func(string) (*calibration.Profile, error) { return nil, errors.New("boom") },
	})
	assert.Error(t, d.Reload())
}

func TestWatchReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thermalctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  critical_temp: 90\n"), 0o600))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(path)
	require.NoError(t, err)
	d := New(cfg, &fakeHardware{}, Options{
		ConfigPath: path,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(10 * time.Millisecond):
				return nil
			}
		},
	})

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Eventually(t, func() bool { return d.Ticks() > 0 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  critical_temp: 80\n"), 0o600))
	assert.Eventually(t, func() bool { return d.Config().Daemon.CriticalTemp == 80 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
