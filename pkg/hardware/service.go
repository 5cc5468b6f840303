// Package hardware ties the EC, fan, performance and telemetry packages into
// the command surface used by the CLI, daemon, scheduler and agent.
package hardware

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/mscrnt/thermalctl/pkg/calibration"
	"github.com/mscrnt/thermalctl/pkg/config"
	"github.com/mscrnt/thermalctl/pkg/ec"
	"github.com/mscrnt/thermalctl/pkg/fan"
	"github.com/mscrnt/thermalctl/pkg/logger"
	"github.com/mscrnt/thermalctl/pkg/perf"
	"github.com/mscrnt/thermalctl/pkg/regmap"
	"github.com/mscrnt/thermalctl/pkg/telemetry"
	"github.com/mscrnt/thermalctl/pkg/verify"
)

// Command names understood by Execute
const (
	CmdFanProfile = "fan-profile"
	CmdFanPercent = "fan-percent"
	CmdFanBoost   = "fan-boost"
	CmdFanBios    = "fan-bios"
	CmdPerfMode   = "perf-mode"
	CmdThermalPL  = "tpl"
	CmdTCCOffset  = "tcc-offset"
)

// CommandResult reports the outcome of one command
type CommandResult struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func (r CommandResult) String() string {
	state := "failed"
	if r.OK {
		state = "succeeded"
	}
	if r.Message == "" {
		return fmt.Sprintf("%s %s", r.Command, state)
	}
	return fmt.Sprintf("%s %s: %s", r.Command, state, r.Message)
}

// Options assembles a Service from parts; New fills it from a Config
type Options struct {
	Access    ec.Access
	Registers regmap.Map
	// Hwmon is the OS sensor provider; nil leaves it out of the chain
	Hwmon *telemetry.HwmonProvider
	// MaxRPM is used for estimates when no calibration profile is loaded
	MaxRPM int
	Settle time.Duration
	Logger *logger.Logger
}

// Service is the hardware command surface
type Service struct {
	access ec.Access
	regs   regmap.Map
	hwmon  *telemetry.HwmonProvider
	maxRPM int
	settle time.Duration
	log    *logger.Logger

	Fans      *fan.Controller
	Perf      *perf.Controller
	Telemetry *telemetry.Chain

	mu      sync.RWMutex
	profile *calibration.Profile
}

// New opens the configured EC backend and builds a Service over it
func New(cfg config.Config, log *logger.Logger) (*Service, error) {
	regs, err := regmap.Get(cfg.EC.Generation)
	if err != nil {
		return nil, fmt.Errorf("failed to load register map: %w", err)
	}
	return NewWithOptions(Options{
		Access:    ec.Open(cfg.EC),
		Registers: regs,
		Hwmon:     telemetry.NewHwmonProvider(),
		MaxRPM:    cfg.Fan.MaxRPM,
		Settle:    cfg.Fan.SettleDelay,
		Logger:    log,
	}), nil
}

// NewWithOptions builds a Service from explicit parts
func NewWithOptions(opts Options) *Service {
	acc := opts.Access
	if acc == nil {
		acc = ec.Unavailable{}
	}
	maxRPM := opts.MaxRPM
	if maxRPM <= 0 {
		maxRPM = calibration.DefaultMaxRPM
	}
	log := logger.OrDefault(opts.Logger)

	s := &Service{
		access: acc,
		regs:   opts.Registers,
		hwmon:  opts.Hwmon,
		maxRPM: maxRPM,
		settle: opts.Settle,
		log:    log.With("hardware"),
		Fans:   fan.NewController(acc, opts.Registers, log),
		Perf:   perf.NewController(acc, opts.Registers, log),
	}

	var direct telemetry.Provider
	if opts.Hwmon != nil {
		direct = opts.Hwmon
		if tj, ok := opts.Hwmon.TjMax(); ok {
			s.Perf.TjMax = tj
		}
	}
	s.Telemetry = telemetry.NewChain(
		direct,
		telemetry.NewECProvider(acc, opts.Registers),
		telemetry.NewEstimateProvider(s.Fans, s.fanMaxRPM),
	)
	return s
}

// Available reports whether the EC interface was found
func (s *Service) Available() bool {
	return s.access.Available()
}

// Backend names the EC backend in use
func (s *Service) Backend() string {
	return ec.Name(s.access)
}

// Registers returns the register map in use
func (s *Service) Registers() regmap.Map {
	return s.regs
}

// SetProfile installs the calibration profile used for predictions and estimates
func (s *Service) SetProfile(p *calibration.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = p
}

// Profile returns the installed calibration profile, or nil
func (s *Service) Profile() *calibration.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

func (s *Service) fanMaxRPM(fanIdx int) int {
	if p := s.Profile(); p != nil && p.MaxRPM(fanIdx) > 0 {
		return p.MaxRPM(fanIdx)
	}
	return s.maxRPM
}

// Status reads a full snapshot. It never fails; unreadable values are zero.
func (s *Service) Status() Status {
	snap := s.Telemetry.Snapshot()
	p1, p2 := s.Fans.SpeedPercent()
	tpl, tplOK := s.Perf.ThermalPowerLimit()

	st := Status{
		Timestamp:         time.Now(),
		ECAvailable:       s.Available(),
		Backend:           s.Backend(),
		Generation:        s.regs.Generation,
		SensorChain:       s.Telemetry.Providers(),
		CPUTemp:           snap.CPUTemp,
		GPUTemp:           snap.GPUTemp,
		Fan1RPM:           snap.Fan1RPM,
		Fan2RPM:           snap.Fan2RPM,
		Fan1Percent:       p1,
		Fan2Percent:       p2,
		Boost:             s.Fans.Boost(),
		BiosControl:       s.Fans.BiosControl(),
		Mode:              s.Perf.Mode().String(),
		ThermalPowerLimit: tpl,
		TPLKnown:          tplOK,
		TjMax:             s.Perf.TCCOffset().TjMax,
	}
	if !st.ECAvailable {
		st.Remediation = Remediation()
	}
	if p := s.Profile(); p != nil {
		st.ProductID = p.ProductID
		st.Calibrated = p.Valid()
	}
	if info, err := host.Info(); err == nil {
		st.Host = fmt.Sprintf("%s (%s %s)", info.Hostname, info.Platform, info.PlatformVersion)
	}
	return st
}

func (s *Service) result(cmd string, ok bool, success string) CommandResult {
	r := CommandResult{Command: cmd, OK: ok}
	switch {
	case ok:
		r.Message = success
	case !s.Available():
		r.Message = "embedded controller unavailable: " + Remediation()
	default:
		r.Message = "EC write failed"
	}
	if ok {
		s.log.Infof("%s", r)
	} else {
		s.log.Warnf("%s", r)
	}
	return r
}

// SetFanProfile applies a fan profile by name
func (s *Service) SetFanProfile(name string) CommandResult {
	p, err := fan.ParseProfile(name)
	if err != nil {
		return CommandResult{Command: CmdFanProfile, Message: err.Error()}
	}
	return s.result(CmdFanProfile, s.Fans.SetProfile(p), "profile "+p.String())
}

// SetFanPercent takes manual control and sets both fans to pct
func (s *Service) SetFanPercent(pct int) CommandResult {
	if pct < 0 || pct > 100 {
		return CommandResult{Command: CmdFanPercent, Message: fmt.Sprintf("percent %d outside 0..100", pct)}
	}
	return s.result(CmdFanPercent, s.setManualPercent(pct), fmt.Sprintf("fans at %d%%", pct))
}

// SetSpeedPercent satisfies verify.Applier with a manual-mode write
func (s *Service) SetSpeedPercent(pct int) bool {
	return s.setManualPercent(pct)
}

func (s *Service) setManualPercent(pct int) bool {
	if !s.Fans.SetBiosControl(false) {
		return false
	}
	return s.Fans.SetSpeedPercent(pct)
}

// SetFanBoost toggles fan boost
func (s *Service) SetFanBoost(on bool) CommandResult {
	return s.result(CmdFanBoost, s.Fans.SetBoost(on), "boost "+onOff(on))
}

// SetBiosControl hands fan control to the firmware or takes it back
func (s *Service) SetBiosControl(on bool) CommandResult {
	return s.result(CmdFanBios, s.Fans.SetBiosControl(on), "bios control "+onOff(on))
}

// SetPerformanceMode applies a performance mode by name
func (s *Service) SetPerformanceMode(name string) CommandResult {
	m, err := perf.ParseMode(name)
	if err != nil {
		return CommandResult{Command: CmdPerfMode, Message: err.Error()}
	}
	return s.result(CmdPerfMode, s.Perf.SetMode(m), "mode "+m.String())
}

// SetThermalPowerLimit sets the power limit multiplier
func (s *Service) SetThermalPowerLimit(n int) CommandResult {
	if n < 0 || n > regmap.MaxThermalPowerLimit {
		return CommandResult{Command: CmdThermalPL, Message: fmt.Sprintf("limit %d outside 0..%d", n, regmap.MaxThermalPowerLimit)}
	}
	return s.result(CmdThermalPL, s.Perf.SetThermalPowerLimit(n), fmt.Sprintf("thermal power limit %d", n))
}

// SetTCCOffset always reports the operation as unsupported
func (s *Service) SetTCCOffset(offset int) CommandResult {
	err := s.Perf.SetTCCOffset(offset)
	return CommandResult{Command: CmdTCCOffset, OK: err == nil, Message: fmt.Sprintf("%v", err)}
}

// Commands lists the names Execute accepts
func Commands() []string {
	names := []string{CmdFanProfile, CmdFanPercent, CmdFanBoost, CmdFanBios, CmdPerfMode, CmdThermalPL, CmdTCCOffset}
	sort.Strings(names)
	return names
}

// ValidateCommand checks a command line without touching hardware
func ValidateCommand(name, arg string) error {
	switch name {
	case CmdFanProfile:
		_, err := fan.ParseProfile(arg)
		return err
	case CmdPerfMode:
		_, err := perf.ParseMode(arg)
		return err
	case CmdFanPercent, CmdThermalPL, CmdTCCOffset:
		n, err := strconv.Atoi(strings.TrimSpace(arg))
		if err != nil {
			return fmt.Errorf("%s expects an integer, got %q", name, arg)
		}
		return checkRange(name, n)
	case CmdFanBoost, CmdFanBios:
		_, err := parseBool(arg)
		return err
	}
	return fmt.Errorf("unknown command %q (want one of %s)", name, strings.Join(Commands(), ", "))
}

func checkRange(name string, n int) error {
	lo, hi := 0, 0
	switch name {
	case CmdFanPercent:
		hi = 100
	case CmdThermalPL:
		hi = regmap.MaxThermalPowerLimit
	case CmdTCCOffset:
		hi = perf.MaxTCCOffset
	}
	if n < lo || n > hi {
		return fmt.Errorf("%s value %d outside %d..%d", name, n, lo, hi)
	}
	return nil
}

// Execute runs a command by name with a single textual argument
func (s *Service) Execute(name, arg string) CommandResult {
	if err := ValidateCommand(name, arg); err != nil {
		return CommandResult{Command: name, Message: err.Error()}
	}
	arg = strings.TrimSpace(arg)
	switch name {
	case CmdFanProfile:
		return s.SetFanProfile(arg)
	case CmdFanPercent:
		n, _ := strconv.Atoi(arg)
		return s.SetFanPercent(n)
	case CmdFanBoost:
		on, _ := parseBool(arg)
		return s.SetFanBoost(on)
	case CmdFanBios:
		on, _ := parseBool(arg)
		return s.SetBiosControl(on)
	case CmdPerfMode:
		return s.SetPerformanceMode(arg)
	case CmdThermalPL:
		n, _ := strconv.Atoi(arg)
		return s.SetThermalPowerLimit(n)
	default:
		n, _ := strconv.Atoi(arg)
		return s.SetTCCOffset(n)
	}
}

// Verify applies pct in manual mode and checks the result against the calibration profile
func (s *Service) Verify(ctx context.Context, fanIdx, pct int) (verify.Result, error) {
	v := &verify.Verifier{
		Fans:    s,
		RPM:     s.Telemetry,
		Profile: s.Profile(),
		Fan:     fanIdx,
		Settle:  s.settle,
		Logger:  s.log,
	}
	return v.Apply(ctx, pct)
}

// Calibrate runs the calibration wizard for productID and installs the resulting profile
// when the run completes.
func (s *Service) Calibrate(ctx context.Context, productID, model string, onStep func(calibration.Step)) (*calibration.Profile, calibration.Summary, error) {
	p := calibration.NewProfile(productID, model)
	if s.hwmon != nil {
		_, p.SupportsDirectRPM = s.hwmon.FanRPM(0)
	}
	if !p.SupportsDirectRPM {
		s.log.Warnf("no direct fan tachometer; calibration will record EC speed-set values")
	}

	w := &calibration.Wizard{
		Profile: p,
		Fans:    s.Fans,
		RPM:     s.Telemetry,
		Settle:  s.settle,
		Logger:  s.log,
		OnStep:  onStep,
	}
	sum, err := w.Run(ctx)
	if err != nil {
		return p, sum, err
	}
	s.SetProfile(p)
	return p, sum, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1", "yes", "enable", "enabled":
		return true, nil
	case "off", "false", "0", "no", "disable", "disabled":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}
