package calibration

import "time"

// Step is the measurement taken at one tested level during a calibration run
type Step struct {
	Level   int           `json:"level" yaml:"level"`
	Percent int           `json:"percent" yaml:"percent"`
	Fan0RPM int           `json:"fan0Rpm" yaml:"fan0_rpm"`
	Fan1RPM int           `json:"fan1Rpm" yaml:"fan1_rpm"`
	Settle  time.Duration `json:"settle" yaml:"settle"`
	At      time.Time     `json:"at" yaml:"at"`
	// WriteOK is false when the level could not be written; RPMs are then not recorded
	WriteOK bool `json:"writeOk" yaml:"write_ok"`
}

// RPM returns the measurement for fan 0 or 1
func (s Step) RPM(fan int) int {
	if fan == 1 {
		return s.Fan1RPM
	}
	return s.Fan0RPM
}

// AddStep records a measured step into the curves. Steps whose write failed are ignored.
// A fan's max RPM grows to the highest RPM observed.
func (p *Profile) AddStep(s Step) {
	if !s.WriteOK {
		return
	}
	for fan := 0; fan < p.fans(); fan++ {
		rpm := s.RPM(fan)
		p.curvePtr(fan).Set(s.Level, rpm)
		if rpm > p.MaxRPM(fan) || (s.Level == p.MaxLevel && rpm > 0) {
			p.setMaxRPM(fan, rpm)
		}
	}
	p.recomputeMinSpin()
}

// recomputeMinSpin sets MinSpinLevel to the lowest level at which any fan turns
func (p *Profile) recomputeMinSpin() {
	lowest := -1
	for fan := 0; fan < p.fans(); fan++ {
		for _, sample := range p.Curve(fan) {
			if sample.RPM > 0 {
				if lowest < 0 || sample.Level < lowest {
					lowest = sample.Level
				}
				break
			}
		}
	}
	if lowest >= 0 {
		p.MinSpinLevel = lowest
	}
}

// Finish stamps the profile as calibrated and sets each fan's max RPM to the
// highest speed measured, so sweeps that stop below MaxLevel do not keep the
// default ceiling. Fans that never turned keep theirs.
func (p *Profile) Finish(at time.Time) {
	for fan := 0; fan < p.fans(); fan++ {
		highest := 0
		for _, sample := range p.Curve(fan) {
			if sample.RPM > highest {
				highest = sample.RPM
			}
		}
		if highest > 0 {
			p.setMaxRPM(fan, highest)
		}
	}
	p.CalibratedAt = at
}
