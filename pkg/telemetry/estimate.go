package telemetry

// DutyCycle exposes what the estimator needs from a fan controller
type DutyCycle interface {
	// ReportedPercent is the firmware's own duty cycle reading
	ReportedPercent(fan int) (int, bool)
	// Commanded is the last percentage software asked for
	Commanded() (int, bool)
}

// EstimateProvider derives RPM from the duty cycle. It never answers temperatures.
type EstimateProvider struct {
	duty   DutyCycle
	maxRPM func(fan int) int
}

// NewEstimateProvider estimates fan speed as percent*maxRPM/100
func NewEstimateProvider(duty DutyCycle, maxRPM func(fan int) int) *EstimateProvider {
	return &EstimateProvider{duty: duty, maxRPM: maxRPM}
}

func (p *EstimateProvider) Name() string { return SourceEstimate }

func (p *EstimateProvider) CPUTemp() (float64, bool) { return 0, false }

func (p *EstimateProvider) GPUTemp() (float64, bool) { return 0, false }

func (p *EstimateProvider) FanRPM(fan int) (int, bool) {
	if p.duty == nil || p.maxRPM == nil {
		return 0, false
	}
	pct, ok := p.duty.ReportedPercent(fan)
	if !ok {
		pct, ok = p.duty.Commanded()
	}
	if !ok {
		return 0, false
	}
	limit := p.maxRPM(fan)
	if limit <= 0 {
		return 0, false
	}
	return pct * limit / 100, true
}
