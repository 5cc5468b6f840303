package telemetry

import (
	"github.com/mscrnt/thermalctl/pkg/ec"
	"github.com/mscrnt/thermalctl/pkg/regmap"
)

// ECProvider reads temperatures and the fan speed-set registers straight from the EC
type ECProvider struct {
	ec   ec.Access
	regs regmap.Map
}

// NewECProvider creates a provider over acc using the layout regs
func NewECProvider(acc ec.Access, regs regmap.Map) *ECProvider {
	return &ECProvider{ec: acc, regs: regs}
}

func (p *ECProvider) Name() string { return SourceEC }

func (p *ECProvider) CPUTemp() (float64, bool) {
	return p.temp(p.regs.CPUTemp)
}

func (p *ECProvider) GPUTemp() (float64, bool) {
	return p.temp(p.regs.GPUTemp)
}

// temp treats 0 as "no sensor"; the EC leaves unpopulated zones at zero
func (p *ECProvider) temp(r regmap.Register) (float64, bool) {
	v, ok := p.ec.Read(r.Addr)
	if !ok || v == 0 || !r.Legal(v) {
		return 0, false
	}
	return float64(v), true
}

func (p *ECProvider) FanRPM(fan int) (int, bool) {
	v, ok := p.ec.Read(p.regs.FanSpeed(fan).Addr)
	if !ok {
		return 0, false
	}
	return int(v) * regmap.RPMUnit, true
}
