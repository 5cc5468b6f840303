// Package telemetry reads temperatures and fan speeds through an ordered
// fallback of providers: the OS sensor subsystem, the EC registers, and a
// duty cycle estimate. The first provider that answers wins; values from
// different providers are never merged.
package telemetry

// Source names reported alongside each value
const (
	SourceHwmon    = "hwmon"
	SourceEC       = "ec"
	SourceEstimate = "estimate"
	SourceNone     = "none"
)

// Provider answers some or all telemetry quantities. A false result means
// "ask the next provider", never "the value is zero".
type Provider interface {
	Name() string
	CPUTemp() (float64, bool)
	GPUTemp() (float64, bool)
	FanRPM(fan int) (int, bool)
}

// Chain queries its providers in order
type Chain struct {
	providers []Provider
}

// NewChain builds a chain from providers in priority order; nil entries are skipped
func NewChain(providers ...Provider) *Chain {
	c := &Chain{}
	for _, p := range providers {
		if p != nil {
			c.providers = append(c.providers, p)
		}
	}
	return c
}

// Providers returns the names of the chained providers in order
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

func first[T any](providers []Provider, get func(Provider) (T, bool)) (T, string, bool) {
	for _, p := range providers {
		if v, ok := get(p); ok {
			return v, p.Name(), true
		}
	}
	var zero T
	return zero, SourceNone, false
}

// CPUTempFrom returns the CPU temperature and the provider that served it
func (c *Chain) CPUTempFrom() (float64, string, bool) {
	return first(c.providers, Provider.CPUTemp)
}

// GPUTempFrom returns the GPU temperature and the provider that served it
func (c *Chain) GPUTempFrom() (float64, string, bool) {
	return first(c.providers, Provider.GPUTemp)
}

// FanRPMFrom returns a fan speed and the provider that served it
func (c *Chain) FanRPMFrom(fan int) (int, string, bool) {
	return first(c.providers, func(p Provider) (int, bool) { return p.FanRPM(fan) })
}

func (c *Chain) Name() string { return "chain" }

func (c *Chain) CPUTemp() (float64, bool) {
	v, _, ok := c.CPUTempFrom()
	return v, ok
}

func (c *Chain) GPUTemp() (float64, bool) {
	v, _, ok := c.GPUTempFrom()
	return v, ok
}

func (c *Chain) FanRPM(fan int) (int, bool) {
	v, _, ok := c.FanRPMFrom(fan)
	return v, ok
}

// Reading is one value with its origin
type Reading struct {
	Value  float64 `json:"value"`
	Source string  `json:"source"`
	OK     bool    `json:"ok"`
}

// Snapshot reads every quantity once
type Snapshot struct {
	CPUTemp Reading `json:"cpu_temp"`
	GPUTemp Reading `json:"gpu_temp"`
	Fan1RPM Reading `json:"fan1_rpm"`
	Fan2RPM Reading `json:"fan2_rpm"`
}

// Snapshot reads both temperatures and both fans
func (c *Chain) Snapshot() Snapshot {
	var s Snapshot
	if v, src, ok := c.CPUTempFrom(); ok {
		s.CPUTemp = Reading{Value: v, Source: src, OK: true}
	} else {
		s.CPUTemp.Source = src
	}
	if v, src, ok := c.GPUTempFrom(); ok {
		s.GPUTemp = Reading{Value: v, Source: src, OK: true}
	} else {
		s.GPUTemp.Source = src
	}
	rpm := func(fan int) Reading {
		v, src, ok := c.FanRPMFrom(fan)
		return Reading{Value: float64(v), Source: src, OK: ok}
	}
	s.Fan1RPM = rpm(0)
	s.Fan2RPM = rpm(1)
	return s
}
