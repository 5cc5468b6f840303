package telemetry

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
)

// DefaultHwmonRoot is where Linux exposes hwmon chips
const DefaultHwmonRoot = "/sys/class/hwmon"

var (
	// cpuChips are sensor key prefixes of CPU package sensors, in preference order
	cpuChips = []string{"coretemp", "k10temp", "zenpower", "cpu_thermal"}
	gpuChips = []string{"amdgpu", "nouveau", "radeon"}
)

// HwmonProvider reads the operating system's sensor subsystem
type HwmonProvider struct {
	// Root is scanned for fan*_input files
	Root string
	// Sensors lists temperature sensors; defaults to gopsutil
	Sensors func() ([]host.TemperatureStat, error)
	// Fallback answers the CPU temperature when no known chip is present
	Fallback func() (float64, bool)
}

// NewHwmonProvider reads gopsutil sensors and the default hwmon tree
func NewHwmonProvider() *HwmonProvider {
	return &HwmonProvider{
		Root:     DefaultHwmonRoot,
		Sensors:  host.SensorsTemperatures,
		Fallback: platformCPUTemp,
	}
}

func (p *HwmonProvider) Name() string { return SourceHwmon }

// sensors tolerates partial results; gopsutil reports unreadable chips as a warning error
func (p *HwmonProvider) sensors() []host.TemperatureStat {
	if p.Sensors == nil {
		return nil
	}
	stats, _ := p.Sensors()
	return stats
}

func hottest(stats []host.TemperatureStat, chips []string) (host.TemperatureStat, bool) {
	for _, chip := range chips {
		var best host.TemperatureStat
		found := false
		for _, s := range stats {
			if !strings.HasPrefix(strings.ToLower(s.SensorKey), chip) || s.Temperature <= 0 {
				continue
			}
			if !found || s.Temperature > best.Temperature {
				best, found = s, true
			}
		}
		if found {
			return best, true
		}
	}
	return host.TemperatureStat{}, false
}

func (p *HwmonProvider) CPUTemp() (float64, bool) {
	if s, ok := hottest(p.sensors(), cpuChips); ok {
		return s.Temperature, true
	}
	if p.Fallback != nil {
		return p.Fallback()
	}
	return 0, false
}

func (p *HwmonProvider) GPUTemp() (float64, bool) {
	if s, ok := hottest(p.sensors(), gpuChips); ok {
		return s.Temperature, true
	}
	return 0, false
}

// TjMax returns the CPU sensor's critical threshold when the chip reports one
func (p *HwmonProvider) TjMax() (int, bool) {
	s, ok := hottest(p.sensors(), cpuChips)
	if !ok || s.Critical <= 0 {
		return 0, false
	}
	return int(s.Critical), true
}

// FanRPM returns the fan-th fan input across all chips, ordered by chip then input number
func (p *HwmonProvider) FanRPM(fan int) (int, bool) {
	inputs := p.fanInputs()
	if fan < 0 || fan >= len(inputs) {
		return 0, false
	}
	data, err := os.ReadFile(inputs[fan])
	if err != nil {
		return 0, false
	}
	rpm, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || rpm < 0 {
		return 0, false
	}
	return rpm, true
}

func (p *HwmonProvider) fanInputs() []string {
	if p.Root == "" {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(p.Root, "*", "fan*_input"))
	if err != nil {
		return nil
	}
	sort.Slice(matches, func(i, j int) bool {
		di, dj := filepath.Dir(matches[i]), filepath.Dir(matches[j])
		if di != dj {
			return di < dj
		}
		return fanNumber(matches[i]) < fanNumber(matches[j])
	})
	return matches
}

func fanNumber(path string) int {
	base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(path), "fan"), "_input")
	n, err := strconv.Atoi(base)
	if err != nil {
		return -1
	}
	return n
}
