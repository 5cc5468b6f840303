package hardware

import (
	"time"

	"github.com/mscrnt/thermalctl/pkg/telemetry"
)

// Status is a point in time view of the thermal hardware
type Status struct {
	Timestamp   time.Time `json:"timestamp"`
	ECAvailable bool      `json:"ec_available"`
	Backend     string    `json:"backend"`
	Generation  string    `json:"generation"`
	Remediation string    `json:"remediation,omitempty"`
	Host        string    `json:"host,omitempty"`
	ProductID   string    `json:"product_id,omitempty"`
	Calibrated  bool      `json:"calibrated"`
	SensorChain []string  `json:"sensor_chain"`

	CPUTemp telemetry.Reading `json:"cpu_temp"`
	GPUTemp telemetry.Reading `json:"gpu_temp"`
	Fan1RPM telemetry.Reading `json:"fan1_rpm"`
	Fan2RPM telemetry.Reading `json:"fan2_rpm"`

	Fan1Percent int  `json:"fan1_percent"`
	Fan2Percent int  `json:"fan2_percent"`
	Boost       bool `json:"boost"`
	BiosControl bool `json:"bios_control"`

	Mode              string `json:"mode"`
	ThermalPowerLimit int    `json:"thermal_power_limit"`
	TPLKnown          bool   `json:"thermal_power_limit_known"`
	TjMax             int    `json:"tj_max"`
}

// MaxTemp returns the hotter of the CPU and GPU readings
func (s Status) MaxTemp() (float64, bool) {
	switch {
	case s.CPUTemp.OK && s.GPUTemp.OK:
		if s.GPUTemp.Value > s.CPUTemp.Value {
			return s.GPUTemp.Value, true
		}
		return s.CPUTemp.Value, true
	case s.CPUTemp.OK:
		return s.CPUTemp.Value, true
	case s.GPUTemp.OK:
		return s.GPUTemp.Value, true
	}
	return 0, false
}
