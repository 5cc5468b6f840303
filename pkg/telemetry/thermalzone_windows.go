//go:build windows
// +build windows

package telemetry

import (
	"github.com/yusufpapurcu/wmi"
)

// msAcpiThermalZoneTemperature mirrors the WMI class of the same name
type msAcpiThermalZoneTemperature struct {
	CurrentTemperature uint32
}

// platformCPUTemp returns the hottest ACPI thermal zone. Values are in tenths of a kelvin.
func platformCPUTemp() (float64, bool) {
	var zones []msAcpiThermalZoneTemperature
	q := "SELECT CurrentTemperature FROM MSAcpi_ThermalZoneTemperature"
	if err := wmi.QueryNamespace(q, &zones, `root\wmi`); err != nil || len(zones) == 0 {
		return 0, false
	}

	var hottest uint32
	for _, z := range zones {
		if z.CurrentTemperature > hottest {
			hottest = z.CurrentTemperature
		}
	}
	celsius := (float64(hottest) - 2732) / 10
	if celsius <= 0 {
		return 0, false
	}
	return celsius, true
}
