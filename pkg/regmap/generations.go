package regmap

// Legacy is the layout of the first supported board family
var Legacy = Map{
	Generation:  "legacy",
	Description: "first generation boards (ITE EC, 0x6x fan block)",

	CPUTemp: tempRegister("cpu_temp", 0x68),
	GPUTemp: tempRegister("gpu_temp", 0x80),

	Fan1Speed: speedRegister("fan1_speed", 0x64),
	Fan2Speed: speedRegister("fan2_speed", 0x6C),

	Fan1Percent: percentRegister("fan1_percent", 0x71),
	Fan2Percent: percentRegister("fan2_percent", 0x89),

	FanBoost: boostRegister(0x98),
	FanState: fanStateRegister(0xF4),
	PerfMode: Register{
		Name: "perf_mode",
		Addr: Addr(0xD2),
		Values: map[string]byte{
			PerfDefault:     0xC1,
			PerfPerformance: 0xC4,
			PerfCool:        0xC2,
		},
	},
	ThermalPowerLimit: tplRegister(0xEB),
}

// Gen2 is the layout of the second board family, which moved the fan block up
var Gen2 = Map{
	Generation:  "gen2",
	Description: "second generation boards (fan block at 0xB0)",

	CPUTemp: tempRegister("cpu_temp", 0xA8),
	GPUTemp: tempRegister("gpu_temp", 0xAA),

	Fan1Speed: speedRegister("fan1_speed", 0xB0),
	Fan2Speed: speedRegister("fan2_speed", 0xB1),

	Fan1Percent: percentRegister("fan1_percent", 0xB2),
	Fan2Percent: percentRegister("fan2_percent", 0xB3),

	FanBoost: boostRegister(0xB4),
	FanState: fanStateRegister(0xB5),
	PerfMode: Register{
		Name: "perf_mode",
		Addr: Addr(0xBA),
		Values: map[string]byte{
			PerfDefault:     0x00,
			PerfPerformance: 0x01,
			PerfCool:        0x02,
		},
	},
	ThermalPowerLimit: tplRegister(0xBB),
}

func init() {
	for _, m := range []Map{Legacy, Gen2} {
		if err := Add(m); err != nil {
			panic(err)
		}
	}
}
