package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mscrnt/thermalctl/pkg/fan"
	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/mscrnt/thermalctl/pkg/perf"
	"github.com/mscrnt/thermalctl/pkg/telemetry"
	"github.com/spf13/cobra"
)

func statusCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show temperatures, fan speeds and modes",
		RunE: func(_ *cobra.Command, _ []string) error {
			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			svc, err := globals.service(database)
			if err != nil {
				return err
			}
			st := svc.Status()

			if asJSON {
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(st)
			}
			printStatus(st)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}

func printStatus(st hardware.Status) {
	if st.ECAvailable {
		fmt.Printf("EC:          %s (%s, %s)\n", okColor.Sprint("available"), st.Backend, st.Generation)
	} else {
		fmt.Printf("EC:          %s\n", failColor.Sprint("unavailable"))
		fmt.Printf("             %s\n", warnColor.Sprint(st.Remediation))
	}
	if st.Host != "" {
		fmt.Printf("Host:        %s\n", st.Host)
	}
	if st.ProductID != "" {
		cal := warnColor.Sprint("not calibrated")
		if st.Calibrated {
			cal = okColor.Sprint("calibrated")
		}
		fmt.Printf("Model:       %s (%s)\n", st.ProductID, cal)
	}
	fmt.Printf("CPU temp:    %s\n", reading(st.CPUTemp, "°C"))
	fmt.Printf("GPU temp:    %s\n", reading(st.GPUTemp, "°C"))
	fmt.Printf("Fan 1:       %s  %d%%\n", reading(st.Fan1RPM, " rpm"), st.Fan1Percent)
	fmt.Printf("Fan 2:       %s  %d%%\n", reading(st.Fan2RPM, " rpm"), st.Fan2Percent)
	fmt.Printf("Fan control: %s, boost %s\n", map[bool]string{true: "firmware", false: "manual"}[st.BiosControl], onOff(st.Boost))
	fmt.Printf("Mode:        %s\n", st.Mode)
	if st.TPLKnown {
		fmt.Printf("Power limit: %d\n", st.ThermalPowerLimit)
	}
	fmt.Printf("TjMax:       %d°C\n", st.TjMax)
	fmt.Println(dimColor.Sprintf("Sensors:     %s", strings.Join(st.SensorChain, " > ")))
}

func reading(r telemetry.Reading, unit string) string {
	if !r.OK {
		return dimColor.Sprint("n/a")
	}
	return fmt.Sprintf("%.0f%s %s", r.Value, unit, dimColor.Sprintf("(%s)", r.Source))
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func fanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fan",
		Short: "Control the fans",
	}

	var profiles []string
	for _, p := range fan.Profiles() {
		profiles = append(profiles, p.String())
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "profile <" + strings.Join(profiles, "|") + ">",
		Short:     "Apply a fan profile",
		Args:      cobra.ExactArgs(1),
		ValidArgs: profiles,
		RunE: func(_ *cobra.Command, args []string) error {
			return runCommand(hardware.CmdFanProfile, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "percent <0-100>",
		Short: "Take manual control and run both fans at a duty cycle",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCommand(hardware.CmdFanPercent, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "boost <on|off>",
		Short: "Toggle fan boost",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCommand(hardware.CmdFanBoost, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "bios <on|off>",
		Short: "Hand fan control to the firmware (on) or take it back (off)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCommand(hardware.CmdFanBios, args[0])
		},
	})

	return cmd
}

func modeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Performance mode",
	}

	var modes []string
	for _, m := range perf.Modes() {
		modes = append(modes, m.String())
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "set <" + strings.Join(modes, "|") + ">",
		Short:     "Set the performance mode",
		Args:      cobra.ExactArgs(1),
		ValidArgs: modes,
		RunE: func(_ *cobra.Command, args []string) error {
			return runCommand(hardware.CmdPerfMode, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the current performance mode",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := globals.service(nil)
			if err != nil {
				return err
			}
			if !svc.Available() {
				return fmt.Errorf("embedded controller unavailable: %s", hardware.Remediation())
			}
			fmt.Println(svc.Perf.Mode())
			return nil
		},
	})

	return cmd
}

func tplCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tpl",
		Short: "Thermal power limit",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <0-5>",
		Short: "Set the thermal power limit multiplier",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runCommand(hardware.CmdThermalPL, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the thermal power limit multiplier",
		RunE: func(_ *cobra.Command, _ []string) error {
			svc, err := globals.service(nil)
			if err != nil {
				return err
			}
			n, ok := svc.Perf.ThermalPowerLimit()
			if !ok {
				return fmt.Errorf("thermal power limit could not be read")
			}
			fmt.Println(n)
			return nil
		},
	})

	return cmd
}

func tccCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tcc [offset]",
		Short: "Show or set the CPU TCC offset",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runCommand(hardware.CmdTCCOffset, args[0])
			}

			svc, err := globals.service(nil)
			if err != nil {
				return err
			}
			st := svc.Perf.TCCOffset()
			if !st.Supported {
				fmt.Println(warnColor.Sprint("TCC offset is not supported on this platform"))
				return nil
			}
			fmt.Printf("offset %d, TjMax %d°C, effective limit %d°C\n", st.Offset, st.TjMax, st.EffectiveLimit())
			return nil
		},
	}
}
