package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/mscrnt/thermalctl/pkg/calibration"
	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func calibrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calibrate",
		Short: "Measure and manage fan calibration profiles",
	}

	cmd.AddCommand(calibrateRunCmd())
	cmd.AddCommand(calibrateShowCmd())
	cmd.AddCommand(calibrateListCmd())
	cmd.AddCommand(calibrateVerifyCmd())
	cmd.AddCommand(calibrateDeleteCmd())

	return cmd
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func calibrateRunCmd() *cobra.Command {
	var productID, model string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Step the fans through every level and record the RPM reached",
		Long: `Step the fans from 0 to the maximum level, wait for the settle delay at
each level and record the RPM reached. The fans are handed back to the
firmware afterwards. Press Ctrl+C to abort; an aborted run is not saved.

Examples:
  # Calibrate the detected model
  sudo thermalctl calibrate run

  # Override the product id stored with the profile
  sudo thermalctl calibrate run --product GS66`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := requireWrite(); err != nil {
				return err
			}

			detectedID, detectedModel := globals.productID()
			if productID == "" {
				productID = detectedID
			}
			if model == "" {
				model = detectedModel
			}
			if productID == "" {
				return fmt.Errorf("product id could not be detected, pass --product")
			}

			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			svc, err := globals.service(nil)
			if err != nil {
				return err
			}

			ctx, cancel := signalContext()
			defer cancel()

			fmt.Printf("Calibrating %s (%s), settle %s per level\n", productID, model, globals.cfg.Fan.SettleDelay)
			fmt.Printf("%-6s %-8s %-9s %-9s %s\n", "LEVEL", "PERCENT", "FAN0 RPM", "FAN1 RPM", "WRITE")
			profile, summary, err := svc.Calibrate(ctx, productID, model, func(s calibration.Step) {
				fmt.Printf("%-6d %-8s %-9d %-9d %s\n", s.Level, fmt.Sprintf("%d%%", s.Percent), s.Fan0RPM, s.Fan1RPM, verdict(s.WriteOK))
			})
			if err != nil {
				if summary.Cancelled {
					fmt.Println(warnColor.Sprint("Calibration aborted, nothing saved"))
				}
				return err
			}

			for _, f := range summary.Fits {
				mono := okColor.Sprint("monotonic")
				if !f.Monotonic {
					mono = warnColor.Sprint("not monotonic")
				}
				fmt.Printf("fan%d: %.1f rpm/level, r²=%.3f, %s\n", f.Fan, f.Slope, f.RSquared, mono)
			}

			if err := database.SaveProfile(profile); err != nil {
				return err
			}
			fmt.Printf("Saved calibration for %s (min spin level %d)\n", profile.ProductID, profile.MinSpinLevel)
			return nil
		},
	}

	cmd.Flags().StringVar(&productID, "product", "", "Product id to store the profile under (default: detected)")
	cmd.Flags().StringVar(&model, "model", "", "Model name (default: detected)")
	return cmd
}

func calibrateShowCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show [product]",
		Short: "Print a stored calibration profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			productID, _ := globals.productID()
			if len(args) == 1 {
				productID = args[0]
			}

			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			p, err := database.GetProfile(productID)
			if err != nil {
				return err
			}

			switch format {
			case "yaml":
				out, err := yaml.Marshal(p)
				if err != nil {
					return fmt.Errorf("failed to encode profile: %w", err)
				}
				_, err = os.Stdout.Write(out)
				return err
			case "json":
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(p)
			case "table":
				printProfile(p)
				return nil
			}
			return fmt.Errorf("unknown format %q (want table, yaml or json)", format)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format: table, yaml, json")
	return cmd
}

func printProfile(p *calibration.Profile) {
	fmt.Printf("Product:     %s\n", p.ProductID)
	fmt.Printf("Model:       %s\n", p.ModelName)
	if p.Valid() {
		fmt.Printf("Calibrated:  %s\n", p.CalibratedAt.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Printf("Calibrated:  %s\n", warnColor.Sprint("no"))
	}
	fmt.Printf("Max level:   %d, min spin level %d\n", p.MaxLevel, p.MinSpinLevel)
	fmt.Printf("Max RPM:     fan0 %d, fan1 %d\n", p.Fan0MaxRPM, p.Fan1MaxRPM)

	fmt.Printf("\n%-6s %-9s %-9s\n", "LEVEL", "FAN0 RPM", "FAN1 RPM")
	levels := map[int]bool{}
	var order []int
	for _, c := range []calibration.Curve{p.Fan0Curve, p.Fan1Curve} {
		for _, s := range c {
			if !levels[s.Level] {
				levels[s.Level] = true
				order = append(order, s.Level)
			}
		}
	}
	sort.Ints(order)
	for _, l := range order {
		r0, ok0 := p.Fan0Curve.At(l)
		r1, ok1 := p.Fan1Curve.At(l)
		fmt.Printf("%-6d %-9s %-9s\n", l, optional(r0, ok0), optional(r1, ok1))
	}
}

func optional(v int, ok bool) string {
	if !ok {
		return "-"
	}
	return fmt.Sprint(v)
}

func calibrateListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored calibration profiles",
		RunE: func(_ *cobra.Command, _ []string) error {
			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			profiles, err := database.ListProfiles()
			if err != nil {
				return err
			}
			if len(profiles) == 0 {
				fmt.Println("No calibration profiles stored")
				return nil
			}

			fmt.Printf("%-20s %-30s %-8s %-16s\n", "PRODUCT", "MODEL", "SAMPLES", "CALIBRATED")
			fmt.Println(strings.Repeat("-", 77))
			for _, p := range profiles {
				at := "-"
				if p.CalibratedAt != nil {
					at = p.CalibratedAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("%-20s %-30s %-8d %-16s\n", p.ProductID, truncate(p.ModelName, 30), p.Samples, at)
			}
			return nil
		},
	}
}

func calibrateVerifyCmd() *cobra.Command {
	var (
		fanIdx  int
		percent int
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Apply a duty cycle and check the measured RPM against the calibration",
		Long: `Apply a duty cycle, wait for the settle delay and compare the measured RPM
with the RPM predicted by the calibration profile. The check passes when the
measurement is within 15% of the prediction. Every verification is recorded
in the history.

Examples:
  sudo thermalctl calibrate verify --percent 60
  sudo thermalctl calibrate verify --fan 1 --percent 100`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if fanIdx != 0 && fanIdx != 1 {
				return fmt.Errorf("fan must be 0 or 1")
			}
			if err := requireWrite(); err != nil {
				return err
			}

			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			svc, err := globals.service(database)
			if err != nil {
				return err
			}
			if p := svc.Profile(); p == nil || !p.Valid() {
				fmt.Println(warnColor.Sprint("No calibration for this model, predictions use the baseline curve"))
			}

			ctx, cancel := signalContext()
			defer cancel()

			result, err := svc.Verify(ctx, fanIdx, percent)
			if _, recErr := database.RecordVerify(db.SourceCLI, result); recErr != nil {
				globals.log.Warnf("failed to record verification: %v", recErr)
			}
			if err != nil {
				return err
			}

			fmt.Printf("fan%d at %d%% (level %d): before %d rpm, after %d rpm, expected %d rpm, error %.1f%%  %s\n",
				result.Fan, result.RequestedPercent, result.Level,
				result.RPMBefore, result.RPMAfter, result.ExpectedRPM,
				result.PercentError(), verdict(result.Passed()))
			if !result.Passed() {
				return fmt.Errorf("verification failed")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&fanIdx, "fan", 0, "Fan to measure (0 or 1)")
	cmd.Flags().IntVarP(&percent, "percent", "p", 50, "Duty cycle to apply")
	return cmd
}

func calibrateDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <product>",
		Short: "Delete a stored calibration profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			if err := database.DeleteProfile(args[0]); err != nil {
				return err
			}
			fmt.Printf("Deleted calibration for %s\n", args[0])
			return nil
		},
	}
}
