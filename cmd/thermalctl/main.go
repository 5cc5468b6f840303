package main

import (
	"fmt"
	"os"

	"github.com/mscrnt/thermalctl/internal/version"
	"github.com/spf13/cobra"
)

var (
	// Build variables set by ldflags
	buildVersion string
	buildCommit  string
	buildTime    string
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "thermalctl",
		Short: "thermalctl - laptop fan and performance control",
		Long: `thermalctl drives the embedded controller of supported gaming laptops:
fan profiles and duty cycle, fan boost, performance modes and the thermal
power limit, with per-model fan calibration and apply verification.`,
		Version:       version.GetVersion(buildVersion, buildCommit, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return globals.load()
		},
	}

	root.PersistentFlags().StringVarP(&globals.configPath, "config", "c", "", "Config file (default: $THERMALCTL_CONFIG or ~/.thermalctl/config.yaml)")
	root.PersistentFlags().StringVar(&globals.dbPath, "db", "", "Database file (overrides db_path)")
	root.PersistentFlags().StringVar(&globals.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	root.AddCommand(versionCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(fanCmd())
	root.AddCommand(modeCmd())
	root.AddCommand(tplCmd())
	root.AddCommand(tccCmd())
	root.AddCommand(calibrateCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(agentCmd())
	root.AddCommand(configCmd())

	return root
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Println(version.GetDetailedVersion(buildVersion, buildCommit, buildTime))
		},
	}
}
