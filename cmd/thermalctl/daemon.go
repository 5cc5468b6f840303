package main

import (
	"fmt"

	"github.com/mscrnt/thermalctl/pkg/daemon"
	"github.com/mscrnt/thermalctl/pkg/schedule"
	"github.com/spf13/cobra"
)

func daemonCmd() *cobra.Command {
	var noSchedules bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Monitor temperatures and fans in the foreground",
		Long: `Poll the hardware at the configured interval and log the status. When the
hottest sensor reaches daemon.critical_temp the configured safety action is
applied: bios_control hands the fans back to the firmware and
force_full_speed runs them at the max profile. Enabled schedules run as well.

The configuration file is watched and reloaded when it changes.`,
		RunE: func(_ *cobra.Command, _ []string) error {
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

			opts := daemon.Options{
				ConfigPath:  globals.configPath,
				History:     database,
				LoadProfile: loadProfile(database),
				Logger:      globals.log,
			}

			if !noSchedules {
				runner := schedule.NewRunner(database, svc, globals.log)
				if err := runner.Start(); err != nil {
					return fmt.Errorf("failed to start scheduler: %w", err)
				}
				defer runner.Stop()
				opts.Scheduler = runner
			}

			ctx, cancel := signalContext()
			defer cancel()

			return daemon.New(globals.cfg, svc, opts).Run(ctx)
		},
	}

	cmd.Flags().BoolVar(&noSchedules, "no-schedules", false, "Do not run schedules")
	return cmd
}
