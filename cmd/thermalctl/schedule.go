package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/mscrnt/thermalctl/pkg/schedule"
	"github.com/spf13/cobra"
)

func scheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage scheduled hardware commands",
		Long:  "Create, manage, and run cron schedules of hardware commands",
	}

	cmd.AddCommand(scheduleAddCmd())
	cmd.AddCommand(scheduleListCmd())
	cmd.AddCommand(scheduleShowCmd())
	cmd.AddCommand(scheduleRemoveCmd())
	cmd.AddCommand(scheduleEnableCmd())
	cmd.AddCommand(scheduleDisableCmd())
	cmd.AddCommand(scheduleStartCmd())

	return cmd
}

func scheduleAddCmd() *cobra.Command {
	var (
		name        string
		description string
		cronExpr    string
		disabled    bool
	)

	cmd := &cobra.Command{
		Use:   "add <command> <arg>",
		Short: "Add a new schedule",
		Long: `Add a schedule that runs one hardware command on a cron expression.

Commands: ` + strings.Join(hardware.Commands(), ", ") + `

Cron expression format:
  minute hour day-of-month month day-of-week, or a descriptor such as @daily

Examples:
  # Quiet fans every night at 23:00
  thermalctl schedule add --name night --cron "0 23 * * *" fan-profile silent

  # Performance mode on weekday mornings
  thermalctl schedule add --name work --cron "30 8 * * 1-5" perf-mode performance`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			store := schedule.NewStore(database)
			sched := &schedule.Schedule{
				Name:        name,
				Description: description,
				CronExpr:    cronExpr,
				Command:     args[0],
				Arg:         args[1],
				Enabled:     !disabled,
			}
			if err := store.Create(sched); err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}

			fmt.Printf("Created schedule '%s' (ID: %d)\n", sched.Name, sched.ID)
			fmt.Printf("Cron: %s\n", sched.CronExpr)
			fmt.Printf("Command: %s\n", sched.CommandLine())
			if sched.NextRunTime != nil {
				fmt.Printf("Next run: %s\n", sched.NextRunTime.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Schedule name (required)")
	cmd.Flags().StringVarP(&description, "desc", "d", "", "Schedule description")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression (required)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule disabled")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("cron")

	return cmd
}

func scheduleListCmd() *cobra.Command {
	var (
		all      bool
		disabled bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(_ *cobra.Command, _ []string) error {
			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			filter := schedule.ScheduleFilter{}
			if !all {
				enabled := !disabled
				filter.Enabled = &enabled
			}

			schedules, err := schedule.NewStore(database).List(filter)
			if err != nil {
				return fmt.Errorf("failed to list schedules: %w", err)
			}
			if len(schedules) == 0 {
				fmt.Println("No schedules found")
				return nil
			}

			fmt.Printf("%-4s %-20s %-26s %-16s %-8s %-20s\n",
				"ID", "Name", "Command", "Cron", "Enabled", "Next Run")
			fmt.Println(strings.Repeat("-", 98))

			for _, sched := range schedules {
				nextRun := "N/A"
				if sched.NextRunTime != nil {
					nextRun = sched.NextRunTime.Format("2006-01-02 15:04")
					if sched.IsOverdue() {
						nextRun += warnColor.Sprint(" (overdue)")
					}
				}

				fmt.Printf("%-4d %-20s %-26s %-16s %-8v %s\n",
					sched.ID,
					truncate(sched.Name, 20),
					truncate(sched.CommandLine(), 26),
					sched.CronExpr,
					sched.Enabled,
					nextRun,
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "Show all schedules")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Show only disabled schedules")
	return cmd
}

// findSchedule resolves an id or a name
func findSchedule(store *schedule.Store, identifier string) (*schedule.Schedule, error) {
	if id, err := strconv.ParseInt(identifier, 10, 64); err == nil {
		sched, err := store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("schedule with ID %d not found", id)
		}
		return sched, nil
	}
	sched, err := store.GetByName(identifier)
	if err != nil {
		return nil, fmt.Errorf("schedule '%s' not found", identifier)
	}
	return sched, nil
}

func scheduleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id|name>",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			sched, err := findSchedule(schedule.NewStore(database), args[0])
			if err != nil {
				return err
			}

			fmt.Printf("Schedule: %s (ID: %d)\n", sched.Name, sched.ID)
			if sched.Description != "" {
				fmt.Printf("Description: %s\n", sched.Description)
			}
			fmt.Printf("Command: %s\n", sched.CommandLine())
			fmt.Printf("Cron Expression: %s\n", sched.CronExpr)
			fmt.Printf("Enabled: %v\n", sched.Enabled)
			fmt.Printf("Created: %s\n", sched.CreatedAt.Format("2006-01-02 15:04:05"))

			if sched.LastRunTime != nil {
				fmt.Printf("\nLast Run: %s", sched.LastRunTime.Format("2006-01-02 15:04:05"))
				if sched.LastRunID != nil {
					run, err := database.GetRun(*sched.LastRunID)
					if err == nil {
						fmt.Printf(" (%s: %s)", verdict(run.Success), run.Message)
					}
				}
				fmt.Println()
			} else {
				fmt.Printf("\nLast Run: Never\n")
			}

			if sched.NextRunTime != nil {
				fmt.Printf("Next Run: %s", sched.NextRunTime.Format("2006-01-02 15:04:05"))
				if sched.IsOverdue() {
					fmt.Printf(" (OVERDUE)")
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func scheduleRemoveCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <id|name>",
		Short: "Remove a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			store := schedule.NewStore(database)
			sched, err := findSchedule(store, args[0])
			if err != nil {
				return err
			}

			if !yes {
				fmt.Printf("Delete schedule '%s' (ID: %d)? [y/N] ", sched.Name, sched.ID)
				var confirm string
				if _, err := fmt.Scanln(&confirm); err != nil {
					confirm = "n"
				}
				if !strings.EqualFold(confirm, "y") {
					fmt.Println("Cancelled")
					return nil
				}
			}

			if err := store.Delete(sched.ID); err != nil {
				return fmt.Errorf("failed to delete schedule: %w", err)
			}
			fmt.Printf("Deleted schedule '%s'\n", sched.Name)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func scheduleEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <id|name>",
		Short: "Enable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return toggleSchedule(args[0], true)
		},
	}
}

func scheduleDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <id|name>",
		Short: "Disable a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return toggleSchedule(args[0], false)
		},
	}
}

func toggleSchedule(identifier string, enable bool) error {
	database, err := globals.openDB()
	if err != nil {
		return err
	}
	defer func() { _ = database.Close() }()

	store := schedule.NewStore(database)
	sched, err := findSchedule(store, identifier)
	if err != nil {
		return err
	}

	if enable {
		if err := store.Enable(sched.ID); err != nil {
			return fmt.Errorf("failed to enable schedule: %w", err)
		}
		fmt.Printf("Enabled schedule '%s'\n", sched.Name)
		return nil
	}
	if err := store.Disable(sched.ID); err != nil {
		return fmt.Errorf("failed to disable schedule: %w", err)
	}
	fmt.Printf("Disabled schedule '%s'\n", sched.Name)
	return nil
}

func scheduleStartCmd() *cobra.Command {
	var checkInterval time.Duration

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run schedules in the foreground",
		Long: `Load all enabled schedules and run their commands until interrupted.
Every execution is recorded in the history. The daemon command runs the
schedules as well; use this when only scheduling is wanted.`,
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

			runner := schedule.NewRunner(database, svc, globals.log)
			if err := runner.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}
			defer runner.Stop()

			ctx, cancel := signalContext()
			defer cancel()

			ticker := time.NewTicker(checkInterval)
			defer ticker.Stop()

			fmt.Printf("Scheduler started with %d active jobs. Press Ctrl+C to stop.\n", runner.ActiveJobs())
			for {
				select {
				case <-ctx.Done():
					globals.log.Infof("received shutdown signal")
					return nil
				case <-ticker.C:
					if err := runner.CheckDue(); err != nil {
						globals.log.Warnf("error checking due schedules: %v", err)
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&checkInterval, "check-interval", 60*time.Second, "Interval to check for overdue schedules")
	return cmd
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
