package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/spf13/cobra"
)

type historyFlags struct {
	command string
	source  string
	since   time.Duration
	limit   int
	success bool
	failed  bool
}

func (f *historyFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVar(&f.command, "command", "", "Only this command (e.g. fan-profile, verify)")
	cmd.Flags().StringVar(&f.source, "source", "", "Only this source: cli, schedule, agent, daemon")
	cmd.Flags().DurationVar(&f.since, "since", 0, "Only entries newer than this (e.g. 24h)")
	cmd.Flags().IntVarP(&f.limit, "limit", "l", defaultLimit, "Maximum number of entries (0 for all)")
	cmd.Flags().BoolVar(&f.success, "success", false, "Only successful entries")
	cmd.Flags().BoolVar(&f.failed, "failed", false, "Only failed entries")
}

func (f *historyFlags) filter() (db.RunFilter, error) {
	if f.success && f.failed {
		return db.RunFilter{}, fmt.Errorf("--success and --failed are exclusive")
	}
	filter := db.RunFilter{Command: f.command, Source: f.source, Limit: f.limit}
	if f.since > 0 {
		start := time.Now().Add(-f.since)
		filter.StartTime = &start
	}
	if f.success || f.failed {
		ok := f.success
		filter.Success = &ok
	}
	return filter, nil
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show and export the command history",
	}

	cmd.AddCommand(historyListCmd())
	cmd.AddCommand(historyShowCmd())
	cmd.AddCommand(historyExportCmd())

	return cmd
}

func historyListCmd() *cobra.Command {
	var flags historyFlags

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List executed commands",
		Long: `List executed commands from the database.

Examples:
  # Last 20 entries
  thermalctl history list

  # Failed verifications of the last week
  thermalctl history list --command verify --failed --since 168h`,
		RunE: func(_ *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}

			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			runs, err := database.ListRuns(filter)
			if err != nil {
				return fmt.Errorf("failed to list history: %w", err)
			}
			if len(runs) == 0 {
				fmt.Println("No history found")
				return nil
			}

			fmt.Printf("%-6s %-19s %-9s %-22s %-6s %s\n", "ID", "Time", "Source", "Command", "Result", "Message")
			fmt.Println(strings.Repeat("-", 90))
			for _, run := range runs {
				fmt.Printf("%-6d %-19s %-9s %-22s %-6s %s\n",
					run.ID,
					run.StartTime.Local().Format("2006-01-02 15:04:05"),
					run.Source,
					truncate(strings.TrimSpace(run.Command+" "+run.Arg), 22),
					verdict(run.Success),
					run.Message,
				)
			}
			return nil
		},
	}

	flags.register(cmd, 20)
	return cmd
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one history entry with its metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[0])
			}

			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			run, err := database.GetRun(id)
			if err != nil {
				return err
			}
			results, err := database.GetResults(id)
			if err != nil {
				return err
			}

			fmt.Printf("Entry %d: %s %s\n", run.ID, run.Command, run.Arg)
			fmt.Printf("Source:   %s\n", run.Source)
			fmt.Printf("Started:  %s\n", run.StartTime.Local().Format("2006-01-02 15:04:05"))
			fmt.Printf("Duration: %s\n", run.Duration().Round(time.Millisecond))
			fmt.Printf("Result:   %s %s\n", verdict(run.Success), run.Message)
			for k, v := range run.Details {
				fmt.Printf("  %s: %v\n", k, v)
			}
			if len(results) > 0 {
				fmt.Println("\nMetrics:")
				for _, r := range results {
					fmt.Printf("  %-16s %10.1f %s\n", r.Metric, r.Value, r.Unit)
				}
			}
			return nil
		},
	}
}

func historyExportCmd() *cobra.Command {
	var (
		flags  historyFlags
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the history as CSV or JSON",
		Long: `Export history entries with their metrics.

Examples:
  # All verifications to a CSV file
  thermalctl history export --command verify --out verify.csv

  # Everything the scheduler did today, as JSON on stdout
  thermalctl history export --format json --source schedule --since 24h`,
		RunE: func(_ *cobra.Command, _ []string) error {
			filter, err := flags.filter()
			if err != nil {
				return err
			}

			database, err := globals.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			out := os.Stdout
			if output != "" {
				out, err = os.Create(output) // #nosec G304 -- output is a user-specified file path from command line flag
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer func() { _ = out.Close() }()
			}

			switch format {
			case "csv":
				err = database.ExportCSV(out, filter)
			case "json":
				err = database.ExportJSON(out, filter)
			default:
				return fmt.Errorf("unknown format %q (want csv or json)", format)
			}
			if err != nil {
				return fmt.Errorf("failed to export %s: %w", format, err)
			}

			if output != "" {
				fmt.Printf("Exported history to %s\n", output)
			}
			return nil
		},
	}

	flags.register(cmd, 0)
	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Output format: csv or json")
	cmd.Flags().StringVarP(&output, "out", "o", "", "Output file (default: stdout)")
	return cmd
}
