package db

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

const timeLayout = "2006-01-02 15:04:05"

var csvHeaders = []string{
	"Run ID", "Command", "Arg", "Source", "Start Time", "Duration (s)",
	"Success", "Message", "Metric", "Value", "Unit",
}

// ExportCSV writes runs and their metrics as CSV, one row per metric.
// Runs without metrics get a single row with empty metric columns.
func (db *DB) ExportCSV(w io.Writer, filter RunFilter) error {
	runs, err := db.ListRuns(filter)
	if err != nil {
		return err
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(csvHeaders); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	for _, run := range runs {
		results, err := db.GetResults(run.ID)
		if err != nil {
			return fmt.Errorf("failed to get results for run %d: %w", run.ID, err)
		}

		base := []string{
			strconv.FormatInt(run.ID, 10),
			run.Command,
			run.Arg,
			run.Source,
			run.StartTime.Format(timeLayout),
			fmt.Sprintf("%.3f", run.Duration().Seconds()),
			strconv.FormatBool(run.Success),
			run.Message,
		}

		if len(results) == 0 {
			if err := csvWriter.Write(append(base, "", "", "")); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
			continue
		}
		for _, result := range results {
			row := append(append([]string{}, base...),
				result.Metric, strconv.FormatFloat(result.Value, 'f', -1, 64), result.Unit)
			if err := csvWriter.Write(row); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// RunExport is a run with its metrics
type RunExport struct {
	Run     *Run      `json:"run"`
	Results []*Result `json:"results"`
}

// ExportJSON writes runs and their metrics as an indented JSON array
func (db *DB) ExportJSON(w io.Writer, filter RunFilter) error {
	runs, err := db.ListRuns(filter)
	if err != nil {
		return err
	}

	export := make([]RunExport, 0, len(runs))
	for _, run := range runs {
		results, err := db.GetResults(run.ID)
		if err != nil {
			return fmt.Errorf("failed to get results for run %d: %w", run.ID, err)
		}
		export = append(export, RunExport{Run: run, Results: results})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(export); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}
