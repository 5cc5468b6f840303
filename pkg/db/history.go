package db

import (
	"fmt"
	"strconv"

	"github.com/mscrnt/thermalctl/pkg/verify"
)

// CommandVerify is the run command name used for apply verifications
const CommandVerify = "verify"

// RecordCommand stores a completed command in one step
func (db *DB) RecordCommand(source, command, arg string, ok bool, message string) (*Run, error) {
	run, err := db.CreateRun(command, arg, source)
	if err != nil {
		return nil, err
	}
	run.Success = ok
	run.Message = message
	if err := db.FinishRun(run); err != nil {
		return nil, err
	}
	return run, nil
}

// RecordVerify stores an apply verification with its measurements as metrics
func (db *DB) RecordVerify(source string, r verify.Result) (*Run, error) {
	run, err := db.CreateRun(CommandVerify, strconv.Itoa(r.RequestedPercent), source)
	if err != nil {
		return nil, err
	}

	metrics := map[string]float64{
		"level":         float64(r.Level),
		"expected_rpm":  float64(r.ExpectedRPM),
		"rpm_before":    float64(r.RPMBefore),
		"rpm_after":     float64(r.RPMAfter),
		"percent_error": r.PercentError(),
		"elapsed":       r.Elapsed.Seconds(),
	}
	units := map[string]string{
		"expected_rpm":  "rpm",
		"rpm_before":    "rpm",
		"rpm_after":     "rpm",
		"percent_error": "%",
		"elapsed":       "s",
	}
	if err := db.CreateResults(run.ID, metrics, units); err != nil {
		return nil, err
	}

	end := run.StartTime.Add(r.Elapsed)
	run.EndTime = &end
	run.Success = r.Passed()
	run.Message = r.String()
	run.Details = JSONData{"fan": r.Fan, "write_ok": r.WriteOK}
	if err := db.FinishRun(run); err != nil {
		return nil, fmt.Errorf("failed to record verification: %w", err)
	}
	return run, nil
}
