package db

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/mscrnt/thermalctl/pkg/calibration"
	"github.com/mscrnt/thermalctl/pkg/verify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "nested", "thermalctl.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestOpenMigratesTwice(t *testing.T) {
	database := openTestDB(t)
	assert.NoError(t, database.Migrate())
	assert.FileExists(t, database.Path())
}

func TestRunLifecycle(t *testing.T) {
	database := openTestDB(t)

	run, err := database.CreateRun("fan-profile", "silent", SourceCLI)
	require.NoError(t, err)
	assert.NotZero(t, run.ID)

	got, err := database.GetRun(run.ID)
	require.NoError(t, err)
	assert.Nil(t, got.EndTime)
	assert.False(t, got.Success)

	run.Success = true
	run.Message = "profile silent"
	require.NoError(t, database.FinishRun(run))

	got, err = database.GetRun(run.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.Success)
	assert.Equal(t, "profile silent", got.Message)
	assert.Equal(t, SourceCLI, got.Source)

	_, err = database.GetRun(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsFilters(t *testing.T) {
	database := openTestDB(t)

	_, err := database.RecordCommand(SourceCLI, "fan-boost", "on", true, "boost on")
	require.NoError(t, err)
	_, err = database.RecordCommand(SourceSchedule, "perf-mode", "cool", false, "EC write failed")
	require.NoError(t, err)
	_, err = database.RecordCommand(SourceSchedule, "fan-boost", "off", true, "boost off")
	require.NoError(t, err)

	all, err := database.ListRuns(RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, "off", all[0].Arg, "newest first")

	boost, err := database.ListRuns(RunFilter{Command: "fan-boost"})
	require.NoError(t, err)
	assert.Len(t, boost, 2)

	failed := false
	bad, err := database.ListRuns(RunFilter{Success: &failed})
	require.NoError(t, err)
	require.Len(t, bad, 1)
	assert.Equal(t, "perf-mode", bad[0].Command)

	scheduled, err := database.ListRuns(RunFilter{Source: SourceSchedule, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, scheduled, 1)
}

func sampleProfile() *calibration.Profile {
	p := calibration.NewProfile("AN515-58", "Nitro 5")
	p.Fan0Curve.Set(0, 0)
	p.Fan0Curve.Set(25, 1750)
	p.Fan0Curve.Set(55, 5000)
	p.Fan1Curve.Set(0, 0)
	p.Fan1Curve.Set(55, 5200)
	p.MinSpinLevel = 10
	p.Fan0MaxRPM = 5000
	p.Fan1MaxRPM = 5200
	p.SupportsDirectRPM = true
	p.CalibratedAt = time.Date(2026, 5, 4, 12, 30, 0, 0, time.UTC)
	return p
}

func TestProfileRoundTrip(t *testing.T) {
	database := openTestDB(t)
	p := sampleProfile()

	require.NoError(t, database.SaveProfile(p))

	got, err := database.GetProfile("AN515-58")
	require.NoError(t, err)
	assert.Equal(t, p.ModelName, got.ModelName)
	assert.Equal(t, p.MaxLevel, got.MaxLevel)
	assert.Equal(t, p.MinSpinLevel, got.MinSpinLevel)
	assert.Equal(t, p.Fan0Curve, got.Fan0Curve)
	assert.Equal(t, p.Fan1Curve, got.Fan1Curve)
	assert.Equal(t, 5200, got.Fan1MaxRPM)
	assert.True(t, got.SupportsDirectRPM)
	assert.True(t, p.CalibratedAt.Equal(got.CalibratedAt))
	assert.True(t, got.Valid())
	assert.Equal(t, p.ExpectedRPM(0, 73), got.ExpectedRPM(0, 73))
}

func TestSaveProfileReplacesSamples(t *testing.T) {
	database := openTestDB(t)
	p := sampleProfile()
	require.NoError(t, database.SaveProfile(p))

	p.Fan0Curve = nil
	p.Fan0Curve.Set(55, 4800)
	p.ModelName = "Nitro 5 (2023)"
	require.NoError(t, database.SaveProfile(p))

	got, err := database.GetProfile(p.ProductID)
	require.NoError(t, err)
	assert.Equal(t, calibration.Curve{{Level: 55, RPM: 4800}}, got.Fan0Curve)
	assert.Equal(t, "Nitro 5 (2023)", got.ModelName)

	infos, err := database.ListProfiles()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, 3, infos[0].Samples)
	require.NotNil(t, infos[0].CalibratedAt)
}

func TestUncalibratedProfile(t *testing.T) {
	database := openTestDB(t)
	require.NoError(t, database.SaveProfile(calibration.NewProfile("NEW-1", "")))

	got, err := database.GetProfile("NEW-1")
	require.NoError(t, err)
	assert.True(t, got.CalibratedAt.IsZero())
	assert.False(t, got.Valid())
}

func TestProfileErrors(t *testing.T) {
	database := openTestDB(t)

	assert.Error(t, database.SaveProfile(nil))
	assert.Error(t, database.SaveProfile(&calibration.Profile{}))

	_, err := database.GetProfile("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, database.DeleteProfile("missing"), ErrNotFound)

	require.NoError(t, database.SaveProfile(sampleProfile()))
	require.NoError(t, database.DeleteProfile("AN515-58"))
	_, err = database.GetProfile("AN515-58")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecordVerify(t *testing.T) {
	database := openTestDB(t)

	r := verify.Result{
		RequestedPercent: 73,
		Level:            40,
		ExpectedRPM:      3375,
		RPMBefore:        1200,
		RPMAfter:         3300,
		WriteOK:          true,
		Elapsed:          3 * time.Second,
	}
	run, err := database.RecordVerify(SourceCLI, r)
	require.NoError(t, err)
	assert.True(t, run.Success)

	results, err := database.GetResults(run.ID)
	require.NoError(t, err)
	byName := map[string]*Result{}
	for _, res := range results {
		byName[res.Metric] = res
	}
	assert.Equal(t, 3300.0, byName["rpm_after"].Value)
	assert.Equal(t, "rpm", byName["rpm_after"].Unit)
	assert.InDelta(t, r.PercentError(), byName["percent_error"].Value, 1e-9)

	got, err := database.GetRun(run.ID)
	require.NoError(t, err)
	assert.Equal(t, CommandVerify, got.Command)
	assert.Equal(t, "73", got.Arg)
	assert.Equal(t, true, got.Details["write_ok"])
	assert.InDelta(t, 3.0, got.Duration().Seconds(), 0.01)
}

func TestExport(t *testing.T) {
	database := openTestDB(t)

	_, err := database.RecordCommand(SourceAgent, "tpl", "3", true, "thermal power limit 3")
	require.NoError(t, err)
	_, err = database.RecordVerify(SourceCLI, verify.Result{RequestedPercent: 50, WriteOK: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, database.ExportCSV(&buf, RunFilter{}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	// header + 6 verify metrics + 1 bare command row
	assert.Len(t, records, 8)
	assert.Equal(t, "Run ID", records[0][0])

	buf.Reset()
	require.NoError(t, database.ExportJSON(&buf, RunFilter{Command: "tpl"}))
	var exported []RunExport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &exported))
	require.Len(t, exported, 1)
	assert.Equal(t, "3", exported[0].Run.Arg)
	assert.Empty(t, exported[0].Results)
}
