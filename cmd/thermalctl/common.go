package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mscrnt/thermalctl/pkg/calibration"
	"github.com/mscrnt/thermalctl/pkg/config"
	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/mscrnt/thermalctl/pkg/hardware"
	"github.com/mscrnt/thermalctl/pkg/logger"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

// globals holds state shared by every subcommand
var globals appState

var isPrivileged = hardware.IsPrivileged

type appState struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg config.Config
	log *logger.Logger
}

// load reads the config file, applies env overrides and flag overrides
func (a *appState) load() error {
	if a.configPath == "" {
		a.configPath = config.DefaultPath()
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logger.New(os.Stderr, "", level)
	return nil
}

func (a *appState) openDB() (*db.DB, error) {
	database, err := db.Open(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// productID prefers the configured id over the one reported by firmware
func (a *appState) productID() (string, string) {
	id, model := hardware.DetectProduct()
	if a.cfg.Fan.ProductID != "" {
		id = a.cfg.Fan.ProductID
	}
	return id, model
}

// service builds the hardware facade and installs the stored calibration for
// this machine when there is one
func (a *appState) service(database *db.DB) (*hardware.Service, error) {
	svc, err := hardware.New(a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	if database == nil {
		return svc, nil
	}
	if id, _ := a.productID(); id != "" {
		p, err := database.GetProfile(id)
		switch {
		case err == nil:
			svc.SetProfile(p)
		case !errors.Is(err, db.ErrNotFound):
			a.log.Warnf("%v", err)
		}
	}
	return svc, nil
}

// loadProfile returns the stored profile for productID or nil when none exists
func loadProfile(database *db.DB) func(string) (*calibration.Profile, error) {
	return func(productID string) (*calibration.Profile, error) {
		p, err := database.GetProfile(productID)
		if errors.Is(err, db.ErrNotFound) {
			return nil, nil
		}
		return p, err
	}
}

// requireWrite refuses EC writes early when the process lacks privileges
func requireWrite() error {
	if isPrivileged() {
		return nil
	}
	return fmt.Errorf("writing to the embedded controller needs elevated privileges: %s", hardware.Remediation())
}

// runCommand executes one hardware command, records it and prints the verdict
func runCommand(name, arg string) error {
	if err := hardware.ValidateCommand(name, arg); err != nil {
		return err
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

	result := svc.Execute(name, arg)
	if _, err := database.RecordCommand(db.SourceCLI, name, arg, result.OK, result.Message); err != nil {
		globals.log.Warnf("failed to record history: %v", err)
	}
	printResult(result)
	if !result.OK {
		return fmt.Errorf("%s failed", name)
	}
	return nil
}

func printResult(r hardware.CommandResult) {
	if r.OK {
		fmt.Printf("%s %s succeeded: %s\n", okColor.Sprint("✓"), r.Command, r.Message)
		return
	}
	fmt.Printf("%s %s failed: %s\n", failColor.Sprint("✗"), r.Command, r.Message)
}

func verdict(passed bool) string {
	if passed {
		return okColor.Sprint("PASS")
	}
	return failColor.Sprint("FAIL")
}
