package agent

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/mscrnt/thermalctl/pkg/db"
	"github.com/mscrnt/thermalctl/pkg/hardware"
)

// CommandRequest is the body of every command endpoint; each endpoint reads one field
type CommandRequest struct {
	Profile string `json:"profile,omitempty"`
	Percent *int   `json:"percent,omitempty"`
	Enabled *bool  `json:"enabled,omitempty"`
	Mode    string `json:"mode,omitempty"`
	Limit   *int   `json:"limit,omitempty"`
}

type route struct {
	command string
	arg     func(CommandRequest) (string, error)
}

func intField(name string, v *int) (string, error) {
	if v == nil {
		return "", fmt.Errorf("%q is required", name)
	}
	return strconv.Itoa(*v), nil
}

func stringField(name, v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("%q is required", name)
	}
	return v, nil
}

var commandRoutes = map[string]route{
	"/fan/profile": {hardware.CmdFanProfile, func(r CommandRequest) (string, error) {
		return stringField("profile", r.Profile)
	}},
	"/fan/percent": {hardware.CmdFanPercent, func(r CommandRequest) (string, error) {
		return intField("percent", r.Percent)
	}},
	"/fan/boost": {hardware.CmdFanBoost, func(r CommandRequest) (string, error) {
		if r.Enabled == nil {
			return "", fmt.Errorf(`"enabled" is required`)
		}
		return strconv.FormatBool(*r.Enabled), nil
	}},
	"/perf/mode": {hardware.CmdPerfMode, func(r CommandRequest) (string, error) {
		return stringField("mode", r.Mode)
	}},
	"/perf/tpl": {hardware.CmdThermalPL, func(r CommandRequest) (string, error) {
		return intField("limit", r.Limit)
	}},
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(v)
}

// statusHandler returns a hardware snapshot
func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.hw.Status())
}

// commandHandler decodes a CommandRequest and runs one hardware command.
// Invalid input is 400, an unreachable EC is 503 and a failed write is 500.
func (s *Server) commandHandler(rt route) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req CommandRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, hardware.CommandResult{Command: rt.command, Message: "invalid request body: " + err.Error()})
			return
		}

		arg, err := rt.arg(req)
		if err == nil {
			err = hardware.ValidateCommand(rt.command, arg)
		}
		if err != nil {
			writeJSON(w, http.StatusBadRequest, hardware.CommandResult{Command: rt.command, Message: err.Error()})
			return
		}

		result := s.hw.Execute(rt.command, arg)
		if s.history != nil {
			if _, err := s.history.RecordCommand(db.SourceAgent, rt.command, arg, result.OK, result.Message); err != nil {
				s.logger.Warnf("failed to record %s: %v", rt.command, err)
			}
		}

		status := http.StatusOK
		switch {
		case result.OK:
		case !s.hw.Available():
			status = http.StatusServiceUnavailable
		default:
			status = http.StatusInternalServerError
		}
		writeJSON(w, status, result)
	}
}
