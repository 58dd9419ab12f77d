// Package command implements the drone verbs: takeoff, land, rtl, goto,
// yaw, wait. Each handler binds its own parameters, checks its own
// preconditions, and reports every outcome, failures included, as a
// models.CommandResult; Execute has no Go error return.
package command

import (
	"fmt"
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

// floatParam extracts a float64 parameter, applying def when absent. JSON
// numbers decode to float64, so this is the only numeric shape handlers
// need to deal with.
func floatParam(params map[string]any, name string, def float64) float64 {
	v, ok := params[name]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func stringParam(params map[string]any, name, def string) string {
	v, ok := params[name]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return def
}

func hasParam(params map[string]any, name string) bool {
	_, ok := params[name]
	return ok
}

// failed builds a failure CommandResult, stamping duration from start.
func failed(start time.Time, errKind, message string) models.CommandResult {
	return models.CommandResult{
		Success:  false,
		Message:  message,
		Error:    errKind,
		Duration: time.Since(start).Seconds(),
	}
}

func succeeded(start time.Time, message string) models.CommandResult {
	return models.CommandResult{
		Success:  true,
		Message:  message,
		Duration: time.Since(start).Seconds(),
	}
}

// requireConnected is the precondition every handler shares.
func requireConnected(backend registry.Backend, start time.Time) (models.CommandResult, bool) {
	if !backend.Connected() {
		return failed(start, "backend_disconnected", "autopilot backend is not connected"), false
	}
	return models.CommandResult{}, true
}

// currentRelativeAltitude reads the best-effort relative altitude from the
// latest telemetry snapshot, 0 if unavailable.
func currentRelativeAltitude(backend registry.Backend) float64 {
	snap := backend.GetTelemetry()
	if snap.Position == nil {
		return 0
	}
	return snap.Position.RelativeAltitude
}

func currentHeading(backend registry.Backend) float64 {
	snap := backend.GetTelemetry()
	if snap.Attitude == nil {
		return 0
	}
	// VFR_HUD heading (degrees) is not separately modeled on Attitude;
	// yaw.go derives heading from telemetry in degrees via the Attitude
	// yaw field (radians) since that is what is guaranteed fresh.
	return snap.Attitude.Yaw * 180 / 3.141592653589793
}

var errNeverHappens = fmt.Errorf("unreachable: schema validation should have caught this")
