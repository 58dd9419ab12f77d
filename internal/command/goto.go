package command

import (
	"fmt"
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/autopilot"
	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

const (
	gotoMonitorTimeout  = 60 * time.Second
	gotoMonitorInterval = 500 * time.Millisecond
)

// Goto navigates to a target position given as either GPS coordinates or a
// NED offset from the PX4 origin — exactly one of the two. There is no
// separate construction step: Execute picks the mode from which fields are
// present, after the connection, armed and airborne checks, and rejects
// both or neither with invalid_parameters.
type Goto struct{}

func (Goto) Execute(backend registry.Backend, params map[string]any) models.CommandResult {
	start := time.Now()

	if result, ok := requireConnected(backend, start); !ok {
		return result
	}

	if !backend.IsArmed() {
		return failed(start, "invalid_parameters", "goto requires the vehicle to be armed")
	}
	if currentRelativeAltitude(backend) < groundThresholdMeters {
		return failed(start, "invalid_parameters", "goto requires the vehicle to be airborne")
	}

	isGPS := hasParam(params, "latitude") || hasParam(params, "longitude")
	isNED := hasParam(params, "north") || hasParam(params, "east") || hasParam(params, "down")

	if isGPS && isNED {
		return failed(start, "invalid_parameters", "goto accepts either GPS or NED coordinates, not both")
	}
	if !isGPS && !isNED {
		return failed(start, "invalid_parameters", "goto requires latitude/longitude or north/east/down")
	}

	acceptanceRadius := floatParam(params, "acceptance_radius", 2.0)

	var targetLat, targetLon, targetAlt float64

	if isGPS {
		targetLat = floatParam(params, "latitude", 0)
		targetLon = floatParam(params, "longitude", 0)
		targetAlt = floatParam(params, "altitude", 0)
	} else {
		origin := backend.GetPX4Origin()
		var originLat, originLon, originAlt float64
		if origin != nil {
			originLat, originLon, originAlt = origin.Latitude, origin.Longitude, origin.Altitude
		} else {
			originLat, originLon, originAlt = models.DefaultPX4Origin.Latitude, models.DefaultPX4Origin.Longitude, models.DefaultPX4Origin.Altitude
		}

		north := floatParam(params, "north", 0)
		east := floatParam(params, "east", 0)
		down := floatParam(params, "down", 0)

		targetLat, targetLon, targetAlt = nedToGeodetic(originLat, originLon, originAlt, north, east, down)
	}

	if err := backend.ActionGotoLocation(targetLat, targetLon, targetAlt); err != nil {
		return failed(start, "", "goto failed: "+err.Error())
	}

	deadline := time.Now().Add(gotoMonitorTimeout)
	for time.Now().Before(deadline) {
		snap := backend.GetTelemetry()
		if snap.Position != nil {
			distance := autopilot.HaversineDistance3D(
				snap.Position.Latitude, snap.Position.Longitude, snap.Position.Altitude,
				targetLat, targetLon, targetAlt,
			)
			if distance <= acceptanceRadius {
				return succeeded(start, fmt.Sprintf("goto completed, %.2fm from target", distance))
			}
		}
		time.Sleep(gotoMonitorInterval)
	}

	return failed(start, "timeout", "goto did not reach target within 60s")
}
