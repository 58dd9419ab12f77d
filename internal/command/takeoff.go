package command

import (
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

const groundThresholdMeters = 0.5

// Takeoff arms and climbs to altitude. Open-loop: it waits a fixed 8
// seconds rather than monitoring altitude, matching the current design.
type Takeoff struct{}

func (Takeoff) Execute(backend registry.Backend, params map[string]any) models.CommandResult {
	start := time.Now()

	if result, ok := requireConnected(backend, start); !ok {
		return result
	}

	altitude := floatParam(params, "altitude", 10.0)

	if currentRelativeAltitude(backend) >= groundThresholdMeters {
		return succeeded(start, "Drone already airborne - takeoff not needed")
	}

	if err := backend.ActionArm(); err != nil {
		return failed(start, "backend_disconnected", "arm failed: "+err.Error())
	}
	if err := backend.ActionSetTakeoffAltitude(altitude); err != nil {
		return failed(start, "", "set takeoff altitude failed: "+err.Error())
	}
	if err := backend.ActionTakeoff(altitude); err != nil {
		return failed(start, "", "takeoff failed: "+err.Error())
	}

	time.Sleep(8 * time.Second)

	return succeeded(start, "takeoff completed")
}
