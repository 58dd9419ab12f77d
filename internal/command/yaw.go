package command

import (
	"fmt"
	"math"
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

const (
	yawMonitorTimeout  = 30 * time.Second
	yawMonitorInterval = 500 * time.Millisecond
	yawToleranceDeg    = 2.0
)

// Yaw rotates to a target compass heading while airborne.
type Yaw struct{}

func (Yaw) Execute(backend registry.Backend, params map[string]any) models.CommandResult {
	start := time.Now()

	if result, ok := requireConnected(backend, start); !ok {
		return result
	}

	if !backend.IsArmed() {
		return failed(start, "invalid_parameters", "yaw requires the vehicle to be armed")
	}
	if currentRelativeAltitude(backend) < groundThresholdMeters {
		return failed(start, "invalid_parameters", "yaw requires the vehicle to be airborne")
	}

	heading := floatParam(params, "heading", -1)
	speed := floatParam(params, "speed", 30)

	if err := backend.ActionSetCurrentHeading(heading); err != nil {
		return failed(start, "", "set heading failed: "+err.Error())
	}
	_ = speed // validated, but not yet wired into a yaw rate setpoint (reserved)

	deadline := time.Now().Add(yawMonitorTimeout)
	for time.Now().Before(deadline) {
		current := currentHeading(backend)
		wrapped := math.Mod(current-heading+180, 360)
		if wrapped < 0 {
			wrapped += 360
		}
		diff := math.Abs(wrapped - 180)
		if diff <= yawToleranceDeg {
			return succeeded(start, fmt.Sprintf("yaw completed, heading %.1f°", current))
		}
		time.Sleep(yawMonitorInterval)
	}

	return failed(start, "timeout", "yaw did not reach target heading within 30s")
}
