package command

import (
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

// Land descends and disarms at the current position.
type Land struct{}

func (Land) Execute(backend registry.Backend, params map[string]any) models.CommandResult {
	start := time.Now()

	if result, ok := requireConnected(backend, start); !ok {
		return result
	}

	if currentRelativeAltitude(backend) <= groundThresholdMeters {
		return succeeded(start, "Drone already on ground - landing not needed")
	}

	if err := backend.ActionLand(); err != nil {
		return failed(start, "", "land failed: "+err.Error())
	}

	time.Sleep(10 * time.Second)

	return succeeded(start, "land completed")
}
