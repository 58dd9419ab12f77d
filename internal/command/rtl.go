package command

import (
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

// RTL returns to the launch point and lands. The executor's emergency path
// on a CRITICAL failure does not run this handler: it calls the backend's
// ActionReturnToLaunch itself, with no connection check and no 15-second
// wait.
type RTL struct{}

func (RTL) Execute(backend registry.Backend, params map[string]any) models.CommandResult {
	start := time.Now()

	if result, ok := requireConnected(backend, start); !ok {
		return result
	}

	if err := backend.ActionReturnToLaunch(); err != nil {
		return failed(start, "", "return to launch failed: "+err.Error())
	}

	time.Sleep(15 * time.Second)

	return succeeded(start, "return to launch completed")
}
