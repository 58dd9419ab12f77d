package command

import (
	"fmt"
	"math"
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

// Wait holds position in the sequence for a fixed duration. It never
// requires a connection and always succeeds; only its message reports
// whether the actual sleep matched the requested duration closely enough.
type Wait struct{}

func (Wait) Execute(_ registry.Backend, params map[string]any) models.CommandResult {
	start := time.Now()

	duration := floatParam(params, "duration", 0)
	message := stringParam(params, "message", "")

	time.Sleep(time.Duration(duration * float64(time.Second)))

	actual := time.Since(start).Seconds()
	threshold := math.Max(0.01, duration*0.01)

	var resultMessage string
	if math.Abs(actual-duration) <= threshold {
		resultMessage = fmt.Sprintf("wait completed successfully (%.2fs)", actual)
	} else {
		resultMessage = fmt.Sprintf("wait completed with timing drift (%.2fs vs %.2fs target)", actual, duration)
	}
	if message != "" {
		resultMessage = fmt.Sprintf("%s: %s", resultMessage, message)
	}

	return models.CommandResult{Success: true, Message: resultMessage, Duration: actual}
}
