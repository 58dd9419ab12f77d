// Package executor runs a command sequence against a registry and a
// backend, enforcing the per-command failure policy and the emergency
// return-to-launch safety net.
package executor

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

// Executor owns sequence execution. Only one sequence may run at a time;
// a second call while one is in flight is rejected rather than queued.
type Executor struct {
	backend  registry.Backend
	registry *registry.Registry
	logger   *log.Logger

	mu        sync.Mutex
	executing bool
}

// New builds an Executor bound to one backend and one registry.
func New(backend registry.Backend, reg *registry.Registry, logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{backend: backend, registry: reg, logger: logger}
}

// Executing reports whether a sequence is currently running.
func (e *Executor) Executing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.executing
}

// ExecuteSequence runs every command in order, per its failure mode. A
// CRITICAL failure triggers abortSequence (emergency RTL) and stops the
// sequence; CONTINUE and SKIP both move on to the next command.
//
// QueueMode.Append is rejected outright: the original design neither
// queues cleanly nor replaces cleanly for append, so this agent fails loud
// instead of guessing.
func (e *Executor) ExecuteSequence(req models.CommandRequest) ([]models.CommandResult, error) {
	if req.QueueMode == models.QueueAppend {
		return nil, fmt.Errorf("invalid_parameters: queue_mode 'append' is not supported, use 'override'")
	}

	e.mu.Lock()
	if e.executing {
		e.mu.Unlock()
		return nil, fmt.Errorf("invalid_parameters: a command sequence is already executing")
	}
	e.executing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.executing = false
		e.mu.Unlock()
	}()

	results := make([]models.CommandResult, 0, len(req.Commands))

	for _, cmd := range req.Commands {
		result := e.executeOne(cmd)
		results = append(results, result)

		if result.Success {
			continue
		}

		mode := cmd.Mode
		if mode == "" {
			mode = models.ModeContinue
		}

		switch mode {
		case models.ModeCritical:
			e.logger.Printf("executor: command %q failed under critical mode, triggering emergency RTL", cmd.Name)
			e.abortSequence()
			return results, nil
		case models.ModeContinue, models.ModeSkip:
			continue
		default:
			continue
		}
	}

	return results, nil
}

func (e *Executor) executeOne(cmd models.Command) models.CommandResult {
	start := time.Now()

	handler, ok := e.registry.GetHandler(cmd.Name)
	if !ok {
		return models.CommandResult{
			Success:  false,
			Message:  fmt.Sprintf("unknown command %q", cmd.Name),
			Error:    "unknown_command",
			Duration: time.Since(start).Seconds(),
		}
	}

	if errs := e.registry.ValidateParams(cmd.Name, cmd.Params); len(errs) > 0 {
		return models.CommandResult{
			Success:  false,
			Message:  strings.Join(errs, "; "),
			Error:    "invalid_parameters",
			Duration: time.Since(start).Seconds(),
		}
	}

	return handler.Execute(e.backend, cmd.Params)
}

// abortSequence is the internal emergency path: there is no external API
// to invoke it directly.
func (e *Executor) abortSequence() {
	if err := e.backend.ActionReturnToLaunch(); err != nil {
		e.logger.Printf("executor: emergency RTL failed: %v", err)
	}
}
