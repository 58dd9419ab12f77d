package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dronesphere-dev/dronesphere-agent/internal/command"
	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

func commandHandlers() map[string]registry.Handler {
	return command.All()
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// handleHealth implements GET /health.
func (a *AgentContext) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"timestamp":          models.Now(),
		"agent_id":           a.Config.Agent.ID,
		"version":            a.Config.Agent.Version,
		"uptime_seconds":     time.Since(a.StartedAt).Seconds(),
		"backend_connected":  a.Backend.Connected(),
		"executor_ready":     !a.Executor.Executing(),
	})
}

// handlePing implements GET /ping.
func (a *AgentContext) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"pong": models.Now()})
}

// handleHealthDetailed implements GET /health/detailed.
func (a *AgentContext) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"agent": map[string]any{
			"id":             a.Config.Agent.ID,
			"version":        a.Config.Agent.Version,
			"uptime_seconds": time.Since(a.StartedAt).Seconds(),
		},
		"backend": a.Backend.HealthCheck(),
		"executor": map[string]any{
			"executing": a.Executor.Executing(),
		},
		"system": map[string]any{
			"commands_registered": len(a.Registry.ListCommands()),
		},
		"timestamp": models.Now(),
	})
}

// handleTelemetry implements GET /telemetry, reconnecting once if the
// backend is currently disconnected, matching the original agent's
// behavior.
func (a *AgentContext) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !a.Backend.Connected() {
		a.reconnect(r.Context())
	}

	if !a.Backend.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "backend_disconnected",
			"message": "autopilot backend is not connected",
		})
		return
	}

	snap := a.Backend.GetTelemetry()
	writeJSON(w, http.StatusOK, map[string]any{
		"drone_id":    a.Config.Agent.ID,
		"timestamp":   snap.Timestamp,
		"position":    snap.Position,
		"attitude":    snap.Attitude,
		"battery":     snap.Battery,
		"flight_mode": snap.FlightMode,
		"gps_info":    snap.GPSInfo,
		"armed":       snap.Armed,
		"connected":   snap.Connected,
		"px4_origin":  snap.PX4Origin,
	})
}

// handleCommandsGet implements GET /commands: the registry catalog,
// supplementing the distilled interface with the original's
// get_command_info() introspection.
func (a *AgentContext) handleCommandsGet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"commands": a.Registry.Describe()})
}

// handleCommandsPost implements POST /commands.
func (a *AgentContext) handleCommandsPost(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req models.CommandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "invalid_parameters", "message": "malformed request body",
		})
		return
	}

	if req.TargetDrone != nil && *req.TargetDrone != a.Config.Agent.ID {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_parameters",
			"message": fmt.Sprintf("target_drone %d does not match this agent (%d)", *req.TargetDrone, a.Config.Agent.ID),
		})
		return
	}

	if !a.Backend.Connected() {
		a.reconnect(r.Context())
	}
	if !a.Backend.Connected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"error": "backend_disconnected", "message": "autopilot backend is not connected",
		})
		return
	}

	a.Metrics.SetExecuting(true)
	a.Logger.Printf("httpapi: [%s] executing %d command(s)", requestID, len(req.Commands))

	results, err := a.Executor.ExecuteSequence(req)
	a.Metrics.SetExecuting(false)

	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error": "invalid_parameters", "message": err.Error(),
		})
		return
	}

	successCount := 0
	for i, result := range results {
		a.Metrics.RecordCommand(req.Commands[i].Name, result.Success)
		if result.Success {
			successCount++
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            allSucceeded(results),
		"results":            results,
		"drone_id":           a.Config.Agent.ID,
		"timestamp":          models.Now(),
		"total_commands":     len(results),
		"successful_commands": successCount,
	})
}

func allSucceeded(results []models.CommandResult) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}

// reconnect attempts a single reconnection using the configured
// connection string, logging failures rather than surfacing them — the
// caller checks Connected() again afterward.
func (a *AgentContext) reconnect(ctx context.Context) {
	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(a.Config.MAVLink.ConnectTimeout)*time.Second)
	defer cancel()

	if err := a.Backend.Connect(connectCtx, a.Config.MAVLink.ConnectionString); err != nil {
		a.Logger.Printf("httpapi: reconnect attempt failed: %v", err)
	}
}
