// Package httpapi is the agent's plain-JSON HTTP edge: a thin layer with
// no business logic of its own, translating HTTP requests into calls on
// AgentContext's executor, registry, and backend.
package httpapi

import (
	"log"
	"time"

	"github.com/dronesphere-dev/dronesphere-agent/internal/autopilot"
	"github.com/dronesphere-dev/dronesphere-agent/internal/config"
	"github.com/dronesphere-dev/dronesphere-agent/internal/executor"
	"github.com/dronesphere-dev/dronesphere-agent/internal/registry"
)

// AgentContext threads every shared dependency explicitly into the HTTP
// layer, in place of package-level globals.
type AgentContext struct {
	Config    *config.Config
	Backend   *autopilot.Backend
	Registry  *registry.Registry
	Executor  *executor.Executor
	Logger    *log.Logger
	StartedAt time.Time
	Metrics   *Metrics
}

// NewAgentContext wires a backend, registry, and executor together behind
// one explicit context instead of package-level globals.
func NewAgentContext(cfg *config.Config, logger *log.Logger) *AgentContext {
	if logger == nil {
		logger = log.New(log.Writer(), "[agent] ", log.LstdFlags|log.Lshortfile)
	}

	backend := autopilot.NewBackend(logger)
	reg, err := registry.New(commandHandlers())
	if err != nil {
		logger.Fatalf("httpapi: failed to build command registry: %v", err)
	}
	exec := executor.New(backend, reg, logger)

	return &AgentContext{
		Config:    cfg,
		Backend:   backend,
		Registry:  reg,
		Executor:  exec,
		Logger:    logger,
		StartedAt: time.Now(),
		Metrics:   NewMetrics(),
	}
}
