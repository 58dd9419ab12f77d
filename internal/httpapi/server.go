package httpapi

import (
	"net/http"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/dronesphere-dev/dronesphere-agent/internal/middleware"
)

// Server is the agent's HTTP edge.
type Server struct {
	ctx *AgentContext
	mux *http.ServeMux
}

// New creates a Server bound to the given AgentContext and registers every
// route this agent exposes.
func New(ctx *AgentContext) *Server {
	s := &Server{ctx: ctx, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.ctx.handleHealth)
	s.mux.HandleFunc("GET /ping", s.ctx.handlePing)
	s.mux.HandleFunc("GET /health/detailed", s.ctx.handleHealthDetailed)
	s.mux.HandleFunc("GET /telemetry", s.ctx.handleTelemetry)
	s.mux.HandleFunc("GET /commands", s.ctx.handleCommandsGet)
	s.mux.HandleFunc("POST /commands", s.ctx.handleCommandsPost)
	s.mux.Handle("GET /metrics", s.ctx.Metrics.Handler())
}

// buildHandler builds the final HTTP handler with all middleware.
func (s *Server) buildHandler() http.Handler {
	handler := http.Handler(s.mux)

	handler = middleware.CORS(s.ctx.Config.Server.CORSOrigins)(handler)
	handler = middleware.Logging(s.ctx.Logger)(handler)
	handler = middleware.Recovery(s.ctx.Logger)(handler)

	return h2c.NewHandler(handler, &http2.Server{})
}

// Start starts the HTTP server. Blocks until it returns an error.
func (s *Server) Start() error {
	addr := s.ctx.Config.ServerAddr()
	handler := s.buildHandler()

	s.ctx.Logger.Printf("agent starting on %s", addr)

	return http.ListenAndServe(addr, handler)
}
