// Package config holds the agent's configuration: one HTTP listener, one
// vehicle connection.
package config

import "fmt"

// Config holds all application configuration.
type Config struct {
	Agent   AgentConfig
	Server  ServerConfig
	MAVLink MAVLinkConfig
	Logging LoggingConfig
}

// AgentConfig identifies this agent instance.
type AgentConfig struct {
	ID      int
	Version string
}

type ServerConfig struct {
	Host        string
	Port        int
	CORSOrigins []string
}

// MAVLinkConfig configures the vehicle connection. ConnectionString, when
// set, is tried before the candidate fallback list (see
// internal/autopilot's connectionCandidates).
type MAVLinkConfig struct {
	ConnectionString string
	ConnectTimeout    int // seconds
}

type LoggingConfig struct {
	Level  string // "debug", "info", "warn", "error"
	Format string // "json", "text"
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			ID:      1,
			Version: "1.0.0",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8001,
			CORSOrigins: []string{
				"http://localhost:5173",
				"http://localhost:3000",
			},
		},
		MAVLink: MAVLinkConfig{
			ConnectionString: "",
			ConnectTimeout:   10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.MAVLink.ConnectTimeout < 1 {
		return fmt.Errorf("invalid mavlink connect timeout: %d", c.MAVLink.ConnectTimeout)
	}

	return nil
}

// ServerAddr returns the server address as host:port.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
