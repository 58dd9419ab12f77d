package config

import (
	"log"
	"os"
	"strconv"
)

// Load loads configuration from environment variables, falling back to
// defaults for anything missing.
func Load() *Config {
	cfg := Default()

	if port := os.Getenv("DRONESPHERE_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	if host := os.Getenv("DRONESPHERE_HOST"); host != "" {
		cfg.Server.Host = host
	}

	if logLevel := os.Getenv("DRONESPHERE_LOG_LEVEL"); logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if agentID := os.Getenv("DRONESPHERE_AGENT_ID"); agentID != "" {
		if id, err := strconv.Atoi(agentID); err == nil {
			cfg.Agent.ID = id
		}
	}

	// Preserved verbatim: this is the connection-string override the
	// original design names explicitly.
	if connStr := os.Getenv("MAVSDK_CONNECTION_STRING"); connStr != "" {
		cfg.MAVLink.ConnectionString = connStr
	}

	if timeout := os.Getenv("DRONESPHERE_MAVLINK_CONNECT_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			cfg.MAVLink.ConnectTimeout = t
		}
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	return cfg
}
