package config

import "testing"

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config should validate, got: %v", err)
	}
}

func TestValidate_RejectsOutOfRangePort(t *testing.T) {
	cfg := Default()
	cfg.Server.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected port 0 to be rejected")
	}

	cfg.Server.Port = 70000
	if err := cfg.Validate(); err == nil {
		t.Error("expected port above 65535 to be rejected")
	}
}

func TestValidate_RejectsUnknownLogLevel(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "verbose"
	if err := cfg.Validate(); err == nil {
		t.Error("expected an unrecognized log level to be rejected")
	}
}

func TestValidate_RejectsNonPositiveConnectTimeout(t *testing.T) {
	cfg := Default()
	cfg.MAVLink.ConnectTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected a zero connect timeout to be rejected")
	}
}

func TestServerAddr(t *testing.T) {
	cfg := Default()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 9000
	if addr := cfg.ServerAddr(); addr != "127.0.0.1:9000" {
		t.Errorf("got %q, want %q", addr, "127.0.0.1:9000")
	}
}

func TestLoad_MAVSDKConnectionStringOverride(t *testing.T) {
	t.Setenv("MAVSDK_CONNECTION_STRING", "udpin://0.0.0.0:14540")
	cfg := Load()
	if cfg.MAVLink.ConnectionString != "udpin://0.0.0.0:14540" {
		t.Errorf("expected MAVSDK_CONNECTION_STRING to be honored, got %q", cfg.MAVLink.ConnectionString)
	}
}

func TestLoad_PortOverride(t *testing.T) {
	t.Setenv("DRONESPHERE_PORT", "9100")
	cfg := Load()
	if cfg.Server.Port != 9100 {
		t.Errorf("expected overridden port 9100, got %d", cfg.Server.Port)
	}
}
