package autopilot

import (
	"math"
	"testing"

	"github.com/bluenviron/gomavlib/v3"
)

func TestFlightModeName(t *testing.T) {
	cases := []struct {
		name       string
		customMode uint32
		want       string
	}{
		{"manual", encodePX4Mode(px4MainModeManual, 0), "MANUAL"},
		{"posctl", encodePX4Mode(px4MainModePosctl, 0), "POSCTL"},
		{"auto takeoff", encodePX4Mode(px4MainModeAuto, px4AutoModeTakeoff), "AUTO.TAKEOFF"},
		{"auto mission", encodePX4Mode(px4MainModeAuto, px4AutoModeMission), "AUTO.MISSION"},
		{"auto rtl", encodePX4Mode(px4MainModeAuto, px4AutoModeRTL), "AUTO.RTL"},
		{"auto unknown sub-mode", encodePX4Mode(px4MainModeAuto, 99), "AUTO"},
		{"unknown main mode", 0, "UNKNOWN"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := flightModeName(tc.customMode, 0); got != tc.want {
				t.Errorf("flightModeName(%d) = %q, want %q", tc.customMode, got, tc.want)
			}
		})
	}
}

func TestEncodePX4Mode_RoundTripsSubMode(t *testing.T) {
	packed := encodePX4Mode(px4MainModeAuto, px4AutoModeLand)
	if main := packed & 0xff; main != px4MainModeAuto {
		t.Errorf("expected main mode %d, got %d", px4MainModeAuto, main)
	}
	if sub := (packed >> 16) & 0xff; sub != px4AutoModeLand {
		t.Errorf("expected sub mode %d, got %d", px4AutoModeLand, sub)
	}
}

func TestParseConnectionString(t *testing.T) {
	cases := []struct {
		in      string
		wantOK  bool
		wantFor string
	}{
		{"udpin://0.0.0.0:14550", true, "UDPServer"},
		{"udpout://127.0.0.1:14560", true, "UDPClient"},
		{"udp://127.0.0.1:14560", true, "UDPClient"},
		{"tcp://127.0.0.1:5760", true, "TCPClient"},
		{"not-a-valid-scheme", false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			ep, desc, ok := parseConnectionString(tc.in)
			if ok != tc.wantOK {
				t.Fatalf("parseConnectionString(%q) ok = %v, want %v", tc.in, ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if desc != tc.in {
				t.Errorf("expected description to echo the input string, got %q", desc)
			}
			switch tc.wantFor {
			case "UDPServer":
				if _, ok := ep.(gomavlib.EndpointUDPServer); !ok {
					t.Errorf("expected EndpointUDPServer, got %T", ep)
				}
			case "UDPClient":
				if _, ok := ep.(gomavlib.EndpointUDPClient); !ok {
					t.Errorf("expected EndpointUDPClient, got %T", ep)
				}
			case "TCPClient":
				if _, ok := ep.(gomavlib.EndpointTCPClient); !ok {
					t.Errorf("expected EndpointTCPClient, got %T", ep)
				}
			}
		})
	}
}

func TestConnectionCandidates_AlwaysIncludesLocalhostFallbacks(t *testing.T) {
	candidates := connectionCandidates("")
	if len(candidates) < 2 {
		t.Fatalf("expected at least the two localhost fallbacks, got %d", len(candidates))
	}
	last := candidates[len(candidates)-1]
	if _, ok := last.endpoint.(gomavlib.EndpointUDPClient); !ok {
		t.Errorf("expected the final fallback to be a UDP client dial, got %T", last.endpoint)
	}
}

func TestConnectionCandidates_OverridePrepended(t *testing.T) {
	candidates := connectionCandidates("tcp://192.168.1.50:5760")
	if len(candidates) == 0 {
		t.Fatal("expected at least one candidate")
	}
	if _, ok := candidates[0].endpoint.(gomavlib.EndpointTCPClient); !ok {
		t.Errorf("expected the explicit override to be tried first, got %T", candidates[0].endpoint)
	}
}

func TestHaversineDistance3D_SamePointIsZero(t *testing.T) {
	d := HaversineDistance3D(47.3977505, 8.5456072, 488.0, 47.3977505, 8.5456072, 488.0)
	if d != 0 {
		t.Errorf("expected zero distance for identical points, got %f", d)
	}
}

func TestHaversineDistance3D_VerticalOnly(t *testing.T) {
	d := HaversineDistance3D(47.3977505, 8.5456072, 488.0, 47.3977505, 8.5456072, 498.0)
	if math.Abs(d-10.0) > 0.01 {
		t.Errorf("expected ~10m vertical-only distance, got %f", d)
	}
}

func TestHealthCheck_ReportsErrorCountOnUnconnectedAction(t *testing.T) {
	b := NewBackend(nil)

	if err := b.ActionArm(); err == nil {
		t.Fatal("expected arming an unconnected backend to fail")
	}

	health := b.HealthCheck()
	if health["error_count"] != 1 {
		t.Errorf("expected error_count to be 1 after one failed action, got %v", health["error_count"])
	}
	if health["connection_status"] != false {
		t.Errorf("expected connection_status false for a never-connected backend, got %v", health["connection_status"])
	}
}

func TestHaversineDistance3D_KnownHorizontalOffset(t *testing.T) {
	// ~1 degree of latitude is about 111km; 0.001 degree is about 111m.
	d := HaversineDistance3D(47.0, 8.0, 0, 47.001, 8.0, 0)
	if d < 100 || d > 120 {
		t.Errorf("expected roughly 111m for a 0.001 degree latitude step, got %f", d)
	}
}
