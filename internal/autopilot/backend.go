package autopilot

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"

	"github.com/dronesphere-dev/dronesphere-agent/internal/models"
)

// Backend is the autopilot-facing contract the command handlers and the
// executor depend on. It owns exactly one vehicle connection.
type Backend struct {
	logger *log.Logger

	mu              sync.RWMutex
	wire            *client
	connected       bool
	connectionStr   string
	lastTelemetryAt time.Time
	errorCount      int

	snapMu   sync.RWMutex
	snapshot models.TelemetrySnapshot
	origin   *models.PX4Origin

	cancel context.CancelFunc
	wg     sync.WaitGroup

	posCh   chan positionSample
	attCh   chan attitudeSample
	battCh  chan batterySample
	modeCh  chan modeSample
	gpsCh   chan gpsSample
	armedCh chan bool
}

type positionSample struct{ lat, lon, alt, relAlt float64 }
type attitudeSample struct{ roll, pitch, yaw float64 }
type batterySample struct {
	voltage, current float64
	remaining        int32
}
type modeSample struct {
	customMode uint32
	baseMode   uint8
}
type gpsSample struct {
	fixType          uint8
	satellites       int32
	hdop, vdop       float64
}

// NewBackend constructs an unconnected backend.
func NewBackend(logger *log.Logger) *Backend {
	if logger == nil {
		logger = log.Default()
	}
	return &Backend{logger: logger}
}

// Connected reports whether the backend currently has a live vehicle link.
func (b *Backend) Connected() bool {
	b.mu.RLock()
	w := b.wire
	b.mu.RUnlock()
	if w == nil {
		return false
	}
	connected := w.isConnected()

	b.mu.Lock()
	b.connected = connected
	b.mu.Unlock()

	b.snapMu.Lock()
	b.snapshot.Connected = connected
	b.snapMu.Unlock()

	return connected
}

// Connect tries connectionString if non-empty, then the candidate fallback
// list described in SPEC_FULL.md §2: Docker bridge gateway, a named SITL
// host, localhost listen, localhost dial.
func (b *Backend) Connect(ctx context.Context, connectionString string) error {
	candidates := connectionCandidates(connectionString)

	var lastErr error
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("autopilot: connect cancelled: %w", err)
		}
		b.logger.Printf("autopilot: attempting connection %q", candidate.description)

		wire, err := newClient(clientConfig{Endpoints: []gomavlib.EndpointConf{candidate.endpoint}, Logger: b.logger})
		if err != nil {
			lastErr = err
			continue
		}

		err = wire.waitForHeartbeat(8 * time.Second)
		if err != nil {
			_ = wire.close()
			lastErr = err
			continue
		}

		b.attach(wire, candidate.description)
		return nil
	}

	return fmt.Errorf("autopilot: could not connect on any candidate endpoint: %w", lastErr)
}

// attach wires the low-level client's callbacks into six independent
// collector goroutines, each owning exactly one field of the snapshot.
func (b *Backend) attach(wire *client, connectionStr string) {
	collectorCtx, cancel := context.WithCancel(context.Background())

	b.posCh = make(chan positionSample, 4)
	b.attCh = make(chan attitudeSample, 4)
	b.battCh = make(chan batterySample, 4)
	b.modeCh = make(chan modeSample, 4)
	b.gpsCh = make(chan gpsSample, 4)
	b.armedCh = make(chan bool, 4)

	wire.onPosition = func(lat, lon, alt, relAlt float64) {
		select {
		case b.posCh <- positionSample{lat, lon, alt, relAlt}:
		default:
		}
	}
	wire.onAttitude = func(roll, pitch, yaw float64) {
		select {
		case b.attCh <- attitudeSample{roll, pitch, yaw}:
		default:
		}
	}
	wire.onBattery = func(voltage, current float64, remaining int32) {
		select {
		case b.battCh <- batterySample{voltage, current, remaining}:
		default:
		}
	}
	wire.onMode = func(customMode uint32, baseMode uint8) {
		select {
		case b.modeCh <- modeSample{customMode, baseMode}:
		default:
		}
	}
	wire.onGPSInfo = func(fixType uint8, satellites int32, hdop, vdop float64) {
		select {
		case b.gpsCh <- gpsSample{fixType, satellites, hdop, vdop}:
		default:
		}
	}
	wire.onArmed = func(armed bool) {
		select {
		case b.armedCh <- armed:
		default:
		}
	}

	b.mu.Lock()
	b.wire = wire
	b.connected = true
	b.connectionStr = connectionStr
	b.mu.Unlock()

	b.snapMu.Lock()
	b.snapshot = models.TelemetrySnapshot{Connected: true}
	b.origin = nil
	b.snapMu.Unlock()

	b.cancel = cancel
	b.startCollectors(collectorCtx)
}

func (b *Backend) startCollectors(ctx context.Context) {
	b.wg.Add(6)

	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-b.posCh:
				b.touchTelemetry()
				b.recordPosition(s)
			}
		}
	}()
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-b.attCh:
				b.touchTelemetry()
				b.snapMu.Lock()
				b.snapshot.Attitude = &models.Attitude{Roll: s.roll, Pitch: s.pitch, Yaw: s.yaw}
				b.snapshot.Timestamp = models.Now()
				b.snapMu.Unlock()
			}
		}
	}()
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-b.battCh:
				b.touchTelemetry()
				b.snapMu.Lock()
				b.snapshot.Battery = &models.Battery{Voltage: s.voltage, RemainingPercent: float64(s.remaining)}
				b.snapshot.Timestamp = models.Now()
				b.snapMu.Unlock()
			}
		}
	}()
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-b.modeCh:
				b.touchTelemetry()
				b.snapMu.Lock()
				b.snapshot.FlightMode = flightModeName(s.customMode, s.baseMode)
				b.snapshot.Timestamp = models.Now()
				b.snapMu.Unlock()
			}
		}
	}()
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case s := <-b.gpsCh:
				b.touchTelemetry()
				b.snapMu.Lock()
				b.snapshot.GPSInfo = &models.GPSInfo{
					FixType:        models.FixTypeFromMAVLink(s.fixType),
					SatellitesUsed: int(s.satellites),
					HDOP:           s.hdop,
					VDOP:           s.vdop,
				}
				b.snapshot.Timestamp = models.Now()
				b.snapMu.Unlock()
			}
		}
	}()
	go func() {
		defer b.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case armed := <-b.armedCh:
				b.touchTelemetry()
				b.snapMu.Lock()
				b.snapshot.Armed = armed
				b.snapshot.Timestamp = models.Now()
				b.snapMu.Unlock()
			}
		}
	}()
}

// touchTelemetry stamps the last time any collector observed a message,
// feeding HealthCheck's last_telemetry_time.
func (b *Backend) touchTelemetry() {
	b.mu.Lock()
	b.lastTelemetryAt = time.Now()
	b.mu.Unlock()
}

// recordPosition updates the position field and, the first time a non-zero
// fix is observed, latches the PX4 origin for the lifetime of the session.
func (b *Backend) recordPosition(s positionSample) {
	b.snapMu.Lock()
	b.snapshot.Position = &models.Position{
		Latitude: s.lat, Longitude: s.lon, Altitude: s.alt, RelativeAltitude: s.relAlt,
	}
	b.snapshot.Timestamp = models.Now()
	if b.origin == nil && (s.lat != 0 || s.lon != 0) {
		b.origin = &models.PX4Origin{Latitude: s.lat, Longitude: s.lon, Altitude: s.alt}
	}
	b.snapMu.Unlock()
}

func flightModeName(customMode uint32, baseMode uint8) string {
	main := customMode & 0xff
	sub := (customMode >> 16) & 0xff

	switch main {
	case px4MainModeManual:
		return "MANUAL"
	case px4MainModeAltctl:
		return "ALTCTL"
	case px4MainModePosctl:
		return "POSCTL"
	case px4MainModeOffboard:
		return "OFFBOARD"
	case px4MainModeStabilized:
		return "STABILIZED"
	case px4MainModeAcro:
		return "ACRO"
	case px4MainModeRattitude:
		return "RATTITUDE"
	case px4MainModeAuto:
		switch sub {
		case px4AutoModeTakeoff:
			return "AUTO.TAKEOFF"
		case px4AutoModeLoiter:
			return "AUTO.LOITER"
		case px4AutoModeMission:
			return "AUTO.MISSION"
		case px4AutoModeRTL:
			return "AUTO.RTL"
		case px4AutoModeLand:
			return "AUTO.LAND"
		case px4AutoModeReady:
			return "AUTO.READY"
		default:
			return "AUTO"
		}
	default:
		return "UNKNOWN"
	}
}

// Disconnect cancels the telemetry collectors and closes the wire client.
// The origin and connection flag are reset; a following Connect starts
// clean: the origin stays sticky until this runs.
func (b *Backend) Disconnect() {
	b.mu.Lock()
	wire := b.wire
	b.wire = nil
	b.connected = false
	b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		b.wg.Wait()
	}
	if wire != nil {
		_ = wire.close()
	}

	b.snapMu.Lock()
	b.snapshot = models.TelemetrySnapshot{}
	b.origin = nil
	b.snapMu.Unlock()
}

// GetTelemetry returns the current snapshot, merged with the PX4 origin
// (real origin if captured, otherwise the SITL default).
func (b *Backend) GetTelemetry() models.TelemetrySnapshot {
	b.snapMu.RLock()
	snap := b.snapshot
	origin := b.origin
	b.snapMu.RUnlock()

	snap.Connected = b.Connected()
	if origin != nil {
		o := *origin
		snap.PX4Origin = &o
	} else {
		o := models.DefaultPX4Origin
		snap.PX4Origin = &o
	}
	return snap
}

// GetPX4Origin returns the real captured origin only, nil if none yet.
func (b *Backend) GetPX4Origin() *models.PX4Origin {
	b.snapMu.RLock()
	defer b.snapMu.RUnlock()
	if b.origin == nil {
		return nil
	}
	o := *b.origin
	return &o
}

// HealthCheck reports backend diagnostics for GET /health/detailed.
func (b *Backend) HealthCheck() map[string]any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]any{
		"backend_type":        "mavlink",
		"connection_string":   b.connectionStr,
		"connection_status":   b.connected,
		"telemetry_active":    b.wire != nil,
		"last_telemetry_time": b.lastTelemetryAt,
		"error_count":         b.errorCount,
	}
}

// --- action surface, used by internal/command handlers ---

func (b *Backend) wireClient() (*client, error) {
	b.mu.RLock()
	w := b.wire
	b.mu.RUnlock()
	if w == nil {
		return nil, fmt.Errorf("backend not connected")
	}
	return w, nil
}

// doAction runs fn against the current wire client, counting the failure
// into HealthCheck's error_count whether it came from no-connection or from
// the MAVLink call itself.
func (b *Backend) doAction(fn func(*client) error) error {
	w, err := b.wireClient()
	if err != nil {
		b.recordError()
		return err
	}
	if err := fn(w); err != nil {
		b.recordError()
		return err
	}
	return nil
}

func (b *Backend) recordError() {
	b.mu.Lock()
	b.errorCount++
	b.mu.Unlock()
}

func (b *Backend) ActionArm() error {
	return b.doAction(func(w *client) error { return w.arm() })
}

func (b *Backend) ActionDisarm() error {
	return b.doAction(func(w *client) error { return w.disarm() })
}

// ActionSetTakeoffAltitude has no standalone MAVLink message; PX4 takes the
// altitude as part of MAV_CMD_NAV_TAKEOFF's Param7, so this is folded into
// ActionTakeoff. It is kept as a separate method to mirror the two-step
// MAVSDK action surface the command handlers are written against.
func (b *Backend) ActionSetTakeoffAltitude(altitude float64) error {
	return nil
}

func (b *Backend) ActionTakeoff(altitude float64) error {
	return b.doAction(func(w *client) error { return w.takeoff(float32(altitude)) })
}

func (b *Backend) ActionLand() error {
	return b.doAction(func(w *client) error { return w.land() })
}

func (b *Backend) ActionReturnToLaunch() error {
	return b.doAction(func(w *client) error { return w.returnToLaunch() })
}

func (b *Backend) ActionGotoLocation(latitude, longitude, altitude float64) error {
	return b.doAction(func(w *client) error { return w.gotoPosition(latitude, longitude, altitude) })
}

func (b *Backend) ActionSetCurrentHeading(headingDeg float64) error {
	return b.doAction(func(w *client) error { return w.setHeading(float32(headingDeg), 30) })
}

func (b *Backend) IsArmed() bool {
	w, err := b.wireClient()
	if err != nil {
		return false
	}
	return w.isArmed()
}

// --- connection candidate resolution ---

type endpointCandidate struct {
	endpoint    gomavlib.EndpointConf
	description string
}

// connectionCandidates builds the fallback order described in
// SPEC_FULL.md §2 / §6.1: explicit override, Docker bridge gateway, a named
// SITL container, localhost listen, localhost dial.
func connectionCandidates(override string) []endpointCandidate {
	var candidates []endpointCandidate

	if override != "" {
		if ep, desc, ok := parseConnectionString(override); ok {
			candidates = append(candidates, endpointCandidate{ep, desc})
		}
	}

	if ip := dockerBridgeGatewayIP(); ip != "" {
		candidates = append(candidates, endpointCandidate{
			gomavlib.EndpointUDPClient{Address: fmt.Sprintf("%s:14550", ip)},
			fmt.Sprintf("docker bridge gateway udpout://%s:14550", ip),
		})
	}

	if ip := sitlContainerIP(); ip != "" {
		candidates = append(candidates, endpointCandidate{
			gomavlib.EndpointUDPClient{Address: fmt.Sprintf("%s:14560", ip)},
			fmt.Sprintf("sitl container udpout://%s:14560", ip),
		})
	}

	candidates = append(candidates,
		endpointCandidate{gomavlib.EndpointUDPServer{Address: "0.0.0.0:14550"}, "localhost listen udpin://0.0.0.0:14550"},
		endpointCandidate{gomavlib.EndpointUDPClient{Address: "127.0.0.1:14560"}, "localhost dial udpout://127.0.0.1:14560"},
	)

	return candidates
}

// parseConnectionString accepts the udpin://host:port / udpout://host:port /
// tcp://host:port forms the MAVSDK connection-string convention used.
func parseConnectionString(s string) (gomavlib.EndpointConf, string, bool) {
	switch {
	case strings.HasPrefix(s, "udpin://"):
		addr := strings.TrimPrefix(s, "udpin://")
		return gomavlib.EndpointUDPServer{Address: addr}, s, true
	case strings.HasPrefix(s, "udpout://"):
		addr := strings.TrimPrefix(s, "udpout://")
		return gomavlib.EndpointUDPClient{Address: addr}, s, true
	case strings.HasPrefix(s, "udp://"):
		addr := strings.TrimPrefix(s, "udp://")
		return gomavlib.EndpointUDPClient{Address: addr}, s, true
	case strings.HasPrefix(s, "tcp://"):
		addr := strings.TrimPrefix(s, "tcp://")
		return gomavlib.EndpointTCPClient{Address: addr}, s, true
	default:
		return nil, "", false
	}
}

// dockerBridgeGatewayIP shells out to the Docker CLI the way the original
// backend's dead _detect_connection_string helper did; any failure is
// swallowed, since this is only one candidate among several.
func dockerBridgeGatewayIP() string {
	out, err := exec.Command("docker", "network", "inspect", "bridge",
		"--format", "{{(index .IPAM.Config 0).Gateway}}").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

func sitlContainerIP() string {
	if os.Getenv("DRONESPHERE_SITL_CONTAINER") == "" {
		return ""
	}
	out, err := exec.Command("docker", "inspect",
		"--format", "{{range .NetworkSettings.Networks}}{{.IPAddress}}{{end}}",
		os.Getenv("DRONESPHERE_SITL_CONTAINER")).Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}

// HaversineDistance3D returns the straight-line distance in meters between
// two geodetic points, combining great-circle horizontal distance with the
// vertical delta, matching the original command's arrival-radius check.
func HaversineDistance3D(lat1, lon1, alt1, lat2, lon2, alt2 float64) float64 {
	const earthRadius = 6371000.0

	rlat1, rlat2 := lat1*math.Pi/180, lat2*math.Pi/180
	dlat := (lat2 - lat1) * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dlat/2)*math.Sin(dlat/2) +
		math.Cos(rlat1)*math.Cos(rlat2)*math.Sin(dlon/2)*math.Sin(dlon/2)
	c := 2 * math.Asin(math.Sqrt(a))
	horizontal := earthRadius * c
	vertical := math.Abs(alt2 - alt1)

	return math.Sqrt(horizontal*horizontal + vertical*vertical)
}
