// Package autopilot speaks MAVLink directly to a PX4 autopilot, standing in
// for the out-of-process MAVSDK server the original design described: the
// external contract (connect, telemetry, arm/takeoff/land/goto/RTL/yaw) is
// identical, the wire protocol is not mediated by a second process.
package autopilot

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
)

// PX4 main flight modes, encoded in MAVLink's custom_mode field.
const (
	px4MainModeManual     = 1
	px4MainModeAltctl     = 2
	px4MainModePosctl     = 3
	px4MainModeAuto       = 4
	px4MainModeAcro       = 5
	px4MainModeOffboard   = 6
	px4MainModeStabilized = 7
	px4MainModeRattitude  = 8
)

// PX4 AUTO sub-modes, valid when the main mode above is px4MainModeAuto.
const (
	px4AutoModeReady   = 1
	px4AutoModeTakeoff = 2
	px4AutoModeLoiter  = 3
	px4AutoModeMission = 4
	px4AutoModeRTL     = 5
	px4AutoModeLand    = 6
)

// encodePX4Mode packs a main mode and an optional AUTO sub-mode into the
// custom_mode field the way PX4 expects it.
func encodePX4Mode(main uint32, sub uint32) uint32 {
	return main | (sub << 16)
}

// wireTelemetry mirrors the raw fields a PX4 vehicle reports over MAVLink,
// before they are distributed into the six independent telemetry collectors
// started by Backend.startCollectors in backend.go.
type wireTelemetry struct {
	Latitude, Longitude, Altitude, RelativeAltitude float64
	VelocityX, VelocityY, VelocityZ                 float64
	Roll, Pitch, Yaw                                float64
	Heading, GroundSpeed, VerticalSpeed             float64
	BatteryVoltage, BatteryCurrent                  float64
	BatteryRemaining                                int32
	GPSFixType                                       uint8
	SatellitesVisible                               int32
	HDOP, VDOP                                       float64
	CustomMode                                      uint32
	BaseMode                                         uint8
	LastUpdate                                       time.Time
}

// client is the low-level MAVLink wire connection. It owns the gomavlib
// node and the last-known raw telemetry; it has no notion of commands,
// sequences, or HTTP.
type client struct {
	node     *gomavlib.Node
	systemID uint8

	mu            sync.RWMutex
	connected     bool
	armed         bool
	lastHeartbeat time.Time
	telemetry     wireTelemetry

	logger *log.Logger

	stopHeartbeat chan struct{}
	heartbeatDone chan struct{}

	onPosition func(lat, lon, alt, relAlt float64)
	onAttitude func(roll, pitch, yaw float64)
	onBattery  func(voltageV, currentA float64, remainingPct int32)
	onMode     func(customMode uint32, baseMode uint8)
	onGPSInfo  func(fixType uint8, satellites int32, hdop, vdop float64)
	onArmed    func(armed bool)
}

// clientConfig configures the low-level wire client.
type clientConfig struct {
	Endpoints []gomavlib.EndpointConf
	Logger    *log.Logger
}

func newClient(cfg clientConfig) (*client, error) {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   cfg.Endpoints,
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: 255, // ground-station system ID
	})
	if err != nil {
		return nil, fmt.Errorf("mavlink: create node: %w", err)
	}

	c := &client{
		node:          node,
		logger:        cfg.Logger,
		stopHeartbeat: make(chan struct{}),
		heartbeatDone: make(chan struct{}),
	}

	go c.listen()
	go c.sendGroundStationMessages()

	return c, nil
}

// sendGroundStationMessages identifies this process as a GCS and assists
// GPS warm-start with SYSTEM_TIME, the way a real ground station would.
func (c *client) sendGroundStationMessages() {
	defer close(c.heartbeatDone)

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopHeartbeat:
			return
		case <-ticker.C:
			_ = c.node.WriteMessageAll(&common.MessageHeartbeat{
				Type:           common.MAV_TYPE_GCS,
				Autopilot:      common.MAV_AUTOPILOT_INVALID,
				SystemStatus:   common.MAV_STATE_ACTIVE,
				MavlinkVersion: 3,
			})

			now := time.Now()
			_ = c.node.WriteMessageAll(&common.MessageSystemTime{
				TimeUnixUsec: uint64(now.UnixMicro()),
				TimeBootMs:   uint32(now.UnixMilli() % (1 << 32)),
			})
		}
	}
}

func (c *client) requestDataStreams() error {
	c.mu.RLock()
	systemID := c.systemID
	c.mu.RUnlock()

	return c.node.WriteMessageAll(&common.MessageRequestDataStream{
		TargetSystem:    systemID,
		TargetComponent: 1,
		ReqStreamId:     uint8(common.MAV_DATA_STREAM_ALL),
		ReqMessageRate:  10,
		StartStop:       1,
	})
}

func (c *client) listen() {
	for evt := range c.node.Events() {
		if frm, ok := evt.(*gomavlib.EventFrame); ok {
			c.handleMessage(frm.Message(), frm.SystemID())
		}
	}
}

func (c *client) handleMessage(msg message.Message, sysID uint8) {
	switch m := msg.(type) {
	case *common.MessageHeartbeat:
		c.handleHeartbeat(m, sysID)
	case *common.MessageCommandAck:
		c.handleCommandAck(m)
	case *common.MessageStatustext:
		c.logger.Printf("autopilot: statustext [%d] %s", m.Severity, m.Text)
	case *common.MessageGlobalPositionInt:
		c.handleGlobalPosition(m)
	case *common.MessageAttitude:
		c.handleAttitude(m)
	case *common.MessageVfrHud:
		c.handleVfrHud(m)
	case *common.MessageSysStatus:
		c.handleSysStatus(m)
	case *common.MessageGpsRawInt:
		c.handleGpsRaw(m)
	}
}

func (c *client) handleHeartbeat(msg *common.MessageHeartbeat, sysID uint8) {
	c.mu.Lock()
	wasConnected := c.connected
	c.connected = true
	c.systemID = sysID
	c.lastHeartbeat = time.Now()

	wasArmed := c.armed
	c.armed = (msg.BaseMode & common.MAV_MODE_FLAG_SAFETY_ARMED) != 0
	c.telemetry.CustomMode = msg.CustomMode
	c.telemetry.BaseMode = uint8(msg.BaseMode)
	armedChanged := wasArmed != c.armed
	armed := c.armed
	onArmed := c.onArmed
	onMode := c.onMode
	customMode, baseMode := msg.CustomMode, uint8(msg.BaseMode)
	c.mu.Unlock()

	if !wasConnected {
		c.logger.Printf("autopilot: connected to system %d", sysID)
	}
	if armedChanged && onArmed != nil {
		onArmed(armed)
	}
	if onMode != nil {
		onMode(customMode, baseMode)
	}
}

func (c *client) handleGlobalPosition(msg *common.MessageGlobalPositionInt) {
	c.mu.Lock()
	lat := float64(msg.Lat) / 1e7
	lon := float64(msg.Lon) / 1e7
	alt := float64(msg.Alt) / 1000.0
	relAlt := float64(msg.RelativeAlt) / 1000.0
	c.telemetry.Latitude = lat
	c.telemetry.Longitude = lon
	c.telemetry.Altitude = alt
	c.telemetry.RelativeAltitude = relAlt
	c.telemetry.VelocityX = float64(msg.Vx) / 100.0
	c.telemetry.VelocityY = float64(msg.Vy) / 100.0
	c.telemetry.VelocityZ = float64(msg.Vz) / 100.0
	c.telemetry.LastUpdate = time.Now()
	cb := c.onPosition
	c.mu.Unlock()

	if cb != nil {
		cb(lat, lon, alt, relAlt)
	}
}

func (c *client) handleAttitude(msg *common.MessageAttitude) {
	c.mu.Lock()
	roll, pitch, yaw := float64(msg.Roll), float64(msg.Pitch), float64(msg.Yaw)
	c.telemetry.Roll = roll
	c.telemetry.Pitch = pitch
	c.telemetry.Yaw = yaw
	c.telemetry.LastUpdate = time.Now()
	cb := c.onAttitude
	c.mu.Unlock()

	if cb != nil {
		cb(roll, pitch, yaw)
	}
}

func (c *client) handleVfrHud(msg *common.MessageVfrHud) {
	c.mu.Lock()
	c.telemetry.Heading = float64(msg.Heading)
	c.telemetry.GroundSpeed = float64(msg.Groundspeed)
	c.telemetry.VerticalSpeed = float64(msg.Climb)
	c.telemetry.LastUpdate = time.Now()
	c.mu.Unlock()
}

func (c *client) handleSysStatus(msg *common.MessageSysStatus) {
	c.mu.Lock()
	voltage := float64(msg.VoltageBattery) / 1000.0
	current := float64(msg.CurrentBattery) / 100.0
	remaining := int32(msg.BatteryRemaining)
	c.telemetry.BatteryVoltage = voltage
	c.telemetry.BatteryCurrent = current
	c.telemetry.BatteryRemaining = remaining
	c.telemetry.LastUpdate = time.Now()
	cb := c.onBattery
	c.mu.Unlock()

	if cb != nil {
		cb(voltage, current, remaining)
	}
}

func (c *client) handleGpsRaw(msg *common.MessageGpsRawInt) {
	c.mu.Lock()
	hdop := float64(msg.Eph) / 100.0
	vdop := float64(msg.Epv) / 100.0
	sats := int32(msg.SatellitesVisible)
	fixType := uint8(msg.FixType)
	c.telemetry.HDOP = hdop
	c.telemetry.VDOP = vdop
	c.telemetry.SatellitesVisible = sats
	c.telemetry.GPSFixType = fixType
	c.telemetry.LastUpdate = time.Now()
	cb := c.onGPSInfo
	c.mu.Unlock()

	if cb != nil {
		cb(fixType, sats, hdop, vdop)
	}
}

func (c *client) handleCommandAck(msg *common.MessageCommandAck) {
	result := "UNKNOWN"
	switch msg.Result {
	case common.MAV_RESULT_ACCEPTED:
		result = "ACCEPTED"
	case common.MAV_RESULT_TEMPORARILY_REJECTED:
		result = "TEMPORARILY_REJECTED"
	case common.MAV_RESULT_DENIED:
		result = "DENIED"
	case common.MAV_RESULT_UNSUPPORTED:
		result = "UNSUPPORTED"
	case common.MAV_RESULT_FAILED:
		result = "FAILED"
	case common.MAV_RESULT_IN_PROGRESS:
		result = "IN_PROGRESS"
	}
	c.logger.Printf("autopilot: command %d result: %s", msg.Command, result)
}

// isConnected reports liveness, treating a 3-second heartbeat gap as a
// disconnect. This mutates state (the side effect is intentional, matching
// the staleness check the wire protocol needs to perform on every read).
func (c *client) isConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected && time.Since(c.lastHeartbeat) > 3*time.Second {
		c.connected = false
		c.logger.Println("autopilot: heartbeat timeout, marking disconnected")
	}
	return c.connected
}

func (c *client) isArmed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.armed
}

func (c *client) getSystemID() uint8 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.systemID
}

func (c *client) getTelemetry() wireTelemetry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.telemetry
}

// waitForHeartbeat polls for a heartbeat up to timeout, then requests data
// streams once connected.
func (c *client) waitForHeartbeat(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if c.isConnected() {
			if err := c.requestDataStreams(); err != nil {
				c.logger.Printf("autopilot: warning, failed to request data streams: %v", err)
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout waiting for heartbeat")
		}
		<-ticker.C
	}
}

func (c *client) sendCommandLong(cmd common.MAV_CMD, p1, p2, p3, p4, p5, p6, p7 float32) error {
	systemID := c.getSystemID()
	if !c.isConnected() {
		return fmt.Errorf("not connected to vehicle")
	}
	return c.node.WriteMessageAll(&common.MessageCommandLong{
		TargetSystem:    systemID,
		TargetComponent: 1,
		Command:         cmd,
		Param1:          p1,
		Param2:          p2,
		Param3:          p3,
		Param4:          p4,
		Param5:          p5,
		Param6:          p6,
		Param7:          p7,
	})
}

func (c *client) arm() error {
	return c.sendCommandLong(common.MAV_CMD_COMPONENT_ARM_DISARM, 1, 0, 0, 0, 0, 0, 0)
}

func (c *client) disarm() error {
	return c.sendCommandLong(common.MAV_CMD_COMPONENT_ARM_DISARM, 0, 0, 0, 0, 0, 0, 0)
}

func (c *client) setMode(px4Mode uint32) error {
	return c.sendCommandLong(
		common.MAV_CMD_DO_SET_MODE,
		float32(common.MAV_MODE_FLAG_CUSTOM_MODE_ENABLED),
		float32(px4Mode), 0, 0, 0, 0, 0,
	)
}

func (c *client) takeoff(altitude float32) error {
	return c.sendCommandLong(common.MAV_CMD_NAV_TAKEOFF, 0, 0, 0, 0, 0, 0, altitude)
}

func (c *client) land() error {
	return c.sendCommandLong(common.MAV_CMD_NAV_LAND, 0, 0, 0, 0, 0, 0, 0)
}

func (c *client) returnToLaunch() error {
	return c.sendCommandLong(common.MAV_CMD_NAV_RETURN_TO_LAUNCH, 0, 0, 0, 0, 0, 0, 0)
}

// setHeading commands an absolute yaw at the given angular speed (deg/s),
// via MAV_CMD_CONDITION_YAW in non-relative mode.
func (c *client) setHeading(headingDeg, speedDegPerSec float32) error {
	return c.sendCommandLong(common.MAV_CMD_CONDITION_YAW, headingDeg, speedDegPerSec, 1, 0, 0, 0, 0)
}

// gotoPosition sends a guided-mode global position setpoint, ignoring
// velocity/acceleration/yaw per the type mask.
func (c *client) gotoPosition(latitude, longitude, altitude float64) error {
	systemID := c.getSystemID()
	if !c.isConnected() {
		return fmt.Errorf("not connected to vehicle")
	}

	// ignore velocity (bits 3-5), acceleration (bits 6-8) and yaw (bits 10-11)
	const ignoreVelAccelYaw = 0b0000_1101_1111_1000

	// altitude is MSL, so the setpoint uses the absolute global frame.
	return c.node.WriteMessageAll(&common.MessageSetPositionTargetGlobalInt{
		TargetSystem:    systemID,
		TargetComponent: 1,
		TimeBootMs:      uint32(time.Now().UnixMilli()),
		CoordinateFrame: common.MAV_FRAME_GLOBAL,
		TypeMask:        common.POSITION_TARGET_TYPEMASK(ignoreVelAccelYaw),
		LatInt:          int32(latitude * 1e7),
		LonInt:          int32(longitude * 1e7),
		Alt:             float32(altitude),
	})
}

func (c *client) close() error {
	close(c.stopHeartbeat)
	select {
	case <-c.heartbeatDone:
	case <-time.After(2 * time.Second):
		c.logger.Println("autopilot: warning, ground station sender stop timeout")
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.node.Close()
	return nil
}
