package command

import "github.com/dronesphere-dev/dronesphere-agent/internal/registry"

// All returns the compile-time name->handler table wired into the
// registry at startup.
func All() map[string]registry.Handler {
	return map[string]registry.Handler{
		"takeoff": Takeoff{},
		"land":    Land{},
		"rtl":     RTL{},
		"goto":    Goto{},
		"yaw":     Yaw{},
		"wait":    Wait{},
	}
}
