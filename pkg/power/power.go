// Package power maps device battery state to a navigation quality/power
// tradeoff. The controller is a pure decision function.
package power

import "github.com/txn2/arnav-platform/pkg/nav"

// DefaultLowBatteryThreshold is the battery percentage at or below which
// power saving activates. The boundary value itself triggers saving; this
// is the documented business rule, not an off-by-one.
const DefaultLowBatteryThreshold = 20

// Settings are the tunables handed to the client and the planner for a
// given power mode.
type Settings struct {
	// FrameRate is the requested video frames per second.
	FrameRate int `json:"frame_rate"`

	// MaxWaypoints caps planned path waypoints (0 = uncapped).
	MaxWaypoints int `json:"max_waypoints"`

	// TimeToleranceFactor widens the acceptable estimated time for the
	// same physical route relative to normal mode.
	TimeToleranceFactor float64 `json:"time_tolerance_factor"`

	// RenderQuality selects the AR overlay fidelity.
	RenderQuality string `json:"render_quality"`
}

// Decision pairs the chosen mode with its settings.
type Decision struct {
	Mode     nav.PowerMode `json:"mode"`
	Settings Settings      `json:"settings"`
}

var (
	normalSettings = Settings{
		FrameRate:           30,
		MaxWaypoints:        0,
		TimeToleranceFactor: 1.0,
		RenderQuality:       "high",
	}

	savingSettings = Settings{
		FrameRate:           10,
		MaxWaypoints:        8,
		TimeToleranceFactor: 1.5,
		RenderQuality:       "low",
	}
)

// Controller decides power modes from battery level.
type Controller struct {
	lowBatteryThreshold int
}

// NewController creates a controller. A non-positive threshold falls back
// to DefaultLowBatteryThreshold.
func NewController(lowBatteryThreshold int) *Controller {
	if lowBatteryThreshold <= 0 {
		lowBatteryThreshold = DefaultLowBatteryThreshold
	}
	return &Controller{lowBatteryThreshold: lowBatteryThreshold}
}

// Decide maps a battery level to a mode and settings. Battery at or below
// the threshold selects power saving.
func (c *Controller) Decide(batteryLevel int) Decision {
	if batteryLevel <= c.lowBatteryThreshold {
		return Decision{Mode: nav.PowerModeSaving, Settings: savingSettings}
	}
	return Decision{Mode: nav.PowerModeNormal, Settings: normalSettings}
}

// SettingsFor returns the settings for an explicitly requested mode.
func (c *Controller) SettingsFor(mode nav.PowerMode) Settings {
	if mode == nav.PowerModeSaving {
		return savingSettings
	}
	return normalSettings
}

// SettingsMap renders settings as the generic map stored on the session.
func (s Settings) SettingsMap() map[string]any {
	return map[string]any{
		"frame_rate":            s.FrameRate,
		"max_waypoints":         s.MaxWaypoints,
		"time_tolerance_factor": s.TimeToleranceFactor,
		"render_quality":        s.RenderQuality,
	}
}
