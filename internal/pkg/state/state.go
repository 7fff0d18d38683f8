package state

import (
	"sync"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
)

// Device is the state a device is assumed to be in.  The vendor never
// reports state back, so it only moves when a command succeeds.
type Device struct {
	Power       bool             `json:"power" yaml:"power"`
	HVACMode    command.HVACMode `json:"hvac_mode" yaml:"hvac_mode"`
	Mode        command.Mode     `json:"mode" yaml:"mode"`
	Temperature float64          `json:"temperature" yaml:"temperature"`
	FanSpeed    command.FanSpeed `json:"fan_speed" yaml:"fan_speed"`
	FanPercent  int              `json:"fan_percentage" yaml:"fan_percentage"`
	Swing       command.Swing    `json:"swing" yaml:"swing"`
	Preset      command.Preset   `json:"preset" yaml:"preset"`
	Display     bool             `json:"display" yaml:"display"`
	Buzzer      bool             `json:"buzzer" yaml:"buzzer"`
}

func Initial() Device {
	return Device{
		HVACMode:    command.HVACOff,
		Mode:        command.ModeAuto,
		Temperature: command.DefaultTemperature,
		FanSpeed:    command.FanAuto,
		Swing:       command.SwingOff,
		Preset:      command.PresetNone,
		Display:     true,
		Buzzer:      true,
	}
}

// Apply returns d with the set fields of cmd folded in
func (d Device) Apply(cmd command.Command) Device {
	if cmd.Power != nil {
		d.Power = *cmd.Power
	}
	if cmd.Mode != nil {
		d.Mode = *cmd.Mode
	}
	if cmd.Temperature != nil {
		d.Temperature = *cmd.Temperature
	}
	if cmd.FanSpeed != nil {
		d.FanSpeed = *cmd.FanSpeed
	}
	if cmd.Swing != nil {
		d.Swing = *cmd.Swing
	}
	if cmd.Preset != nil {
		d.Preset = *cmd.Preset
	}
	if cmd.Display != nil {
		d.Display = *cmd.Display
	}
	if cmd.Buzzer != nil {
		d.Buzzer = *cmd.Buzzer
	}

	d.HVACMode = command.HVACOff
	if d.Power {
		d.HVACMode = command.HVACMode(d.Mode)
	}
	d.FanPercent = d.FanSpeed.Percentage()

	return d
}

// Tracker holds the assumed state of every device commanded so far
type Tracker struct {
	mu      sync.RWMutex
	devices map[string]Device
}

func NewTracker() *Tracker {
	return &Tracker{
		devices: map[string]Device{},
	}
}

// Get returns the assumed state of deviceID; unknown devices get the
// initial state
func (t *Tracker) Get(deviceID string) Device {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if d, ok := t.devices[deviceID]; ok {
		return d
	}
	return Initial()
}

// Observe records a command that the device accepted
func (t *Tracker) Observe(deviceID string, cmd command.Command) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.devices[deviceID]
	if !ok {
		d = Initial()
	}
	t.devices[deviceID] = d.Apply(cmd)
}
