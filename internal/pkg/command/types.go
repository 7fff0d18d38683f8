package command

import (
	"fmt"
	"strings"
)

const (
	MinTemperature     = 16.0
	MaxTemperature     = 30.0
	DefaultTemperature = 24.0
)

type Mode string

const (
	ModeAuto Mode = "auto"
	ModeCool Mode = "cool"
	ModeDry  Mode = "dry"
	ModeFan  Mode = "fan"
)

var modeCodes = map[Mode]int{
	ModeAuto: 0,
	ModeCool: 1,
	ModeDry:  2,
	ModeFan:  3,
}

type FanSpeed string

const (
	FanAuto   FanSpeed = "auto"
	FanLow    FanSpeed = "low"
	FanMedium FanSpeed = "medium"
	FanHigh   FanSpeed = "high"
)

var fanCodes = map[FanSpeed]int{
	FanAuto:   0,
	FanLow:    1,
	FanMedium: 2,
	FanHigh:   3,
}

type Swing string

const (
	SwingOff        Swing = "off"
	SwingHorizontal Swing = "horizontal"
	SwingVertical   Swing = "vertical"
	SwingBoth       Swing = "both"
)

// hswing, vswing
var swingCodes = map[Swing][2]int{
	SwingOff:        {0, 0},
	SwingHorizontal: {1, 0},
	SwingVertical:   {0, 1},
	SwingBoth:       {1, 1},
}

type Preset string

const (
	PresetNone  Preset = "none"
	PresetEco   Preset = "eco"
	PresetTurbo Preset = "turbo"
	PresetSleep Preset = "sleep"
)

// eco, turbo, sleep
var presetCodes = map[Preset][3]int{
	PresetNone:  {0, 0, 0},
	PresetEco:   {1, 0, 0},
	PresetTurbo: {0, 1, 0},
	PresetSleep: {0, 0, 1},
}

// HVACMode is the host-facing climate mode: the device modes plus "off"
type HVACMode string

const (
	HVACOff  HVACMode = "off"
	HVACAuto HVACMode = "auto"
	HVACCool HVACMode = "cool"
	HVACDry  HVACMode = "dry"
	HVACFan  HVACMode = "fan"
)

var (
	Modes     = []Mode{ModeAuto, ModeCool, ModeDry, ModeFan}
	FanSpeeds = []FanSpeed{FanAuto, FanLow, FanMedium, FanHigh}
	Swings    = []Swing{SwingOff, SwingHorizontal, SwingVertical, SwingBoth}
	Presets   = []Preset{PresetNone, PresetEco, PresetTurbo, PresetSleep}
	HVACModes = []HVACMode{HVACOff, HVACAuto, HVACCool, HVACDry, HVACFan}
)

func (m Mode) Valid() bool {
	_, ok := modeCodes[m]
	return ok
}

func (f FanSpeed) Valid() bool {
	_, ok := fanCodes[f]
	return ok
}

func (s Swing) Valid() bool {
	_, ok := swingCodes[s]
	return ok
}

func (p Preset) Valid() bool {
	_, ok := presetCodes[p]
	return ok
}

func (h HVACMode) Valid() bool {
	return h == HVACOff || Mode(h).Valid()
}

// Percentage maps a fan speed onto the 0-100 scale hosts use for fans
func (f FanSpeed) Percentage() int {
	switch f {
	case FanLow:
		return 33
	case FanMedium:
		return 66
	case FanHigh:
		return 100
	}
	return 0
}

// FanSpeedForPercentage picks the nearest named speed for a percentage
func FanSpeedForPercentage(pct int) FanSpeed {
	switch {
	case pct <= 0:
		return FanAuto
	case pct <= 33:
		return FanLow
	case pct <= 66:
		return FanMedium
	}
	return FanHigh
}

func normalise(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func ParseMode(s string) (Mode, error) {
	m := Mode(normalise(s))
	if !m.Valid() {
		return m, invalid("mode", s, fmt.Sprintf("expected one of %v", Modes))
	}
	return m, nil
}

func ParseFanSpeed(s string) (FanSpeed, error) {
	f := FanSpeed(normalise(s))
	if !f.Valid() {
		return f, invalid("fan_speed", s, fmt.Sprintf("expected one of %v", FanSpeeds))
	}
	return f, nil
}

func ParseSwing(s string) (Swing, error) {
	sw := Swing(normalise(s))
	if !sw.Valid() {
		return sw, invalid("swing", s, fmt.Sprintf("expected one of %v", Swings))
	}
	return sw, nil
}

func ParsePreset(s string) (Preset, error) {
	p := Preset(normalise(s))
	if !p.Valid() {
		return p, invalid("preset", s, fmt.Sprintf("expected one of %v", Presets))
	}
	return p, nil
}

func ParseHVACMode(s string) (HVACMode, error) {
	h := HVACMode(normalise(s))
	if !h.Valid() {
		return h, invalid("hvac_mode", s, fmt.Sprintf("expected one of %v", HVACModes))
	}
	return h, nil
}
