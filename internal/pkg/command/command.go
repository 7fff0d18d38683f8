package command

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

var (
	ErrEmptyCommand = errors.New("command has no fields set")
	ErrInvalid      = errors.New("invalid command field")
)

// ValidationError names the field that failed validation
type ValidationError struct {
	Field  string
	Value  interface{}
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s `%v`: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field string, value interface{}, reason string) error {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// Command is a semantic device command.  Unset fields are nil and are not
// sent; the zero Command is empty and is rejected.
type Command struct {
	Power       *bool
	Mode        *Mode
	Temperature *float64
	FanSpeed    *FanSpeed
	Swing       *Swing
	Preset      *Preset
	Display     *bool
	Buzzer      *bool
}

func SetPower(on bool) Command {
	return Command{}.WithPower(on)
}

func SetTemperature(celsius float64) Command {
	return Command{}.WithTemperature(celsius)
}

func SetMode(m Mode) Command {
	return Command{}.WithMode(m)
}

func SetFanSpeed(f FanSpeed) Command {
	return Command{}.WithFanSpeed(f)
}

func SetSwing(s Swing) Command {
	return Command{}.WithSwing(s)
}

func SetPreset(p Preset) Command {
	return Command{}.WithPreset(p)
}

func SetDisplay(on bool) Command {
	return Command{}.WithDisplay(on)
}

func SetBuzzer(on bool) Command {
	return Command{}.WithBuzzer(on)
}

// SetHVACMode turns the unit off for HVACOff, otherwise powers it on and
// selects the mode in the same command.
func SetHVACMode(h HVACMode) (Command, error) {
	if !h.Valid() {
		return Command{}, invalid("hvac_mode", h, fmt.Sprintf("expected one of %v", HVACModes))
	}

	if h == HVACOff {
		return SetPower(false), nil
	}

	return SetPower(true).WithMode(Mode(h)), nil
}

func (c Command) WithPower(on bool) Command {
	c.Power = &on
	return c
}

func (c Command) WithTemperature(celsius float64) Command {
	c.Temperature = &celsius
	return c
}

func (c Command) WithMode(m Mode) Command {
	c.Mode = &m
	return c
}

func (c Command) WithFanSpeed(f FanSpeed) Command {
	c.FanSpeed = &f
	return c
}

func (c Command) WithSwing(s Swing) Command {
	c.Swing = &s
	return c
}

func (c Command) WithPreset(p Preset) Command {
	c.Preset = &p
	return c
}

func (c Command) WithDisplay(on bool) Command {
	c.Display = &on
	return c
}

func (c Command) WithBuzzer(on bool) Command {
	c.Buzzer = &on
	return c
}

func (c Command) Empty() bool {
	return c.Power == nil && c.Mode == nil && c.Temperature == nil &&
		c.FanSpeed == nil && c.Swing == nil && c.Preset == nil &&
		c.Display == nil && c.Buzzer == nil
}

// Validate checks every set field; the first failure rejects the whole
// command.
func (c Command) Validate() error {
	if c.Empty() {
		return ErrEmptyCommand
	}

	if c.Temperature != nil {
		t := *c.Temperature
		if math.IsNaN(t) || t < MinTemperature || t > MaxTemperature {
			return invalid("temperature", t, fmt.Sprintf("out of range [%g, %g]", MinTemperature, MaxTemperature))
		}
	}
	if c.Mode != nil && !c.Mode.Valid() {
		return invalid("mode", *c.Mode, fmt.Sprintf("expected one of %v", Modes))
	}
	if c.FanSpeed != nil && !c.FanSpeed.Valid() {
		return invalid("fan_speed", *c.FanSpeed, fmt.Sprintf("expected one of %v", FanSpeeds))
	}
	if c.Swing != nil && !c.Swing.Valid() {
		return invalid("swing", *c.Swing, fmt.Sprintf("expected one of %v", Swings))
	}
	if c.Preset != nil && !c.Preset.Valid() {
		return invalid("preset", *c.Preset, fmt.Sprintf("expected one of %v", Presets))
	}

	return nil
}

func (c Command) String() string {
	p, err := c.Payload()
	if err != nil {
		return fmt.Sprintf("invalid command (%s)", err)
	}
	return p.String()
}
