package models

import (
	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/go-openapi/validate"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
)

// CommandRequest is the body of POST /devices/{id}/command.  Every field
// is optional; at least one must be set.
type CommandRequest struct {
	Power         *bool    `json:"power,omitempty"`
	HVACMode      *string  `json:"hvac_mode,omitempty"`
	Mode          *string  `json:"mode,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	FanSpeed      *string  `json:"fan_speed,omitempty"`
	FanPercentage *int64   `json:"fan_percentage,omitempty"`
	Swing         *string  `json:"swing,omitempty"`
	Preset        *string  `json:"preset,omitempty"`
	Display       *bool    `json:"display,omitempty"`
	Buzzer        *bool    `json:"buzzer,omitempty"`
}

var (
	modeEnum     []interface{}
	hvacModeEnum []interface{}
	fanEnum      []interface{}
	swingEnum    []interface{}
	presetEnum   []interface{}
)

func init() {
	for _, v := range command.Modes {
		modeEnum = append(modeEnum, string(v))
	}
	for _, v := range command.HVACModes {
		hvacModeEnum = append(hvacModeEnum, string(v))
	}
	for _, v := range command.FanSpeeds {
		fanEnum = append(fanEnum, string(v))
	}
	for _, v := range command.Swings {
		swingEnum = append(swingEnum, string(v))
	}
	for _, v := range command.Presets {
		presetEnum = append(presetEnum, string(v))
	}
}

// Validate validates this command request
func (m *CommandRequest) Validate(formats strfmt.Registry) error {
	var res []error

	if err := m.validateEnum("hvac_mode", m.HVACMode, hvacModeEnum); err != nil {
		res = append(res, err)
	}
	if err := m.validateEnum("mode", m.Mode, modeEnum); err != nil {
		res = append(res, err)
	}
	if err := m.validateEnum("fan_speed", m.FanSpeed, fanEnum); err != nil {
		res = append(res, err)
	}
	if err := m.validateEnum("swing", m.Swing, swingEnum); err != nil {
		res = append(res, err)
	}
	if err := m.validateEnum("preset", m.Preset, presetEnum); err != nil {
		res = append(res, err)
	}
	if err := m.validateTemperature(formats); err != nil {
		res = append(res, err)
	}
	if err := m.validateFanPercentage(formats); err != nil {
		res = append(res, err)
	}
	if err := m.validateExclusive(); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

func (m *CommandRequest) validateEnum(path string, value *string, enum []interface{}) error {
	if swag.IsZero(value) {
		return nil
	}

	if err := validate.EnumCase(path, "body", *value, enum, false); err != nil {
		return err
	}
	return nil
}

func (m *CommandRequest) validateTemperature(formats strfmt.Registry) error {
	if swag.IsZero(m.Temperature) {
		return nil
	}

	if err := validate.Minimum("temperature", "body", *m.Temperature, command.MinTemperature, false); err != nil {
		return err
	}
	if err := validate.Maximum("temperature", "body", *m.Temperature, command.MaxTemperature, false); err != nil {
		return err
	}
	return nil
}

func (m *CommandRequest) validateFanPercentage(formats strfmt.Registry) error {
	if m.FanPercentage == nil {
		return nil
	}

	if err := validate.MinimumInt("fan_percentage", "body", *m.FanPercentage, 0, false); err != nil {
		return err
	}
	if err := validate.MaximumInt("fan_percentage", "body", *m.FanPercentage, 100, false); err != nil {
		return err
	}
	return nil
}

func (m *CommandRequest) validateExclusive() error {
	if m.HVACMode != nil && (m.Power != nil || m.Mode != nil) {
		return errors.New(errors.CompositeErrorCode, "hvac_mode cannot be combined with power or mode")
	}
	if m.FanPercentage != nil && m.FanSpeed != nil {
		return errors.New(errors.CompositeErrorCode, "fan_percentage cannot be combined with fan_speed")
	}
	return nil
}

// Command converts a validated request into a device command
func (m *CommandRequest) Command() (command.Command, error) {
	cmd := command.Command{}

	if m.HVACMode != nil {
		h, err := command.ParseHVACMode(*m.HVACMode)
		if err != nil {
			return cmd, err
		}
		if cmd, err = command.SetHVACMode(h); err != nil {
			return cmd, err
		}
	}
	if m.Power != nil {
		cmd = cmd.WithPower(*m.Power)
	}
	if m.Mode != nil {
		mode, err := command.ParseMode(*m.Mode)
		if err != nil {
			return cmd, err
		}
		cmd = cmd.WithMode(mode)
	}
	if m.Temperature != nil {
		cmd = cmd.WithTemperature(*m.Temperature)
	}
	if m.FanSpeed != nil {
		f, err := command.ParseFanSpeed(*m.FanSpeed)
		if err != nil {
			return cmd, err
		}
		cmd = cmd.WithFanSpeed(f)
	}
	if m.FanPercentage != nil {
		cmd = cmd.WithFanSpeed(command.FanSpeedForPercentage(int(*m.FanPercentage)))
	}
	if m.Swing != nil {
		s, err := command.ParseSwing(*m.Swing)
		if err != nil {
			return cmd, err
		}
		cmd = cmd.WithSwing(s)
	}
	if m.Preset != nil {
		p, err := command.ParsePreset(*m.Preset)
		if err != nil {
			return cmd, err
		}
		cmd = cmd.WithPreset(p)
	}
	if m.Display != nil {
		cmd = cmd.WithDisplay(*m.Display)
	}
	if m.Buzzer != nil {
		cmd = cmd.WithBuzzer(*m.Buzzer)
	}

	return cmd, cmd.Validate()
}

// MarshalBinary interface implementation
func (m *CommandRequest) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return swag.WriteJSON(m)
}

// UnmarshalBinary interface implementation
func (m *CommandRequest) UnmarshalBinary(b []byte) error {
	var res CommandRequest
	if err := swag.ReadJSON(b, &res); err != nil {
		return err
	}
	*m = res
	return nil
}
