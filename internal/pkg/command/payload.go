package command

import (
	"encoding/json"
	"fmt"
)

// Vendor wire field codes
const (
	FieldPower       = "pow"
	FieldTemperature = "stemp"
	FieldMode        = "climate"
	FieldFanSpeed    = "fspd"
	FieldHSwing      = "hswing"
	FieldVSwing      = "vswing"
	FieldEco         = "eco"
	FieldTurbo       = "turbo"
	FieldSleep       = "sleep"
	FieldDisplay     = "display"
	FieldBuzzer      = "buzzer"
)

// Payload is the compact vendor encoding of a Command
type Payload map[string]interface{}

func (p Payload) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprintf("%v", map[string]interface{}(p))
	}
	return string(b)
}

// Clone returns a shallow copy so callers can stamp extra fields
func (p Payload) Clone() Payload {
	np := make(Payload, len(p))
	for k, v := range p {
		np[k] = v
	}
	return np
}

func flag(on bool) int {
	if on {
		return 1
	}
	return 0
}

// Payload validates the command and derives its wire payload from the
// fixed lookup tables.
func (c Command) Payload() (Payload, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	p := Payload{}

	if c.Power != nil {
		p[FieldPower] = flag(*c.Power)
	}
	if c.Temperature != nil {
		p[FieldTemperature] = fmt.Sprintf("%.1f", *c.Temperature)
	}
	if c.Mode != nil {
		p[FieldMode] = modeCodes[*c.Mode]
	}
	if c.FanSpeed != nil {
		p[FieldFanSpeed] = fanCodes[*c.FanSpeed]
	}
	if c.Swing != nil {
		codes := swingCodes[*c.Swing]
		p[FieldHSwing] = codes[0]
		p[FieldVSwing] = codes[1]
	}
	if c.Preset != nil {
		codes := presetCodes[*c.Preset]
		p[FieldEco] = codes[0]
		p[FieldTurbo] = codes[1]
		p[FieldSleep] = codes[2]
	}
	if c.Display != nil {
		p[FieldDisplay] = flag(*c.Display)
	}
	if c.Buzzer != nil {
		p[FieldBuzzer] = flag(*c.Buzzer)
	}

	return p, nil
}

// LegacyPayload encodes the command with the older REST device-state
// vocabulary (power, mode, temp, fan_speed).  Fields that vocabulary
// cannot express are rejected.
func (c Command) LegacyPayload() (Payload, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch {
	case c.Swing != nil:
		return nil, invalid("swing", *c.Swing, "not supported by the legacy REST API")
	case c.Preset != nil:
		return nil, invalid("preset", *c.Preset, "not supported by the legacy REST API")
	case c.Display != nil:
		return nil, invalid("display", *c.Display, "not supported by the legacy REST API")
	case c.Buzzer != nil:
		return nil, invalid("buzzer", *c.Buzzer, "not supported by the legacy REST API")
	}

	p := Payload{}
	if c.Power != nil {
		p["power"] = flag(*c.Power)
	}
	if c.Mode != nil {
		p["mode"] = string(*c.Mode)
	}
	if c.Temperature != nil {
		p["temp"] = int(*c.Temperature)
	}
	if c.FanSpeed != nil {
		p["fan_speed"] = string(*c.FanSpeed)
	}

	return p, nil
}
