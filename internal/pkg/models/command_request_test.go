package models

import (
	"errors"
	"testing"

	oaerrors "github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
)

func TestCommandRequestValidate(t *testing.T) {
	tests := []struct {
		name  string
		req   CommandRequest
		valid bool
	}{
		{"power only", CommandRequest{Power: swag.Bool(true)}, true},
		{"mode any case", CommandRequest{Mode: swag.String("COOL")}, true},
		{"bounds inclusive", CommandRequest{Temperature: swag.Float64(16)}, true},
		{"upper bound inclusive", CommandRequest{Temperature: swag.Float64(30)}, true},
		{"too cold", CommandRequest{Temperature: swag.Float64(15.5)}, false},
		{"too hot", CommandRequest{Temperature: swag.Float64(30.5)}, false},
		{"unknown mode", CommandRequest{Mode: swag.String("heat")}, false},
		{"unknown fan", CommandRequest{FanSpeed: swag.String("max")}, false},
		{"unknown swing", CommandRequest{Swing: swag.String("diagonal")}, false},
		{"unknown preset", CommandRequest{Preset: swag.String("boost")}, false},
		{"percentage range", CommandRequest{FanPercentage: swag.Int64(101)}, false},
		{"hvac with power", CommandRequest{HVACMode: swag.String("off"), Power: swag.Bool(true)}, false},
		{"fan twice", CommandRequest{FanSpeed: swag.String("low"), FanPercentage: swag.Int64(50)}, false},
	}

	for _, tt := range tests {
		err := tt.req.Validate(strfmt.Default)
		if tt.valid && err != nil {
			t.Fatalf("%s: unexpected error: %v", tt.name, err)
		}
		if !tt.valid && err == nil {
			t.Fatalf("%s: expected a validation error", tt.name)
		}
		if err != nil {
			var ce *oaerrors.CompositeError
			if !errors.As(err, &ce) {
				t.Fatalf("%s: expected a composite error, got %T", tt.name, err)
			}
		}
	}
}

func TestCommandRequestCommand(t *testing.T) {
	req := CommandRequest{
		HVACMode:      swag.String("dry"),
		Temperature:   swag.Float64(21),
		FanPercentage: swag.Int64(100),
		Preset:        swag.String("sleep"),
	}
	if err := req.Validate(strfmt.Default); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	cmd, err := req.Command()
	if err != nil {
		t.Fatalf("Command: %v", err)
	}

	p, err := cmd.Payload()
	if err != nil {
		t.Fatalf("Payload: %v", err)
	}
	want := command.Payload{
		"pow": 1, "climate": 2, "stemp": "21.0", "fspd": 3,
		"eco": 0, "turbo": 0, "sleep": 1,
	}
	if p.String() != want.String() {
		t.Fatalf("expected %s, got %s", want, p)
	}

	if _, err := (&CommandRequest{}).Command(); !errors.Is(err, command.ErrEmptyCommand) {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}
