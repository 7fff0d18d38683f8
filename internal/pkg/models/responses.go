package models

import (
	"github.com/go-openapi/swag"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/state"
)

// ErrorResponse is returned with every non-2xx answer
type ErrorResponse struct {
	Code    int32    `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

// CommandResult reports an accepted command and the state it implies
type CommandResult struct {
	DeviceID string       `json:"device_id"`
	Payload  string       `json:"payload"`
	State    state.Device `json:"state"`
}

// DeviceSummary is one entry of GET /devices
type DeviceSummary struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name,omitempty"`
	UniqueID     string                 `json:"unique_id"`
	Manufacturer string                 `json:"manufacturer"`
	Model        string                 `json:"model"`
	Transport    string                 `json:"transport,omitempty"`
	Connected    bool                   `json:"connected"`
	Status       map[string]interface{} `json:"status,omitempty"`
	StatusOK     *bool                  `json:"status_ok,omitempty"`
}

// Health is the body of GET /health
type Health struct {
	Status    string `json:"status"`
	Connected bool   `json:"connected"`
	Version   string `json:"version"`
	Error     string `json:"error,omitempty"`
}

// MarshalBinary interface implementation
func (m *ErrorResponse) MarshalBinary() ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return swag.WriteJSON(m)
}

// UnmarshalBinary interface implementation
func (m *ErrorResponse) UnmarshalBinary(b []byte) error {
	var res ErrorResponse
	if err := swag.ReadJSON(b, &res); err != nil {
		return err
	}
	*m = res
	return nil
}
