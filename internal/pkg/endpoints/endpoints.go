package endpoints

import (
	"net/url"
	"strings"
)

const deviceIDPlaceholder = "{device_id}"

// Endpoints locates the vendor cloud API.  Paths may contain {device_id}.
type Endpoints struct {
	BaseURL            string
	LoginPath          string
	DevicesPath        string
	DeviceStatePath    string
	DeviceInfoPath     string
	IoTCredentialsPath string
}

// Default returns the stock paths against baseURL
func Default(baseURL string) Endpoints {
	return Endpoints{
		BaseURL:            baseURL,
		LoginPath:          "/auth/login",
		DevicesPath:        "/things",
		DeviceStatePath:    "/things/{device_id}/state",
		DeviceInfoPath:     "/things/{device_id}",
		IoTCredentialsPath: "/iot/credentials",
	}
}

func (e Endpoints) join(path string) string {
	return strings.TrimRight(e.BaseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

func (e Endpoints) withDevice(path string, deviceID string) string {
	return e.join(strings.ReplaceAll(path, deviceIDPlaceholder, url.PathEscape(deviceID)))
}

func (e Endpoints) Login() string {
	return e.join(e.LoginPath)
}

func (e Endpoints) Devices() string {
	return e.join(e.DevicesPath)
}

func (e Endpoints) DeviceState(deviceID string) string {
	return e.withDevice(e.DeviceStatePath, deviceID)
}

func (e Endpoints) DeviceInfo(deviceID string) string {
	return e.withDevice(e.DeviceInfoPath, deviceID)
}

func (e Endpoints) IoTCredentials() string {
	return e.join(e.IoTCredentialsPath)
}
