package bluestar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/directory"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/dispatch"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/endpoints"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/session"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/shadow"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/state"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/transport"
)

const (
	TransportREST   = "rest"
	TransportShadow = "shadow"
)

const (
	Manufacturer = "Bluestar"
	Model        = "Smart AC"
)

// DeviceConfig describes a configured device and how it is reached
type DeviceConfig struct {
	ID        string `mapstructure:"id" json:"id" yaml:"id"`
	Name      string `mapstructure:"name" json:"name,omitempty" yaml:"name,omitempty"`
	Transport string `mapstructure:"transport" json:"transport,omitempty" yaml:"transport,omitempty"`
	Thing     string `mapstructure:"thing" json:"thing,omitempty" yaml:"thing,omitempty"`
}

type Config struct {
	Credentials      session.Credentials
	Endpoints        endpoints.Endpoints
	Timeout          time.Duration
	UserAgent        string
	DefaultTransport string
	Vocabulary       dispatch.Vocabulary
	Devices          []DeviceConfig
	Shadow           shadow.Options
}

// Metadata identifies a device to the host platform
type Metadata struct {
	UniqueID     string `json:"unique_id" yaml:"unique_id"`
	Name         string `json:"name" yaml:"name"`
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
	Model        string `json:"model" yaml:"model"`
}

// Client is the control surface the host integration talks to.  It owns
// one session, shared by the directory and every command sink.
type Client struct {
	transport  *transport.Transport
	session    *session.Manager
	directory  *directory.Directory
	dispatcher *dispatch.Dispatcher
	bridge     *shadow.Bridge
	tracker    *state.Tracker

	devices map[string]DeviceConfig
	order   []string

	closeOnce sync.Once
}

func validTransport(name string) bool {
	return name == TransportREST || name == TransportShadow
}

func New(cfg Config) (*Client, error) {
	if cfg.DefaultTransport == "" {
		cfg.DefaultTransport = TransportREST
	}
	if !validTransport(cfg.DefaultTransport) {
		return nil, fmt.Errorf("unknown transport `%s`", cfg.DefaultTransport)
	}

	tr := transport.New()
	if cfg.Timeout > 0 {
		tr = tr.WithTimeout(cfg.Timeout)
	}
	if cfg.UserAgent != "" {
		tr = tr.WithUserAgent(cfg.UserAgent)
	}

	sm := session.NewManager(tr, cfg.Endpoints.Login(), cfg.Credentials)
	bridge := shadow.NewBridge(shadow.NewCloudExchanger(sm, tr, cfg.Endpoints.IoTCredentials()), cfg.Shadow)

	c := &Client{
		transport: tr,
		session:   sm,
		directory: directory.New(sm, tr, cfg.Endpoints),
		bridge:    bridge,
		tracker:   state.NewTracker(),
		devices:   map[string]DeviceConfig{},
	}

	things := map[string]string{}
	for _, d := range cfg.Devices {
		if d.ID == "" {
			return nil, errors.New("configured device has no id")
		}
		if _, dup := c.devices[d.ID]; dup {
			return nil, fmt.Errorf("device `%s` configured twice", d.ID)
		}
		if d.Transport == "" {
			d.Transport = cfg.DefaultTransport
		}
		if !validTransport(d.Transport) {
			return nil, fmt.Errorf("device `%s`: unknown transport `%s`", d.ID, d.Transport)
		}
		if d.Thing != "" {
			things[d.ID] = d.Thing
		}

		c.devices[d.ID] = d
		c.order = append(c.order, d.ID)
	}

	restSink := dispatch.NewRESTSink(sm, tr, cfg.Endpoints, cfg.Vocabulary)
	shadowSink := shadow.NewSink(bridge, things)

	sinks := map[string]dispatch.Sink{
		TransportREST:   restSink,
		TransportShadow: shadowSink,
	}

	c.dispatcher = dispatch.New(sinks[cfg.DefaultTransport])
	for _, id := range c.order {
		if t := c.devices[id].Transport; t != cfg.DefaultTransport {
			c.dispatcher.Route(id, sinks[t])
		}
	}
	c.dispatcher.OnSuccess(c.tracker.Observe)

	return c, nil
}

func (c *Client) EnsureAuthenticated(ctx context.Context) bool {
	if err := c.session.EnsureAuthenticated(ctx); err != nil {
		logging.Logger(ctx).WithError(err).Error("Authentication failed")
		return false
	}
	return true
}

func (c *Client) ListDevices(ctx context.Context) []directory.Device {
	return c.directory.ListDevices(ctx)
}

// DiscoverDevices lists the account's devices, returning the failure
// rather than an empty list
func (c *Client) DiscoverDevices(ctx context.Context) ([]directory.Device, error) {
	return c.directory.Devices(ctx)
}

func (c *Client) DeviceStatus(ctx context.Context, deviceID string) (map[string]interface{}, bool) {
	return c.directory.DeviceStatus(ctx, deviceID)
}

func (c *Client) DeviceInfo(ctx context.Context, deviceID string) (map[string]interface{}, bool) {
	return c.directory.DeviceInfo(ctx, deviceID)
}

// StatusAll fetches the status of several devices, bounded by
// maxConcurrent
func (c *Client) StatusAll(ctx context.Context, deviceIDs []string, maxConcurrent int) []directory.Status {
	return c.directory.StatusAll(ctx, deviceIDs, maxConcurrent)
}

func (c *Client) SetDeviceState(ctx context.Context, deviceID string, cmd command.Command) bool {
	return c.dispatcher.SetDeviceState(ctx, deviceID, cmd)
}

// Dispatch sends cmd and returns the failure, for callers that report it
func (c *Client) Dispatch(ctx context.Context, deviceID string, cmd command.Command) error {
	return c.dispatcher.Dispatch(ctx, deviceID, cmd)
}

func (c *Client) SetPower(ctx context.Context, deviceID string, on bool) bool {
	return c.dispatcher.SetPower(ctx, deviceID, on)
}

func (c *Client) SetTemperature(ctx context.Context, deviceID string, celsius float64) bool {
	return c.dispatcher.SetTemperature(ctx, deviceID, celsius)
}

func (c *Client) SetMode(ctx context.Context, deviceID string, mode command.Mode) bool {
	return c.dispatcher.SetMode(ctx, deviceID, mode)
}

func (c *Client) SetFanMode(ctx context.Context, deviceID string, speed command.FanSpeed) bool {
	return c.dispatcher.SetFanMode(ctx, deviceID, speed)
}

func (c *Client) SetSwingMode(ctx context.Context, deviceID string, swing command.Swing) bool {
	return c.dispatcher.SetSwingMode(ctx, deviceID, swing)
}

func (c *Client) SetPresetMode(ctx context.Context, deviceID string, preset command.Preset) bool {
	return c.dispatcher.SetPresetMode(ctx, deviceID, preset)
}

func (c *Client) SetDisplay(ctx context.Context, deviceID string, on bool) bool {
	return c.dispatcher.SetDisplay(ctx, deviceID, on)
}

func (c *Client) SetBuzzer(ctx context.Context, deviceID string, on bool) bool {
	return c.dispatcher.SetBuzzer(ctx, deviceID, on)
}

// SetHVACMode turns the unit off for "off", otherwise powers it on in the
// given mode
func (c *Client) SetHVACMode(ctx context.Context, deviceID string, mode command.HVACMode) bool {
	cmd, err := command.SetHVACMode(mode)
	if err != nil {
		logging.Logger(logging.WithDeviceID(ctx, deviceID)).WithError(err).Error("Failed to set HVAC mode")
		return false
	}
	return c.dispatcher.SetDeviceState(ctx, deviceID, cmd)
}

// SetFanPercentage picks the named fan speed nearest to pct
func (c *Client) SetFanPercentage(ctx context.Context, deviceID string, pct int) bool {
	return c.dispatcher.SetFanMode(ctx, deviceID, command.FanSpeedForPercentage(pct))
}

// Connected is the availability flag for the host: whether the default
// transport holds a live session
func (c *Client) Connected() bool {
	return c.dispatcher.Connected()
}

func (c *Client) DeviceConnected(deviceID string) bool {
	return c.dispatcher.DeviceConnected(deviceID)
}

// AssumedState returns the state implied by the commands sent so far
func (c *Client) AssumedState(deviceID string) state.Device {
	return c.tracker.Get(deviceID)
}

// Devices returns the configured devices in configuration order
func (c *Client) Devices() []DeviceConfig {
	devices := make([]DeviceConfig, 0, len(c.order))
	for _, id := range c.order {
		devices = append(devices, c.devices[id])
	}
	return devices
}

func (c *Client) Device(deviceID string) (DeviceConfig, bool) {
	d, ok := c.devices[deviceID]
	return d, ok
}

func (c *Client) Metadata(deviceID string) Metadata {
	name := deviceID
	if d, ok := c.devices[deviceID]; ok && d.Name != "" {
		name = d.Name
	}

	return Metadata{
		UniqueID:     "bluestar_ac_" + deviceID,
		Name:         name,
		Manufacturer: Manufacturer,
		Model:        Model,
	}
}

// Check verifies the account can log in and, when any device uses the
// shadow transport, that the IoT session can be opened
func (c *Client) Check(ctx context.Context) error {
	if err := c.session.EnsureAuthenticated(ctx); err != nil {
		return errors.Wrap(err, "authenticating")
	}

	for _, s := range c.dispatcher.Sinks() {
		if s.Name() == TransportShadow {
			if err := c.bridge.EnsureConnected(ctx); err != nil {
				return errors.Wrap(err, "connecting to IoT endpoint")
			}
		}
	}

	return nil
}

// Close releases the HTTP pool and the IoT session.  It is safe to call
// more than once.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		if e := c.bridge.Close(); e != nil {
			err = e
		}
		if e := c.transport.Close(); e != nil && err == nil {
			err = e
		}
	})
	return err
}
