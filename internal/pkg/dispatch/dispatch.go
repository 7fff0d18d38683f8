package dispatch

import (
	"context"
	"sync"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/metrics"
)

// Sink delivers a validated command to a device
type Sink interface {
	Name() string
	Send(ctx context.Context, deviceID string, cmd command.Command) error
	Connected() bool
}

// Observer is told about every command a sink accepted
type Observer func(deviceID string, cmd command.Command)

// Dispatcher validates commands and hands them to the sink serving the
// device.  Devices without a route use the fallback sink.
type Dispatcher struct {
	fallback Sink

	mu        sync.RWMutex
	routes    map[string]Sink
	observers []Observer
}

func New(fallback Sink) *Dispatcher {
	return &Dispatcher{
		fallback: fallback,
		routes:   map[string]Sink{},
	}
}

// Route sends commands for deviceID through sink
func (d *Dispatcher) Route(deviceID string, sink Sink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes[deviceID] = sink
}

func (d *Dispatcher) OnSuccess(fn Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, fn)
}

func (d *Dispatcher) SinkFor(deviceID string) Sink {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if s, ok := d.routes[deviceID]; ok {
		return s
	}
	return d.fallback
}

// Sinks returns each distinct sink in use, fallback first
func (d *Dispatcher) Sinks() []Sink {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sinks := []Sink{d.fallback}
	for _, s := range d.routes {
		seen := false
		for _, have := range sinks {
			if have == s {
				seen = true
				break
			}
		}
		if !seen {
			sinks = append(sinks, s)
		}
	}
	return sinks
}

// Connected reports the state of the fallback sink
func (d *Dispatcher) Connected() bool {
	return d.fallback.Connected()
}

func (d *Dispatcher) DeviceConnected(deviceID string) bool {
	return d.SinkFor(deviceID).Connected()
}

// Dispatch validates cmd and sends it.  Invalid commands never reach the
// sink.
func (d *Dispatcher) Dispatch(ctx context.Context, deviceID string, cmd command.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	sink := d.SinkFor(deviceID)
	err := sink.Send(ctx, deviceID, cmd)
	metrics.Command(sink.Name(), err == nil)
	if err != nil {
		return err
	}

	d.mu.RLock()
	observers := d.observers
	d.mu.RUnlock()
	for _, fn := range observers {
		fn(deviceID, cmd)
	}

	return nil
}

// SetDeviceState sends cmd and reports the outcome.  Failures are logged.
func (d *Dispatcher) SetDeviceState(ctx context.Context, deviceID string, cmd command.Command) bool {
	ctx = logging.WithDeviceID(ctx, deviceID)
	ctxLogger := logging.Logger(ctx)

	if err := d.Dispatch(ctx, deviceID, cmd); err != nil {
		ctxLogger.WithError(err).Errorf("Failed to set device state %s", describe(cmd))
		return false
	}

	ctxLogger.Infof("Set device state %s", cmd)
	return true
}

// describe renders cmd for logs even when it does not validate
func describe(cmd command.Command) string {
	if err := cmd.Validate(); err != nil {
		return "(invalid)"
	}
	return cmd.String()
}

func (d *Dispatcher) SetPower(ctx context.Context, deviceID string, on bool) bool {
	return d.SetDeviceState(ctx, deviceID, command.SetPower(on))
}

func (d *Dispatcher) SetTemperature(ctx context.Context, deviceID string, celsius float64) bool {
	return d.SetDeviceState(ctx, deviceID, command.SetTemperature(celsius))
}

func (d *Dispatcher) SetMode(ctx context.Context, deviceID string, mode command.Mode) bool {
	return d.SetDeviceState(ctx, deviceID, command.SetMode(mode))
}

func (d *Dispatcher) SetFanMode(ctx context.Context, deviceID string, speed command.FanSpeed) bool {
	return d.SetDeviceState(ctx, deviceID, command.SetFanSpeed(speed))
}

func (d *Dispatcher) SetSwingMode(ctx context.Context, deviceID string, swing command.Swing) bool {
	return d.SetDeviceState(ctx, deviceID, command.SetSwing(swing))
}

func (d *Dispatcher) SetPresetMode(ctx context.Context, deviceID string, preset command.Preset) bool {
	return d.SetDeviceState(ctx, deviceID, command.SetPreset(preset))
}

func (d *Dispatcher) SetDisplay(ctx context.Context, deviceID string, on bool) bool {
	return d.SetDeviceState(ctx, deviceID, command.SetDisplay(on))
}

func (d *Dispatcher) SetBuzzer(ctx context.Context, deviceID string, on bool) bool {
	return d.SetDeviceState(ctx, deviceID, command.SetBuzzer(on))
}
