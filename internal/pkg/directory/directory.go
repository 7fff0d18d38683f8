package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/korovkin/limiter"
	"github.com/pkg/errors"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/endpoints"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/session"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/transport"
)

// Authenticator runs a call with a valid session, re-authenticating once
// on a 401
type Authenticator interface {
	Do(ctx context.Context, call session.Call) (*transport.Response, error)
}

// Device is one entry of the account's device list, as returned by the
// vendor
type Device map[string]interface{}

func (d Device) str(keys ...string) string {
	for _, k := range keys {
		switch v := d[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func (d Device) ID() string {
	return d.str("thing_id", "device_id", "id")
}

func (d Device) Name() string {
	return d.str("name", "device_name", "thing_name")
}

// Status holds the outcome of a per-device lookup in a fan-out
type Status struct {
	DeviceID string
	Data     map[string]interface{}
	OK       bool
}

type Directory struct {
	auth      Authenticator
	doer      session.Doer
	endpoints endpoints.Endpoints
}

func New(auth Authenticator, doer session.Doer, ep endpoints.Endpoints) *Directory {
	return &Directory{
		auth:      auth,
		doer:      doer,
		endpoints: ep,
	}
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

func (d *Directory) get(ctx context.Context, rawURL string, query url.Values) (json.RawMessage, error) {
	resp, err := d.auth.Do(ctx, func(ctx context.Context, token string) (*transport.Response, error) {
		return d.doer.Do(ctx, transport.Request{
			Method: http.MethodGet,
			URL:    rawURL,
			Header: session.Header(nil, token),
			Query:  query,
		})
	})
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, resp.Body)
	}

	env := envelope{}
	if err := resp.DecodeJSON(&env); err != nil {
		return nil, err
	}

	return env.Data, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// Devices fetches the device list
func (d *Directory) Devices(ctx context.Context) ([]Device, error) {
	raw, err := d.get(ctx, d.endpoints.Devices(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "listing devices")
	}

	devices := []Device{}
	if isNull(raw) {
		return devices, nil
	}

	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, errors.Wrap(err, "parsing devices response")
	}

	return devices, nil
}

// ListDevices returns the device list, or an empty list on any failure
func (d *Directory) ListDevices(ctx context.Context) []Device {
	devices, err := d.Devices(ctx)
	if err != nil {
		logging.Logger(ctx).WithError(err).Error("Failed to list devices")
		return []Device{}
	}

	logging.Logger(ctx).Infof("Found %d devices", len(devices))
	return devices
}

func (d *Directory) object(ctx context.Context, what string, rawURL string, query url.Values) (map[string]interface{}, error) {
	raw, err := d.get(ctx, rawURL, query)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching device %s", what)
	}

	obj := map[string]interface{}{}
	if isNull(raw) {
		return obj, nil
	}

	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, errors.Wrapf(err, "parsing device %s response", what)
	}

	return obj, nil
}

// DeviceStatus returns the device state document; ok is false on failure
func (d *Directory) DeviceStatus(ctx context.Context, deviceID string) (map[string]interface{}, bool) {
	ctx = logging.WithDeviceID(ctx, deviceID)

	status, err := d.object(ctx, "status", d.endpoints.DeviceState(deviceID), nil)
	if err != nil {
		logging.Logger(ctx).WithError(err).Error("Failed to get device status")
		return nil, false
	}
	return status, true
}

// DeviceInfo returns the device details; ok is false on failure
func (d *Directory) DeviceInfo(ctx context.Context, deviceID string) (map[string]interface{}, bool) {
	ctx = logging.WithDeviceID(ctx, deviceID)

	query := url.Values{"is_tuya_device": []string{"true"}}
	info, err := d.object(ctx, "info", d.endpoints.DeviceInfo(deviceID), query)
	if err != nil {
		logging.Logger(ctx).WithError(err).Error("Failed to get device info")
		return nil, false
	}
	return info, true
}

// StatusAll fetches the status of each device with at most maxConcurrent
// requests in flight.  Results keep the order of deviceIDs.
func (d *Directory) StatusAll(ctx context.Context, deviceIDs []string, maxConcurrent int) []Status {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	results := make([]Status, len(deviceIDs))
	var mu sync.Mutex

	limit := limiter.NewConcurrencyLimiter(maxConcurrent)
	for i, id := range deviceIDs {
		i, id := i, id
		limit.ExecuteWithTicket(func(ticket int) {
			logging.Logger(ctx).Debugf("status-fetch %d: %s", ticket, id)
			data, ok := d.DeviceStatus(ctx, id)

			mu.Lock()
			results[i] = Status{DeviceID: id, Data: data, OK: ok}
			mu.Unlock()
		})
	}
	limit.Wait()

	return results
}
