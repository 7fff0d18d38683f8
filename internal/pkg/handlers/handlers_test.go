package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/bluestar"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/directory"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/models"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/state"
)

type fakeController struct {
	devices    []bluestar.DeviceConfig
	discovered []directory.Device
	status     map[string]map[string]interface{}
	dispatchFn func(id string, cmd command.Command) error
	checkErr   error

	tracker    *state.Tracker
	dispatched []command.Command
}

func newFakeController() *fakeController {
	return &fakeController{
		status:  map[string]map[string]interface{}{},
		tracker: state.NewTracker(),
	}
}

func (f *fakeController) Devices() []bluestar.DeviceConfig { return f.devices }

func (f *fakeController) Device(id string) (bluestar.DeviceConfig, bool) {
	for _, d := range f.devices {
		if d.ID == id {
			return d, true
		}
	}
	return bluestar.DeviceConfig{}, false
}

func (f *fakeController) Metadata(id string) bluestar.Metadata {
	return bluestar.Metadata{UniqueID: "bluestar_ac_" + id, Name: id, Manufacturer: "Bluestar", Model: "Smart AC"}
}

func (f *fakeController) ListDevices(ctx context.Context) []directory.Device { return f.discovered }

func (f *fakeController) StatusAll(ctx context.Context, ids []string, n int) []directory.Status {
	res := make([]directory.Status, len(ids))
	for i, id := range ids {
		data, ok := f.status[id]
		res[i] = directory.Status{DeviceID: id, Data: data, OK: ok}
	}
	return res
}

func (f *fakeController) DeviceStatus(ctx context.Context, id string) (map[string]interface{}, bool) {
	data, ok := f.status[id]
	return data, ok
}

func (f *fakeController) DeviceInfo(ctx context.Context, id string) (map[string]interface{}, bool) {
	return map[string]interface{}{"id": id}, true
}

func (f *fakeController) AssumedState(id string) state.Device { return f.tracker.Get(id) }

func (f *fakeController) Dispatch(ctx context.Context, id string, cmd command.Command) error {
	if err := cmd.Validate(); err != nil {
		return err
	}
	if f.dispatchFn != nil {
		if err := f.dispatchFn(id, cmd); err != nil {
			return err
		}
	}
	f.dispatched = append(f.dispatched, cmd)
	f.tracker.Observe(id, cmd)
	return nil
}

func (f *fakeController) DeviceConnected(id string) bool { return true }
func (f *fakeController) Connected() bool                { return f.checkErr == nil }
func (f *fakeController) Check(ctx context.Context) error { return f.checkErr }

func newTestRouter(f *fakeController) *mux.Router {
	r := mux.NewRouter()
	dh := NewDeviceHandler(f, 2)
	dh.Register(r)
	hh := NewHealthHandler(f)
	r.Handle("/health", &hh).Methods(http.MethodGet)
	return r
}

func do(t *testing.T, h http.Handler, method string, path string, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestCommandHandler(t *testing.T) {
	f := newFakeController()
	f.devices = []bluestar.DeviceConfig{{ID: "ac-1", Transport: "rest"}}
	r := newTestRouter(f)

	rec := do(t, r, http.MethodPost, "/devices/ac-1/command", `{"hvac_mode":"cool","temperature":22.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body)
	}

	var res models.CommandResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if res.DeviceID != "ac-1" || res.Payload != `{"climate":1,"pow":1,"stemp":"22.5"}` {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.State.HVACMode != command.HVACCool || res.State.Temperature != 22.5 {
		t.Fatalf("unexpected assumed state %+v", res.State)
	}
}

func TestCommandHandlerRejections(t *testing.T) {
	f := newFakeController()
	f.devices = []bluestar.DeviceConfig{{ID: "ac-1"}}
	r := newTestRouter(f)

	tests := []struct {
		name   string
		path   string
		body   string
		status int
	}{
		{"unknown device", "/devices/ac-9/command", `{"power":true}`, http.StatusNotFound},
		{"not json", "/devices/ac-1/command", `power=on`, http.StatusBadRequest},
		{"unknown field", "/devices/ac-1/command", `{"turbo_boost":true}`, http.StatusBadRequest},
		{"empty", "/devices/ac-1/command", `{}`, http.StatusBadRequest},
		{"out of range", "/devices/ac-1/command", `{"temperature":12}`, http.StatusBadRequest},
		{"bad enum", "/devices/ac-1/command", `{"swing":"sideways"}`, http.StatusBadRequest},
		{"two objects", "/devices/ac-1/command", `{"power":true}{"power":false}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rec := do(t, r, http.MethodPost, tt.path, tt.body)
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d, got %d: %s", tt.name, tt.status, rec.Code, rec.Body)
		}

		var e models.ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &e); err != nil {
			t.Fatalf("%s: decoding error response: %v", tt.name, err)
		}
		if e.Code != int32(tt.status) {
			t.Fatalf("%s: unexpected error body %+v", tt.name, e)
		}
	}

	if len(f.dispatched) != 0 {
		t.Fatalf("expected nothing dispatched, got %d commands", len(f.dispatched))
	}
}

func TestCommandHandlerVendorFailure(t *testing.T) {
	f := newFakeController()
	f.dispatchFn = func(string, command.Command) error { return fmt.Errorf("status 500") }
	r := newTestRouter(f)

	rec := do(t, r, http.MethodPost, "/devices/anything/command", `{"display":false}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}

	rec = do(t, r, http.MethodGet, "/devices/anything/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var st state.Device
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decoding state: %v", err)
	}
	if !st.Display {
		t.Fatal("expected a failed command to leave the assumed state unchanged")
	}
}

func TestListDevices(t *testing.T) {
	f := newFakeController()
	f.discovered = []directory.Device{
		{"thing_id": "ac-1", "name": "Bedroom"},
		{"name": "no id"},
		{"thing_id": "ac-2"},
	}
	f.status["ac-1"] = map[string]interface{}{"pow": 1.0}
	r := newTestRouter(f)

	rec := do(t, r, http.MethodGet, "/devices?status=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var devices []models.DeviceSummary
	if err := json.Unmarshal(rec.Body.Bytes(), &devices); err != nil {
		t.Fatalf("decoding devices: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0].Name != "Bedroom" || devices[0].UniqueID != "bluestar_ac_ac-1" || !*devices[0].StatusOK {
		t.Fatalf("unexpected first device %+v", devices[0])
	}
	if devices[1].StatusOK == nil || *devices[1].StatusOK {
		t.Fatalf("expected status failure for second device, got %+v", devices[1])
	}

	f.discovered = nil
	rec = do(t, r, http.MethodGet, "/devices", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected an empty list, got %s", rec.Body)
	}
}

func TestStatusAndInfo(t *testing.T) {
	f := newFakeController()
	f.status["ac-1"] = map[string]interface{}{"pow": 0.0}
	r := newTestRouter(f)

	if rec := do(t, r, http.MethodGet, "/devices/ac-1/status", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/devices/ac-2/status", ""); rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if rec := do(t, r, http.MethodGet, "/devices/ac-1/info", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	f := newFakeController()
	r := newTestRouter(f)

	if rec := do(t, r, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	f.checkErr = fmt.Errorf("login failed")
	rec := do(t, r, http.MethodGet, "/health", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	var h models.Health
	if err := json.Unmarshal(rec.Body.Bytes(), &h); err != nil {
		t.Fatalf("decoding health: %v", err)
	}
	if h.Status != "unavailable" || h.Connected {
		t.Fatalf("unexpected health %+v", h)
	}
}
