package bluestar

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gorilla/mux"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/endpoints"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/session"
)

type cloud struct {
	t        *testing.T
	logins   int32
	commands []map[string]interface{}
}

func (c *cloud) handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&c.logins, 1)
		_, _ = io.WriteString(w, `{"data":{"session_token":"tok123"}}`)
	}).Methods(http.MethodPost)

	r.HandleFunc("/things", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"thing_id":"ac-1","name":"Bedroom"}]}`)
	}).Methods(http.MethodGet)

	r.HandleFunc("/things/{id}/state", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(session.HeaderName) != "tok123" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body := map[string]interface{}{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			c.t.Errorf("decoding command: %v", err)
		}
		c.commands = append(c.commands, body)
		_, _ = io.WriteString(w, `{}`)
	}).Methods(http.MethodPost)

	return r
}

func newTestClient(t *testing.T, devices ...DeviceConfig) (*Client, *cloud, func()) {
	c := &cloud{t: t}
	server := httptest.NewServer(c.handler())

	client, err := New(Config{
		Credentials: session.NewCredentials("user@example.com", "secret", session.AuthTypeEmail),
		Endpoints:   endpoints.Default(server.URL),
		Devices:     devices,
	})
	if err != nil {
		server.Close()
		t.Fatalf("New: %v", err)
	}

	return client, c, func() {
		_ = client.Close()
		server.Close()
	}
}

func TestClientCommandsUpdateAssumedState(t *testing.T) {
	client, c, done := newTestClient(t, DeviceConfig{ID: "ac-1", Name: "Bedroom"})
	defer done()

	ctx := context.Background()
	if client.Connected() {
		t.Fatal("expected no session before the first call")
	}

	if !client.SetHVACMode(ctx, "ac-1", command.HVACCool) {
		t.Fatal("expected SetHVACMode to succeed")
	}
	if !client.SetFanPercentage(ctx, "ac-1", 50) {
		t.Fatal("expected SetFanPercentage to succeed")
	}
	if client.SetTemperature(ctx, "ac-1", 31) {
		t.Fatal("expected out of range temperature to fail")
	}

	if len(c.commands) != 2 {
		t.Fatalf("expected 2 commands on the wire, got %d", len(c.commands))
	}
	if c.commands[0]["pow"] != 1.0 || c.commands[0]["climate"] != 1.0 {
		t.Fatalf("expected power on and cool in one payload, got %v", c.commands[0])
	}
	if c.commands[1]["fspd"] != 2.0 {
		t.Fatalf("expected medium fan, got %v", c.commands[1])
	}

	st := client.AssumedState("ac-1")
	if st.HVACMode != command.HVACCool || st.FanSpeed != command.FanMedium || st.Temperature != 24 {
		t.Fatalf("unexpected assumed state %+v", st)
	}
	if !client.Connected() || !client.DeviceConnected("ac-1") {
		t.Fatal("expected a live session after a successful command")
	}
	if n := atomic.LoadInt32(&c.logins); n != 1 {
		t.Fatalf("expected 1 login, got %d", n)
	}
}

func TestClientListDevicesAndCheck(t *testing.T) {
	client, _, done := newTestClient(t)
	defer done()

	if err := client.Check(context.Background()); err != nil {
		t.Fatalf("Check: %v", err)
	}

	devices := client.ListDevices(context.Background())
	if len(devices) != 1 || devices[0].ID() != "ac-1" {
		t.Fatalf("unexpected devices %v", devices)
	}
}

func TestClientConfigValidation(t *testing.T) {
	ep := endpoints.Default("http://127.0.0.1:1")

	tests := []struct {
		name string
		cfg  Config
	}{
		{"bad default transport", Config{Endpoints: ep, DefaultTransport: "carrier-pigeon"}},
		{"bad device transport", Config{Endpoints: ep, Devices: []DeviceConfig{{ID: "a", Transport: "lan"}}}},
		{"missing id", Config{Endpoints: ep, Devices: []DeviceConfig{{Name: "nameless"}}}},
		{"duplicate id", Config{Endpoints: ep, Devices: []DeviceConfig{{ID: "a"}, {ID: "a"}}}},
	}

	for _, tt := range tests {
		if _, err := New(tt.cfg); err == nil {
			t.Fatalf("%s: expected an error", tt.name)
		}
	}
}

func TestClientRoutesShadowDevices(t *testing.T) {
	client, _, done := newTestClient(t,
		DeviceConfig{ID: "ac-1"},
		DeviceConfig{ID: "ac-2", Transport: TransportShadow, Thing: "thing-2"},
	)
	defer done()

	devices := client.Devices()
	if len(devices) != 2 || devices[0].Transport != TransportREST || devices[1].Transport != TransportShadow {
		t.Fatalf("unexpected devices %+v", devices)
	}
	if client.DeviceConnected("ac-2") {
		t.Fatal("expected the shadow session to start disconnected")
	}
}

func TestClientMetadataAndClose(t *testing.T) {
	client, _, done := newTestClient(t, DeviceConfig{ID: "ac-1", Name: "Bedroom"})
	defer done()

	md := client.Metadata("ac-1")
	if md.UniqueID != "bluestar_ac_ac-1" || md.Name != "Bedroom" || md.Manufacturer != "Bluestar" || md.Model != "Smart AC" {
		t.Fatalf("unexpected metadata %+v", md)
	}
	if md := client.Metadata("ac-9"); md.Name != "ac-9" {
		t.Fatalf("expected unnamed device to fall back to its id, got %+v", md)
	}

	for i := 0; i < 2; i++ {
		if err := client.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}
}
