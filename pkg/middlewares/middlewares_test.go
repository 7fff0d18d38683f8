package middlewares

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/models"
)

func newTestRouter(h http.HandlerFunc) http.Handler {
	r := mux.NewRouter()
	r.Use(NewCorrelationMw())
	r.Use(NewLoggingMw(true))
	r.Use(NewRecoveryMw())
	r.HandleFunc("/", h).Methods(http.MethodGet, http.MethodPost)
	r.HandleFunc("/devices/{id}/status", h).Methods(http.MethodGet)
	return NewCorsMw(CorsOptions([]string{"https://ha.example.com"}))(r)
}

func TestLoggingSetsTxnID(t *testing.T) {
	var seen string
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logging.TxnID(r.Context())
		body, _ := io.ReadAll(r.Body)
		_, _ = w.Write(body)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"power":true}`)))

	if seen == "" || rec.Header().Get(TxnIDHeader) != seen {
		t.Fatalf("expected txn id %q in response header, got %q", seen, rec.Header().Get(TxnIDHeader))
	}
	if rec.Body.String() != `{"power":true}` {
		t.Fatalf("expected body to pass through, got %s", rec.Body)
	}
}

func TestCorrelationID(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		in   string
		want string
	}{
		{"abc-123_x", "abc-123_x"},
		{"no spaces allowed", badCorrelationID},
		{"", ""},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.in != "" {
			req.Header.Set("X-Correlation-ID", tt.in)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if got := rec.Header().Get("X-Correlation-ID"); got != tt.want {
			t.Fatalf("correlation %q: expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestCorrelationFallsBackToRequestID(t *testing.T) {
	var fields map[string]interface{}
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		fields = logging.Logger(r.Context()).Data
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "ha-req-7")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != "ha-req-7" {
		t.Fatalf("expected request id echoed, got %q", got)
	}
	if rec.Header().Get(CorrelationIDHeader) != "" {
		t.Fatal("expected no correlation header when only a request id was sent")
	}
	if fields["correlation"] != "ha-req-7" {
		t.Fatalf("expected correlation field ha-req-7, got %v", fields["correlation"])
	}
}

func TestRecoveryReturns500(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body models.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	want := "transaction " + rec.Header().Get(TxnIDHeader)
	if body.Code != http.StatusInternalServerError || len(body.Details) != 1 || body.Details[0] != want {
		t.Fatalf("unexpected error body %+v", body)
	}
}

func TestLoggingKeepsCallerTxnID(t *testing.T) {
	var seen string
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = logging.TxnID(r.Context())
	})

	for in, keep := range map[string]bool{
		"host-txn-42": true,
		"bad txn id":  false,
		"x":           false,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(TxnIDHeader, in)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		if got := rec.Header().Get(TxnIDHeader); (got == in) != keep || got != seen {
			t.Fatalf("txn id %q: got %q in header, %q in context", in, got, seen)
		}
	}
}

func TestLoggingTagsDevice(t *testing.T) {
	var fields map[string]interface{}
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		fields = logging.Logger(r.Context()).Data
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/devices/ac-1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if fields["device"] != "ac-1" {
		t.Fatalf("expected device field ac-1, got %v", fields["device"])
	}
}

func TestRouteOfUsesTemplate(t *testing.T) {
	var route string
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {
		route = routeOf(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/devices/ac-9/status", nil))
	if route != "/devices/{id}/status" {
		t.Fatalf("expected the route template, got %q", route)
	}

	if got := routeOf(httptest.NewRequest(http.MethodGet, "/nowhere", nil)); got != unmatchedRoute {
		t.Fatalf("expected %q outside the router, got %q", unmatchedRoute, got)
	}
}

func TestCorsPreflight(t *testing.T) {
	r := newTestRouter(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodOptions, "/devices/ac-1/command", nil)
	req.Header.Set("Origin", "https://ha.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://ha.example.com" {
		t.Fatalf("expected allowed origin, got %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/devices/ac-1/command", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("expected no CORS grant for a foreign origin, got %q", got)
	}
}
