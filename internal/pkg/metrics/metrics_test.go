package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T) string {
	t.Helper()

	srv := httptest.NewServer(Handler(NewRegistry()))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("scraping metrics: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading metrics: %v", err)
	}
	return string(body)
}

func TestRecordersExposed(t *testing.T) {
	VendorRequest(http.MethodPost, 200)
	VendorRequest(http.MethodGet, 0)
	Login(true)
	Command("rest", false)
	ShadowConnected(true)
	HTTPRequest(http.MethodGet, "/devices/{id}/status", 404)
	HTTPPanic()

	body := scrape(t)
	for _, want := range []string{
		`bluestar_vendor_requests_total{code="200",method="POST"}`,
		`bluestar_vendor_requests_total{code="error",method="GET"}`,
		`bluestar_logins_total{result="success"}`,
		`bluestar_session_valid 1`,
		`bluestar_commands_total{result="failure",transport="rest"}`,
		`bluestar_shadow_connected 1`,
		`bluestar_http_requests_total{code="404",method="GET",route="/devices/{id}/status"}`,
		`bluestar_http_panics_total`,
		`bluestar_build_info{version=`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in scrape output", want)
		}
	}
}

func TestFailedLoginInvalidatesSession(t *testing.T) {
	Login(true)
	Login(false)

	if body := scrape(t); !strings.Contains(body, "bluestar_session_valid 0") {
		t.Fatal("expected the session gauge to drop after a failed login")
	}
}
