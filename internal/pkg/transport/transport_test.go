package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestDoSendsDefaultHeadersAndBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("expected JSON content type, got %s", got)
		}
		if got := r.Header.Get("Accept"); got != "application/json" {
			t.Errorf("expected JSON accept, got %s", got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "bluestar-bridge/") {
			t.Errorf("unexpected user agent %s", got)
		}
		if got := r.Header.Get("X-App-Session"); got != "tok" {
			t.Errorf("expected request header to be merged, got %q", got)
		}
		if got := r.URL.Query().Get("is_tuya_device"); got != "true" {
			t.Errorf("expected query flag, got %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"pow":1}` {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = io.WriteString(w, `{"data":{"ok":true}}`)
	}))
	defer server.Close()

	tr := New()
	defer tr.Close()

	resp, err := tr.Do(context.Background(), Request{
		Method: http.MethodPost,
		URL:    server.URL + "/things/abc/state",
		Header: http.Header{"X-APP-SESSION": []string{"tok"}},
		Query:  url.Values{"is_tuya_device": []string{"true"}},
		Body:   map[string]int{"pow": 1},
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var decoded struct {
		Data struct {
			OK bool `json:"ok"`
		} `json:"data"`
	}
	if err := resp.DecodeJSON(&decoded); err != nil {
		t.Fatalf("DecodeJSON: %v", err)
	}
	if !decoded.Data.OK {
		t.Fatalf("expected ok in decoded body")
	}
}

func TestDoTimeoutIsReturnedAsError(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	tr := New().WithTimeout(50 * time.Millisecond)
	defer tr.Close()

	_, err := tr.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected a timeout, got %v", err)
	}
}

func TestDoNetworkErrorIsReturnedAsError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	tr := New()
	if _, err := tr.Do(context.Background(), Request{Method: http.MethodGet, URL: addr}); err == nil {
		t.Fatal("expected error from a closed server")
	}
}

func TestCloseIsIdempotentAndPoolIsRecreated(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	tr := New()
	if err := tr.Close(); err != nil {
		t.Fatalf("Close before use: %v", err)
	}

	if _, err := tr.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}); err != nil {
		t.Fatalf("Do: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := tr.Close(); err != nil {
			t.Fatalf("Close #%d: %v", i, err)
		}
	}

	if _, err := tr.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL}); err != nil {
		t.Fatalf("Do after Close: %v", err)
	}
}

func TestWithUserAgentKeepsOriginalIntact(t *testing.T) {
	base := New()
	custom := base.WithUserAgent("custom/1.0")

	if got := custom.DefaultHeaders().Get("User-Agent"); got != "custom/1.0" {
		t.Fatalf("expected custom user agent, got %s", got)
	}
	if got := base.DefaultHeaders().Get("User-Agent"); got == "custom/1.0" {
		t.Fatal("original transport was modified")
	}
}
