package httpclient

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://emby:8096/System/Info", "http://emby:8096/System/Info"},
		{"http://emby:8096/embywebsocket?api_key=secret&deviceId=abc", "http://emby:8096/embywebsocket?api_key=redacted&deviceId=abc"},
		{"http://jf/Videos/1/stream?Static=true&X-Emby-Token=secret", "http://jf/Videos/1/stream?Static=true&X-Emby-Token=redacted"},
	}

	for _, tt := range tests {
		u, err := url.Parse(tt.in)
		if err != nil {
			t.Fatalf("url.Parse(%q): %v", tt.in, err)
		}
		if got := redactURL(u); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRedactHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("X-Emby-Token", "secret")
	h.Set("Authorization", `MediaBrowser Token="secret"`)
	h.Set("Accept", "application/json")

	for _, line := range redactHeaders(h) {
		if strings.Contains(line, "secret") {
			t.Errorf("redactHeaders leaked credential: %q", line)
		}
	}
}

func TestTraceTransportSetsRequestID(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewTraceClient("test", 0)
	resp, err := client.Get(srv.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()

	if got == "" {
		t.Error("request id header not set")
	}
}
