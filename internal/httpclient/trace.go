// Package httpclient wraps HTTP clients with trace-level request logging.
package httpclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

type traceTransport struct {
	base http.RoundTripper
	name string
}

// NewTraceTransport returns a RoundTripper that tags every request with a
// correlation id and logs it at trace level.
func NewTraceTransport(name string, base http.RoundTripper) http.RoundTripper {
	return &traceTransport{
		base: base,
		name: name,
	}
}

// NewTraceClient returns an HTTP client that logs requests at trace level.
func NewTraceClient(name string, timeout time.Duration) *http.Client {
	return Wrap(&http.Client{Timeout: timeout}, name)
}

// Wrap applies trace logging to an existing HTTP client.
func Wrap(client *http.Client, name string) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	client.Transport = NewTraceTransport(name, client.Transport)
	return client
}

func (t *traceTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}

	requestID := req.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, requestID)
	}

	// Skip body capture entirely unless someone will read it
	if !traceEnabled() {
		return base.RoundTrip(req)
	}

	urlStr := redactURL(req.URL)
	start := time.Now()

	reqEvent := log.Trace().
		Str("client", t.name).
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("url", urlStr).
		Strs("headers", redactHeaders(req.Header))
	if body, err := readAndRestoreRequestBody(req); err == nil && len(body) > 0 {
		addBody(reqEvent, body)
	}
	reqEvent.Msg("HTTP request")

	resp, err := base.RoundTrip(req)
	duration := time.Since(start)
	if err != nil {
		log.Trace().
			Str("client", t.name).
			Str("request_id", requestID).
			Str("method", req.Method).
			Str("url", urlStr).
			Dur("duration", duration).
			Err(err).
			Msg("HTTP request failed")
		return nil, err
	}

	bodyBytes, readErr := readAndRestoreBody(resp)
	logEvent := log.Trace().
		Str("client", t.name).
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("url", urlStr).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Int("body_length", len(bodyBytes))

	if readErr != nil {
		logEvent.Err(readErr)
	}
	addBody(logEvent, bodyBytes)
	logEvent.Msg("HTTP response")

	return resp, nil
}

func traceEnabled() bool {
	return zerolog.GlobalLevel() <= zerolog.TraceLevel && log.Logger.GetLevel() <= zerolog.TraceLevel
}

func addBody(e *zerolog.Event, body []byte) {
	if len(body) == 0 {
		return
	}
	if json.Valid(body) {
		e.RawJSON("body", body)
	} else {
		e.Str("body", string(body))
	}
}

func readAndRestoreBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	return bodyBytes, err
}

func readAndRestoreRequestBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.GetBody == nil {
		return nil, nil
	}
	rc, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// redactHeaders returns "Name: value" pairs with credentials masked.
func redactHeaders(h http.Header) []string {
	out := make([]string, 0, len(h))
	for name, values := range h {
		value := strings.Join(values, ",")
		if isSensitiveHeader(name) {
			value = "redacted"
		}
		out = append(out, name+": "+value)
	}
	return out
}

func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "x-emby-token", "x-mediabrowser-token", "x-emby-authorization", "cookie":
		return true
	default:
		return false
	}
}

func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}

	copyURL := *u
	if copyURL.RawQuery == "" {
		return copyURL.String()
	}

	q := copyURL.Query()
	for key := range q {
		if isSensitiveQueryKey(key) {
			q.Set(key, "redacted")
		}
	}

	copyURL.RawQuery = q.Encode()
	return copyURL.String()
}

func isSensitiveQueryKey(key string) bool {
	switch strings.ToLower(key) {
	case "apikey", "api_key", "api-key", "token", "access_token", "x-emby-token", "authorization", "auth":
		return true
	default:
		return false
	}
}
