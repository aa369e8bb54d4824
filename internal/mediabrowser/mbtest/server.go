// Package mbtest provides an in-process fake MediaBrowser server.
package mbtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/saltyorg/autoplay/internal/mediabrowser"
)

// APIKey is the token the fake server accepts.
const APIKey = "test-api-key"

// ReportKind identifies a /Sessions/Playing endpoint.
type ReportKind string

const (
	ReportStart    ReportKind = "start"
	ReportProgress ReportKind = "progress"
	ReportStopped  ReportKind = "stopped"
)

// Report is one received playback report.
type Report struct {
	Kind ReportKind
	Info mediabrowser.PlaybackProgressInfo
}

// PlaybackInfoCall is one received negotiation.
type PlaybackInfoCall struct {
	ItemID  string
	Request mediabrowser.PlaybackInfoRequest
}

// PlaybackInfoFunc computes the negotiation response for a request.
type PlaybackInfoFunc func(itemID string, req mediabrowser.PlaybackInfoRequest) mediabrowser.PlaybackInfoResponse

// Server is a fake Emby/Jellyfin server backed by httptest.
type Server struct {
	*httptest.Server

	mu           sync.Mutex
	items        map[string]mediabrowser.BaseItemDto
	playbackInfo PlaybackInfoFunc
	infoCalls    []PlaybackInfoCall
	reports      []Report
	capabilities []mediabrowser.ClientCapabilities
	conns        []*websocket.Conn
	failReports  bool

	upgrader websocket.Upgrader
}

// New starts a fake server that is closed when the test ends.
func New(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		items: make(map[string]mediabrowser.BaseItemDto),
	}

	r := chi.NewRouter()
	r.Use(s.auth)
	r.Get("/System/Info", s.handleSystemInfo)
	r.Get("/Users/{userID}/Items/{itemID}", s.handleGetItem)
	r.Post("/Items/{itemID}/PlaybackInfo", s.handlePlaybackInfo)
	r.Post("/Sessions/Playing", s.handleReport(ReportStart))
	r.Post("/Sessions/Playing/Progress", s.handleReport(ReportProgress))
	r.Post("/Sessions/Playing/Stopped", s.handleReport(ReportStopped))
	r.Post("/Sessions/Capabilities/Full", s.handleCapabilities)
	r.Get("/embywebsocket", s.handleWebSocket)
	r.Get("/socket", s.handleWebSocket)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Close closes open websockets and shuts the server down.
func (s *Server) Close() {
	s.mu.Lock()
	for _, c := range s.conns {
		c.Close()
	}
	s.conns = nil
	s.mu.Unlock()
	s.Server.Close()
}

// Client returns an Emby-flavored client for the server.
func (s *Server) Client() *mediabrowser.Client {
	return s.ClientWithFlavor(mediabrowser.Emby())
}

// ClientWithFlavor returns a client for the server using flavor.
func (s *Server) ClientWithFlavor(flavor mediabrowser.Flavor) *mediabrowser.Client {
	return mediabrowser.New(mediabrowser.Config{
		URL:    s.URL,
		APIKey: APIKey,
		Flavor: flavor,
		Identity: mediabrowser.Identity{
			Client:   "autoplay",
			Device:   "test",
			DeviceID: "test-device",
			Version:  "test",
		},
		HTTPClient: s.Server.Client(),
	})
}

// SetItem registers an item returned by GET /Users/{u}/Items/{id}.
func (s *Server) SetItem(item mediabrowser.BaseItemDto) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// OnPlaybackInfo sets the negotiation handler.
func (s *Server) OnPlaybackInfo(fn PlaybackInfoFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playbackInfo = fn
}

// FailReports makes the report endpoints answer 500.
func (s *Server) FailReports(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReports = fail
}

// PlaybackInfoCalls returns the negotiations received so far.
func (s *Server) PlaybackInfoCalls() []PlaybackInfoCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]PlaybackInfoCall(nil), s.infoCalls...)
}

// Reports returns the playback reports received so far.
func (s *Server) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}

// ReportsOf returns the received reports of one kind.
func (s *Server) ReportsOf(kind ReportKind) []Report {
	var out []Report
	for _, r := range s.Reports() {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

// Capabilities returns the capability registrations received so far.
func (s *Server) Capabilities() []mediabrowser.ClientCapabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]mediabrowser.ClientCapabilities(nil), s.capabilities...)
}

// WaitForSocket blocks until a client has connected to the websocket.
func (s *Server) WaitForSocket(t testing.TB) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		n := len(s.conns)
		s.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("no websocket client connected")
}

// SendMessage writes a raw websocket message to every connected client.
func (s *Server) SendMessage(messageType string, data any) error {
	payload, err := json.Marshal(map[string]any{
		"MessageType": messageType,
		"Data":        data,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			return err
		}
	}
	return nil
}

// SendPlaystate sends a Playstate command such as Pause or Seek.
func (s *Server) SendPlaystate(command string, seekTicks *int64) error {
	data := map[string]any{"Command": command}
	if seekTicks != nil {
		data["SeekPositionTicks"] = *seekTicks
	}
	return s.SendMessage("Playstate", data)
}

// SendGeneralCommand sends a GeneralCommand with string arguments.
func (s *Server) SendGeneralCommand(name string, args map[string]string) error {
	return s.SendMessage("GeneralCommand", map[string]any{"Name": name, "Arguments": args})
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Emby-Token") == APIKey ||
			strings.Contains(r.Header.Get("Authorization"), `Token="`+APIKey+`"`) ||
			r.URL.Query().Get("api_key") == APIKey {
			next.ServeHTTP(w, r)
			return
		}
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
}

func (s *Server) handleSystemInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"ServerName": "fake", "Version": "4.9.0.0", "Id": "fake-server"})
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	item, ok := s.items[chi.URLParam(r, "itemID")]
	s.mu.Unlock()

	if !ok {
		http.Error(w, "item not found", http.StatusNotFound)
		return
	}
	writeJSON(w, item)
}

func (s *Server) handlePlaybackInfo(w http.ResponseWriter, r *http.Request) {
	var req mediabrowser.PlaybackInfoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	itemID := chi.URLParam(r, "itemID")

	s.mu.Lock()
	s.infoCalls = append(s.infoCalls, PlaybackInfoCall{ItemID: itemID, Request: req})
	fn := s.playbackInfo
	s.mu.Unlock()

	if fn == nil {
		http.Error(w, "no playback info handler", http.StatusInternalServerError)
		return
	}
	writeJSON(w, fn(itemID, req))
}

func (s *Server) handleReport(kind ReportKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var info mediabrowser.PlaybackProgressInfo
		if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		s.mu.Lock()
		fail := s.failReports
		if !fail {
			s.reports = append(s.reports, Report{Kind: kind, Info: info})
		}
		s.mu.Unlock()

		if fail {
			http.Error(w, "report failed", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	var caps mediabrowser.ClientCapabilities
	if err := json.NewDecoder(r.Body).Decode(&caps); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.capabilities = append(s.capabilities, caps)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.conns = append(s.conns, conn)
	s.mu.Unlock()

	// Drain KeepAlive messages until the client goes away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
