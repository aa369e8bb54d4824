package mediabrowser

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Identity describes this client to the server. DeviceID must be stable
// across runs so remote-control commands reach the right session.
type Identity struct {
	Client   string
	Device   string
	DeviceID string
	Version  string
}

func (id Identity) authorization() string {
	return fmt.Sprintf(`MediaBrowser Client="%s", Device="%s", DeviceId="%s", Version="%s"`,
		id.Client, id.Device, id.DeviceID, id.Version)
}

// Flavor holds what differs between Emby and Jellyfin.
// Named after MediaBrowser, the project both forked from.
type Flavor struct {
	// ServerName is used in log messages and errors (e.g., "Emby", "Jellyfin")
	ServerName string

	// SetAuthHeader sets the authentication headers for requests
	SetAuthHeader func(req *http.Request, apiKey string, id Identity)

	// WebSocketPath is the path for WebSocket connections
	WebSocketPath string

	// WebSocketQueryParams returns the query params for the WebSocket URL
	WebSocketQueryParams func(apiKey string, id Identity) url.Values
}

// Emby returns the Emby flavor.
func Emby() Flavor {
	return Flavor{
		ServerName: "Emby",
		SetAuthHeader: func(req *http.Request, apiKey string, id Identity) {
			req.Header.Set("X-Emby-Token", apiKey)
			req.Header.Set("X-Emby-Authorization", id.authorization())
		},
		WebSocketPath: "/embywebsocket",
		WebSocketQueryParams: func(apiKey string, id Identity) url.Values {
			q := url.Values{}
			q.Set("api_key", apiKey)
			q.Set("deviceId", id.DeviceID)
			return q
		},
	}
}

// Jellyfin returns the Jellyfin flavor.
func Jellyfin() Flavor {
	return Flavor{
		ServerName: "Jellyfin",
		SetAuthHeader: func(req *http.Request, apiKey string, id Identity) {
			req.Header.Set("Authorization", fmt.Sprintf(`%s, Token="%s"`, id.authorization(), apiKey))
		},
		WebSocketPath: "/socket",
		WebSocketQueryParams: func(apiKey string, id Identity) url.Values {
			q := url.Values{}
			q.Set("api_key", apiKey)
			q.Set("deviceId", id.DeviceID)
			return q
		},
	}
}

// ParseFlavor returns the flavor for a server type name.
func ParseFlavor(name string) (Flavor, error) {
	switch strings.ToLower(name) {
	case "emby", "":
		return Emby(), nil
	case "jellyfin":
		return Jellyfin(), nil
	default:
		return Flavor{}, fmt.Errorf("unknown server type %q", name)
	}
}
