// Package mediabrowser talks to Emby and Jellyfin servers. Both share nearly
// identical APIs, so one client serves both, configured by a Flavor.
package mediabrowser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/config"
	"github.com/saltyorg/autoplay/internal/httpclient"
	"github.com/saltyorg/autoplay/internal/media"
)

// Config holds the server connection settings.
type Config struct {
	URL      string
	APIKey   string
	Flavor   Flavor
	Identity Identity

	// HTTPClient overrides the default trace client, mostly for tests.
	HTTPClient *http.Client
}

// Client is a MediaBrowser API client.
type Client struct {
	baseURL  string
	apiKey   string
	flavor   Flavor
	identity Identity
	client   *http.Client
}

// New creates a client for the given server.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = httpclient.NewTraceClient(strings.ToLower(cfg.Flavor.ServerName), config.GetTimeouts().HTTPClient)
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		apiKey:   cfg.APIKey,
		flavor:   cfg.Flavor,
		identity: cfg.Identity,
		client:   hc,
	}
}

// ServerName returns "Emby" or "Jellyfin".
func (c *Client) ServerName() string {
	return c.flavor.ServerName
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// APIKey returns the access token, needed on stream URLs the player fetches.
func (c *Client) APIKey() string {
	return c.apiKey
}

// AbsoluteURL resolves a server-relative path such as a TranscodingUrl.
// Absolute URLs are returned unchanged.
func (c *Client) AbsoluteURL(path string) string {
	if path == "" {
		return ""
	}
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// setHeaders sets the authentication headers for requests
func (c *Client) setHeaders(req *http.Request) {
	c.flavor.SetAuthHeader(req, c.apiKey, c.identity)
	req.Header.Set("Accept", "application/json")
}

// do sends a request with an optional JSON body and decodes a JSON response
// into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(bodyJSON)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("%s rejected the API key", c.flavor.ServerName)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", c.flavor.ServerName, resp.StatusCode, string(respBody))
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// TestConnection verifies the connection to the media server
func (c *Client) TestConnection(ctx context.Context) error {
	var info systemInfo
	if err := c.do(ctx, http.MethodGet, "/System/Info", nil, &info); err != nil {
		return fmt.Errorf("connection failed: %w", err)
	}

	log.Debug().
		Str("server", info.ServerName).
		Str("version", info.Version).
		Msgf("Connected to %s", c.flavor.ServerName)
	return nil
}

// GetItem returns a library item with its media sources.
func (c *Client) GetItem(ctx context.Context, userID, itemID string) (*media.Item, error) {
	path := fmt.Sprintf("/Users/%s/Items/%s", url.PathEscape(userID), url.PathEscape(itemID))
	var dto BaseItemDto
	if err := c.do(ctx, http.MethodGet, path, nil, &dto); err != nil {
		return nil, fmt.Errorf("failed to get item %s: %w", itemID, err)
	}
	item := dto.ToItem()
	return &item, nil
}

// GetPlaybackInfo negotiates a stream for an item.
func (c *Client) GetPlaybackInfo(ctx context.Context, itemID string, req *PlaybackInfoRequest) (*PlaybackInfoResponse, error) {
	path := fmt.Sprintf("/Items/%s/PlaybackInfo", url.PathEscape(itemID))
	if req.UserID != "" {
		path += "?UserId=" + url.QueryEscape(req.UserID)
	}
	var resp PlaybackInfoResponse
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ReportPlaybackStart reports that playback of a negotiated stream began.
func (c *Client) ReportPlaybackStart(ctx context.Context, info *PlaybackProgressInfo) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing", info, nil)
}

// ReportPlaybackProgress reports position and pause state.
func (c *Client) ReportPlaybackProgress(ctx context.Context, info *PlaybackProgressInfo) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing/Progress", info, nil)
}

// ReportPlaybackStopped releases the server session bound to info.PlaySessionID.
func (c *Client) ReportPlaybackStopped(ctx context.Context, info *PlaybackProgressInfo) error {
	return c.do(ctx, http.MethodPost, "/Sessions/Playing/Stopped", info, nil)
}

// ReportCapabilities registers this device as a remotely controllable player.
func (c *Client) ReportCapabilities(ctx context.Context) error {
	caps := ClientCapabilities{
		PlayableMediaTypes:   []string{"Video", "Audio"},
		SupportedCommands:    supportedCommands(),
		SupportsMediaControl: true,
	}
	return c.do(ctx, http.MethodPost, "/Sessions/Capabilities/Full", caps, nil)
}
