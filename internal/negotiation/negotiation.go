// Package negotiation asks the server how a selection can be played and
// turns the answer into a PlaybackStream.
package negotiation

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/saltyorg/autoplay/internal/deviceprofile"
	"github.com/saltyorg/autoplay/internal/media"
	"github.com/saltyorg/autoplay/internal/mediabrowser"
	"github.com/saltyorg/autoplay/internal/metrics"
)

var (
	// ErrNoPlayableSource means the server offered nothing this device can play.
	ErrNoPlayableSource = errors.New("no playable media source")

	// ErrNegotiationIncomplete means the server answered without a play session id or stream url.
	ErrNegotiationIncomplete = errors.New("negotiation returned no play session")
)

// Server is the part of the MediaBrowser API negotiation needs.
type Server interface {
	GetPlaybackInfo(ctx context.Context, itemID string, req *mediabrowser.PlaybackInfoRequest) (*mediabrowser.PlaybackInfoResponse, error)
	AbsoluteURL(path string) string
	APIKey() string
}

// Negotiator produces playback streams. Implemented by Client and by the
// offline negotiator.
type Negotiator interface {
	Negotiate(ctx context.Context, req Request) (*media.PlaybackStream, error)
}

// Request is one negotiation.
type Request struct {
	Item       media.Item
	Selection  media.PlaySelection
	Profile    deviceprofile.Profile
	UserID     string
	StartTicks media.Ticks

	AllowDirectPlay    bool
	AllowDirectStream  bool
	AllowTranscoding   bool
	AutoOpenLiveStream bool
}

// NewRequest returns a request with every play method allowed.
func NewRequest(item media.Item, sel media.PlaySelection, profile deviceprofile.Profile, userID string, start media.Ticks) Request {
	return Request{
		Item:              item,
		Selection:         sel,
		Profile:           profile,
		UserID:            userID,
		StartTicks:        start,
		AllowDirectPlay:   true,
		AllowDirectStream: true,
		AllowTranscoding:  true,
	}
}

// Client negotiates against a MediaBrowser server. It never retries; the
// caller decides what a failure means for playback.
type Client struct {
	server Server
}

// New returns a negotiation client.
func New(server Server) *Client {
	return &Client{server: server}
}

// Negotiate issues exactly one PlaybackInfo request. On success the server
// holds a session bound to the returned PlaySessionID until stopped is reported.
func (c *Client) Negotiate(ctx context.Context, req Request) (*media.PlaybackStream, error) {
	stream, err := c.negotiate(ctx, req)
	if err != nil {
		metrics.RecordNegotiation(metrics.ResultFailure, "")
		log.Warn().
			Err(err).
			Str("item", req.Item.ID).
			Str("media_source", req.Selection.MediaSourceID).
			Msg("Stream negotiation failed")
		return nil, err
	}

	metrics.RecordNegotiation(metrics.ResultSuccess, string(stream.PlayMethod))
	log.Info().
		Str("item", req.Item.ID).
		Str("media_source", stream.Source.ID).
		Str("play_method", string(stream.PlayMethod)).
		Str("play_session", stream.PlaySessionID).
		Int("subtitle", stream.SubtitleIndex).
		Stringer("start", stream.StartTicks).
		Msg("Stream negotiated")
	return stream, nil
}

func (c *Client) negotiate(ctx context.Context, req Request) (*media.PlaybackStream, error) {
	profile := req.Profile
	if req.Selection.MaxBitrate != nil {
		profile = profile.WithMaxBitrate(*req.Selection.MaxBitrate)
	}

	subtitle := req.Selection.SubtitleIndex
	body := &mediabrowser.PlaybackInfoRequest{
		UserID:               req.UserID,
		MaxStreamingBitrate:  req.Selection.MaxBitrate,
		StartTimeTicks:       int64(req.StartTicks),
		AudioStreamIndex:     req.Selection.AudioIndex,
		SubtitleStreamIndex:  &subtitle,
		MediaSourceID:        req.Selection.MediaSourceID,
		DeviceProfile:        &profile,
		EnableDirectPlay:     req.AllowDirectPlay,
		EnableDirectStream:   req.AllowDirectStream,
		EnableTranscoding:    req.AllowTranscoding,
		AllowVideoStreamCopy: true,
		AllowAudioStreamCopy: true,
		AutoOpenLiveStream:   req.AutoOpenLiveStream,
		IsPlayback:           true,
	}

	resp, err := c.server.GetPlaybackInfo(ctx, req.Item.ID, body)
	if err != nil {
		return nil, fmt.Errorf("playback info for %s: %w", req.Item.ID, err)
	}

	if resp.ErrorCode != "" {
		return nil, fmt.Errorf("server refused playback (%s): %w", resp.ErrorCode, ErrNoPlayableSource)
	}

	info := pickSource(resp.MediaSources, req.Selection.MediaSourceID)
	if info == nil {
		return nil, fmt.Errorf("item %s: %w", req.Item.ID, ErrNoPlayableSource)
	}

	if resp.PlaySessionID == "" {
		return nil, ErrNegotiationIncomplete
	}

	streamURL, method, err := c.streamURL(req.Item.ID, info, resp.PlaySessionID)
	if err != nil {
		return nil, err
	}

	src := info.ToSource()
	for i := range src.Streams {
		if sub := src.Streams[i].Subtitle; sub != nil && sub.DeliveryURL != "" {
			sub.DeliveryURL = c.server.AbsoluteURL(sub.DeliveryURL)
		}
	}

	return &media.PlaybackStream{
		ItemID:        req.Item.ID,
		Source:        src,
		PlaySessionID: resp.PlaySessionID,
		URL:           streamURL,
		PlayMethod:    method,
		AudioIndex:    req.Selection.AudioIndex,
		SubtitleIndex: req.Selection.SubtitleIndex,
		StartTicks:    req.StartTicks,
	}, nil
}

func pickSource(sources []mediabrowser.MediaSourceInfo, id string) *mediabrowser.MediaSourceInfo {
	for i := range sources {
		if sources[i].ID == id {
			return &sources[i]
		}
	}
	if len(sources) == 0 {
		return nil
	}
	return &sources[0]
}

// streamURL chooses the URL handed to the player and derives the play method.
func (c *Client) streamURL(itemID string, info *mediabrowser.MediaSourceInfo, playSessionID string) (string, media.PlayMethod, error) {
	if info.TranscodingURL != "" {
		return c.server.AbsoluteURL(info.TranscodingURL), transcodePlayMethod(info), nil
	}

	if info.SupportsDirectPlay {
		if info.DirectStreamURL != "" {
			return c.server.AbsoluteURL(info.DirectStreamURL), media.PlayMethodDirectPlay, nil
		}
		return c.videoStreamURL(itemID, info, playSessionID, true), media.PlayMethodDirectPlay, nil
	}

	if info.SupportsDirectStream {
		return c.videoStreamURL(itemID, info, playSessionID, false), media.PlayMethodDirectStream, nil
	}

	// A 200 with a chosen source but no url is an incomplete answer, not a
	// refusal.
	return "", "", fmt.Errorf("source %s has no stream url: %w", info.ID, ErrNegotiationIncomplete)
}

func (c *Client) videoStreamURL(itemID string, info *mediabrowser.MediaSourceInfo, playSessionID string, static bool) string {
	q := url.Values{}
	q.Set("MediaSourceId", info.ID)
	q.Set("PlaySessionId", playSessionID)
	if static {
		q.Set("Static", "true")
	}
	if info.LiveStreamID != "" {
		q.Set("LiveStreamId", info.LiveStreamID)
	}
	if info.ETag != "" {
		q.Set("Tag", info.ETag)
	}
	q.Set("api_key", c.server.APIKey())

	p := fmt.Sprintf("/Videos/%s/stream", url.PathEscape(itemID))
	if info.Container != "" {
		p += "." + strings.Split(info.Container, ",")[0]
	}
	return c.server.AbsoluteURL(p + "?" + q.Encode())
}

// transcodePlayMethod decides whether a server-built URL is a real transcode.
// The requested bitrate is never assumed honored; only the URL tells.
func transcodePlayMethod(info *mediabrowser.MediaSourceInfo) media.PlayMethod {
	u, err := url.Parse(info.TranscodingURL)
	if err != nil {
		return media.PlayMethodTranscode
	}

	if hint := u.Query().Get("PlayMethod"); hint != "" {
		switch media.PlayMethod(hint) {
		case media.PlayMethodDirectPlay, media.PlayMethodDirectStream, media.PlayMethodTranscode:
			return media.PlayMethod(hint)
		}
	}

	switch strings.ToLower(info.TranscodingSubProtocol) {
	case "hls", "dash":
		return media.PlayMethodTranscode
	}

	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u8", ".mpd":
		return media.PlayMethodTranscode
	}

	// Progressive remux: video and audio copied into a new container
	q := u.Query()
	if strings.EqualFold(q.Get("VideoCodec"), "copy") && strings.EqualFold(q.Get("AudioCodec"), "copy") {
		return media.PlayMethodDirectStream
	}

	return media.PlayMethodTranscode
}
