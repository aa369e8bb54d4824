package mediabrowser

import (
	"encoding/json"

	"github.com/saltyorg/autoplay/internal/deviceprofile"
)

// PlaybackInfoRequest is the body of POST /Items/{id}/PlaybackInfo.
type PlaybackInfoRequest struct {
	UserID              string                 `json:"UserId,omitempty"`
	MaxStreamingBitrate *int64                 `json:"MaxStreamingBitrate,omitempty"`
	StartTimeTicks      int64                  `json:"StartTimeTicks"`
	AudioStreamIndex    *int                   `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int                   `json:"SubtitleStreamIndex,omitempty"`
	MediaSourceID       string                 `json:"MediaSourceId,omitempty"`
	DeviceProfile       *deviceprofile.Profile `json:"DeviceProfile,omitempty"`

	EnableDirectPlay     bool `json:"EnableDirectPlay"`
	EnableDirectStream   bool `json:"EnableDirectStream"`
	EnableTranscoding    bool `json:"EnableTranscoding"`
	AllowVideoStreamCopy bool `json:"AllowVideoStreamCopy"`
	AllowAudioStreamCopy bool `json:"AllowAudioStreamCopy"`
	AutoOpenLiveStream   bool `json:"AutoOpenLiveStream"`
	IsPlayback           bool `json:"IsPlayback"`
}

// PlaybackInfoResponse is the negotiated result. A missing PlaySessionId
// means the server did not allocate a session.
type PlaybackInfoResponse struct {
	MediaSources  []MediaSourceInfo `json:"MediaSources"`
	PlaySessionID string            `json:"PlaySessionId,omitempty"`
	ErrorCode     string            `json:"ErrorCode,omitempty"` // NotAllowed, NoCompatibleStream, RateLimitExceeded
}

// MediaSourceInfo as returned in items and playback info.
type MediaSourceInfo struct {
	ID           string `json:"Id"`
	Name         string `json:"Name,omitempty"`
	Path         string `json:"Path,omitempty"`
	Protocol     string `json:"Protocol,omitempty"`
	Container    string `json:"Container,omitempty"`
	Bitrate      int64  `json:"Bitrate,omitempty"`
	RunTimeTicks *int64 `json:"RunTimeTicks,omitempty"`
	ETag         string `json:"ETag,omitempty"`
	LiveStreamID string `json:"LiveStreamId,omitempty"`

	SupportsDirectPlay   bool `json:"SupportsDirectPlay"`
	SupportsDirectStream bool `json:"SupportsDirectStream"`
	SupportsTranscoding  bool `json:"SupportsTranscoding"`

	DirectStreamURL        string `json:"DirectStreamUrl,omitempty"`
	TranscodingURL         string `json:"TranscodingUrl,omitempty"`
	TranscodingSubProtocol string `json:"TranscodingSubProtocol,omitempty"` // "hls" etc.
	TranscodingContainer   string `json:"TranscodingContainer,omitempty"`

	MediaStreams               []MediaStream `json:"MediaStreams"`
	DefaultAudioStreamIndex    *int          `json:"DefaultAudioStreamIndex,omitempty"`
	DefaultSubtitleStreamIndex *int          `json:"DefaultSubtitleStreamIndex,omitempty"`
}

// MediaStream as returned by the server. Fields vary by Type.
type MediaStream struct {
	Type                 string `json:"Type"`
	Index                int    `json:"Index"`
	Codec                string `json:"Codec,omitempty"`
	Language             string `json:"Language,omitempty"`
	Title                string `json:"Title,omitempty"`
	DisplayTitle         string `json:"DisplayTitle,omitempty"`
	IsDefault            bool   `json:"IsDefault"`
	IsForced             bool   `json:"IsForced"`
	IsHearingImpaired    bool   `json:"IsHearingImpaired,omitempty"`
	IsExternal           bool   `json:"IsExternal"`
	IsTextSubtitleStream bool   `json:"IsTextSubtitleStream"`
	DeliveryMethod       string `json:"DeliveryMethod,omitempty"`
	DeliveryURL          string `json:"DeliveryUrl,omitempty"`
	Channels             int    `json:"Channels,omitempty"`
	ChannelLayout        string `json:"ChannelLayout,omitempty"`
	Height               int    `json:"Height,omitempty"`
}

// BaseItemDto is the subset of item fields the player needs.
type BaseItemDto struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	Type              string            `json:"Type"`
	RunTimeTicks      *int64            `json:"RunTimeTicks,omitempty"`
	SeriesID          string            `json:"SeriesId,omitempty"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	SeasonID          string            `json:"SeasonId,omitempty"`
	ParentIndexNumber *int              `json:"ParentIndexNumber,omitempty"`
	IndexNumber       *int              `json:"IndexNumber,omitempty"`
	MediaSources      []MediaSourceInfo `json:"MediaSources,omitempty"`
	UserData          *UserItemData     `json:"UserData,omitempty"`
}

type UserItemData struct {
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"`
	Played                bool  `json:"Played"`
}

// PlaybackProgressInfo is the body of the /Sessions/Playing reports.
type PlaybackProgressInfo struct {
	ItemID              string `json:"ItemId"`
	MediaSourceID       string `json:"MediaSourceId,omitempty"`
	AudioStreamIndex    *int   `json:"AudioStreamIndex,omitempty"`
	SubtitleStreamIndex *int   `json:"SubtitleStreamIndex,omitempty"`
	PositionTicks       int64  `json:"PositionTicks"`
	IsPaused            bool   `json:"IsPaused"`
	IsMuted             bool   `json:"IsMuted"`
	CanSeek             bool   `json:"CanSeek"`
	PlayMethod          string `json:"PlayMethod,omitempty"`
	PlaySessionID       string `json:"PlaySessionId,omitempty"`
	LiveStreamID        string `json:"LiveStreamId,omitempty"`
	EventName           string `json:"EventName,omitempty"` // timeupdate, pause, unpause
}

// ClientCapabilities registers the session as remotely controllable.
type ClientCapabilities struct {
	PlayableMediaTypes   []string `json:"PlayableMediaTypes"`
	SupportedCommands    []string `json:"SupportedCommands"`
	SupportsMediaControl bool     `json:"SupportsMediaControl"`
}

type systemInfo struct {
	ServerName string `json:"ServerName"`
	Version    string `json:"Version"`
	ID         string `json:"Id"`
}

// WebSocket message structures
type wsMessage struct {
	MessageType string `json:"MessageType"`
	Data        string `json:"Data,omitempty"`
}

type wsResponse struct {
	MessageType string          `json:"MessageType"`
	Data        json.RawMessage `json:"Data,omitempty"`
}

type playstateRequest struct {
	Command           string `json:"Command"`
	SeekPositionTicks *int64 `json:"SeekPositionTicks,omitempty"`
}

type generalCommand struct {
	Name      string            `json:"Name"`
	Arguments map[string]string `json:"Arguments,omitempty"`
}
