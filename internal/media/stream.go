package media

import "strings"

// StreamKind discriminates the Stream variant.
type StreamKind string

const (
	KindVideo    StreamKind = "Video"
	KindAudio    StreamKind = "Audio"
	KindSubtitle StreamKind = "Subtitle"
)

// DeliveryMethod is how the server delivers a subtitle stream for the negotiated stream.
type DeliveryMethod string

const (
	DeliveryEncode        DeliveryMethod = "Encode" // burned into the video
	DeliveryEmbed         DeliveryMethod = "Embed"
	DeliveryExternal      DeliveryMethod = "External"
	DeliveryHLS           DeliveryMethod = "Hls"
	DeliveryVideoSideData DeliveryMethod = "VideoSideData"
)

// Stream describes one audio, video or subtitle stream of a media source.
// Subtitle is non-nil exactly when Kind is KindSubtitle.
type Stream struct {
	Kind              StreamKind
	Index             int
	Title             string
	DisplayTitle      string
	Language          string
	Codec             string
	IsDefault         bool
	IsForced          bool
	IsHearingImpaired bool
	Channels          int
	ChannelLayout     string
	Height            int // video only

	Subtitle *SubtitleInfo
}

// SubtitleInfo holds the subtitle-only part of a Stream.
type SubtitleInfo struct {
	// TextBased subtitles can be muxed or overlaid by the client,
	// image-based ones (PGS, VobSub) need server burn-in.
	TextBased      bool
	External       bool
	DeliveryMethod DeliveryMethod
	DeliveryURL    string
}

// IsTextSubtitle reports whether the stream is a text-based subtitle.
func (s Stream) IsTextSubtitle() bool {
	return s.Kind == KindSubtitle && s.Subtitle != nil && s.Subtitle.TextBased
}

// IsImageSubtitle reports whether the stream is an image-based subtitle.
func (s Stream) IsImageSubtitle() bool {
	return s.Kind == KindSubtitle && (s.Subtitle == nil || !s.Subtitle.TextBased)
}

// IsExternal reports whether the subtitle is delivered as a side file.
func (s Stream) IsExternal() bool {
	if s.Kind != KindSubtitle || s.Subtitle == nil {
		return false
	}
	return s.Subtitle.External || s.Subtitle.DeliveryMethod == DeliveryExternal
}

// Label returns the best human readable name for the stream.
func (s Stream) Label() string {
	switch {
	case s.DisplayTitle != "":
		return s.DisplayTitle
	case s.Title != "":
		return s.Title
	case s.Language != "":
		return strings.ToUpper(s.Language[:1]) + s.Language[1:]
	default:
		return string(s.Kind)
	}
}

// NativeTrack is a track as enumerated by the native player.
type NativeTrack struct {
	Index    int
	Name     string
	Language string
	External bool
}
