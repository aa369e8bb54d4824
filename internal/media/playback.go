package media

// NoSubtitle is the subtitle index meaning "subtitles off".
const NoSubtitle = -1

// PlayMethod is how the server delivers the negotiated stream.
type PlayMethod string

const (
	PlayMethodDirectPlay   PlayMethod = "DirectPlay"
	PlayMethodDirectStream PlayMethod = "DirectStream"
	PlayMethodTranscode    PlayMethod = "Transcode"
)

// IsTranscode reports whether the server re-encodes the output.
func (m PlayMethod) IsTranscode() bool {
	return m == PlayMethodTranscode
}

// PlaySelection is what the user wants to play. One is active per session.
type PlaySelection struct {
	MediaSourceID string
	MaxBitrate    *int64 // nil = no ceiling
	AudioIndex    *int
	SubtitleIndex int // NoSubtitle = none
}

// HasSubtitle reports whether a subtitle is selected.
func (s PlaySelection) HasSubtitle() bool {
	return s.SubtitleIndex != NoSubtitle
}

// WithAudio returns a copy with the audio index replaced.
func (s PlaySelection) WithAudio(index int) PlaySelection {
	s.AudioIndex = &index
	return s
}

// WithSubtitle returns a copy with the subtitle index replaced.
func (s PlaySelection) WithSubtitle(index int) PlaySelection {
	s.SubtitleIndex = index
	return s
}

// PlaybackStream is the result of one negotiation. It is invalidated by any
// selection change that cannot be applied on the running player.
type PlaybackStream struct {
	ItemID        string
	Source        Source
	PlaySessionID string
	URL           string
	PlayMethod    PlayMethod

	// AudioIndex is the audio stream requested when negotiating, nil for
	// the server's default.
	AudioIndex *int
	// SubtitleIndex is the subtitle requested when negotiating. With a
	// transcode and an image subtitle, this is the one burned in.
	SubtitleIndex int
	StartTicks    Ticks

	// Offline streams play a local file and are never reported.
	Offline bool
}

// BurnsIn reports whether the stream renders the given subtitle into the video.
func (p *PlaybackStream) BurnsIn(subtitleIndex int) bool {
	if p == nil || subtitleIndex == NoSubtitle || !p.PlayMethod.IsTranscode() {
		return false
	}
	if p.SubtitleIndex != subtitleIndex {
		return false
	}
	st, ok := p.Source.Stream(KindSubtitle, subtitleIndex)
	if !ok {
		return false
	}
	if st.Subtitle != nil && st.Subtitle.DeliveryMethod == DeliveryEncode {
		return true
	}
	return st.IsImageSubtitle()
}

// RequestedAudio returns the audio stream the output was built around: the
// negotiated index, else the source default, else the first audio stream.
func (p *PlaybackStream) RequestedAudio() (int, bool) {
	if p == nil {
		return 0, false
	}
	if p.AudioIndex != nil && p.Source.HasStream(KindAudio, *p.AudioIndex) {
		return *p.AudioIndex, true
	}
	if d := p.Source.DefaultAudioIndex; d != nil && p.Source.HasStream(KindAudio, *d) {
		return *d, true
	}
	if audio := p.Source.AudioStreams(); len(audio) > 0 {
		return audio[0].Index, true
	}
	return 0, false
}

// BurnedInSubtitle returns the subtitle burned into the stream, or NoSubtitle.
func (p *PlaybackStream) BurnedInSubtitle() int {
	if p != nil && p.BurnsIn(p.SubtitleIndex) {
		return p.SubtitleIndex
	}
	return NoSubtitle
}
