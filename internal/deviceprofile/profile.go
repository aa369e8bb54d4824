// Package deviceprofile holds the capability declarations sent to the
// server with every negotiation.
package deviceprofile

// Profile is forwarded as-is in the PlaybackInfo request body.
type Profile struct {
	Name                string               `json:"Name" yaml:"name"`
	MaxStreamingBitrate int64                `json:"MaxStreamingBitrate,omitempty" yaml:"max_streaming_bitrate"`
	MaxStaticBitrate    int64                `json:"MaxStaticBitrate,omitempty" yaml:"max_static_bitrate"`
	DirectPlayProfiles  []DirectPlayProfile  `json:"DirectPlayProfiles" yaml:"direct_play"`
	TranscodingProfiles []TranscodingProfile `json:"TranscodingProfiles" yaml:"transcoding"`
	SubtitleProfiles    []SubtitleProfile    `json:"SubtitleProfiles" yaml:"subtitles"`
}

type DirectPlayProfile struct {
	Type       string `json:"Type" yaml:"type"`
	Container  string `json:"Container,omitempty" yaml:"container"`
	VideoCodec string `json:"VideoCodec,omitempty" yaml:"video_codec"`
	AudioCodec string `json:"AudioCodec,omitempty" yaml:"audio_codec"`
}

type TranscodingProfile struct {
	Type                string `json:"Type" yaml:"type"`
	Container           string `json:"Container" yaml:"container"`
	Protocol            string `json:"Protocol,omitempty" yaml:"protocol"`
	VideoCodec          string `json:"VideoCodec,omitempty" yaml:"video_codec"`
	AudioCodec          string `json:"AudioCodec,omitempty" yaml:"audio_codec"`
	Context             string `json:"Context,omitempty" yaml:"context"`
	MaxAudioChannels    string `json:"MaxAudioChannels,omitempty" yaml:"max_audio_channels"`
	BreakOnNonKeyFrames bool   `json:"BreakOnNonKeyFrames,omitempty" yaml:"break_on_non_key_frames"`
}

// SubtitleProfile declares how the client can take a subtitle format.
// Method is one of Encode, Embed, External, Hls.
type SubtitleProfile struct {
	Format string `json:"Format" yaml:"format"`
	Method string `json:"Method" yaml:"method"`
}

// SupportsSubtitle reports whether the profile takes format by method.
func (p *Profile) SupportsSubtitle(format, method string) bool {
	for _, sp := range p.SubtitleProfiles {
		if sp.Format == format && sp.Method == method {
			return true
		}
	}
	return false
}

// WithMaxBitrate returns a copy whose streaming ceiling is at most bitrate.
func (p Profile) WithMaxBitrate(bitrate int64) Profile {
	if bitrate > 0 && (p.MaxStreamingBitrate == 0 || bitrate < p.MaxStreamingBitrate) {
		p.MaxStreamingBitrate = bitrate
	}
	return p
}
