package media

import (
	"testing"
	"time"
)

func TestVideoFormat(t *testing.T) {
	tests := []struct {
		name     string
		stream   Stream
		expected string
	}{
		{
			name:     "Resolution from display title",
			stream:   Stream{Kind: KindVideo, DisplayTitle: "1080p H264 SDR", Codec: "h264"},
			expected: "1080p (H.264)",
		},
		{
			name:     "4K label",
			stream:   Stream{Kind: KindVideo, DisplayTitle: "4K HEVC HDR", Codec: "hevc"},
			expected: "4K (HEVC)",
		},
		{
			name:     "Falls back to height",
			stream:   Stream{Kind: KindVideo, Height: 720, Codec: "vc1"},
			expected: "720p (VC1)",
		},
		{
			name:     "No codec",
			stream:   Stream{Kind: KindVideo, Height: 480},
			expected: "480p",
		},
		{
			name:     "Nothing known",
			stream:   Stream{Kind: KindVideo},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := Source{Streams: []Stream{{Kind: KindAudio, Index: 1}, tt.stream}}
			if got := src.VideoFormat(); got != tt.expected {
				t.Errorf("VideoFormat() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTicksConversions(t *testing.T) {
	if got := TicksFromDuration(90 * time.Second); got != 900_000_000 {
		t.Fatalf("TicksFromDuration(90s) = %d", got)
	}
	if got := Ticks(15_000_000).Seconds(); got != 1.5 {
		t.Fatalf("Seconds() = %v, want 1.5", got)
	}
	if got := TicksFromSeconds(2.5).Duration(); got != 2500*time.Millisecond {
		t.Fatalf("Duration() = %v", got)
	}
}

func TestPlaybackStreamBurnsIn(t *testing.T) {
	src := Source{Streams: []Stream{
		{Kind: KindSubtitle, Index: 5, Subtitle: &SubtitleInfo{TextBased: true, DeliveryMethod: DeliveryHLS}},
		{Kind: KindSubtitle, Index: 9, Subtitle: &SubtitleInfo{TextBased: false, DeliveryMethod: DeliveryEncode}},
	}}

	transcode := &PlaybackStream{Source: src, PlayMethod: PlayMethodTranscode, SubtitleIndex: 9}
	if !transcode.BurnsIn(9) {
		t.Fatal("expected image subtitle to be burned in")
	}
	if transcode.BurnsIn(5) {
		t.Fatal("text subtitle was not requested and must not be burned in")
	}
	if got := transcode.BurnedInSubtitle(); got != 9 {
		t.Fatalf("BurnedInSubtitle() = %d, want 9", got)
	}

	direct := &PlaybackStream{Source: src, PlayMethod: PlayMethodDirectPlay, SubtitleIndex: 9}
	if direct.BurnsIn(9) {
		t.Fatal("direct play never burns in")
	}
	if got := direct.BurnedInSubtitle(); got != NoSubtitle {
		t.Fatalf("BurnedInSubtitle() = %d, want %d", got, NoSubtitle)
	}
}

func TestStreamVariants(t *testing.T) {
	audio := Stream{Kind: KindAudio, Index: 1}
	if audio.IsTextSubtitle() || audio.IsImageSubtitle() || audio.IsExternal() {
		t.Fatal("audio stream must not report subtitle traits")
	}

	ext := Stream{Kind: KindSubtitle, Index: 3, Subtitle: &SubtitleInfo{TextBased: true, DeliveryMethod: DeliveryExternal}}
	if !ext.IsExternal() || !ext.IsTextSubtitle() {
		t.Fatal("expected external text subtitle")
	}

	if got := (Stream{Kind: KindAudio, Language: "eng"}).Label(); got != "Eng" {
		t.Fatalf("Label() = %q", got)
	}
}
