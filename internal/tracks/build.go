package tracks

import (
	"github.com/saltyorg/autoplay/internal/media"
)

// Build reconciles the negotiated stream's descriptors with the tracks the
// native player enumerated after opening stream.URL.
//
// Direct Play/Stream: every non-external stream is in the file, and the
// player lists them in ascending server index order.
// Transcode: audio is positional in server listing order when the output
// carries every source audio stream. A restricted output carries only the
// requested one. Only text subtitles the server delivers in the output are
// present, also positional.
func Build(stream *media.PlaybackStream, audio, subtitles []media.NativeTrack) *Mapping {
	m := &Mapping{
		playSessionID: stream.PlaySessionID,
		burnedIn:      stream.BurnedInSubtitle(),
		audio:         newTable(media.KindAudio),
		subtitle:      newTable(media.KindSubtitle),
	}

	src := &stream.Source
	nativeSubs := embeddedNative(subtitles)

	if stream.PlayMethod.IsTranscode() {
		bindTranscodeAudio(m.audio, stream, embeddedNative(audio))
		bindPositional(m.subtitle, transcodeEmbeddedSubtitles(src.SubtitleStreams()), nativeSubs)
	} else {
		bindPositional(m.audio, media.SortByIndex(src.AudioStreams()), audio)
		bindPositional(m.subtitle, media.SortByIndex(directEmbeddedSubtitles(src.SubtitleStreams())), nativeSubs)
	}

	for _, st := range src.SubtitleStreams() {
		if st.IsExternal() && st.Index >= 0 {
			m.subtitle.external[st.Index] = st
		}
	}

	// Side-loaded tracks the player already holds keep their association
	// when the player tagged them with the stream title.
	for _, nt := range subtitles {
		if !nt.External {
			continue
		}
		for idx, st := range m.subtitle.external {
			if nt.Name != "" && nt.Name == st.Label() {
				m.subtitle.bind(idx, nt.Index)
			}
		}
	}

	return m
}

// bindTranscodeAudio leaves every audio stream not known to be in the output
// unbound, so selecting one takes the re-negotiation path.
func bindTranscodeAudio(t *Table, stream *media.PlaybackStream, native []media.NativeTrack) {
	streams := stream.Source.AudioStreams()
	if len(native) == len(streams) {
		bindPositional(t, streams, native)
		return
	}
	if len(native) == 0 {
		return
	}
	if idx, ok := stream.RequestedAudio(); ok {
		t.bind(idx, native[0].Index)
	}
}

func bindPositional(t *Table, streams []media.Stream, native []media.NativeTrack) {
	n := min(len(streams), len(native))
	for i := 0; i < n; i++ {
		t.bind(streams[i].Index, native[i].Index)
	}
}

func directEmbeddedSubtitles(streams []media.Stream) []media.Stream {
	var out []media.Stream
	for _, st := range streams {
		if st.IsExternal() {
			continue
		}
		out = append(out, st)
	}
	return out
}

func transcodeEmbeddedSubtitles(streams []media.Stream) []media.Stream {
	var out []media.Stream
	for _, st := range streams {
		if isDeliveredInOutput(st) {
			out = append(out, st)
		}
	}
	return out
}

// isDeliveredInOutput reports whether a transcode carries st as a selectable track.
func isDeliveredInOutput(st media.Stream) bool {
	if st.Subtitle == nil || !st.Subtitle.TextBased {
		return false
	}
	switch st.Subtitle.DeliveryMethod {
	case media.DeliveryHLS, media.DeliveryEmbed:
		return true
	case "":
		return !st.Subtitle.External
	default:
		return false
	}
}

func embeddedNative(tracks []media.NativeTrack) []media.NativeTrack {
	var out []media.NativeTrack
	for _, t := range tracks {
		if !t.External {
			out = append(out, t)
		}
	}
	return out
}
